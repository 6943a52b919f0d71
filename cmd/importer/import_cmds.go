package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kzetxa/getmoneyclaude/internal/importer"
	"github.com/kzetxa/getmoneyclaude/internal/logging"
)

// errUnsuccessful makes the process exit non-zero after a structured
// failure response has been printed.
var errUnsuccessful = errors.New("import action failed")

func newService(a *app) *importer.Service {
	return importer.NewService(a.repo, a.fetch, importer.OptionsFromConfig(a.cfg), logging.Component(a.log, "importer"))
}

func printResponse(w io.Writer, resp importer.Response) error {
	b, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(b))
	if !resp.Success {
		return errUnsuccessful
	}
	return nil
}

func newStartCmd(f *rootFlags) *cobra.Command {
	var (
		batchSize int
		noAnalyze bool
		idPolicy  string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run an import to completion",
		Long:  "Fetches every source archive, loads all CSV members and prints the final ledger snapshot. Interrupting the command cancels the run.",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per upsert batch (1..1000)")
	cmd.Flags().BoolVar(&noAnalyze, "no-analyze", false, "skip the id-coverage analysis")
	cmd.Flags().StringVar(&idPolicy, "id-policy", "", "synthetic id policy: deterministic or random")
	cmd.RunE = withApp(f, func(cmd *cobra.Command, a *app) error {
		if batchSize > 0 {
			a.cfg.Runtime.BatchSize = batchSize
		}
		if noAnalyze {
			a.cfg.Runtime.Analyze = false
		}
		if idPolicy != "" {
			a.cfg.Runtime.IDPolicy = idPolicy
		}
		a.log.Info().Strs("urls", a.cfg.Source.URLs).Str("storage", a.cfg.Storage.Kind).Msg("start: importing")
		return printResponse(cmd.OutOrStdout(), newService(a).Start(cmd.Context()))
	})
	return cmd
}

func newStatusCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status IMPORT_ID",
		Short: "Show the ledger snapshot of an import",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withApp(f, func(cmd *cobra.Command, a *app) error {
			return printResponse(cmd.OutOrStdout(), newService(a).Status(cmd.Context(), args[0]))
		})(cmd, args)
	}
	return cmd
}

func newCancelCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel IMPORT_ID",
		Short: "Mark an import cancelled",
		Long:  "Flips the ledger status to cancelled. A run in another process stops before it truncates the table or, once loading, at its next ledger poll.",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withApp(f, func(cmd *cobra.Command, a *app) error {
			return printResponse(cmd.OutOrStdout(), newService(a).Cancel(cmd.Context(), args[0]))
		})(cmd, args)
	}
	return cmd
}
