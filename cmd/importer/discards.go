package main

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kzetxa/getmoneyclaude/internal/report"
)

func newDiscardsCmd(f *rootFlags) *cobra.Command {
	var (
		top, recent int
		asJSON      bool
		parquetPath string
	)
	cmd := &cobra.Command{
		Use:   "discards [IMPORT_ID]",
		Short: "Analyze the discarded records of an import",
		Long:  "Reports the discards of IMPORT_ID (the newest import when omitted) by reason, file and error message, followed by recent imports.",
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.Flags().IntVar(&top, "top", report.DefaultTopErrors, "number of top error messages")
	cmd.Flags().IntVar(&recent, "recent", report.DefaultRecent, "number of recent imports")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	cmd.Flags().StringVar(&parquetPath, "parquet", "", "also export the discarded records to this parquet file")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		var id string
		if len(args) == 1 {
			id = args[0]
		}
		return withApp(f, func(cmd *cobra.Command, a *app) error {
			rep, err := report.Build(cmd.Context(), a.repo, id, report.Options{TopErrors: top, Recent: recent})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rep); err != nil {
					return err
				}
			} else if err := rep.WriteText(out); err != nil {
				return err
			}

			if parquetPath != "" {
				n, err := report.ExportParquet(cmd.Context(), a.repo, rep.Summary.Import.ID, parquetPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %s discarded records to %s\n", humanize.Comma(int64(n)), parquetPath)
			}
			return nil
		})(cmd, args)
	}
	return cmd
}
