package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kzetxa/getmoneyclaude/internal/datasource"
	"github.com/kzetxa/getmoneyclaude/internal/datasource/httpds"
	"github.com/kzetxa/getmoneyclaude/internal/logging"
)

func newProbeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "probe [URL...]",
		Short: "Check that http(s) sources serve ZIP archives without downloading them",
		Long:  "Reads the first bytes of each URL (the configured sources when none are given) and reports whether they start with a ZIP signature.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			urls := args
			if len(urls) == 0 {
				urls = cfg.Source.URLs
			}
			log := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			hf := httpds.NewFetcher(httpds.NewClient(httpds.Config{
				Timeout:    cfg.Fetch.Timeout,
				MaxRetries: cfg.Fetch.MaxRetries,
				Log:        log,
			}), httpds.FetchOptions{MaxRedirects: cfg.Fetch.MaxRedirects}, log)

			var bad int
			for _, u := range urls {
				if s := datasource.Scheme(u); s != "http" && s != "https" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tskipped (%s)\n", u, s)
					continue
				}
				ok, err := hf.ProbeZip(cmd.Context(), u)
				switch {
				case err != nil:
					bad++
					fmt.Fprintf(cmd.OutOrStdout(), "%s\terror: %v\n", u, err)
				case !ok:
					bad++
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tnot a zip archive\n", u)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tzip\n", u)
				}
			}
			if bad > 0 {
				return fmt.Errorf("%d of %d sources failed the probe", bad, len(urls))
			}
			return nil
		},
	}
}
