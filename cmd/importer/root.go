package main

import (
	"github.com/spf13/cobra"
)

// rootFlags are the persistent flags shared by every subcommand. Non-empty
// values override the config file and the environment.
type rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	dbKind     string
	dbDSN      string
	urls       []string
	urlList    string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "importer",
		Short:         "Bulk import of California unclaimed-property archives",
		Long:          "Downloads the State Controller's ZIP archives, normalizes every CSV row and upserts it into the configured store.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "config file (YAML or JSON)")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&f.logFormat, "log-format", "", "log format: console or json")
	pf.StringVar(&f.dbKind, "db-kind", "", "storage backend: postgres, sqlite, mysql, mssql")
	pf.StringVar(&f.dbDSN, "db-dsn", "", "storage connection string")
	pf.StringSliceVar(&f.urls, "url", nil, "archive url or path (repeatable; replaces source.urls)")
	pf.StringVar(&f.urlList, "url-list", "", "file with one archive url per line")

	root.AddCommand(
		newStartCmd(f),
		newStatusCmd(f),
		newCancelCmd(f),
		newServeCmd(f),
		newDiscardsCmd(f),
		newSearchCmd(f),
		newValidateCmd(f),
		newProbeCmd(f),
	)
	return root
}
