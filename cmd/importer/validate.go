package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

func newValidateCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			if err := checkConfig(cmd.ErrOrStderr(), cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid (storage=%s, backends=%v, sources=%d)\n",
				cfg.Storage.Kind, storage.ListKinds(), len(cfg.Source.URLs))
			return nil
		},
	}
}
