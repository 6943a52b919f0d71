package main

import (
	"github.com/spf13/cobra"

	"github.com/kzetxa/getmoneyclaude/internal/api"
	"github.com/kzetxa/getmoneyclaude/internal/logging"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the import and search HTTP API",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.RunE = withApp(f, func(cmd *cobra.Command, a *app) error {
		if addr != "" {
			a.cfg.Server.Addr = addr
		}
		svc := newService(a)
		// Runs still in flight at shutdown are finalized as cancelled.
		defer svc.Stop()

		srv := api.NewServer(api.Config{Addr: a.cfg.Server.Addr}, svc, a.repo, logging.Component(a.log, "api"))
		return srv.ListenAndServe(cmd.Context())
	})
	return cmd
}
