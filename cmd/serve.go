// File: cmd/serve.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pilot-cli/internal/observability"
	"github.com/xkilldash9x/pilot-cli/internal/server"
)

// newServeCmd creates the `serve` command.
func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves agent runs over HTTP until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				a.cfg.ServerCfg.ListenAddr = listen
			}
			srv := server.New(a.cfg, a.factory, observability.GetLogger())
			return srv.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default: server.listen_addr)")
	return cmd
}
