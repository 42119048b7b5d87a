// File: cmd/serve.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/dlsmap/internal/browser"
	"github.com/xkilldash9x/dlsmap/internal/config"
	"github.com/xkilldash9x/dlsmap/internal/observability"
	"github.com/xkilldash9x/dlsmap/internal/orchestrator"
	"github.com/xkilldash9x/dlsmap/internal/server"
)

// newSubmitter wires the browser launcher into an orchestrator. Tests replace it.
var newSubmitter = func(cfg *config.Config, logger *zap.Logger) (server.Submitter, error) {
	launcher := browser.NewLauncher(browser.OptionsFromConfig(cfg), logger)
	return orchestrator.New(cfg.Form, orchestrator.BrowserLauncher(launcher), logger)
}

func newServeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			defer observability.Sync()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			// Flags win over the config file and environment.
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			logger := observability.GetLogger()
			sub, err := newSubmitter(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize submitter: %w", err)
			}

			srv, err := server.New(cfg.Server, sub, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize server: %w", err)
			}

			logger.Info("DLS API starting.",
				zap.String("addr", cfg.Server.Addr()),
				zap.String("target", cfg.Form.TargetURL),
				zap.String("wait_strategy", cfg.Form.WaitStrategy),
			)
			return srv.Start(ctx)
		},
	}

	serveCmd.Flags().StringVar(&host, "host", "", "address to bind (overrides server.host)")
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port and PORT)")
	return serveCmd
}
