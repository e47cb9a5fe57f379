package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mikan/convo/internal/config"
	"github.com/mikan/convo/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the convo HTTP server. Exposes chat with SSE streaming, session
management, health and Prometheus metrics until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	lg := rt.log.Zerolog()

	srv, err := server.New(server.Options{
		Host: rt.cfg.Server.Host,
		Port: rt.cfg.Server.Port,
	}, rt.manager, lg)
	if err != nil {
		return err
	}

	// Pick up log level edits without a restart.
	watcher, err := config.NewWatcher(rt.loader, lg, func(cfg *config.Config) {
		if err := rt.log.SetLevel(cfg.Logging.Level); err != nil {
			lg.Warn().Err(err).Msg("Ignoring log level change")
		}
	})
	if err != nil {
		lg.Warn().Err(err).Msg("Config watcher unavailable")
	} else {
		defer watcher.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		lg.Info().Str("signal", sig.String()).Msg("Shutting down")
		return srv.Stop()
	}
}
