package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/toppsdigital/cardsync/config"
	"github.com/toppsdigital/cardsync/logger"
	"github.com/toppsdigital/cardsync/server"
)

// ServeCmd starts the WebSocket push server.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the WebSocket push server",
	Long: `Run the push server browser consoles connect to. Clients send
watch messages naming a query; the server polls the pipeline API and
pushes every cache update over the socket.

The config file is watched; polling intervals and cache windows are
picked up without a restart.

Example:
  cardsync serve
  cardsync serve --port 9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		return runServe(cmd, port)
	},
}

func init() {
	ServeCmd.Flags().Int("port", 0, "Listen port (overrides config)")
}

func runServe(cmd *cobra.Command, port int) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	if port != 0 {
		e.cfg.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e.engine.Start()
	defer e.engine.Stop()

	// Hot-reload polling intervals and cache windows on config change.
	if path, _ := cmd.Root().PersistentFlags().GetString("config"); path == "" {
		path = config.ProjectConfigPath()
		if path != "" {
			watcher, werr := config.NewWatcher(path)
			if werr != nil {
				logger.Warnw("Config watcher unavailable", "error", werr)
			} else {
				watcher.OnReload(func(cfg *config.Config) error {
					e.engine.SetConfig(cfg)
					logger.Infow("Configuration reloaded")
					return nil
				})
				watcher.Start()
				defer watcher.Stop()
			}
		}
	}

	srv := server.New(e.engine, e.dispatcher, e.cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
