package commands

import (
	"github.com/spf13/cobra"

	"github.com/toppsdigital/cardsync/cache"
	"github.com/toppsdigital/cardsync/config"
	"github.com/toppsdigital/cardsync/gateway"
	"github.com/toppsdigital/cardsync/query"
)

// env bundles the wired-up pipeline client stack one command run needs.
type env struct {
	cfg        *config.Config
	gw         *gateway.Client
	engine     *query.Engine
	dispatcher *query.Dispatcher
}

// newEnv loads configuration and builds the gateway, engine, and
// dispatcher. The --config flag overrides the usual config file merge.
func newEnv(cmd *cobra.Command) (*env, error) {
	var cfg *config.Config
	var err error

	if path, _ := cmd.Root().PersistentFlags().GetString("config"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	gw := gateway.NewClient(cfg.Gateway)
	engine := query.NewEngine(gw, cache.NewStore(), cfg)
	return &env{
		cfg:        cfg,
		gw:         gw,
		engine:     engine,
		dispatcher: engine.Dispatcher(gw),
	}, nil
}
