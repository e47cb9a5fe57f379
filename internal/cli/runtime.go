package cli

import (
	"fmt"
	"time"

	"github.com/mikan/convo/internal/config"
	"github.com/mikan/convo/internal/logger"
	"github.com/mikan/convo/pkg/agent"
	"github.com/mikan/convo/pkg/coretools"
	"github.com/mikan/convo/pkg/history"
	"github.com/mikan/convo/pkg/provider"
	"github.com/mikan/convo/pkg/session"
	"github.com/mikan/convo/pkg/tool"
)

// runtime bundles the assembled components behind a command.
type runtime struct {
	cfg     *config.Config
	loader  *config.Loader
	log     *logger.Logger
	store   history.Store
	manager *session.Manager
}

// buildRuntime loads configuration and wires store, provider, agent loop
// and session manager together. console controls log output to stderr.
func buildRuntime(console bool) (*runtime, error) {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return nil, err
	}

	lg := log.Zerolog()

	store, err := history.Open(history.Options{
		Backend: cfg.History.Backend,
		Path:    cfg.History.Path,
	})
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	prov, err := provider.New(provider.Options{
		Name:    cfg.Provider.Name,
		APIKey:  cfg.Provider.APIKey,
		BaseURL: cfg.Provider.BaseURL,
	})
	if err != nil {
		store.Close()
		log.Close()
		return nil, err
	}

	registry := tool.NewRegistry()
	if err := coretools.RegisterAll(registry); err != nil {
		store.Close()
		log.Close()
		return nil, err
	}

	executor := tool.NewExecutor(registry, time.Duration(cfg.Agent.ToolTimeoutSec)*time.Second, lg)

	loop, err := agent.New(agent.Options{
		Provider: prov,
		Registry: registry,
		Executor: executor,
		Store:    store,
		Config: agent.Config{
			Model:        cfg.Agent.Model,
			SystemPrompt: cfg.Agent.SystemPrompt,
			Temperature:  cfg.Agent.Temperature,
			MaxTokens:    cfg.Agent.MaxTokens,
			MaxRounds:    cfg.Agent.MaxRounds,
			MaxRetries:   cfg.Agent.MaxRetries,
			TurnTimeout:  time.Duration(cfg.Agent.TurnTimeoutSec) * time.Second,
			Tools:        cfg.Agent.Tools,
		},
		Logger: lg,
	})
	if err != nil {
		store.Close()
		log.Close()
		return nil, err
	}

	manager, err := session.NewManager(session.Options{
		Loop:       loop,
		Store:      store,
		Logger:     lg,
		IdleAfter:  time.Duration(cfg.Sessions.IdleAfterMin) * time.Minute,
		SweepEvery: time.Duration(cfg.Sessions.SweepEverySec) * time.Second,
	})
	if err != nil {
		store.Close()
		log.Close()
		return nil, err
	}

	return &runtime{
		cfg:     cfg,
		loader:  loader,
		log:     log,
		store:   store,
		manager: manager,
	}, nil
}

func (r *runtime) Close() {
	r.manager.Close()
	r.store.Close()
	r.log.Close()
}
