package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rememberme/rememberme/internal/config"
	"github.com/rememberme/rememberme/internal/engine"
	"github.com/rememberme/rememberme/internal/llm"
	"github.com/rememberme/rememberme/internal/logging"
	"github.com/rememberme/rememberme/internal/store"
)

// app holds what every command needs once config is loaded.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	db     *store.DB
}

func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Debug("database opened", zap.String("path", dbPath))
	return &app{cfg: cfg, logger: logger, db: db}, nil
}

func (a *app) Close() {
	a.db.Close()
	a.logger.Sync()
}

// newEngine builds the engine. A misconfigured AI provider is logged and
// leaves the engine without a client, so AI endpoints answer 503.
func (a *app) newEngine() *engine.Engine {
	var client llm.Client
	raw, err := llm.NewClient(a.cfg.LLM)
	if err != nil {
		a.logger.Warn("AI not configured, AI features disabled", zap.Error(err))
	} else {
		client = llm.NewBreaker(raw, llm.DefaultBreakerSettings(), a.logger)
		a.logger.Info("AI configured", zap.String("provider", a.cfg.LLM.Provider))
	}
	return engine.New(a.db, client, a.logger, a.cfg.Rescue)
}
