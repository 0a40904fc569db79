// Package commands implements the tsg-officer CLI.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/matrixor/tsg-officer/checkpoint"
	"github.com/matrixor/tsg-officer/config"
	"github.com/matrixor/tsg-officer/llm"
	"github.com/matrixor/tsg-officer/rules"
	"github.com/matrixor/tsg-officer/workflow"
)

// App holds the wired runtime a command needs: config, logger, rule
// repository, checkpoint store, and the case engine on top of them.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Rules  *rules.YAMLRepository
	Store  checkpoint.Store
	Engine *workflow.Engine

	closers []func()
}

// NewApp loads configuration and wires the engine. Callers must Close.
func NewApp(ctx context.Context, configPath, logLevel string) (*App, error) {
	logger := newLogger(logLevel)

	cfg, err := config.NewLoader(logger).Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &App{Config: cfg, Logger: logger}

	svc, err := app.buildService()
	if err != nil {
		return nil, err
	}

	app.Rules = rules.NewYAMLRepository(cfg.Rules.Dir, cfg.Rules.Glob)

	if err := app.buildStore(ctx); err != nil {
		return nil, err
	}

	app.Engine = workflow.NewEngine(svc, app.Rules, app.Store,
		workflow.WithEngineLogger(logger),
		workflow.WithClarificationBound(cfg.Workflow.ClarificationBound),
		workflow.WithMaxSynthesizedFollowups(cfg.Workflow.MaxSynthesizedFollowups),
		workflow.WithDiagramCategories(cfg.Workflow.DiagramCategories),
		workflow.WithRequiredFields(cfg.Workflow.RequiredFields),
	)
	return app, nil
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *App) buildService() (llm.Service, error) {
	if a.Config.LLM.Provider == "mock" {
		return llm.NewMock(), nil
	}

	opts := []llm.ClientOption{llm.WithLogger(a.Logger)}
	if a.Config.LLM.Endpoint != "" {
		opts = append(opts, llm.WithEndpoint(a.Config.LLM.Endpoint))
	}
	if a.Config.LLM.Timeout > 0 {
		opts = append(opts, llm.WithTimeout(a.Config.LLM.Timeout))
	}
	client, err := llm.NewClient(a.Config.LLM.Provider, a.Config.LLM.Model, opts...)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	return client, nil
}

func (a *App) buildStore(ctx context.Context) error {
	switch a.Config.Checkpoint.Backend {
	case "memory":
		a.Logger.Warn("using in-memory checkpoints; cases will not survive a restart")
		a.Store = checkpoint.NewMemoryStore()
	default:
		kv, err := checkpoint.NewKVStore(ctx, a.Config.Checkpoint.NATSURL, a.Config.Checkpoint.Bucket)
		if err != nil {
			return fmt.Errorf("connect checkpoint store: %w", err)
		}
		a.Store = kv
		a.closers = append(a.closers, kv.Close)
	}
	return nil
}

func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
