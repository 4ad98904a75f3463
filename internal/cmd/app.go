package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/priyansh1913/open-deep-research-web/internal/artifacts"
	"github.com/priyansh1913/open-deep-research-web/internal/config"
	"github.com/priyansh1913/open-deep-research-web/internal/executor"
	"github.com/priyansh1913/open-deep-research-web/internal/history"
	"github.com/priyansh1913/open-deep-research-web/internal/imagegen"
	"github.com/priyansh1913/open-deep-research-web/internal/invoker"
	"github.com/priyansh1913/open-deep-research-web/internal/logger"
	"github.com/priyansh1913/open-deep-research-web/internal/models"
	"github.com/priyansh1913/open-deep-research-web/internal/probe"
	"github.com/priyansh1913/open-deep-research-web/internal/research"
	"github.com/priyansh1913/open-deep-research-web/internal/server"
	"github.com/priyansh1913/open-deep-research-web/internal/service"
	"github.com/priyansh1913/open-deep-research-web/internal/telegram"
)

// Service is everything the front-ends call. *service.Service implements it.
type Service interface {
	server.API
	telegram.API
}

// app holds the wired components for one command invocation.
type app struct {
	cfg     *config.Config
	svc     Service
	logger  logger.Logger
	closers []func() error
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// logStep records a finished step through the app's logger. It is the
// observer for the research and image commands.
func (a *app) logStep(r models.StepResult) {
	if sl, ok := a.logger.(logger.StepLogger); ok {
		sl.LogStepResult(r)
	}
}

// newApp is replaced in tests to avoid real backends.
var newApp = buildApp

// buildApp wires config into the invoker, executor, pipelines, stores and
// service. Logs go to stderr and, when log_dir is set, to a run log file.
func buildApp(ctx context.Context, cfg *config.Config, stderr io.Writer) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	console := logger.NewConsoleLogger(stderr, cfg.LogLevel)
	var fileLog *logger.FileLogger
	if cfg.LogDir != "" {
		fileLog, err = logger.NewFileLogger(cfg.LogDir, cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, fileLog.Close)
		a.logger = logger.NewMultiLogger(console, fileLog)
	} else {
		a.logger = console
	}

	if err := cfg.ResolveCredentials(os.Getenv); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	inv, err := invoker.FromConfig(ctx, cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create backends: %w", err)
	}
	a.closers = append(a.closers, inv.Close)

	exec := executor.New(inv, cfg, a.logger)

	researcher, err := research.New(exec, cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create research pipeline: %w", err)
	}

	prober := probe.New(probe.Options{
		NvidiaSMI:   cfg.DeviceThresholds.NvidiaSMI,
		LowMemoryGB: cfg.DeviceThresholds.LowMemoryGB,
		ForceCPU:    cfg.DeviceThresholds.ForceCPU,
		WorkerURL:   workerURL(cfg, inv),
		Logger:      a.logger,
	})
	images := imagegen.New(exec, prober, inv, cfg, a.logger)

	opts := service.Options{Logger: a.logger}
	if fileLog != nil {
		opts.RunLog = fileLog
	}
	if cfg.History.Enabled {
		store, err := history.Open(ctx, cfg.History.Driver, cfg.History.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		opts.History = store
	}
	sink, err := artifacts.FromConfig(ctx, cfg.Artifacts)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact storage: %w", err)
	}
	opts.Artifacts = sink

	a.svc = service.New(researcher, images, opts)
	return a, nil
}

// workerURL returns the base URL of the first diffusion worker serving the
// generate step, so the probe can check it is reachable.
func workerURL(cfg *config.Config, inv *invoker.Invoker) string {
	workers := inv.DiffusionWorkers()
	for _, c := range cfg.Candidates(models.StepGenerate) {
		if w, ok := workers[c.Provider]; ok {
			return w.BaseURL()
		}
	}
	return ""
}

// loadConfig reads --config (or the default location), applies flag
// overrides and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, _, err := loadUnvalidatedConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadUnvalidatedConfig loads the config file with flag overrides applied
// and returns the path it was read from.
func loadUnvalidatedConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return nil, "", fmt.Errorf("failed to locate config: %w", err)
		}
		configPath = path
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, configPath, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	cfg.MergeWithFlags(
		changedString(cmd, "log-level"),
		changedString(cmd, "log-dir"),
		changedString(cmd, "addr"),
		changedInt(cmd, "token-budget"),
		changedBool(cmd, "cpu"),
	)
	return cfg, configPath, nil
}

func changedString(cmd *cobra.Command, name string) *string {
	f := cmd.Flags().Lookup(name)
	if f == nil || !f.Changed {
		return nil
	}
	v := f.Value.String()
	return &v
}

func changedInt(cmd *cobra.Command, name string) *int {
	f := cmd.Flags().Lookup(name)
	if f == nil || !f.Changed {
		return nil
	}
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		return nil
	}
	return &v
}

func changedBool(cmd *cobra.Command, name string) *bool {
	f := cmd.Flags().Lookup(name)
	if f == nil || !f.Changed {
		return nil
	}
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return nil
	}
	return &v
}

// setup loads config and builds the app for a command.
func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
}
