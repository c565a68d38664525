package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/mdpublish/internal/config"
	derrors "git.home.luguber.info/inful/mdpublish/internal/errors"
	"git.home.luguber.info/inful/mdpublish/internal/gitinfo"
	"git.home.luguber.info/inful/mdpublish/internal/journal"
	"git.home.luguber.info/inful/mdpublish/internal/logfields"
	"git.home.luguber.info/inful/mdpublish/internal/metrics"
	"git.home.luguber.info/inful/mdpublish/internal/notify"
	"git.home.luguber.info/inful/mdpublish/internal/publish"
	"git.home.luguber.info/inful/mdpublish/internal/storage"
)

// Global is shared state passed to every command.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root command with the global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file (default: mdpublish.yaml, mdpublish.yml or mdpublish.toml if present)" env:"MDPUBLISH_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging" env:"MDPUBLISH_VERBOSE"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Module      string `short:"m" help:"Module name; '_simple' for a single-module site, 'auto' to derive it from git" env:"MDPUBLISH_MODULE"`
	ContentDir  string `name:"content-dir" help:"Markdown source directory" env:"MDPUBLISH_CONTENT_DIR"`
	OutputDir   string `short:"o" name:"output-dir" help:"Output directory" env:"MDPUBLISH_OUTPUT_DIR"`
	Theme       string `help:"Theme directory overriding the built-in theme" env:"MDPUBLISH_THEME"`
	Title       string `help:"Site title" env:"MDPUBLISH_TITLE"`
	Concurrency int    `help:"Parallel remote transfers" env:"MDPUBLISH_CONCURRENCY"`

	Build   BuildCmd   `cmd:"" help:"Render the site locally without touching the remote store"`
	Publish PublishCmd `cmd:"" help:"Render the site, merge navigation and sync the module to the remote store"`
	Diff    DiffCmd    `cmd:"" help:"List remote objects the next publish would delete"`
	Merge   MergeCmd   `cmd:"" help:"Merge a directory of manifest files into one"`
	Preview PreviewCmd `cmd:"" help:"Serve the output directory and rebuild on change"`
	Daemon  DaemonCmd  `cmd:"" help:"Publish periodically"`
	History HistoryCmd `cmd:"" help:"Show recent publish runs from the journal"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	g.Logger = logger
	return nil
}

func (c *CLI) overrides(dryRun bool) config.Overrides {
	return config.Overrides{
		Module:      c.Module,
		ContentDir:  c.ContentDir,
		OutputDir:   c.OutputDir,
		Theme:       c.Theme,
		Title:       c.Title,
		DryRun:      dryRun,
		Concurrency: c.Concurrency,
	}
}

// LoadConfig loads the configuration and resolves an "auto" module name.
func (c *CLI) LoadConfig(dryRun bool) (config.Config, error) {
	cfg, err := config.Load(c.Config, c.overrides(dryRun))
	if err != nil {
		return config.Config{}, err
	}
	module, err := gitinfo.ResolveModule(cfg.Module(), config.AutoModule, cfg.ContentDir())
	if err != nil {
		return config.Config{}, derrors.Wrap(err, derrors.CategoryConfig, derrors.SeverityFatal, "resolve module name").
			WithCode(derrors.CodeConfig)
	}
	return cfg.WithModule(module), nil
}

// runtime holds the collaborators a publish needs, built from the config.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prom.Registry
	recorder *metrics.PrometheusRecorder
	store    storage.ObjectStore
	journal  journal.Journal
	notifier notify.Notifier
	revision string
}

// openRuntime connects the optional collaborators. withRemote controls
// whether the remote store is opened at all.
func openRuntime(cfg config.Config, logger *slog.Logger, withRemote bool) (*runtime, error) {
	reg := prom.NewRegistry()
	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		recorder: metrics.NewPrometheusRecorder(reg),
		journal:  journal.Noop{},
		notifier: notify.Noop{},
	}
	if info, err := gitinfo.Inspect(cfg.ContentDir()); err == nil {
		rt.revision = info.Revision
	} else {
		logger.Debug("Content directory is not in a git repository", logfields.Error(err))
	}

	switch {
	case withRemote && cfg.RemoteEnabled():
		store, err := publish.OpenStore(cfg.Remote())
		if err != nil {
			return nil, err
		}
		rt.store = store
	case withRemote && !cfg.SingleModule():
		logger.Warn("Remote store not configured; publishing locally only")
	}

	if path := cfg.Journal().Path; path != "" {
		j, err := journal.Open(path)
		if err != nil {
			rt.close()
			return nil, derrors.FileSystemError("open journal", path, err)
		}
		rt.journal = j
	}

	if url := cfg.Notify().NATSURL; url != "" && withRemote {
		n, err := notify.NewNATSNotifier(url, cfg.Notify().Subject, logger)
		if err != nil {
			// A broker outage never blocks publishing.
			logger.Warn("NATS unavailable; publish notifications disabled", logfields.Error(err))
		} else {
			rt.notifier = n
		}
	}
	return rt, nil
}

func (rt *runtime) orchestrator(cfg config.Config) *publish.Orchestrator {
	opts := []publish.Option{
		publish.WithLogger(rt.logger),
		publish.WithRecorder(rt.recorder),
		publish.WithJournal(rt.journal),
		publish.WithNotifier(rt.notifier),
		publish.WithRevision(rt.revision),
	}
	if rt.store != nil {
		opts = append(opts, publish.WithStore(rt.store))
	}
	return publish.New(cfg, opts...)
}

// close writes the metrics textfile and releases connections.
func (rt *runtime) close() {
	if err := metrics.WriteTextfile(rt.cfg.Metrics().Textfile, rt.registry); err != nil {
		rt.logger.Warn("Failed to write metrics textfile", logfields.Error(err))
	}
	if rt.store != nil {
		_ = rt.store.Close()
	}
	if err := rt.notifier.Close(); err != nil {
		rt.logger.Warn("Failed to close notifier", logfields.Error(err))
	}
	if err := rt.journal.Close(); err != nil {
		rt.logger.Warn("Failed to close journal", logfields.Error(err))
	}
}

// runOnce performs one publish and prints its summary.
func runOnce(ctx context.Context, rt *runtime, cfg config.Config, strict bool) error {
	rep, err := rt.orchestrator(cfg).Run(ctx)
	if err != nil {
		return err
	}
	fmt.Println(rep.Summary())
	if strict && rep.Incomplete() {
		return derrors.New(derrors.CategoryRemote, derrors.SeverityError, "publish incomplete").
			WithContext("failures", len(rep.Failures))
	}
	return nil
}
