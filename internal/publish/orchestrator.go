// Package publish sequences a module's publish run: build the page tree,
// render it, merge the navigation manifests of every module, and keep the
// module's share of the remote bucket in step with the local output.
package publish

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/mdpublish/internal/config"
	derrors "git.home.luguber.info/inful/mdpublish/internal/errors"
	"git.home.luguber.info/inful/mdpublish/internal/journal"
	"git.home.luguber.info/inful/mdpublish/internal/logfields"
	"git.home.luguber.info/inful/mdpublish/internal/manifest"
	"git.home.luguber.info/inful/mdpublish/internal/metrics"
	"git.home.luguber.info/inful/mdpublish/internal/notify"
	"git.home.luguber.info/inful/mdpublish/internal/page"
	"git.home.luguber.info/inful/mdpublish/internal/remotesync"
	"git.home.luguber.info/inful/mdpublish/internal/render"
	"git.home.luguber.info/inful/mdpublish/internal/retry"
	"git.home.luguber.info/inful/mdpublish/internal/storage"
	"git.home.luguber.info/inful/mdpublish/internal/workspace"
)

// Phase names used in logs, metrics and the journal.
const (
	PhaseBuild     = "build"
	PhaseRender    = "render"
	PhaseManifest  = "manifest"
	PhaseMerge     = "merge"
	PhaseFrame     = "frame"
	PhaseFetch     = "fetch_previous"
	PhaseDelete    = "delete_stale"
	PhaseUpload    = "upload"
	ManifestSubdir = "manifest"
)

// Orchestrator runs publishes for one configuration.
type Orchestrator struct {
	cfg      config.Config
	store    storage.ObjectStore
	logger   *slog.Logger
	recorder metrics.Recorder
	journal  journal.Journal
	notifier notify.Notifier
	revision string
	workBase string
	progress func(phase string) remotesync.Reporter
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStore sets the remote store. It is used only when the configuration
// enables the remote; otherwise the run merges only the local manifest.
func WithStore(s storage.ObjectStore) Option { return func(o *Orchestrator) { o.store = s } }

func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.logger = l } }
func WithRecorder(r metrics.Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }
func WithJournal(j journal.Journal) Option { return func(o *Orchestrator) { o.journal = j } }
func WithNotifier(n notify.Notifier) Option { return func(o *Orchestrator) { o.notifier = n } }
func WithRevision(rev string) Option { return func(o *Orchestrator) { o.revision = rev } }
func WithWorkspace(baseDir string) Option { return func(o *Orchestrator) { o.workBase = baseDir } }

// WithProgress overrides how remote phases report progress.
func WithProgress(fn func(phase string) remotesync.Reporter) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// New creates an Orchestrator.
func New(cfg config.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		journal:  journal.Noop{},
		notifier: notify.Noop{},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(logfields.Module(cfg.Module()))
	return o
}

// ManifestPath is where the module's own manifest is written in the output.
func (o *Orchestrator) ManifestPath() string {
	return filepath.Join(o.cfg.OutputDir(), ManifestSubdir, manifest.FileName(o.cfg.Module()))
}

// BuildTree reads and promotes the content tree.
func BuildTree(contentDir string) (*page.Tree, error) {
	tree, err := page.Build(os.DirFS(contentDir), ".")
	if err != nil {
		return nil, err
	}
	if err := tree.PromoteIndex(); err != nil {
		return nil, err
	}
	return tree, nil
}

// Run performs one publish. Local failures abort and are returned; remote
// failures are collected in the report, which is then marked incomplete.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	rep := &Report{
		RunID:    uuid.NewString(),
		Module:   o.cfg.Module(),
		Revision: o.revision,
		DryRun:   o.cfg.DryRun(),
	}
	logger := o.logger.With(logfields.RunID(rep.RunID))
	logger.Info("Starting publish", logfields.Path(o.cfg.ContentDir()), slog.Bool("dry_run", rep.DryRun))
	o.journalDo(ctx, logger, func(ctx context.Context) error {
		return o.journal.StartRun(ctx, journal.Run{ID: rep.RunID, Module: rep.Module, Revision: rep.Revision, StartedAt: start})
	})

	err := o.run(ctx, logger, rep)

	rep.Duration = time.Since(start)
	outcome := rep.Outcome(err)
	o.recorder.ObservePublishDuration(rep.Duration)
	o.recorder.IncPublishOutcome(outcome)
	o.journalDo(ctx, logger, func(ctx context.Context) error {
		return o.journal.FinishRun(ctx, journal.Run{
			ID:         rep.RunID,
			FinishedAt: time.Now(),
			Outcome:    string(outcome),
			Pages:      rep.PagesWritten,
			Uploaded:   rep.Uploaded,
			Deleted:    rep.Deleted,
			Failures:   len(rep.Failures),
		})
	})

	if err != nil {
		logger.Error("Publish failed", logfields.Error(err))
		return rep, err
	}
	if rep.Synced {
		o.announce(ctx, logger, rep, outcome)
	}
	if rep.Incomplete() {
		logger.Warn("Local build succeeded, publish incomplete",
			logfields.Count(len(rep.Failures)),
			logfields.DurationMS(float64(rep.Duration.Milliseconds())))
	} else {
		logger.Info("Publish complete",
			logfields.Count(rep.PagesWritten),
			logfields.DurationMS(float64(rep.Duration.Milliseconds())))
	}
	return rep, nil
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, rep *Report) error {
	outDir := o.cfg.OutputDir()

	var tree *page.Tree
	if err := o.phase(ctx, logger, rep, PhaseBuild, func() (err error) {
		tree, err = BuildTree(o.cfg.ContentDir())
		return err
	}); err != nil {
		return err
	}
	rep.Documents, rep.Categories = tree.Count()
	o.recorder.SetPages(rep.Documents, rep.Categories)

	renderer, err := render.New(render.Options{
		Theme:     o.cfg.Site().Theme,
		SiteTitle: o.cfg.Site().Title,
		CodeStyle: o.cfg.Site().CodeStyle,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	if err := o.phase(ctx, logger, rep, PhaseRender, func() (err error) {
		rep.PagesWritten, err = renderer.WriteSite(tree, outDir)
		return err
	}); err != nil {
		return err
	}

	local := manifest.FromTree(tree)
	rep.ManifestPath = o.ManifestPath()
	if err := o.phase(ctx, logger, rep, PhaseManifest, func() error {
		return manifest.WriteFile(rep.ManifestPath, local)
	}); err != nil {
		return err
	}

	var syncer *remotesync.Syncer
	if o.remoteEnabled() {
		if syncer, err = o.syncer(logger); err != nil {
			return err
		}
	}

	var combined manifest.Node
	remoteUsable := syncer != nil
	if err := o.phase(ctx, logger, rep, PhaseMerge, func() error {
		var ok bool
		combined, ok = o.combine(ctx, logger, rep, local, syncer)
		remoteUsable = remoteUsable && ok
		return nil
	}); err != nil {
		return err
	}

	if err := o.phase(ctx, logger, rep, PhaseFrame, func() error {
		return renderer.WriteFrame(outDir, combined)
	}); err != nil {
		return err
	}

	if !remoteUsable {
		return nil
	}
	return o.sync(ctx, logger, rep, syncer, &local)
}

// remoteEnabled reports whether this run reads and syncs the remote bucket.
func (o *Orchestrator) remoteEnabled() bool {
	return o.store != nil && o.cfg.RemoteEnabled()
}

// combine returns the combined manifest. The bool is false when remote
// manifests could not be downloaded: the navigation page then only covers
// this module and must not be uploaded over the shared one.
func (o *Orchestrator) combine(ctx context.Context, logger *slog.Logger, rep *Report, local manifest.Node, s *remotesync.Syncer) (manifest.Node, bool) {
	key := manifest.FileName(o.cfg.Module())
	if o.cfg.SingleModule() {
		rep.Merged = []string{key}
		return local, true
	}
	sources := map[string]manifest.Node{key: local}
	ok := true
	if s != nil {
		remote, err := o.downloadManifests(ctx, logger, s)
		if err != nil {
			logger.Error("Could not download module manifests; remote sync will be skipped", logfields.Error(err))
			rep.addFailure(err)
			ok = false
		}
		for name, n := range remote {
			if name != key {
				sources[name] = n
			}
		}
	}
	rep.Merged = manifest.SortedKeys(sources)
	logger.Info("Merged manifests", logfields.Count(len(rep.Merged)), slog.Any("sources", rep.Merged))
	return manifest.MergeAll(sources), ok
}

func (o *Orchestrator) downloadManifests(ctx context.Context, logger *slog.Logger, s *remotesync.Syncer) (map[string]manifest.Node, error) {
	ws := workspace.NewManager(o.workBase, logger)
	if err := ws.Create(); err != nil {
		return nil, derrors.FileSystemError("create workspace", o.workBase, err)
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			logger.Warn("Workspace cleanup failed", logfields.Error(err))
		}
	}()
	staging, err := ws.Subdir(ManifestSubdir)
	if err != nil {
		return nil, derrors.FileSystemError("create staging", ws.Path(), err)
	}
	if _, err := s.DownloadAllManifests(ctx, staging).Wait(); err != nil {
		return nil, err
	}
	return manifest.LoadDir(staging)
}

// syncer builds the remote syncer. An unusable retry policy is a
// configuration error.
func (o *Orchestrator) syncer(logger *slog.Logger) (*remotesync.Syncer, error) {
	rc := o.cfg.Remote()
	up := o.cfg.Upload()
	policy := retry.NewPolicy(retry.Mode(up.Backoff), up.InitialDelay(), up.MaxDelay(), up.Retries)
	if err := policy.Validate(); err != nil {
		return nil, derrors.Wrap(err, derrors.CategoryConfig, derrors.SeverityFatal, "invalid upload retry settings").
			WithCode(derrors.CodeConfig)
	}
	return remotesync.New(remotesync.Options{
		Store:       o.store,
		Bucket:      rc.Bucket,
		BucketRoot:  rc.Root,
		Module:      o.cfg.Module(),
		Concurrency: up.Concurrency,
		Logger:      logger,
		Recorder:    o.recorder,
		Retry:       policy,
		Progress:    o.progress,
	}), nil
}

// sync runs fetch previous, compute stale, delete stale and upload, strictly
// in that order. A dry run stops after computing what would change.
func (o *Orchestrator) sync(ctx context.Context, logger *slog.Logger, rep *Report, s *remotesync.Syncer, local *manifest.Node) error {
	var (
		previous    *manifest.Node
		fetchFailed bool
	)
	_ = o.phase(ctx, logger, rep, PhaseFetch, func() error {
		prev, err := s.FetchPreviousManifest(ctx).Wait()
		switch {
		case derrors.HasCode(err, derrors.CodeManifestNotFound):
			rep.FirstPublish = true
			logger.Info("No previous manifest found; this looks like the first publish of this module")
			return nil
		case err != nil:
			fetchFailed = true
			return err
		}
		previous = &prev
		return nil
	})
	if fetchFailed {
		logger.Error("Skipping remote sync: previous manifest could not be read")
		return nil
	}

	rep.Stale = s.ComputeStale(previous, local)
	if len(rep.Stale) > 0 {
		o.journalDo(ctx, logger, func(ctx context.Context) error {
			return o.journal.Append(ctx, rep.RunID, journal.EventStale, map[string]any{"paths": rep.Stale})
		})
	}

	if o.cfg.DryRun() {
		files, err := remotesync.LocalObjects(o.cfg.OutputDir())
		if err != nil {
			return err
		}
		rep.WouldUpload = len(files)
		logger.Info("Dry run: no remote changes made",
			slog.Any("would_delete", rep.Stale),
			slog.Int("would_upload", rep.WouldUpload))
		return nil
	}

	rep.Synced = true
	_ = o.phase(ctx, logger, rep, PhaseDelete, func() error {
		res, err := s.DeleteStale(ctx, rep.Stale).Wait()
		rep.Deleted = res.Deleted
		rep.Orphaned = res.Orphaned
		for _, f := range res.Failures {
			rep.addFailure(f)
		}
		return err
	})
	if len(rep.Orphaned) > 0 {
		logger.Warn("Stale objects could not be deleted; later publishes will not see them, remove them manually",
			logfields.Count(len(rep.Orphaned)), slog.Any("keys", rep.Orphaned))
		o.journalDo(ctx, logger, func(ctx context.Context) error {
			return o.journal.Append(ctx, rep.RunID, journal.EventOrphaned, map[string]any{"keys": rep.Orphaned})
		})
	}
	_ = o.phase(ctx, logger, rep, PhaseUpload, func() error {
		res, err := s.UploadCurrent(ctx, o.cfg.OutputDir()).Wait()
		rep.Uploaded = res.Uploaded
		for _, f := range res.Failures {
			rep.addFailure(f)
		}
		return err
	})
	return nil
}

// phase times fn and records its result. Fatal errors are returned; any
// other error is added to the report and swallowed.
func (o *Orchestrator) phase(ctx context.Context, logger *slog.Logger, rep *Report, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)

	result := metrics.ResultSuccess
	payload := map[string]any{"phase": name, "duration_ms": d.Milliseconds()}
	switch {
	case err != nil && derrors.IsFatal(err) && !isRemotePhase(name):
		result = metrics.ResultFatal
	case err != nil:
		result = metrics.ResultWarning
		rep.addFailure(err)
		logger.Warn("Phase failed", logfields.Phase(name), logfields.Error(err))
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	o.recorder.ObservePhaseDuration(name, d)
	o.recorder.IncPhaseResult(name, result)
	o.journalDo(ctx, logger, func(ctx context.Context) error {
		return o.journal.Append(ctx, rep.RunID, journal.EventPhase, payload)
	})
	logger.Debug("Phase finished", logfields.Phase(name), logfields.DurationMS(float64(d.Milliseconds())))

	if result == metrics.ResultFatal {
		return err
	}
	return nil
}

func isRemotePhase(name string) bool {
	switch name {
	case PhaseFetch, PhaseDelete, PhaseUpload:
		return true
	}
	return false
}

func (o *Orchestrator) announce(ctx context.Context, logger *slog.Logger, rep *Report, outcome metrics.OutcomeLabel) {
	rc := o.cfg.Remote()
	err := o.notifier.Published(ctx, notify.PublishedEvent{
		RunID:    rep.RunID,
		Module:   rep.Module,
		Revision: rep.Revision,
		Outcome:  string(outcome),
		Bucket:   rc.Bucket,
		Root:     rc.Root,
		Uploaded: rep.Uploaded,
		Deleted:  rep.Deleted,
		Stale:    rep.Stale,
	})
	if err != nil {
		logger.Warn("Publish notification failed", logfields.Error(err))
	}
}

// journalDo runs a journal write. Writes outlive cancellation of the run so
// an interrupted publish is still recorded as finished.
func (o *Orchestrator) journalDo(ctx context.Context, logger *slog.Logger, fn func(context.Context) error) {
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("Journal write failed", logfields.Error(err))
	}
}
