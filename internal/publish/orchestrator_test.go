package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdpublish/internal/config"
	derrors "git.home.luguber.info/inful/mdpublish/internal/errors"
	"git.home.luguber.info/inful/mdpublish/internal/journal"
	"git.home.luguber.info/inful/mdpublish/internal/manifest"
	"git.home.luguber.info/inful/mdpublish/internal/metrics"
	"git.home.luguber.info/inful/mdpublish/internal/notify"
	"git.home.luguber.info/inful/mdpublish/internal/render"
	"git.home.luguber.info/inful/mdpublish/internal/storage"
)

const (
	previousAPI = `{"id":"","path":".html","name":"","hasContent":true,"children":[
		{"id":"guide","path":"guide.html","name":"guide","hasContent":false,"children":[
			{"id":"guide-intro","path":"guide/intro.html","name":"intro","hasContent":true,"children":[]},
			{"id":"guide-old","path":"guide/old.html","name":"old","hasContent":true,"children":[]}]}]}`
	webManifest = `{"id":"","path":".html","name":"","hasContent":false,"children":[
		{"id":"web","path":"web.html","name":"web","hasContent":true,"children":[]}]}`
)

type fixture struct {
	content string
	out     string
	cfg     config.Config
}

func newFixture(t *testing.T, module string, extra string) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		content: filepath.Join(dir, "content"),
		out:     filepath.Join(dir, "dist"),
	}
	writeContent(t, f.content, map[string]string{
		"index.md":        "# Home\n",
		"guide/intro.md":  "---\ntitle: Getting started\n---\nHello\n",
		"guide/setup.md":  "Install it.\n",
		"guide/notes.txt": "ignored",
	})

	cfgPath := filepath.Join(dir, "mdpublish.yaml")
	yaml := fmt.Sprintf("module: %s\ncontent_dir: %s\noutput_dir: %s\n"+
		"remote:\n  backend: fs\n  dir: %s\n  bucket: docs.example.com\n  root: site/\n"+
		"upload:\n  retries: 2\n  retry_delay: 1ms\n  max_retry_delay: 2ms\n%s",
		module, f.content, f.out, filepath.Join(dir, "bucket"), extra)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))

	cfg, err := config.Load(cfgPath, config.Overrides{})
	require.NoError(t, err)
	f.cfg = cfg
	return f
}

func writeContent(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type outcomeRecorder struct {
	metrics.NoopRecorder
	mu       sync.Mutex
	outcomes []metrics.OutcomeLabel
}

func (r *outcomeRecorder) IncPublishOutcome(o metrics.OutcomeLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

type captureNotifier struct {
	events []notify.PublishedEvent
}

func (c *captureNotifier) Published(_ context.Context, ev notify.PublishedEvent) error {
	c.events = append(c.events, ev)
	return nil
}

func (c *captureNotifier) Close() error { return nil }

func run(t *testing.T, cfg config.Config, opts ...Option) (*Report, error) {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger()), WithWorkspace(t.TempDir())}, opts...)
	return New(cfg, opts...).Run(context.Background())
}

func TestRunSingleModule(t *testing.T) {
	f := newFixture(t, config.SingleModule, "")
	store := storage.NewMockStore()

	rep, err := run(t, f.cfg, WithStore(store))
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Documents, "the root page is not counted")
	assert.Equal(t, 1, rep.Categories)
	assert.Equal(t, 3, rep.PagesWritten)
	assert.Equal(t, []string{"_simple.json"}, rep.Merged)
	assert.False(t, rep.Synced)
	assert.False(t, rep.Incomplete())
	assert.Equal(t, storage.MockCalls{}, store.Calls(), "single-module runs never touch the store")

	for _, rel := range []string{".html", "guide/intro.html", "guide/setup.html", render.FrameFile, "manifest/_simple.json"} {
		assert.FileExists(t, filepath.Join(f.out, filepath.FromSlash(rel)))
	}
	local, err := manifest.ReadFile(filepath.Join(f.out, "manifest", "_simple.json"))
	require.NoError(t, err)
	require.NotNil(t, local.Find("guide-setup"))
	assert.Equal(t, "guide/setup.html", local.Find("guide-setup").Path.Value())
}

func TestRunWithoutStoreMergesLocalOnly(t *testing.T) {
	f := newFixture(t, "api", "")

	rep, err := run(t, f.cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"api.json"}, rep.Merged)
	assert.False(t, rep.Synced)
	assert.Equal(t, metrics.OutcomeSuccess, rep.Outcome(nil))
}

func TestRunMultiModuleSync(t *testing.T) {
	f := newFixture(t, "api", "")
	store := storage.NewMockStore()
	store.Seed("site/manifest/api.json", []byte(previousAPI))
	store.Seed("site/manifest/web.json", []byte(webManifest))
	store.Seed("site/guide/old.html", []byte("old"))
	store.Seed("site/web.html", []byte("web"))

	rec := &outcomeRecorder{}
	notifier := &captureNotifier{}
	rep, err := run(t, f.cfg, WithStore(store), WithRecorder(rec), WithNotifier(notifier), WithRevision("abc123"))
	require.NoError(t, err)

	assert.Equal(t, []string{"api.json", "web.json"}, rep.Merged)
	assert.False(t, rep.FirstPublish)
	assert.Equal(t, []string{"guide/old.html"}, rep.Stale)
	assert.Equal(t, 1, rep.Deleted)
	assert.Equal(t, 5, rep.Uploaded)
	assert.True(t, rep.Synced)
	assert.False(t, rep.Incomplete())
	assert.Equal(t, []metrics.OutcomeLabel{metrics.OutcomeSuccess}, rec.outcomes)

	assert.Equal(t, []string{"site/guide/old.html"}, store.Calls().Deleted)
	keys := store.Keys()
	assert.Contains(t, keys, "site/web.html", "other modules' objects are untouched")
	assert.Contains(t, keys, "site/manifest/web.json")
	for _, k := range []string{"site/.html", "site/guide/intro.html", "site/guide/setup.html", "site/index.html", "site/manifest/api.json"} {
		assert.Contains(t, keys, k)
	}

	frame, err := os.ReadFile(filepath.Join(f.out, render.FrameFile))
	require.NoError(t, err)
	assert.Contains(t, string(frame), `id="doc-web"`, "navigation includes the other module")
	assert.Contains(t, string(frame), `id="doc-guide-setup"`)

	// The uploaded manifest is the module's own, not the merged one.
	uploaded, err := store.Get(context.Background(), "site/manifest/api.json")
	require.NoError(t, err)
	own, err := manifest.Decode(uploaded.Data)
	require.NoError(t, err)
	assert.Nil(t, own.Find("web"))
	assert.Nil(t, own.Find("guide-old"))

	assertSyncOrder(t, store.Calls().Ops, "site/manifest/api.json")

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "api", notifier.events[0].Module)
	assert.Equal(t, "abc123", notifier.events[0].Revision)
	assert.Equal(t, 1, notifier.events[0].Deleted)
}

// assertSyncOrder checks that the previous manifest is read before any
// delete, every delete finishes before the first upload, and the module's
// manifest is uploaded together with its pages.
func assertSyncOrder(t *testing.T, ops []string, manifestKey string) {
	t.Helper()
	fetch, firstDelete, lastDelete, firstPut := -1, -1, -1, -1
	for i, op := range ops {
		switch {
		case op == "get "+manifestKey:
			fetch = i
		case strings.HasPrefix(op, "delete "):
			if firstDelete < 0 {
				firstDelete = i
			}
			lastDelete = i
		case strings.HasPrefix(op, "put ") && firstPut < 0:
			firstPut = i
		}
	}
	require.GreaterOrEqual(t, fetch, 0, "previous manifest was not read: %v", ops)
	require.GreaterOrEqual(t, firstPut, 0, "nothing was uploaded: %v", ops)
	if firstDelete >= 0 {
		assert.Less(t, fetch, firstDelete, "stale objects are computed from the previous manifest: %v", ops)
		assert.Less(t, lastDelete, firstPut, "deletes finish before uploads start: %v", ops)
	}
	assert.Less(t, fetch, firstPut, "%v", ops)
	for _, op := range ops[firstPut:] {
		assert.True(t, strings.HasPrefix(op, "put "), "only uploads follow the first upload, got %q", op)
	}
	assert.Contains(t, ops[firstPut:], "put "+manifestKey)
}

func TestRunFirstPublish(t *testing.T) {
	f := newFixture(t, "api", "")
	store := storage.NewMockStore()

	rep, err := run(t, f.cfg, WithStore(store))
	require.NoError(t, err)
	assert.True(t, rep.FirstPublish)
	assert.Empty(t, rep.Stale)
	assert.Equal(t, 0, store.Calls().DeleteBatch)
	assert.Equal(t, 5, rep.Uploaded)
}

func TestRunUploadFailureIsIncomplete(t *testing.T) {
	f := newFixture(t, "api", "")
	store := storage.NewMockStore()
	store.PutErrors["site/guide/setup.html"] = errors.New("503 slow down")

	rec := &outcomeRecorder{}
	rep, err := run(t, f.cfg, WithStore(store), WithRecorder(rec))
	require.NoError(t, err, "remote failures do not fail the run")
	assert.True(t, rep.Incomplete())
	assert.Equal(t, 4, rep.Uploaded)
	assert.Equal(t, 5+2, store.Calls().Put, "the failing object is retried twice")
	require.Len(t, rep.Failures, 1)
	assert.True(t, derrors.HasCode(rep.Failures[0], derrors.CodeRemoteUpload))
	assert.Equal(t, []metrics.OutcomeLabel{metrics.OutcomeIncomplete}, rec.outcomes)
	assert.Contains(t, rep.Summary(), "incomplete")
}

func TestRunDeleteFailureStillUploads(t *testing.T) {
	f := newFixture(t, "api", "")
	store := storage.NewMockStore()
	store.Seed("site/manifest/api.json", []byte(previousAPI))
	store.Seed("site/guide/old.html", []byte("old"))
	store.DeleteErrors["site/guide/old.html"] = errors.New("access denied")

	rep, err := run(t, f.cfg, WithStore(store))
	require.NoError(t, err)
	assert.True(t, rep.Incomplete())
	assert.Equal(t, 0, rep.Deleted)
	assert.Equal(t, 5, rep.Uploaded)
	assert.Contains(t, store.Keys(), "site/guide/old.html")
}

func TestRunReportsOrphanedObjects(t *testing.T) {
	f := newFixture(t, "api", "")
	store := storage.NewMockStore()
	store.Seed("site/manifest/api.json", []byte(previousAPI))
	store.Seed("site/guide/old.html", []byte("old"))
	store.DeleteErrors["site/guide/old.html"] = errors.New("access denied")

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	rep, err := run(t, f.cfg, WithStore(store), WithJournal(j))
	require.NoError(t, err)
	assert.Equal(t, []string{"site/guide/old.html"}, rep.Orphaned)
	assert.Contains(t, rep.Summary(), "1 orphaned objects need manual removal")

	events, err := j.Events(context.Background(), rep.RunID)
	require.NoError(t, err)
	var orphaned []journal.Event
	for _, ev := range events {
		if ev.Type == journal.EventOrphaned {
			orphaned = append(orphaned, ev)
		}
	}
	require.Len(t, orphaned, 1)
	assert.Equal(t, []any{"site/guide/old.html"}, orphaned[0].Payload["keys"])
}

func TestRunFinishesJournalAfterCancel(t *testing.T) {
	f := newFixture(t, "api", "")
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := New(f.cfg, WithLogger(quietLogger()), WithWorkspace(t.TempDir()), WithJournal(j)).Run(ctx)
	require.NoError(t, err, "a local-only run does not depend on the context")

	runs, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rep.RunID, runs[0].ID)
	assert.Equal(t, string(metrics.OutcomeSuccess), runs[0].Outcome)
	assert.False(t, runs[0].FinishedAt.IsZero(), "the run row is finished")
}

func TestRunStoreIgnoredWithoutRemoteConfig(t *testing.T) {
	f := newFixture(t, "api", "")
	cfg, err := config.Load("", config.Overrides{Module: "api", ContentDir: f.content, OutputDir: f.out})
	require.NoError(t, err)
	require.False(t, cfg.RemoteEnabled())
	store := storage.NewMockStore()

	rep, err := run(t, cfg, WithStore(store))
	require.NoError(t, err)
	assert.False(t, rep.Synced)
	assert.Empty(t, store.Calls().Ops)
}

func TestRunDryRun(t *testing.T) {
	f := newFixture(t, "api", "dry_run: true\n")
	store := storage.NewMockStore()
	store.Seed("site/manifest/api.json", []byte(previousAPI))
	store.Seed("site/guide/old.html", []byte("old"))
	before := store.Keys()

	rec := &outcomeRecorder{}
	rep, err := run(t, f.cfg, WithStore(store), WithRecorder(rec))
	require.NoError(t, err)

	assert.True(t, rep.DryRun)
	assert.False(t, rep.Synced)
	assert.Equal(t, []string{"guide/old.html"}, rep.Stale)
	assert.Equal(t, 5, rep.WouldUpload)
	assert.Equal(t, before, store.Keys(), "dry runs leave the bucket unchanged")
	assert.Equal(t, 0, store.Calls().Put)
	assert.Equal(t, 0, store.Calls().DeleteBatch)
	assert.Equal(t, []metrics.OutcomeLabel{metrics.OutcomeDryRun}, rec.outcomes)
	assert.FileExists(t, filepath.Join(f.out, render.FrameFile), "local output is still produced")
}

func TestRunPreviousManifestUnreadableSkipsSync(t *testing.T) {
	f := newFixture(t, "api", "")
	store := storage.NewMockStore()
	store.Seed("site/manifest/api.json", []byte(previousAPI))
	store.GetErrors["site/manifest/api.json"] = errors.New("connection reset")

	rep, err := run(t, f.cfg, WithStore(store))
	require.NoError(t, err)
	assert.True(t, rep.Incomplete())
	assert.Equal(t, 0, store.Calls().Put)
	assert.Equal(t, 0, store.Calls().DeleteBatch)
}

func TestRunManifestDownloadFailureSkipsSync(t *testing.T) {
	f := newFixture(t, "api", "")
	store := storage.NewMockStore()
	store.ListError = errors.New("timeout")

	rep, err := run(t, f.cfg, WithStore(store))
	require.NoError(t, err)
	assert.True(t, rep.Incomplete())
	assert.Equal(t, []string{"api.json"}, rep.Merged)
	assert.False(t, rep.Synced)
	assert.Equal(t, 0, store.Calls().Put, "a local-only navigation page is never uploaded")
}

func TestRunContentConflictIsFatal(t *testing.T) {
	f := newFixture(t, "api", "")
	writeContent(t, f.content, map[string]string{
		"guide/index.md":       "# Guide\n",
		"guide/index/index.md": "# Also guide\n",
	})
	store := storage.NewMockStore()

	rec := &outcomeRecorder{}
	_, err := run(t, f.cfg, WithStore(store), WithRecorder(rec))
	require.Error(t, err)
	assert.True(t, derrors.HasCode(err, derrors.CodeContentConflict))
	assert.Equal(t, []metrics.OutcomeLabel{metrics.OutcomeFailed}, rec.outcomes)
	assert.Equal(t, storage.MockCalls{}, store.Calls())
}

func TestRunMissingContentDir(t *testing.T) {
	f := newFixture(t, "api", "")
	require.NoError(t, os.RemoveAll(f.content))

	_, err := run(t, f.cfg)
	require.Error(t, err)
	assert.True(t, derrors.IsCategory(err, derrors.CategoryFileSystem))
}

func TestRunWithFSStoreAndJournal(t *testing.T) {
	f := newFixture(t, "api", "")
	bucket := t.TempDir()
	store, err := storage.NewFSStore(bucket)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(bucket, "site", "manifest"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bucket, "site", "manifest", "web.json"), []byte(webManifest), 0o644))

	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	rep, err := run(t, f.cfg, WithStore(store), WithJournal(j))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(bucket, "site", "guide", "intro.html"))
	assert.FileExists(t, filepath.Join(bucket, "site", "manifest", "api.json"))

	runs, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rep.RunID, runs[0].ID)
	assert.Equal(t, string(metrics.OutcomeSuccess), runs[0].Outcome)
	assert.Equal(t, 5, runs[0].Uploaded)

	events, err := j.Events(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.NotEmpty(t, events)
	assert.Equal(t, journal.EventPhase, events[0].Type)
	assert.Equal(t, PhaseBuild, events[0].Payload["phase"])
}

func TestOpenStore(t *testing.T) {
	store, err := OpenStore(config.RemoteConfig{})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = OpenStore(config.RemoteConfig{Backend: config.BackendFS, Dir: t.TempDir()})
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.NoError(t, store.Close())
}
