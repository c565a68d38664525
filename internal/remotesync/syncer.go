// Package remotesync keeps one module's subtree of the shared bucket in step
// with its local output: fetch the previous manifest, diff, delete what
// disappeared, then upload everything that was built.
package remotesync

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	derrors "git.home.luguber.info/inful/mdpublish/internal/errors"
	"git.home.luguber.info/inful/mdpublish/internal/logfields"
	"git.home.luguber.info/inful/mdpublish/internal/manifest"
	"git.home.luguber.info/inful/mdpublish/internal/metrics"
	"git.home.luguber.info/inful/mdpublish/internal/retry"
	"git.home.luguber.info/inful/mdpublish/internal/storage"
)

const (
	// ManifestDir is the key segment under bucketRoot holding every module's manifest.
	ManifestDir = "manifest/"

	// maxDeleteBatch is the S3 multi-object delete limit.
	maxDeleteBatch = 1000

	defaultConcurrency = 8
)

// Options configures a Syncer.
type Options struct {
	Store       storage.ObjectStore
	Bucket      string
	BucketRoot  string
	Module      string
	Concurrency int
	Logger      *slog.Logger
	Recorder    metrics.Recorder
	// Retry is applied to every single-object transfer. The zero value
	// never retries.
	Retry retry.Policy
	// Progress builds the reporter for a phase. Defaults to LogProgress.
	Progress func(phase string) Reporter
}

// Syncer runs the remote phases for a single module.
type Syncer struct {
	store       storage.ObjectStore
	bucket      string
	root        string
	module      string
	concurrency int
	logger      *slog.Logger
	recorder    metrics.Recorder
	retry       retry.Policy
	progress    func(phase string) Reporter
}

// DeleteResult summarizes a DeleteStale run.
type DeleteResult struct {
	Requested int
	Deleted   int
	Failures  []error
	// Orphaned holds the keys that could not be deleted. Once this publish
	// uploads its new manifest they are no longer listed anywhere.
	Orphaned  []string
}

// UploadResult summarizes an UploadCurrent run.
type UploadResult struct {
	Uploaded int
	Bytes    int64
	Failures []error
}

// New creates a Syncer.
func New(opts Options) *Syncer {
	s := &Syncer{
		store:       opts.Store,
		bucket:      opts.Bucket,
		root:        opts.BucketRoot,
		module:      opts.Module,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
		recorder:    opts.Recorder,
		retry:       opts.Retry,
		progress:    opts.Progress,
	}
	if s.concurrency <= 0 {
		s.concurrency = defaultConcurrency
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(logfields.Module(s.module))
	if s.recorder == nil {
		s.recorder = metrics.NoopRecorder{}
	}
	if s.progress == nil {
		s.progress = func(phase string) Reporter {
			return LogProgress(s.logger, phase, ProgressInterval)
		}
	}
	return s
}

// ManifestPrefix is the key prefix listing every module's manifest.
func (s *Syncer) ManifestPrefix() string { return s.root + ManifestDir }

// ManifestKey is the key of this module's manifest.
func (s *Syncer) ManifestKey() string { return s.ManifestPrefix() + manifest.FileName(s.module) }

// FetchPreviousManifest downloads this module's last published manifest. A
// missing object fails with a ManifestNotFound error, which callers treat as
// the module's first publish.
func (s *Syncer) FetchPreviousManifest(ctx context.Context) *Task[manifest.Node] {
	key := s.ManifestKey()
	return Go(ctx, nil, func(ctx context.Context, _ Reporter) (manifest.Node, error) {
		s.logger.Info("Fetching previous manifest", logfields.Key(key))
		obj, err := s.get(ctx, key)
		if err != nil {
			if storage.IsNotFound(err) {
				return manifest.Node{}, derrors.ManifestNotFound(key)
			}
			return manifest.Node{}, derrors.ManifestFetchError(key, err)
		}
		n, err := manifest.Decode(obj.Data)
		if err != nil {
			return manifest.Node{}, derrors.ManifestFetchError(key, derrors.ManifestDecodeError(key, err))
		}
		return n, nil
	})
}

// DownloadAllManifests copies every published manifest into stagingDir and
// returns the file names written, sorted.
func (s *Syncer) DownloadAllManifests(ctx context.Context, stagingDir string) *Task[[]string] {
	const phase = "download manifests"
	return Go(ctx, s.progress(phase), func(ctx context.Context, report Reporter) ([]string, error) {
		prefix := s.ManifestPrefix()
		infos, err := s.store.List(ctx, prefix)
		if err != nil {
			return nil, derrors.ManifestFetchError(prefix, err)
		}
		var keys []string
		for _, info := range infos {
			name := strings.TrimPrefix(info.Key, prefix)
			if strings.Contains(name, "/") || !strings.HasSuffix(name, manifest.FileExt) {
				continue
			}
			keys = append(keys, info.Key)
		}
		sort.Strings(keys)

		if err := os.MkdirAll(stagingDir, 0o750); err != nil {
			return nil, derrors.FileSystemError("create directory", stagingDir, err)
		}

		progress := newCounter(len(keys), report)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for _, key := range keys {
			g.Go(func() error {
				obj, err := s.get(gctx, key)
				if err != nil {
					return derrors.ManifestFetchError(key, err)
				}
				dst := filepath.Join(stagingDir, path.Base(key))
				if err := os.WriteFile(dst, obj.Data, 0o600); err != nil {
					return derrors.FileSystemError("write manifest", dst, err)
				}
				progress.inc()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		names := make([]string, len(keys))
		for i, key := range keys {
			names[i] = path.Base(key)
		}
		s.recorder.AddObjects(metrics.OpDownload, len(names), true)
		s.logger.Info("Downloaded manifests", logfields.Count(len(names)), logfields.Path(stagingDir))
		return names, nil
	})
}

// ComputeStale lists paths published by this module's previous manifest that
// its current manifest no longer has.
func (s *Syncer) ComputeStale(previous, current *manifest.Node) []string {
	return manifest.ComputeStale(previous, current)
}

// DeleteStale removes bucketRoot+path for every stale path. Individual
// failures are logged and collected; they never stop the remaining deletes.
// An empty list issues no store call.
func (s *Syncer) DeleteStale(ctx context.Context, stale []string) *Task[DeleteResult] {
	const phase = "delete stale"
	return Go(ctx, s.progress(phase), func(ctx context.Context, report Reporter) (DeleteResult, error) {
		res := DeleteResult{Requested: len(stale)}
		if len(stale) == 0 {
			s.logger.Info("Nothing to delete")
			return res, nil
		}
		keys := make([]string, len(stale))
		for i, p := range stale {
			keys[i] = s.root + p
		}
		s.logger.Info("Deleting stale objects", logfields.Count(len(keys)), slog.Any("keys", keys))

		for start := 0; start < len(keys); start += maxDeleteBatch {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			end := min(start+maxDeleteBatch, len(keys))
			failures := s.store.DeleteBatch(ctx, keys[start:end])
			for _, f := range failures {
				err := derrors.RemoteDeleteError(f.Key, f.Err)
				s.logger.Warn("Error deleting old file", logfields.Key(f.Key), logfields.Error(f.Err))
				res.Failures = append(res.Failures, err)
				res.Orphaned = append(res.Orphaned, f.Key)
			}
			res.Deleted += (end - start) - len(failures)
			report(end, len(keys))
		}
		s.recorder.AddObjects(metrics.OpDelete, res.Deleted, true)
		s.recorder.AddObjects(metrics.OpDelete, len(res.Failures), false)
		s.logger.Info("Finished deleting old files", logfields.Count(res.Deleted))
		return res, nil
	})
}

// UploadCurrent uploads every file under localDir to bucketRoot+relativePath,
// overwriting existing objects. It never deletes anything.
func (s *Syncer) UploadCurrent(ctx context.Context, localDir string) *Task[UploadResult] {
	const phase = "upload content"
	return Go(ctx, s.progress(phase), func(ctx context.Context, report Reporter) (UploadResult, error) {
		var res UploadResult
		files, err := LocalObjects(localDir)
		if err != nil {
			return res, err
		}

		var mu sync.Mutex
		progress := newCounter(len(files), report)
		g := new(errgroup.Group)
		g.SetLimit(s.concurrency)
		for _, rel := range files {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				key := s.root + rel
				size, err := s.uploadFile(ctx, filepath.Join(localDir, filepath.FromSlash(rel)), key)
				mu.Lock()
				if err != nil {
					s.logger.Warn("Upload failed", logfields.Key(key), logfields.Error(err))
					res.Failures = append(res.Failures, derrors.RemoteUploadError(key, err))
				} else {
					res.Uploaded++
					res.Bytes += size
				}
				mu.Unlock()
				progress.inc()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return res, err
		}

		s.recorder.AddObjects(metrics.OpUpload, res.Uploaded, true)
		s.recorder.AddObjects(metrics.OpUpload, len(res.Failures), false)
		s.logger.Info(phase+": done", logfields.Count(res.Uploaded), slog.Int64("bytes", res.Bytes))
		if s.bucket != "" {
			s.logger.Info("If DNS points at the bucket, the docs can be viewed at " + ViewURL(s.bucket, s.root))
		}
		return res, nil
	})
}

func (s *Syncer) uploadFile(ctx context.Context, src, key string) (int64, error) {
	start := time.Now()
	// #nosec G304 -- src is produced by walking the local output directory
	data, err := os.ReadFile(src)
	if err != nil {
		return 0, err
	}
	obj := &storage.Object{
		Key:         key,
		Data:        data,
		Size:        int64(len(data)),
		ContentType: storage.ContentTypeFor(key),
	}
	err = s.retry.Do(ctx, func() error { return s.store.Put(ctx, obj) }, nil, s.logRetry(key))
	if err != nil {
		return 0, err
	}
	s.logger.Debug("Uploaded", logfields.Key(key), logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return int64(len(data)), nil
}

// get fetches key, retrying transient failures. NotFound is final.
func (s *Syncer) get(ctx context.Context, key string) (*storage.Object, error) {
	var obj *storage.Object
	err := s.retry.Do(ctx, func() (err error) {
		obj, err = s.store.Get(ctx, key)
		return err
	}, func(err error) bool { return !storage.IsNotFound(err) }, s.logRetry(key))
	return obj, err
}

func (s *Syncer) logRetry(key string) func(int, time.Duration, error) {
	return func(attempt int, delay time.Duration, err error) {
		s.logger.Warn("Retrying transfer", logfields.Key(key), slog.Int("attempt", attempt),
			slog.Duration("delay", delay), logfields.Error(err))
	}
}

// LocalObjects lists the regular files under dir as slash-separated relative
// paths, sorted.
func LocalObjects(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, derrors.FileSystemError("walk output", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// ViewURL is where the published docs are reachable when DNS points at the
// bucket.
func ViewURL(bucket, root string) string {
	return "http://" + bucket + "/" + root
}
