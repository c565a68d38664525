// Package preview serves the local output directory and rebuilds it when the
// content directory changes.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/fsnotify/fsnotify"
	prom "github.com/prometheus/client_golang/prometheus"

	derrors "git.home.luguber.info/inful/mdpublish/internal/errors"
	"git.home.luguber.info/inful/mdpublish/internal/logfields"
	"git.home.luguber.info/inful/mdpublish/internal/metrics"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 300 * time.Millisecond

// BuildFunc regenerates the output directory.
type BuildFunc func(ctx context.Context) error

// Options configures a Server.
type Options struct {
	Addr       string
	ContentDir string
	OutputDir  string
	Build      BuildFunc
	Debounce   time.Duration
	Registry   *prom.Registry
	Logger     *slog.Logger
}

// Server is a local preview server.
type Server struct {
	opts   Options
	logger *slog.Logger
	status buildStatus
	// rebuilt is signalled after every rebuild attempt; tests wait on it.
	rebuilt chan struct{}
}

// buildStatus tracks the last build for the error page and /status.
type buildStatus struct {
	mu           sync.RWMutex
	lastError    error
	hasGoodBuild bool
	builds       int
	lastBuild    time.Time
}

func (bs *buildStatus) record(err error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.builds++
	bs.lastBuild = time.Now()
	bs.lastError = err
	if err == nil {
		bs.hasGoodBuild = true
	}
}

func (bs *buildStatus) get() (lastErr error, hasGoodBuild bool, builds int, lastBuild time.Time) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.lastError, bs.hasGoodBuild, bs.builds, bs.lastBuild
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{opts: opts, logger: logger, rebuilt: make(chan struct{}, 1)}
}

// Handler serves the output directory gzip-compressed, plus /metrics and
// /status. Until a build has succeeded, pages are replaced by the build error.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(s.opts.Registry))
	mux.HandleFunc("/status", s.handleStatus)
	files := http.FileServer(http.Dir(s.opts.OutputDir))
	mux.Handle("/", gziphandler.GzipHandler(s.errorPage(files)))
	return mux
}

func (s *Server) errorPage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastErr, good, _, _ := s.status.get()
		if lastErr != nil && !good {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "build failed:\n\n%v\n", lastErr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	lastErr, good, builds, lastBuild := s.status.get()
	body := map[string]any{
		"builds":         builds,
		"has_good_build": good,
	}
	if !lastBuild.IsZero() {
		body["last_build"] = lastBuild.UTC().Format(time.RFC3339)
	}
	if lastErr != nil {
		body["error"] = lastErr.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// Run builds once, then serves and rebuilds on change until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	absContent, err := filepath.Abs(s.opts.ContentDir)
	if err != nil {
		return derrors.FileSystemError("resolve content dir", s.opts.ContentDir, err)
	}
	if st, err := os.Stat(absContent); err != nil || !st.IsDir() {
		return derrors.FileSystemError("content dir not found or not a directory", absContent, err)
	}

	s.rebuild(ctx)

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return derrors.Wrap(err, derrors.CategoryConfig, derrors.SeverityFatal, "listen").
			WithContext("addr", s.opts.Addr)
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Preview server stopped", logfields.Error(err))
		}
	}()
	s.logger.Info("Preview server listening", slog.String("url", "http://"+displayAddr(ln.Addr())))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return derrors.InternalError("start watcher", err)
	}
	defer func() { _ = watcher.Close() }()
	s.addDirsRecursive(watcher, absContent)

	rebuildReq, trigger := newDebouncer(s.opts.Debounce)
	go s.rebuildWorker(ctx, rebuildReq)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Shutting down preview server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn("HTTP server shutdown error", logfields.Error(err))
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(watcher, ev, trigger)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (s *Server) rebuild(ctx context.Context) {
	start := time.Now()
	err := s.opts.Build(ctx)
	s.status.record(err)
	if err != nil {
		s.logger.Warn("Rebuild failed", logfields.Error(err))
	} else {
		s.logger.Info("Rebuilt site", logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	}
	select {
	case s.rebuilt <- struct{}{}:
	default:
	}
}

// rebuildWorker runs at most one build at a time. A request that arrives
// during a build queues exactly one follow-up build.
func (s *Server) rebuildWorker(ctx context.Context, req <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-req:
			s.logger.Info("Change detected; rebuilding site")
			s.rebuild(ctx)
		}
	}
}

// newDebouncer returns a request channel with a one-slot buffer and a trigger
// that fires it once no further triggers arrived for d.
func newDebouncer(d time.Duration) (chan struct{}, func()) {
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	req := make(chan struct{}, 1)
	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(d, func() {
			select {
			case req <- struct{}{}:
			default:
			}
		})
	}
	return req, trigger
}

func (s *Server) handleEvent(w *fsnotify.Watcher, ev fsnotify.Event, trigger func()) {
	if shouldIgnore(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			s.addDirsRecursive(w, ev.Name)
		}
	}
	s.logger.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	trigger()
}

func (s *Server) addDirsRecursive(w *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.Add(path); err != nil {
				s.logger.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}

// shouldIgnore skips hidden files and editor swap or backup files.
func shouldIgnore(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."),
		strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"),
		base == "Thumbs.db":
		return true
	}
	return false
}

func displayAddr(a net.Addr) string {
	host, port, err := net.SplitHostPort(a.String())
	if err != nil {
		return a.String()
	}
	if host == "" || host == "::" || host == "0.0.0.0" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
