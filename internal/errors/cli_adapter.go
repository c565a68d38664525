package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitUsage      = 2
	ExitConfig     = 7
	ExitIncomplete = 8 // local build succeeded, remote publish did not
	ExitInternal   = 10
	ExitBuild      = 11
)

var exitCodes = map[ErrorCategory]int{
	CategoryValidation: ExitUsage,
	CategoryConfig:     ExitConfig,
	CategoryManifest:   ExitIncomplete,
	CategoryRemote:     ExitIncomplete,
	CategoryContent:    ExitBuild,
	CategoryFileSystem: ExitBuild,
	CategoryRender:     ExitBuild,
	CategoryInternal:   ExitInternal,
}

// CLIErrorAdapter turns a command's error into a message on stderr and a
// process exit code.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates a CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger, out: os.Stderr, exit: os.Exit}
}

// ExitCodeFor maps err to an exit code. Unclassified errors exit 1.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	se, ok := As(err)
	if !ok {
		return ExitGeneral
	}
	if code, known := exitCodes[se.Category]; known {
		return code
	}
	return ExitGeneral
}

// FormatError renders err for the terminal. Verbose mode prints the full
// chain; otherwise configuration and usage errors print only their message.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	se, ok := As(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose {
		return se.Error()
	}
	if se.Category == CategoryConfig || se.Category == CategoryValidation {
		return se.Message
	}
	if page, ok := se.Context["page"]; ok {
		return fmt.Sprintf("%s: %s (page %q)", se.Category, se.Message, page)
	}
	return fmt.Sprintf("%s: %s", se.Category, se.Message)
}

// HandleError prints err and exits with its code. A nil error returns.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	se, classified := As(err)
	if a.verbose || !classified || se.Category == CategoryInternal || se.Severity == SeverityFatal {
		a.log(err)
	}
	_, _ = fmt.Fprintln(a.out, a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}

func (a *CLIErrorAdapter) log(err error) {
	se, ok := As(err)
	if !ok {
		a.logger.Error("Unclassified error", slog.String("error", err.Error()))
		return
	}
	attrs := make([]slog.Attr, 0, len(se.Context)+3)
	attrs = append(attrs, slog.String("category", string(se.Category)))
	if se.Code != "" {
		attrs = append(attrs, slog.String("code", string(se.Code)))
	}
	for k, v := range se.Context {
		attrs = append(attrs, slog.Any(k, v))
	}
	if se.Cause != nil {
		attrs = append(attrs, slog.String("cause", se.Cause.Error()))
	}
	level := slog.LevelError
	switch se.Severity {
	case SeverityInfo:
		level = slog.LevelInfo
	case SeverityWarning:
		level = slog.LevelWarn
	}
	a.logger.LogAttrs(context.Background(), level, se.Message, attrs...)
}
