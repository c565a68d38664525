package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/mdpublish/internal/config"
	derrors "git.home.luguber.info/inful/mdpublish/internal/errors"
	"git.home.luguber.info/inful/mdpublish/internal/journal"
)

// HistoryCmd lists recent publish runs, or the events of one run.
type HistoryCmd struct {
	Limit int    `short:"n" default:"20" help:"Number of runs to show"`
	RunID string `arg:"" optional:"" name:"run" help:"Show the events of this run"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config, root.overrides(false))
	if err != nil {
		return err
	}
	path := cfg.Journal().Path
	if path == "" {
		return derrors.New(derrors.CategoryConfig, derrors.SeverityFatal, "journal.path is not configured").
			WithCode(derrors.CodeConfig)
	}
	j, err := journal.Open(path)
	if err != nil {
		return derrors.FileSystemError("open journal", path, err)
	}
	defer func() { _ = j.Close() }()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()
	ctx := context.Background()

	if h.RunID != "" {
		events, err := j.Events(ctx, h.RunID)
		if err != nil {
			return derrors.InternalError("read journal", err)
		}
		_, _ = fmt.Fprintln(w, "TIME\tTYPE\tDETAILS")
		for _, e := range events {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%v\n", e.Timestamp.Format(time.RFC3339), e.Type, e.Payload)
		}
		return nil
	}

	runs, err := j.Recent(ctx, h.Limit)
	if err != nil {
		return derrors.InternalError("read journal", err)
	}
	_, _ = fmt.Fprintln(w, "RUN\tMODULE\tSTARTED\tDURATION\tOUTCOME\tPAGES\tUPLOADED\tDELETED\tFAILURES")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.Module, r.StartedAt.Format(time.RFC3339), r.Duration().Round(time.Millisecond),
			orDash(r.Outcome), r.Pages, r.Uploaded, r.Deleted, r.Failures)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
