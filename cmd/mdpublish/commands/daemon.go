package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	derrors "git.home.luguber.info/inful/mdpublish/internal/errors"
	"git.home.luguber.info/inful/mdpublish/internal/logfields"
	"git.home.luguber.info/inful/mdpublish/internal/metrics"
	"git.home.luguber.info/inful/mdpublish/internal/schedule"
)

const publishJob = "publish"

// DaemonCmd publishes on a schedule until interrupted.
type DaemonCmd struct {
	Interval    time.Duration `help:"Publish interval (default from config schedule.interval)"`
	Cron        string        `help:"Crontab expression; takes precedence over --interval"`
	MetricsAddr string        `name:"metrics-addr" help:"Serve Prometheus metrics on this address" env:"MDPUBLISH_METRICS_ADDR"`
}

func (d *DaemonCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(false)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := openRuntime(cfg, g.Logger, true)
	if err != nil {
		return err
	}
	defer rt.close()

	sched, err := schedule.New(g.Logger)
	if err != nil {
		return derrors.InternalError("create scheduler", err)
	}
	task := schedule.PublishTask(ctx, g.Logger, func(ctx context.Context) error {
		return runOnce(ctx, rt, cfg, false)
	})
	if d.Cron != "" {
		_, err = sched.ScheduleCron(publishJob, d.Cron, task)
	} else {
		interval := d.Interval
		if interval <= 0 {
			interval = cfg.Schedule().Every()
		}
		_, err = sched.ScheduleEvery(publishJob, interval, true, task)
	}
	if err != nil {
		return derrors.ValidationFailed("Schedule", err.Error())
	}

	if d.MetricsAddr != "" {
		srv := &http.Server{Addr: d.MetricsAddr, Handler: metrics.HTTPHandler(rt.registry), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				g.Logger.Error("Metrics server stopped", logfields.Error(err))
			}
		}()
		defer func() { _ = srv.Close() }()
		g.Logger.Info("Serving metrics", "addr", d.MetricsAddr)
	}

	sched.Start()
	if next, ok := sched.NextRun(publishJob); ok {
		g.Logger.Info("Daemon started", "next_run", next.Format(time.RFC3339))
	}
	<-ctx.Done()
	g.Logger.Info("Shutdown signal received, stopping daemon")
	return sched.Stop()
}
