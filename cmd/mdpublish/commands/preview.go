package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/mdpublish/internal/preview"
)

// PreviewCmd serves the local output and rebuilds it when content changes.
// Previews never touch the remote store.
type PreviewCmd struct {
	Addr string `help:"Listen address (default from config, :8080)" env:"MDPUBLISH_PREVIEW_ADDR"`
}

func (p *PreviewCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(false)
	if err != nil {
		return err
	}
	addr := p.Addr
	if addr == "" {
		addr = cfg.Preview().Addr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := openRuntime(cfg, g.Logger, false)
	if err != nil {
		return err
	}
	defer rt.close()

	orch := rt.orchestrator(cfg)
	srv := preview.New(preview.Options{
		Addr:       addr,
		ContentDir: cfg.ContentDir(),
		OutputDir:  cfg.OutputDir(),
		Registry:   rt.registry,
		Logger:     g.Logger,
		Build: func(ctx context.Context) error {
			_, err := orch.Run(ctx)
			return err
		},
	})
	return srv.Run(ctx)
}
