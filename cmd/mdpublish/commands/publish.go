package commands

import (
	"context"
	"os/signal"
	"syscall"
)

// PublishCmd implements the 'publish' command.
type PublishCmd struct {
	DryRun bool `name:"dry-run" help:"Compute what would be deleted and uploaded without changing the bucket" env:"MDPUBLISH_DRY_RUN"`
	Strict bool `help:"Exit with status 8 when the remote publish is incomplete"`
}

func (p *PublishCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(p.DryRun)
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
	return runOnce(ctx, rt, cfg, p.Strict)
}
