package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/mdpublish/internal/publish"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Dump bool `help:"Print the page tree before building"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(false)
	if err != nil {
		return err
	}
	if b.Dump {
		tree, err := publish.BuildTree(cfg.ContentDir())
		if err != nil {
			return err
		}
		if err := tree.Dump(os.Stdout); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := openRuntime(cfg, g.Logger, false)
	if err != nil {
		return err
	}
	defer rt.close()
	return runOnce(ctx, rt, cfg, false)
}
