package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/mdpublish/internal/config"
	derrors "git.home.luguber.info/inful/mdpublish/internal/errors"
	"git.home.luguber.info/inful/mdpublish/internal/manifest"
	"git.home.luguber.info/inful/mdpublish/internal/publish"
	"git.home.luguber.info/inful/mdpublish/internal/remotesync"
	"git.home.luguber.info/inful/mdpublish/internal/storage"
)

// DiffCmd implements the 'diff' command. It never changes the bucket.
type DiffCmd struct{}

func (d *DiffCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(true)
	if err != nil {
		return err
	}
	if cfg.SingleModule() {
		return derrors.ValidationFailed("Module", "diff needs a module name other than "+config.SingleModule)
	}
	if !cfg.RemoteEnabled() {
		return derrors.New(derrors.CategoryConfig, derrors.SeverityFatal, "remote store is not configured").
			WithCode(derrors.CodeConfig)
	}
	store, err := publish.OpenStore(cfg.Remote())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stale, err := Diff(context.Background(), cfg, store)
	if err != nil {
		return err
	}
	for _, p := range stale {
		fmt.Println(p)
	}
	g.Logger.Info("Diff complete", "stale", len(stale))
	return nil
}

// Diff returns the paths of the module's previous publish that the local
// content no longer produces.
func Diff(ctx context.Context, cfg config.Config, store storage.ObjectStore) ([]string, error) {
	tree, err := publish.BuildTree(cfg.ContentDir())
	if err != nil {
		return nil, err
	}
	current := manifest.FromTree(tree)

	s := remotesync.New(remotesync.Options{
		Store:      store,
		Bucket:     cfg.Remote().Bucket,
		BucketRoot: cfg.Remote().Root,
		Module:     cfg.Module(),
	})
	previous, err := s.FetchPreviousManifest(ctx).Wait()
	switch {
	case derrors.HasCode(err, derrors.CodeManifestNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return s.ComputeStale(&previous, &current), nil
}
