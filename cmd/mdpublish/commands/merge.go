package commands

import (
	"fmt"
	"os"

	derrors "git.home.luguber.info/inful/mdpublish/internal/errors"
	"git.home.luguber.info/inful/mdpublish/internal/manifest"
)

// MergeCmd implements the 'merge' command.
type MergeCmd struct {
	Dir    string `arg:"" type:"existingdir" help:"Directory of <module>.json manifests"`
	Output string `short:"O" name:"out" help:"Write the combined manifest here instead of stdout"`
}

func (m *MergeCmd) Run(g *Global, _ *CLI) error {
	sources, err := manifest.LoadDir(m.Dir)
	if err != nil {
		return err
	}
	combined := manifest.MergeAll(sources)
	data, err := manifest.Encode(combined)
	if err != nil {
		return derrors.InternalError("encode combined manifest", err)
	}
	g.Logger.Info("Merged manifests", "sources", manifest.SortedKeys(sources))

	if m.Output == "" {
		_, err := fmt.Fprintln(os.Stdout, string(data))
		return err
	}
	if err := os.WriteFile(m.Output, data, 0o644); err != nil {
		return derrors.FileSystemError("write combined manifest", m.Output, err)
	}
	return nil
}
