package commands

import (
	"fmt"

	"git.home.luguber.info/inful/mdpublish/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	path := root.Config
	if path == "" {
		path = config.DefaultFiles[0]
	}
	fmt.Printf("Writing configuration to %s\n", path)
	return config.WriteExample(path, i.Force)
}
