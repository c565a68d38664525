package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/mdpublish/cmd/mdpublish/commands"
	derrors "git.home.luguber.info/inful/mdpublish/internal/errors"
	"git.home.luguber.info/inful/mdpublish/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{Logger: slog.Default()}
	parser := kong.Parse(cli,
		kong.Name("mdpublish"),
		kong.Description("Render a Markdown tree into a static site and publish it as one module of a shared bucket."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)

	err := parser.Run(global, cli)
	derrors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
}
