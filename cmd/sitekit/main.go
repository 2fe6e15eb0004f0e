package main

import (
	"io"
	"os"

	"github.com/alecthomas/kong"
)

// Global is shared by every command.
type Global struct {
	Out io.Writer
}

// CLI is the root command line.
type CLI struct {
	Config string `short:"c" help:"Configuration file path." default:"configs/config.yaml" type:"path"`

	Serve   ServeCmd   `cmd:"" default:"1" help:"Build the site and serve it."`
	Build   BuildCmd   `cmd:"" help:"Run one build pass and print the manifest."`
	Routes  RoutesCmd  `cmd:"" help:"Print the page routes of a fresh build."`
	History HistoryCmd `cmd:"" help:"List recorded builds."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("sitekit"),
		kong.Description("Layered site configuration builder and server."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&Global{Out: os.Stdout}, &cli)
	ctx.FatalIfErrorf(err)
}
