package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "news-aggregator",
		Usage: "Collect articles from RSS and Atom feeds and serve them over HTTP",
		Description: `Settings are read from ./config.hcl and ./config.local.hcl and can be
overridden with NEWS_* environment variables.`,
		Commands: []*cli.Command{
			serveCmd(),
			sweepCmd(),
			migrateCmd(),
			rollbackCmd(),
			feedsCmd(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
