package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/kovalyov-valentin/news-aggregator/internal/config"
	"github.com/kovalyov-valentin/news-aggregator/internal/source"
)

func feedsCmd() *cli.Command {
	return &cli.Command{
		Name:  "feeds",
		Usage: "Validate and list the configured feeds",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "Registry file to check instead of the configured one",
			},
		},
		Action: func(c *cli.Context) error {
			path := c.String("file")
			if path == "" {
				cfg, err := config.Get()
				if err != nil {
					return err
				}
				path = cfg.SourcesFile
			}

			registry, err := source.LoadRegistry(path)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tURL\tNAME\tIMAGE\tCONTENT")

			groups := registry.ByCategory()
			for _, category := range registry.Categories() {
				for _, feed := range groups[category] {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						feed.Category,
						feed.URL,
						orDash(feed.Name),
						orDash(strings.Join(feed.ImageStrategies, ",")),
						orDash(strings.Join(feed.ContentStrategies, ",")),
					)
				}
			}

			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Printf("\n%d feeds in %d categories\n", len(registry.Feeds()), len(groups))

			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
