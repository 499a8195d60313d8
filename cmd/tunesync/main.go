// Command tunesync resolves playlists against a local catalog and retrieves
// missing tracks from a secondary source.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/dvallejo/tunesync/internal/config"
	"github.com/dvallejo/tunesync/internal/constants"
	"github.com/dvallejo/tunesync/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:    "tunesync",
		Usage:   "Resolve playlists against a local catalog and download what is missing",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
			},
		},
		Commands: commands(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "tunesync: %v\n", err)
		os.Exit(1)
	}
}

// withRunner loads config, builds the runner and tears it down after the
// action.
func withRunner(action func(ctx context.Context, cmd *cli.Command, r *Runner) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		path := cmd.String("config")
		if path == "" {
			path = config.DefaultPath()
		}
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

		r, err := NewRunner(cfg, log, os.Stdout)
		if err != nil {
			return err
		}
		defer r.Close()

		return action(ctx, cmd, r)
	}
}

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "playlist",
			Usage:     "Resolve a playlist URL; with --download, retrieve missing tracks",
			ArgsUsage: "<url>",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:    "download",
					Aliases: []string{"d"},
					Usage:   "Download tracks missing from the catalog",
				},
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "Output directory (overrides config)",
				},
				&cli.StringFlag{
					Name:  "format",
					Usage: "Audio format: mp3 or flac (overrides config)",
				},
				&cli.IntFlag{
					Name:  "workers",
					Usage: "Concurrent downloads",
					Value: constants.DefaultWorkers,
				},
			},
			Action: withRunner(func(ctx context.Context, cmd *cli.Command, r *Runner) error {
				return r.Playlist(ctx, cmd)
			}),
		},
		{
			Name:      "download",
			Usage:     "Search and download a single track by free-text query",
			ArgsUsage: "<query>",
			Action: withRunner(func(ctx context.Context, cmd *cli.Command, r *Runner) error {
				return r.Download(ctx, cmd)
			}),
		},
		{
			Name:      "search",
			Usage:     "Search the local catalog for tracks, artists or albums",
			ArgsUsage: "<query>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "type",
					Aliases: []string{"t"},
					Usage:   "What to search: track, artist or album",
					Value:   "track",
				},
				&cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"l"},
					Usage:   "Number of results",
					Value:   constants.DefaultBrowseLimit,
				},
			},
			Action: withRunner(func(ctx context.Context, cmd *cli.Command, r *Runner) error {
				query := strings.Join(cmd.Args().Slice(), " ")
				return r.Search(ctx, query, cmd.String("type"), int(cmd.Int("limit")))
			}),
		},
		{
			Name:      "track",
			Usage:     "Show catalog details for a track",
			ArgsUsage: "<id>",
			Action: withRunner(func(ctx context.Context, cmd *cli.Command, r *Runner) error {
				return r.Track(ctx, cmd.Args().First())
			}),
		},
		{
			Name:  "stats",
			Usage: "Show cache and catalog statistics",
			Action: withRunner(func(ctx context.Context, cmd *cli.Command, r *Runner) error {
				return r.Stats(ctx)
			}),
		},
		{
			Name:  "cache",
			Usage: "Query cache maintenance",
			Commands: []*cli.Command{
				{
					Name:  "stats",
					Usage: "Show cache statistics",
					Action: withRunner(func(ctx context.Context, cmd *cli.Command, r *Runner) error {
						return r.CacheStats(ctx, cmd)
					}),
				},
				{
					Name:  "clear",
					Usage: "Remove all cached searches",
					Action: withRunner(func(ctx context.Context, cmd *cli.Command, r *Runner) error {
						return r.CacheClear(ctx, cmd)
					}),
				},
			},
		},
		{
			Name:  "setup",
			Usage: "Write a config template",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				path := cmd.String("config")
				if path == "" {
					path = config.DefaultPath()
				}
				if err := config.WriteTemplate(path); err != nil {
					return err
				}
				fmt.Printf("Wrote config template to %s\n", path)
				return nil
			},
		},
	}
}
