// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	}
}

func pickFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.IntFlag{
			Name:    "index",
			Aliases: []string{"n"},
			Usage:   "Which search result to use (1-based)",
			Value:   1,
		},
		&cli.StringFlag{
			Name:    "provider",
			Aliases: []string{"p"},
			Usage:   "Only pick results from this provider",
		},
	}, outputFlags()...)
}

// searchCommand runs an aggregate search
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "search",
		Aliases: []string{"s"},
		Usage:   "Search every enabled provider",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "keyword",
			},
		},
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum results per provider",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Show per-provider progress",
			},
		}, outputFlags()...),
		Action: r.Search,
	}
}

// playCommand resolves a stream URL with cross-provider fallback
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Search and resolve a playable URL, falling back to other providers",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "keyword",
			},
		},
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "quality",
				Aliases: []string{"q"},
				Usage:   "Stream quality (standard, higher, lossless)",
				Value:   "standard",
			},
		}, pickFlags()...),
		Action: r.Play,
	}
}

// lyricCommand fetches lyrics with cross-provider fallback
func lyricCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "lyric",
		Usage: "Search and fetch a lyric, falling back to other providers",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "keyword",
			},
		},
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:    "translated",
				Aliases: []string{"t"},
				Usage:   "Also print the translation when available",
			},
		}, pickFlags()...),
		Action: r.Lyric,
	}
}

// batchCommand bulk resolves a track file
func batchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Resolve stream URLs for every track in a JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "JSON file of tracks (e.g. saved 'search --json' output)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Manifest file; format follows the extension unless --format is set",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Manifest format (json, csv, md, txt)",
			},
			&cli.StringFlag{
				Name:    "quality",
				Aliases: []string{"q"},
				Usage:   "Stream quality (standard, higher, lossless)",
				Value:   "standard",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent resolutions (1-10)",
				Value: 5,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Resolutions started per second",
				Value: 5,
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Hide per-track progress",
			},
		},
		Action: r.Batch,
	}
}

// providersCommand manages provider switches and health
func providersCommand(r *Runner) *cli.Command {
	idArg := func() []cli.Argument {
		return []cli.Argument{&cli.StringArg{Name: "id"}}
	}

	return &cli.Command{
		Name:    "providers",
		Aliases: []string{"p"},
		Usage:   "Inspect and manage providers",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List providers with their health",
				Flags:  outputFlags(),
				Action: r.ProvidersList,
			},
			{
				Name:      "enable",
				Usage:     "Enable a provider",
				Arguments: idArg(),
				Action:    r.ProvidersEnable,
			},
			{
				Name:      "disable",
				Usage:     "Disable a provider",
				Arguments: idArg(),
				Action:    r.ProvidersDisable,
			},
			{
				Name:      "reset",
				Usage:     "Reset a provider's recorded health",
				Arguments: idArg(),
				Action:    r.ProvidersReset,
			},
		},
	}
}

// historyCommand lists recorded resolutions
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recent resolutions",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum entries",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "track",
				Usage: "Only this track ID",
			},
			&cli.StringFlag{
				Name:  "op",
				Usage: "Only this operation (url, lyric)",
			},
			&cli.StringFlag{
				Name:  "outcome",
				Usage: "Only this outcome (ok, fallback, failed, empty, cancelled)",
			},
		}, outputFlags()...),
		Action: r.History,
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (defaults to server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (defaults to server.port)",
			},
		},
		Action: r.Serve,
	}
}
