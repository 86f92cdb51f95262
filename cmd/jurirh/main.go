package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/enstso/JuriRH-Assistant/internal/evaluation"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "jurirh",
		Usage:   "Hybrid retrieval over French HR and labour-law documents",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the TOML configuration file",
				EnvVars: []string{"JURIRH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override the configured logging level (debug, info, warn, error)",
			},
		},
		Before: setupRuntime,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Chunk, embed and index a corpus directory",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "input_dir",
						Usage: "Corpus directory (defaults to paths.corpus_dir)",
					},
					&cli.StringFlag{
						Name:  "out_dir",
						Usage: "Index directory (defaults to paths.index_dir)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Run one hybrid query against an index",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "index_dir",
						Usage: "Index directory (defaults to paths.index_dir)",
					},
					&cli.StringSliceFlag{
						Name:    "filter",
						Aliases: []string{"f"},
						Usage:   "Metadata filter as key=value, repeatable",
					},
					&cli.IntFlag{
						Name:  "top_k",
						Usage: "Number of results (defaults to retrieval.top_k_final)",
					},
					&cli.Float64Flag{
						Name:  "alpha",
						Usage: "Dense weight in [0,1] (defaults to retrieval.alpha)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print results as JSON",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP search API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (defaults to server.host:server.port)",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools on stdio",
				Action: mcpCommand,
			},
			{
				Name:   "eval",
				Usage:  "Compute recall@k over a labelled question set",
				Action: evalCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dataset",
						Usage:    "JSONL file of {id, question, filters, expected_doc_hint}",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "k",
						Usage: "Recall cutoff",
						Value: evaluation.DefaultK,
					},
					&cli.StringFlag{
						Name:  "index_dir",
						Usage: "Index directory (defaults to paths.index_dir)",
					},
				},
			},
			{
				Name:   "version",
				Usage:  "Print build information",
				Action: versionCommand,
			},
		},
	}
}
