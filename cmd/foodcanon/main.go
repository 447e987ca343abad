package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "foodcanon: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "foodcanon",
		Usage:   "Canonicalize food descriptions, match recipe ingredients and roll up nutrients",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "SQLite database path",
				Value:   "foodcanon.db",
				EnvVars: []string{"FOODCANON_DB"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Matching config YAML (defaults when empty)",
			},
			&cli.StringFlag{
				Name:  "log",
				Usage: "Log mode: dev or prod",
				Value: "dev",
			},
			&cli.StringFlag{Name: "vocabulary", Usage: "Stopword and state word YAML"},
			&cli.StringFlag{Name: "rules", Usage: "Canonicalizer rule YAML"},
			&cli.StringFlag{Name: "taxonomy", Usage: "Category keyword YAML"},
			&cli.StringFlag{Name: "synonyms", Usage: "Synonym table YAML"},
			&cli.StringFlag{Name: "ontology", Usage: "Ingredient ontology JSON seeding the synonym table"},
		},
		Commands: []*cli.Command{
			{
				Name:   "canonicalize",
				Usage:  "Resolve catalog descriptions to base and specific identities",
				Flags:  []cli.Flag{catalogFlag()},
				Action: canonicalizeCommand,
			},
			{
				Name:  "match",
				Usage: "Score a recipe vocabulary against the catalog as a staging run",
				Flags: []cli.Flag{
					catalogFlag(),
					&cli.StringFlag{Name: "vocab", Usage: "Vocabulary JSONL", Required: true},
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Candidate strategy: cross_product or token_blocking",
						Value: "cross_product",
					},
					&cli.IntFlag{Name: "workers", Usage: "Scoring workers (0 = all cores)"},
				},
				Action: matchCommand,
			},
			{
				Name:      "validate",
				Usage:     "Mark a staging run validated",
				ArgsUsage: "RUN",
				Action:    validateCommand,
			},
			{
				Name:      "promote",
				Usage:     "Make a validated run the current mapping",
				ArgsUsage: "RUN",
				Action:    promoteCommand,
			},
			{
				Name:   "current",
				Usage:  "Show the current run and its winners",
				Flags:  []cli.Flag{jsonFlag()},
				Action: currentCommand,
			},
			{
				Name:   "runs",
				Usage:  "List mapping runs",
				Action: runsCommand,
			},
			{
				Name:  "identities",
				Usage: "Build identities from canonical results and the current run",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "min-members", Usage: "Members a slug needs to become an identity", Value: 1},
					&cli.BoolFlag{Name: "list", Usage: "List stored identities without rebuilding"},
				},
				Action: identitiesCommand,
			},
			{
				Name:      "resolve",
				Usage:     "Show the identity an ingredient resolves to",
				ArgsUsage: "INGREDIENT",
				Action:    resolveCommand,
			},
			{
				Name:  "rollup",
				Usage: "Recompute nutrient boundaries for every identity",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "nutrients", Usage: "Nutrient amount JSONL to load first"},
				},
				Action: rollupCommand,
			},
			{
				Name:      "boundaries",
				Usage:     "Show the nutrient boundaries of an identity",
				ArgsUsage: "SLUG",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    boundariesCommand,
			},
			{
				Name:  "ontology",
				Usage: "Maintain the ingredient ontology",
				Subcommands: []*cli.Command{
					{
						Name:      "merge",
						Usage:     "Merge two ontologies, the first taking precedence",
						ArgsUsage: "PRIMARY SECONDARY OUT",
						Action:    ontologyMergeCommand,
					},
					{
						Name:      "patch",
						Usage:     "Add surface forms from a slug -> forms YAML map",
						ArgsUsage: "ONTOLOGY PATCHES OUT",
						Action:    ontologyPatchCommand,
					},
					{
						Name:      "add",
						Usage:     "Add entries from a JSON file, merging forms of existing slugs",
						ArgsUsage: "ONTOLOGY ADDITIONS OUT",
						Action:    ontologyAddCommand,
					},
					{
						Name:      "stats",
						Usage:     "Summarize an ontology",
						ArgsUsage: "ONTOLOGY",
						Action:    ontologyStatsCommand,
					},
				},
			},
			{
				Name:  "taxonomy",
				Usage: "Inspect the category taxonomy",
				Subcommands: []*cli.Command{
					{
						Name:  "drift",
						Usage: "Compare category keywords with a labeled catalog",
						Flags: []cli.Flag{
							catalogFlag(),
							&cli.Float64Flag{Name: "min-coverage", Usage: "Flag keywords below this category coverage", Value: 0.4},
							&cli.IntFlag{Name: "min-missed", Usage: "Entries a flagged keyword must be missing from", Value: 10},
							&cli.Float64Flag{Name: "min-orphan-df", Usage: "Catalog share an uncategorized stem needs", Value: 0.05},
							jsonFlag(),
						},
						Action: taxonomyDriftCommand,
					},
				},
			},
		},
	}
}

func catalogFlag() cli.Flag {
	return &cli.StringFlag{Name: "catalog", Usage: "Catalog JSONL", Required: true}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"}
}
