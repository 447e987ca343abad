package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/foodcanon/internal/dataset"
	"github.com/cognicore/foodcanon/internal/logger"
	"github.com/cognicore/foodcanon/pkg/foodcanon"
	"github.com/cognicore/foodcanon/pkg/foodcanon/config"
	"github.com/cognicore/foodcanon/pkg/foodcanon/match"
	"github.com/cognicore/foodcanon/pkg/foodcanon/ontology"
	"github.com/cognicore/foodcanon/pkg/foodcanon/store/sqlite"
	"github.com/cognicore/foodcanon/pkg/foodcanon/taxonomy"
)

// openEngine loads configuration and components, then opens the store.
// Everything that can fail on setup fails here, before any work.
func openEngine(c *cli.Context, workers int) (*foodcanon.Engine, *logger.Logger, error) {
	log, err := logger.New(c.String("log"))
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if workers > 0 {
		cfg.Workers = workers
	}

	comp, err := loadComponents(c)
	if err != nil {
		return nil, nil, err
	}

	var strategy match.CandidateStrategy
	if c.IsSet("strategy") {
		switch name := c.String("strategy"); name {
		case "cross_product":
			strategy = match.NewCrossProduct()
		case "token_blocking":
			strategy = match.NewTokenBlocking()
		default:
			return nil, nil, fmt.Errorf("unknown strategy %q (want cross_product or token_blocking)", name)
		}
	}

	st, err := sqlite.OpenSQLite(c.Context, c.String("db"))
	if err != nil {
		return nil, nil, err
	}
	engine, err := foodcanon.New(foodcanon.Options{
		Store:      st,
		Config:     cfg,
		Components: comp,
		Strategy:   strategy,
		Logger:     log.Sugar(),
	})
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return engine, log, nil
}

func loadComponents(c *cli.Context) (*config.Components, error) {
	loader := config.Loader{
		VocabularyPath: c.String("vocabulary"),
		RulesPath:      c.String("rules"),
		TaxonomyPath:   c.String("taxonomy"),
		SynonymsPath:   c.String("synonyms"),
		OntologyPath:   c.String("ontology"),
	}
	return loader.Load()
}

func canonicalizeCommand(c *cli.Context) error {
	items, err := dataset.LoadCatalog(c.String("catalog"))
	if err != nil {
		return err
	}
	engine, log, err := openEngine(c, 0)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer log.Sync()

	n, err := engine.Canonicalize(c.Context, items)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "canonicalized %d entries (%d records)\n", len(items), n)
	return nil
}

func matchCommand(c *cli.Context) error {
	catalog, err := dataset.LoadCatalog(c.String("catalog"))
	if err != nil {
		return err
	}
	vocab, err := dataset.LoadVocabulary(c.String("vocab"))
	if err != nil {
		return err
	}
	engine, log, err := openEngine(c, c.Int("workers"))
	if err != nil {
		return err
	}
	defer engine.Close()
	defer log.Sync()

	run, err := engine.Match(c.Context, catalog, vocab)
	if err != nil {
		return err
	}
	s := run.Summary
	fmt.Fprintf(c.App.Writer, "run %s (%s): %d ingredients, %d mapped, %d needs_review, %d no_match\n",
		run.ID, run.Status, s.Ingredients, s.Mapped, s.NeedsReview, s.NoMatch)
	return nil
}

func runArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("%s needs exactly one RUN argument", c.Command.Name)
	}
	return c.Args().First(), nil
}

func validateCommand(c *cli.Context) error {
	id, err := runArg(c)
	if err != nil {
		return err
	}
	engine, log, err := openEngine(c, 0)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer log.Sync()

	run, err := engine.Validate(c.Context, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "run %s is %s\n", run.ID, run.Status)
	return nil
}

func promoteCommand(c *cli.Context) error {
	id, err := runArg(c)
	if err != nil {
		return err
	}
	engine, log, err := openEngine(c, 0)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer log.Sync()

	if err := engine.Promote(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "run %s is current\n", id)
	return nil
}

func currentCommand(c *cli.Context) error {
	engine, log, err := openEngine(c, 0)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer log.Sync()

	run, winners, err := engine.Current(c.Context)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return writeJSON(c, map[string]interface{}{"run": run, "winners": winners})
	}

	fmt.Fprintf(c.App.Writer, "run %s created %s config %s\n", run.ID, run.CreatedAt.Format("2006-01-02 15:04:05"), run.ConfigHash)
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INGREDIENT\tFREQ\tSTATUS\tSCORE\tMATCH")
	for _, w := range winners {
		matched := "-"
		if w.MatchedExternalID != nil {
			matched = fmt.Sprint(*w.MatchedExternalID)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.3f\t%s\n", w.IngredientKey, w.Frequency, w.Status, w.Score, matched)
	}
	return tw.Flush()
}

func runsCommand(c *cli.Context) error {
	engine, log, err := openEngine(c, 0)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer log.Sync()

	runs, err := engine.Runs(c.Context)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATUS\tSTRATEGY\tINGREDIENTS\tMAPPED\tREVIEW\tNO_MATCH")
	for _, r := range runs {
		s := r.Summary
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n", r.ID, r.Status, r.Strategy, s.Ingredients, s.Mapped, s.NeedsReview, s.NoMatch)
	}
	return tw.Flush()
}

func identitiesCommand(c *cli.Context) error {
	engine, log, err := openEngine(c, 0)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer log.Sync()

	if !c.Bool("list") {
		sum, err := engine.BuildIdentities(c.Context, c.Int("min-members"))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%d identities, %d memberships, %d aliases, %d below the member bar\n",
			sum.Identities, sum.Memberships, sum.Aliases, sum.Skipped)
	}

	ids, err := engine.Identities(c.Context)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSLUG\tNAME\tLEVEL\tVERSION")
	for _, id := range ids {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", id.Rank, id.Slug, id.Name, id.Level, id.Version)
	}
	return tw.Flush()
}

func resolveCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("resolve needs exactly one INGREDIENT argument")
	}
	engine, log, err := openEngine(c, 0)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer log.Sync()

	id, err := engine.Resolve(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s (%s, v%d)\n", id.Slug, id.Name, id.Version)
	return nil
}

func rollupCommand(c *cli.Context) error {
	path := c.String("nutrients")

	engine, log, err := openEngine(c, 0)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer log.Sync()

	if path != "" {
		rows, err := dataset.LoadNutrients(path)
		if err != nil {
			return err
		}
		if err := engine.LoadNutrients(c.Context, rows); err != nil {
			return err
		}
	}
	sum, err := engine.Rollup(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "processed %d identities (%d failed), %d boundaries\n", sum.Processed, sum.Failed, sum.Boundaries)
	return nil
}

func boundariesCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("boundaries needs exactly one SLUG argument")
	}
	engine, log, err := openEngine(c, 0)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer log.Sync()

	id, bounds, err := engine.Boundaries(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return writeJSON(c, map[string]interface{}{"identity": id, "boundaries": bounds})
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NUTRIENT\tUNIT\tMEDIAN\tP10\tP90\tMIN\tMAX\tSAMPLES")
	for _, b := range bounds {
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%s\t%s\t%.3f\t%.3f\t%d/%d\n",
			b.Name, b.Unit, b.Median, optional(b.P10), optional(b.P90), b.Min, b.Max, b.SampleCount, b.TotalMemberCount)
	}
	return tw.Flush()
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}

func writeJSON(c *cli.Context, v interface{}) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ontologyArgs(c *cli.Context, n int) ([]string, error) {
	if c.NArg() != n {
		return nil, fmt.Errorf("ontology %s needs %s", c.Command.Name, c.Command.ArgsUsage)
	}
	return c.Args().Slice(), nil
}

func ontologyMergeCommand(c *cli.Context) error {
	args, err := ontologyArgs(c, 3)
	if err != nil {
		return err
	}
	primary, err := ontology.Load(args[0])
	if err != nil {
		return err
	}
	secondary, err := ontology.Load(args[1])
	if err != nil {
		return err
	}
	merged := ontology.Merge(primary, secondary)
	if err := ontology.Save(args[2], merged); err != nil {
		return err
	}
	printOntologyStats(c, merged)
	return nil
}

func ontologyPatchCommand(c *cli.Context) error {
	args, err := ontologyArgs(c, 3)
	if err != nil {
		return err
	}
	entries, err := ontology.Load(args[0])
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read patches: %w", err)
	}
	var patches map[string][]string
	if err := yaml.Unmarshal(data, &patches); err != nil {
		return fmt.Errorf("parse patches: %w", err)
	}
	added, missing := ontology.PatchSurfaceForms(entries, patches)
	if err := ontology.Save(args[2], entries); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "added %d surface forms\n", added)
	if len(missing) > 0 {
		fmt.Fprintf(c.App.Writer, "unknown slugs: %v\n", missing)
	}
	printOntologyStats(c, entries)
	return nil
}

func ontologyAddCommand(c *cli.Context) error {
	args, err := ontologyArgs(c, 3)
	if err != nil {
		return err
	}
	entries, err := ontology.Load(args[0])
	if err != nil {
		return err
	}
	additions, err := ontology.Load(args[1])
	if err != nil {
		return err
	}
	out, added, merged := ontology.AddEntries(entries, additions)
	if err := ontology.Save(args[2], out); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "added %d entries, merged %d surface forms into existing ones\n", added, merged)
	printOntologyStats(c, out)
	return nil
}

func ontologyStatsCommand(c *cli.Context) error {
	args, err := ontologyArgs(c, 1)
	if err != nil {
		return err
	}
	entries, err := ontology.Load(args[0])
	if err != nil {
		return err
	}
	printOntologyStats(c, entries)
	return nil
}

func printOntologyStats(c *cli.Context, entries []ontology.Entry) {
	s := ontology.Summarize(entries)
	fmt.Fprintf(c.App.Writer, "%d entries, %d with an FDC id, %d surface forms\n", s.Entries, s.WithFDC, s.SurfaceForms)
}

func taxonomyDriftCommand(c *cli.Context) error {
	items, err := dataset.LoadCatalog(c.String("catalog"))
	if err != nil {
		return err
	}
	comp, err := loadComponents(c)
	if err != nil {
		return err
	}

	docs := make([]taxonomy.Document, len(items))
	for i, it := range items {
		docs[i] = taxonomy.Document{
			Tokens:   comp.Tokenizer.Tokenize(it.Description),
			Category: it.Category,
		}
	}
	suggestions := comp.Taxonomy.Drift(docs, taxonomy.Thresholds{
		MinCoverage:   c.Float64("min-coverage"),
		MinMissedDocs: c.Int("min-missed"),
		MinOrphanDF:   c.Float64("min-orphan-df"),
	})

	if c.Bool("json") {
		return writeJSON(c, suggestions)
	}
	if len(suggestions) == 0 {
		fmt.Fprintln(c.App.Writer, "no drift")
		return nil
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tCATEGORY\tKEYWORD\tCOVERAGE\tSUPPORT\tMISSED\tCONFIDENCE")
	for _, s := range suggestions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t%d\t%.2f\n",
			s.Type, s.Category, s.Keyword, s.Coverage, s.Support, s.Missed, s.Confidence)
	}
	return w.Flush()
}
