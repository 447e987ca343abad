// Package foodcanon ties the canonicalization, matching, identity and
// nutrient rollup stages together behind one facade.
package foodcanon

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/foodcanon/pkg/foodcanon/canonical"
	"github.com/cognicore/foodcanon/pkg/foodcanon/config"
	"github.com/cognicore/foodcanon/pkg/foodcanon/identity"
	"github.com/cognicore/foodcanon/pkg/foodcanon/internalerr"
	"github.com/cognicore/foodcanon/pkg/foodcanon/lexicon"
	"github.com/cognicore/foodcanon/pkg/foodcanon/match"
	"github.com/cognicore/foodcanon/pkg/foodcanon/normalize"
	"github.com/cognicore/foodcanon/pkg/foodcanon/rollup"
	"github.com/cognicore/foodcanon/pkg/foodcanon/store"
)

// Engine is the pipeline facade.
type Engine struct {
	store    store.Store
	cfg      config.MatchConfig
	canon    *canonical.Canonicalizer
	proc     *match.Processor
	lexicon  *lexicon.Lexicon
	strategy match.CandidateStrategy
	log      *zap.SugaredLogger
}

// Options configures an Engine. Only Store is required; nil components
// fall back to the built-in defaults and a zero Config to config.Default().
type Options struct {
	Store      store.Store
	Config     config.MatchConfig
	Components *config.Components
	Strategy   match.CandidateStrategy
	Logger     *zap.SugaredLogger
}

// New creates an Engine. Invalid configuration fails here, before any
// work starts.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: engine needs a store", internalerr.ErrInvalidConfig)
	}
	cfg := opts.Config
	if cfg == (config.MatchConfig{}) {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	comp := opts.Components
	if comp == nil {
		comp = &config.Components{}
	}
	canon := comp.Canonicalizer
	if canon == nil {
		canon = canonical.New(canonical.DefaultRules())
	}
	lex := comp.Lexicon
	if lex == nil {
		lex = lexicon.New()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	strategy := opts.Strategy
	if strategy == nil {
		strategy = match.NewCrossProduct()
	}

	return &Engine{
		store:    opts.Store,
		cfg:      cfg,
		canon:    canon,
		proc:     match.NewProcessor(comp.Tokenizer, canon, comp.Taxonomy),
		lexicon:  lex,
		strategy: strategy,
		log:      log,
	}, nil
}

// Close closes the store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Config returns the active matching configuration.
func (e *Engine) Config() config.MatchConfig {
	return e.cfg
}

// Canonicalize resolves every catalog description and stores one base and
// one specific record per entry. It returns the number of records written.
func (e *Engine) Canonicalize(ctx context.Context, items []match.CatalogItem) (int, error) {
	recs := make([]store.CanonicalRecord, 0, 2*len(items))
	for _, it := range items {
		res := e.canon.Canonicalize(it.Description)
		recs = append(recs,
			store.CanonicalRecord{
				ExternalID:    it.ExternalID,
				Level:         store.LevelBase,
				Name:          res.BaseName,
				Slug:          res.BaseSlug,
				Description:   it.Description,
				DataType:      it.DataType,
				RemovedTokens: res.RemovedTokens,
				RuleVersion:   res.RuleVersion,
			},
			store.CanonicalRecord{
				ExternalID:    it.ExternalID,
				Level:         store.LevelSpecific,
				Name:          res.SpecificName,
				Slug:          res.SpecificSlug,
				Description:   it.Description,
				DataType:      it.DataType,
				RemovedTokens: res.RemovedTokens,
				RuleVersion:   res.RuleVersion,
			},
		)
	}
	if err := e.store.PutCanonical(ctx, recs); err != nil {
		return 0, fmt.Errorf("store canonical results: %w", err)
	}
	e.log.Infow("catalog canonicalized", "entries", len(items), "records", len(recs))
	return len(recs), nil
}

// Match scores vocab against catalog and stores the result as a staging
// run.
func (e *Engine) Match(ctx context.Context, catalog []match.CatalogItem, vocab []match.VocabItem) (store.MappingRun, error) {
	o, err := match.NewOrchestrator(e.cfg, e.proc, e.lexicon,
		match.WithStrategy(e.strategy),
		match.WithLogger(e.log),
	)
	if err != nil {
		return store.MappingRun{}, err
	}
	return o.Execute(ctx, e.store, catalog, vocab)
}

// Validate marks a staging run validated.
func (e *Engine) Validate(ctx context.Context, runID string) (store.MappingRun, error) {
	return match.ValidateRun(ctx, e.store, runID)
}

// Promote makes a validated run the current mapping.
func (e *Engine) Promote(ctx context.Context, runID string) error {
	if err := match.PromoteRun(ctx, e.store, runID); err != nil {
		return err
	}
	e.log.Infow("run promoted", "run", runID)
	return nil
}

// Current returns the promoted run and its winners.
func (e *Engine) Current(ctx context.Context) (store.MappingRun, []store.Winner, error) {
	return e.store.CurrentWinners(ctx)
}

// Runs lists every stored run, oldest first.
func (e *Engine) Runs(ctx context.Context) ([]store.MappingRun, error) {
	return e.store.ListRuns(ctx)
}

// BuildIdentities derives identities from the canonical results and the
// current run.
func (e *Engine) BuildIdentities(ctx context.Context, minMembers int) (identity.Summary, error) {
	b := identity.Builder{MinMembers: minMembers, IncludeBranded: e.cfg.IncludeBranded}
	sum, err := b.Build(ctx, e.store)
	if err != nil {
		return sum, err
	}
	e.log.Infow("identities built",
		"identities", sum.Identities,
		"memberships", sum.Memberships,
		"aliases", sum.Aliases,
		"skipped", sum.Skipped,
		"run", sum.RunID,
	)
	return sum, nil
}

// Identities returns the live identities by rank.
func (e *Engine) Identities(ctx context.Context) ([]store.Identity, error) {
	return e.store.Identities(ctx)
}

// Resolve returns the identity a free-text ingredient is aliased to.
func (e *Engine) Resolve(ctx context.Context, ingredient string) (store.Identity, error) {
	key := normalize.Slugify(ingredient)
	if key == "" {
		return store.Identity{}, fmt.Errorf("%w: empty ingredient", internalerr.ErrInvalidInput)
	}
	return identity.ResolveIngredient(ctx, e.store, key)
}

// LoadNutrients stores raw nutrient amounts.
func (e *Engine) LoadNutrients(ctx context.Context, amounts []store.NutrientAmount) error {
	if len(amounts) == 0 {
		return errors.New("no nutrient amounts")
	}
	return e.store.PutNutrientAmounts(ctx, amounts)
}

// Rollup recomputes nutrient boundaries for every identity.
func (e *Engine) Rollup(ctx context.Context) (rollup.Summary, error) {
	r := &rollup.Rollup{Store: e.store, MinSamples: e.cfg.MinSamples, Log: e.log}
	return r.Run(ctx)
}

// Boundaries returns the nutrient boundaries of an identity slug.
func (e *Engine) Boundaries(ctx context.Context, slug string) (store.Identity, []store.NutrientBoundary, error) {
	id, err := e.store.IdentityBySlug(ctx, slug)
	if err != nil {
		return store.Identity{}, nil, err
	}
	bounds, err := e.store.Boundaries(ctx, id.ID)
	return id, bounds, err
}
