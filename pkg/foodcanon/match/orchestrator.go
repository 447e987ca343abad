package match

import (
	"context"
	"crypto/rand"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/foodcanon/pkg/foodcanon/config"
	"github.com/cognicore/foodcanon/pkg/foodcanon/lexicon"
	"github.com/cognicore/foodcanon/pkg/foodcanon/normalize"
	"github.com/cognicore/foodcanon/pkg/foodcanon/store"
)

// tieEpsilon absorbs float noise when comparing against the near-tie delta.
const tieEpsilon = 1e-9

// Orchestrator scores a vocabulary against a catalog and assembles a
// staging MappingRun.
type Orchestrator struct {
	cfg      config.MatchConfig
	proc     *Processor
	lexicon  *lexicon.Lexicon
	strategy CandidateStrategy
	log      *zap.SugaredLogger
	now      func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy

	done  atomic.Int64
	total atomic.Int64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStrategy replaces the default CrossProduct strategy.
func WithStrategy(s CandidateStrategy) Option {
	return func(o *Orchestrator) { o.strategy = s }
}

// WithLogger sets the logger used for run summaries.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithClock sets the clock used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator validates cfg and builds an orchestrator.
func NewOrchestrator(cfg config.MatchConfig, proc *Processor, lex *lexicon.Lexicon, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if proc == nil {
		proc = NewProcessor(nil, nil, nil)
	}
	if lex == nil {
		lex = lexicon.New()
	}
	o := &Orchestrator{
		cfg:      cfg,
		proc:     proc,
		lexicon:  lex,
		strategy: NewCrossProduct(),
		log:      zap.NewNop().Sugar(),
		now:      time.Now,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Progress reports how many ingredients of the current run are scored.
func (o *Orchestrator) Progress() (done, total int64) {
	return o.done.Load(), o.total.Load()
}

// Run scores every vocabulary item against the catalog. Scoring is spread
// over a bounded worker pool; the catalog, IDF weights and strategy index
// are built first and only read while workers run. When ctx is cancelled no
// further ingredients are started and Run returns the context error without
// a run.
func (o *Orchestrator) Run(ctx context.Context, catalog []CatalogItem, vocab []VocabItem) (store.RunBatch, error) {
	start := o.now()

	entries := make([]Entry, len(catalog))
	for i, item := range catalog {
		entries[i] = o.proc.Entry(item)
	}
	idf := BuildIDF(entries)
	for i := range entries {
		entries[i].TotalWeight = idf.Total(entries[i].Stems)
	}
	index := o.strategy.Index(entries)
	scorer := NewScorer(o.cfg, idf, o.lexicon)

	skipped := 0
	for _, v := range vocab {
		if normalize.Slugify(v.Text) == "" {
			skipped++
		}
	}
	if skipped > 0 {
		o.log.Warnw("vocabulary items without an ingredient key skipped", "skipped", skipped)
	}
	vocab = DedupVocabulary(vocab)
	ings := make([]Ingredient, len(vocab))
	for i, v := range vocab {
		ings[i] = o.proc.Ingredient(v)
	}

	o.done.Store(0)
	o.total.Store(int64(len(ings)))

	workers := o.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]outcome, len(ings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
submit:
	for i := range ings {
		select {
		case <-gctx.Done():
			break submit
		default:
		}
		i := i
		g.Go(func() error {
			results[i] = o.matchOne(scorer, index, ings[i], entries)
			o.done.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return store.RunBatch{}, err
	}
	if err := ctx.Err(); err != nil {
		return store.RunBatch{}, err
	}

	run := store.MappingRun{
		ID:               o.newID(start),
		ConfigHash:       o.cfg.Hash(),
		Status:           store.RunStaging,
		Strategy:         o.strategy.Name(),
		TokenizerVersion: o.cfg.TokenizerVersion,
		RuleVersion:      o.cfg.RuleVersion,
		CatalogSize:      len(entries),
		CreatedAt:        start.UTC(),
	}
	batch := store.RunBatch{Winners: make([]store.Winner, 0, len(results))}
	for i, res := range results {
		w := o.winner(run.ID, ings[i], res)
		run.Summary.Add(w.Status)
		batch.Winners = append(batch.Winners, w)
		for rank, tie := range res.nearTies {
			batch.NearTies = append(batch.NearTies, store.NearTie{
				RunID:         run.ID,
				IngredientKey: ings[i].Key,
				Rank:          rank + 1,
				ExternalID:    tie.match.ExternalID,
				Score:         tie.match.Score,
			})
		}
	}
	batch.Run = run

	o.log.Infow("mapping run scored",
		"run", run.ID,
		"strategy", run.Strategy,
		"config_hash", run.ConfigHash,
		"ingredients", run.Summary.Ingredients,
		"catalog", run.CatalogSize,
		"mapped", run.Summary.Mapped,
		"needs_review", run.Summary.NeedsReview,
		"no_match", run.Summary.NoMatch,
		"skipped", skipped,
		"elapsed", o.now().Sub(start),
	)
	return batch, nil
}

// Execute runs and persists the batch as a staging run.
func (o *Orchestrator) Execute(ctx context.Context, st store.Store, catalog []CatalogItem, vocab []VocabItem) (store.MappingRun, error) {
	batch, err := o.Run(ctx, catalog, vocab)
	if err != nil {
		return store.MappingRun{}, err
	}
	if err := st.SaveRun(ctx, batch); err != nil {
		return store.MappingRun{}, fmt.Errorf("save run %s: %w", batch.Run.ID, err)
	}
	return batch.Run, nil
}

func (o *Orchestrator) newID(t time.Time) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), o.entropy).String()
}

// containment relation between an entry and an ingredient, used to break
// score ties.
const (
	relNone = iota
	relIngredientContainsEntry
	relEntryContainsIngredient
)

type candidate struct {
	match    ScoredMatch
	relation int
}

type outcome struct {
	best     *candidate
	nearTies []candidate
	noCore   bool
}

// better reports whether a ranks above b: higher score, then an entry
// containing the ingredient over an ingredient containing the entry, then
// the lower external id.
func better(a, b candidate) bool {
	if a.match.Score != b.match.Score {
		return a.match.Score > b.match.Score
	}
	if a.relation != b.relation {
		return a.relation > b.relation
	}
	return a.match.ExternalID < b.match.ExternalID
}

func (o *Orchestrator) matchOne(scorer *Scorer, index CandidateIndex, ing Ingredient, entries []Entry) outcome {
	if len(ing.Stems) == 0 {
		return outcome{noCore: true}
	}

	idxs := index.Candidates(ing)
	scored := make([]candidate, 0, len(idxs))
	var best *candidate
	for _, idx := range idxs {
		c := candidate{
			match:    scorer.Score(ing, entries[idx]),
			relation: relation(ing.Stems, entries[idx].Stems),
		}
		scored = append(scored, c)
		if best == nil || better(c, *best) {
			cc := c
			best = &cc
		}
	}

	out := outcome{best: best}
	if best != nil && best.match.Status != store.StatusNoMatch {
		out.nearTies = selectNearTies(scored, *best, o.cfg.NearTieDelta, o.cfg.MaxNearTies)
	}
	return out
}

// selectNearTies returns the candidates other than best scoring within
// delta of it, best first, at most limit of them.
func selectNearTies(scored []candidate, best candidate, delta float64, limit int) []candidate {
	if limit <= 0 {
		return nil
	}
	var ties []candidate
	for _, c := range scored {
		if c.match.ExternalID == best.match.ExternalID {
			continue
		}
		if best.match.Score-c.match.Score <= delta+tieEpsilon {
			ties = append(ties, c)
		}
	}
	sort.SliceStable(ties, func(i, j int) bool { return better(ties[i], ties[j]) })
	if len(ties) > limit {
		ties = ties[:limit]
	}
	return ties
}

func (o *Orchestrator) winner(runID string, ing Ingredient, res outcome) store.Winner {
	w := store.Winner{
		RunID:          runID,
		IngredientKey:  ing.Key,
		IngredientText: ing.Text,
		Frequency:      ing.Frequency,
		Status:         store.StatusNoMatch,
	}
	switch {
	case res.noCore:
		w.ReasonCodes = []string{ReasonNoCore}
		return w
	case res.best == nil:
		w.ReasonCodes = ReasonCodes(Breakdown{SegmentLevel: SegmentNone})
		return w
	}

	m := res.best.match
	w.Score = m.Score
	w.Status = m.Status
	w.ReasonCodes = ReasonCodes(m.Breakdown)
	if m.Status != store.StatusNoMatch {
		id := m.ExternalID
		w.MatchedExternalID = &id
	}
	if o.cfg.KeepBreakdowns {
		b := store.Breakdown(m.Breakdown)
		w.Breakdown = &b
	}
	return w
}

func relation(ing, entry []string) int {
	switch {
	case subset(ing, entry):
		return relEntryContainsIngredient
	case subset(entry, ing):
		return relIngredientContainsEntry
	default:
		return relNone
	}
}

func subset(a, b []string) bool {
	set := make(map[string]struct{}, len(b))
	for _, t := range b {
		set[t] = struct{}{}
	}
	for _, t := range a {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}
