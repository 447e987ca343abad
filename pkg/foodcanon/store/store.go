package store

import (
	"context"
	"time"
)

// Store is the persistence boundary of the pipeline: canonical results,
// mapping runs with their current-run pointer, identities with their
// memberships and aliases, and nutrient data.
type Store interface {
	Close() error

	// Canonical results
	PutCanonical(ctx context.Context, recs []CanonicalRecord) error
	GetCanonical(ctx context.Context, externalID int64, level Level) (CanonicalRecord, error)
	CanonicalRecords(ctx context.Context) ([]CanonicalRecord, error)

	// Mapping runs. SaveRun writes a run and all of its child rows or
	// nothing; Promote swaps the current-run pointer in one write.
	SaveRun(ctx context.Context, batch RunBatch) error
	GetRun(ctx context.Context, id string) (MappingRun, error)
	ListRuns(ctx context.Context) ([]MappingRun, error)
	SetRunStatus(ctx context.Context, id string, from, to RunStatus) error
	Winners(ctx context.Context, runID string) ([]Winner, error)
	NearTies(ctx context.Context, runID, ingredientKey string) ([]NearTie, error)
	Promote(ctx context.Context, runID string) error
	CurrentRun(ctx context.Context) (MappingRun, error)
	CurrentWinners(ctx context.Context) (MappingRun, []Winner, error)

	// Identities, memberships, aliases
	UpsertIdentity(ctx context.Context, id Identity) (Identity, error)
	IdentityBySlug(ctx context.Context, slug string) (Identity, error)
	Identities(ctx context.Context) ([]Identity, error)
	ReplaceMembers(ctx context.Context, identityID int64, members []Membership) error
	Members(ctx context.Context, identityID int64) ([]Membership, error)
	UpsertAlias(ctx context.Context, a Alias) error
	ResolveAlias(ctx context.Context, alias string) (Identity, error)

	// Nutrients
	PutNutrientAmounts(ctx context.Context, amounts []NutrientAmount) error
	NutrientAmounts(ctx context.Context, externalIDs []int64) ([]NutrientAmount, error)
	ReplaceBoundaries(ctx context.Context, identityID int64, bounds []NutrientBoundary) error
	Boundaries(ctx context.Context, identityID int64) ([]NutrientBoundary, error)
}

// Level is the resolution of a canonical result.
type Level string

const (
	LevelBase     Level = "base"
	LevelSpecific Level = "specific"
)

// CanonicalRecord is one canonicalization output keyed by
// (ExternalID, Level).
type CanonicalRecord struct {
	ExternalID    int64
	Level         Level
	Name          string
	Slug          string
	Description   string
	DataType      string
	RemovedTokens []string
	RuleVersion   string
}

// RunStatus is the lifecycle state of a mapping run.
type RunStatus string

const (
	RunStaging   RunStatus = "staging"
	RunValidated RunStatus = "validated"
)

// MatchStatus classifies a scored pair.
type MatchStatus string

const (
	StatusMapped      MatchStatus = "mapped"
	StatusNeedsReview MatchStatus = "needs_review"
	StatusNoMatch     MatchStatus = "no_match"
)

// RunSummary counts winners by status.
type RunSummary struct {
	Ingredients int
	Mapped      int
	NeedsReview int
	NoMatch     int
}

// Add counts one winner.
func (s *RunSummary) Add(status MatchStatus) {
	s.Ingredients++
	switch status {
	case StatusMapped:
		s.Mapped++
	case StatusNeedsReview:
		s.NeedsReview++
	default:
		s.NoMatch++
	}
}

// MappingRun is an immutable batch of matching results.
type MappingRun struct {
	ID               string
	ConfigHash       string
	Status           RunStatus
	Strategy         string
	TokenizerVersion string
	RuleVersion      string
	CatalogSize      int
	Summary          RunSummary
	CreatedAt        time.Time
}

// Breakdown is the per-signal audit of a winner's score.
type Breakdown struct {
	Overlap      float64
	JWRaw        float64
	JWGated      float64
	Gated        bool
	Segment      float64
	SegmentLevel string
	Affinity     float64
	Synonym      float64
}

// Winner is the best candidate for one ingredient in a run.
// MatchedExternalID is nil for no_match.
type Winner struct {
	RunID             string
	IngredientKey     string
	IngredientText    string
	Frequency         int64
	MatchedExternalID *int64
	Score             float64
	Status            MatchStatus
	ReasonCodes       []string
	Breakdown         *Breakdown
}

// NearTie is a non-winning candidate scored within the near-tie delta.
type NearTie struct {
	RunID         string
	IngredientKey string
	Rank          int
	ExternalID    int64
	Score         float64
}

// RunBatch is everything one run writes.
type RunBatch struct {
	Run      MappingRun
	Winners  []Winner
	NearTies []NearTie
}

// Identity is a durable canonical identity. Renames create a new Version
// under the same slug; the highest version is the live one.
type Identity struct {
	ID        int64
	Slug      string
	Name      string
	Level     Level
	Rank      int
	Version   int
	CreatedAt time.Time
}

// Membership links a catalog entry to an identity.
type Membership struct {
	IdentityID int64
	ExternalID int64
	Reason     string
	Weight     float64
}

// Alias maps an ingredient key to an identity.
type Alias struct {
	Alias      string
	IdentityID int64
	RunID      string
}

// NutrientAmount is a raw nutrient value of one catalog entry.
type NutrientAmount struct {
	ExternalID int64
	NutrientID int64
	Name       string
	Unit       string
	Amount     float64
}

// NutrientBoundary is the aggregate of one nutrient over an identity's
// members. Percentile fields are nil below the minimum sample count.
type NutrientBoundary struct {
	IdentityID       int64
	NutrientID       int64
	Name             string
	Unit             string
	Median           float64
	P10              *float64
	P25              *float64
	P75              *float64
	P90              *float64
	Min              float64
	Max              float64
	SampleCount      int
	TotalMemberCount int
}
