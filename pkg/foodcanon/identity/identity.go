// Package identity derives canonical identities, their catalog memberships
// and ingredient aliases from canonical results and the promoted run.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cognicore/foodcanon/pkg/foodcanon/canonical"
	"github.com/cognicore/foodcanon/pkg/foodcanon/internalerr"
	"github.com/cognicore/foodcanon/pkg/foodcanon/store"
)

// Membership reasons.
const (
	ReasonBase     = "canonical:base"
	ReasonSpecific = "canonical:specific"
	ReasonMapped   = "match:mapped"
)

// BrandedDataType marks branded catalog entries.
const BrandedDataType = "branded_food"

// Builder turns canonical results into identities.
type Builder struct {
	// MinMembers is the number of canonical members a slug needs before it
	// becomes an identity. Values below 1 mean 1.
	MinMembers int
	// IncludeBranded admits branded entries as members.
	IncludeBranded bool
}

// Summary reports what a build wrote.
type Summary struct {
	Identities  int
	Memberships int
	Aliases     int
	Skipped     int
	RunID       string
}

type group struct {
	slug    string
	level   store.Level
	names   map[string]int
	members map[memberKey]store.Membership
	// canonical member count, used for the MinMembers bar and rank
	size int
}

type memberKey struct {
	externalID int64
	reason     string
}

// Build derives identities from every stored canonical result, adds the
// mapped winners of the current run (if one is promoted) and persists the
// lot. Identities are upserted, so a renamed slug gains a new version.
func (b Builder) Build(ctx context.Context, st store.Store) (Summary, error) {
	recs, err := st.CanonicalRecords(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load canonical results: %w", err)
	}

	groups := make(map[string]*group)
	baseOf := make(map[int64]string)
	for _, r := range recs {
		if r.Slug == "" || r.Slug == canonical.Unknown {
			continue
		}
		if r.Level == store.LevelBase {
			baseOf[r.ExternalID] = r.Slug
		}
		if !b.admits(r.DataType) {
			continue
		}
		g := groups[r.Slug]
		if g == nil {
			g = &group{
				slug:    r.Slug,
				level:   r.Level,
				names:   make(map[string]int),
				members: make(map[memberKey]store.Membership),
			}
			groups[r.Slug] = g
		}
		if r.Level == store.LevelBase {
			g.level = store.LevelBase
		}
		g.names[r.Name]++
		g.addCanonical(r)
	}

	// A slug that is both a base and its own specific counts each entry once.
	for _, g := range groups {
		seen := make(map[int64]struct{})
		for k := range g.members {
			seen[k.externalID] = struct{}{}
		}
		g.size = len(seen)
	}

	minMembers := b.MinMembers
	if minMembers < 1 {
		minMembers = 1
	}
	var sum Summary
	kept := make([]*group, 0, len(groups))
	for _, g := range groups {
		if g.size < minMembers {
			sum.Skipped++
			continue
		}
		kept = append(kept, g)
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].size != kept[j].size {
			return kept[i].size > kept[j].size
		}
		return kept[i].slug < kept[j].slug
	})

	run, winners, err := st.CurrentWinners(ctx)
	switch {
	case errors.Is(err, internalerr.ErrNotFound):
	case err != nil:
		return Summary{}, fmt.Errorf("load current run: %w", err)
	default:
		sum.RunID = run.ID
	}

	keptBySlug := make(map[string]*group, len(kept))
	for _, g := range kept {
		keptBySlug[g.slug] = g
	}
	branded := make(map[int64]bool)
	for _, r := range recs {
		if r.DataType == BrandedDataType {
			branded[r.ExternalID] = true
		}
	}

	type alias struct {
		key  string
		slug string
	}
	var aliases []alias
	for _, w := range winners {
		if w.Status != store.StatusMapped || w.MatchedExternalID == nil {
			continue
		}
		ext := *w.MatchedExternalID
		g := keptBySlug[baseOf[ext]]
		if g == nil {
			continue
		}
		aliases = append(aliases, alias{key: w.IngredientKey, slug: g.slug})
		if branded[ext] && !b.IncludeBranded {
			continue
		}
		k := memberKey{ext, ReasonMapped}
		if prev, ok := g.members[k]; !ok || w.Score > prev.Weight {
			g.members[k] = store.Membership{ExternalID: ext, Reason: ReasonMapped, Weight: w.Score}
		}
	}

	ids := make(map[string]int64, len(kept))
	for rank, g := range kept {
		saved, err := st.UpsertIdentity(ctx, store.Identity{
			Slug:  g.slug,
			Name:  g.name(),
			Level: g.level,
			Rank:  rank + 1,
		})
		if err != nil {
			return sum, fmt.Errorf("upsert identity %s: %w", g.slug, err)
		}
		ids[g.slug] = saved.ID

		members := g.sortedMembers()
		if err := st.ReplaceMembers(ctx, saved.ID, members); err != nil {
			return sum, fmt.Errorf("replace members of %s: %w", g.slug, err)
		}
		sum.Identities++
		sum.Memberships += len(members)
	}

	for _, a := range aliases {
		err := st.UpsertAlias(ctx, store.Alias{Alias: a.key, IdentityID: ids[a.slug], RunID: sum.RunID})
		if err != nil {
			return sum, fmt.Errorf("alias %s: %w", a.key, err)
		}
		sum.Aliases++
	}
	return sum, nil
}

func (b Builder) admits(dataType string) bool {
	return b.IncludeBranded || dataType != BrandedDataType
}

func (g *group) addCanonical(r store.CanonicalRecord) {
	reason := ReasonBase
	if r.Level == store.LevelSpecific {
		reason = ReasonSpecific
	}
	g.members[memberKey{r.ExternalID, reason}] = store.Membership{
		ExternalID: r.ExternalID,
		Reason:     reason,
		Weight:     1,
	}
}

// name is the most frequent display name, ties going to the smaller one.
func (g *group) name() string {
	best, n := "", 0
	for name, c := range g.names {
		if c > n || (c == n && name < best) {
			best, n = name, c
		}
	}
	return best
}

func (g *group) sortedMembers() []store.Membership {
	out := make([]store.Membership, 0, len(g.members))
	for _, m := range g.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExternalID != out[j].ExternalID {
			return out[i].ExternalID < out[j].ExternalID
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// ResolveIngredient returns the identity an ingredient key is aliased to.
func ResolveIngredient(ctx context.Context, st store.Store, key string) (store.Identity, error) {
	return st.ResolveAlias(ctx, key)
}
