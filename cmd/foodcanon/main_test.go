package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t   *testing.T
	dir string
	db  string
}

func newHarness(t *testing.T) *harness {
	dir := t.TempDir()
	return &harness{t: t, dir: dir, db: filepath.Join(dir, "foodcanon.db")}
}

func (h *harness) file(name string, lines ...string) string {
	h.t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"foodcanon", "--db", h.db, "--log", "prod"}, args...))
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	return out
}

func TestPipelineCommands(t *testing.T) {
	h := newHarness(t)
	catalog := h.file("catalog.jsonl",
		`{"externalId": 1, "description": "Oil, olive, salad or cooking", "category": "Fats and Oils", "dataType": "sr_legacy_food"}`,
		`{"externalId": 2, "description": "Spices, pepper, black", "category": "Spices and Herbs", "dataType": "sr_legacy_food"}`,
		`{"externalId": 6, "description": "Olive oil", "category": "Fats and Oils", "dataType": "foundation_food"}`,
	)
	vocab := h.file("vocab.jsonl",
		`{"text": "olive oil", "frequency": 10}`,
		`{"text": "black pepper", "frequency": 4}`,
	)
	nutrients := h.file("nutrients.jsonl",
		`{"externalId": 1, "nutrientId": 1004, "name": "Total lipid (fat)", "unit": "G", "amount": 100}`,
		`{"externalId": 6, "nutrientId": 1004, "name": "Total lipid (fat)", "unit": "G", "amount": 93}`,
	)

	out := h.mustRun("canonicalize", "--catalog", catalog)
	assert.Contains(t, out, "canonicalized 3 entries (6 records)")

	out = h.mustRun("match", "--catalog", catalog, "--vocab", vocab, "--strategy", "token_blocking", "--workers", "2")
	fields := strings.Fields(out)
	require.GreaterOrEqual(t, len(fields), 2, out)
	runID := fields[1]
	assert.Contains(t, out, "(staging): 2 ingredients, 1 mapped")

	_, err := h.run("promote", runID)
	require.Error(t, err, "staging runs cannot be promoted")

	assert.Contains(t, h.mustRun("validate", runID), "validated")
	assert.Contains(t, h.mustRun("promote", runID), "is current")
	assert.Contains(t, h.mustRun("runs"), runID)

	out = h.mustRun("current", "--json")
	var current struct {
		Run struct {
			ID string
		} `json:"run"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &current))
	assert.Equal(t, runID, current.Run.ID)

	out = h.mustRun("identities")
	assert.Contains(t, out, "1 aliases")
	assert.Contains(t, out, "olive")

	assert.True(t, strings.HasPrefix(h.mustRun("resolve", "Olive Oil"), "olive ("))

	assert.Contains(t, h.mustRun("rollup", "--nutrients", nutrients), "(0 failed)")
	out = h.mustRun("boundaries", "olive")
	assert.Contains(t, out, "96.500")
}

func TestMissingInputsFailFast(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("match", "--vocab", "v.jsonl")
	require.Error(t, err)

	_, err = h.run("canonicalize", "--catalog", filepath.Join(h.dir, "absent.jsonl"))
	require.Error(t, err)
	_, statErr := os.Stat(h.db)
	assert.True(t, os.IsNotExist(statErr), "no database is created when inputs are missing")

	_, err = h.run("validate")
	require.Error(t, err)

	catalog := h.file("catalog.jsonl", `{"externalId": 1, "description": "Salt, table"}`)
	vocab := h.file("vocab.jsonl", `{"text": "salt"}`)
	_, err = h.run("match", "--catalog", catalog, "--vocab", vocab, "--strategy", "fuzzy")
	require.ErrorContains(t, err, "unknown strategy")
}

func TestOntologyCommands(t *testing.T) {
	h := newHarness(t)
	primary := h.file("primary.json", `[{"slug": "black-pepper", "displayName": "Black pepper", "surfaceForms": ["black pepper"], "fdc": {"fdcId": 170931}}]`)
	secondary := h.file("secondary.json", `[{"slug": "black-pepper", "displayName": "Pepper, black", "surfaceForms": ["ground black pepper"]}, {"slug": "sea-salt", "displayName": "Sea salt", "surfaceForms": ["sea salt"]}]`)
	merged := filepath.Join(h.dir, "merged.json")

	out := h.mustRun("ontology", "merge", primary, secondary, merged)
	assert.Contains(t, out, "2 entries, 1 with an FDC id, 3 surface forms")

	patches := h.file("patches.yaml", "sea-salt:\n  - flaky salt\nunknown:\n  - nothing\n")
	patched := filepath.Join(h.dir, "patched.json")
	out = h.mustRun("ontology", "patch", merged, patches, patched)
	assert.Contains(t, out, "added 1 surface forms")
	assert.Contains(t, out, "unknown slugs: [unknown]")

	assert.Contains(t, h.mustRun("ontology", "stats", patched), "4 surface forms")

	_, err := h.run("ontology", "merge", primary)
	require.Error(t, err)
}

func TestTaxonomyDriftCommand(t *testing.T) {
	h := newHarness(t)
	tax := h.file("taxonomy.yaml",
		"categories:",
		"  Dairy: [milk, yogurt]",
	)
	catalog := h.file("catalog.jsonl",
		`{"externalId": 1, "description": "Milk, whole", "category": "Dairy", "dataType": "sr_legacy_food"}`,
		`{"externalId": 2, "description": "Milk, skim", "category": "Dairy", "dataType": "sr_legacy_food"}`,
	)

	out := h.mustRun("--taxonomy", tax, "taxonomy", "drift", "--catalog", catalog,
		"--min-missed", "1", "--min-orphan-df", "0.9", "--json")
	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	require.Len(t, got, 1)
	assert.Equal(t, "low_coverage", got[0]["type"])
	assert.Equal(t, "Dairy", got[0]["category"])
	assert.Equal(t, float64(2), got[0]["missed"])

	// At default thresholds "whole" and "skim" are frequent uncategorized stems.
	out = h.mustRun("--taxonomy", tax, "taxonomy", "drift", "--catalog", catalog)
	assert.Contains(t, out, "CONFIDENCE")
	assert.Contains(t, out, "orphan")
	assert.NotContains(t, out, "low_coverage")
}
