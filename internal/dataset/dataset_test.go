package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/foodcanon/pkg/foodcanon/internalerr"
)

func writeFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeFile(t,
		`{"externalId": 171287, "description": "Spices, pepper, black", "category": "Spices and Herbs", "dataType": "sr_legacy_food"}`,
		``,
		`{"externalId": 748967, "description": "Eggs, Grade A, Large, egg whole", "dataType": "foundation_food"}`,
	)
	items, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].ExternalID != 171287 || items[0].Category != "Spices and Herbs" {
		t.Errorf("first item = %+v", items[0])
	}
	if items[1].DataType != "foundation_food" || items[1].Category != "" {
		t.Errorf("second item = %+v", items[1])
	}
}

func TestLoadVocabularyDefaultsFrequency(t *testing.T) {
	path := writeFile(t,
		`{"text": "black pepper", "frequency": 12}`,
		`{"text": "olive oil"}`,
	)
	items, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("LoadVocabulary: %v", err)
	}
	if items[0].Frequency != 12 || items[1].Frequency != 1 {
		t.Errorf("frequencies = %d, %d", items[0].Frequency, items[1].Frequency)
	}
}

func TestLoadNutrients(t *testing.T) {
	path := writeFile(t, `{"externalId": 1, "nutrientId": 1003, "name": "Protein", "unit": "G", "amount": 0}`)
	rows, err := LoadNutrients(path)
	if err != nil {
		t.Fatalf("LoadNutrients: %v", err)
	}
	if len(rows) != 1 || rows[0].Amount != 0 || rows[0].Unit != "G" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		load func(string) error
		line string
	}{
		{"malformed json", func(p string) error { _, err := LoadCatalog(p); return err }, `{"externalId": 1,`},
		{"missing id", func(p string) error { _, err := LoadCatalog(p); return err }, `{"description": "Salt, table"}`},
		{"empty text", func(p string) error { _, err := LoadVocabulary(p); return err }, `{"text": "  "}`},
		{"missing amount", func(p string) error { _, err := LoadNutrients(p); return err }, `{"externalId": 1, "nutrientId": 1003}`},
		{"empty file", func(p string) error { _, err := LoadCatalog(p); return err }, ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.load(writeFile(t, tt.line))
			if !errors.Is(err, internalerr.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.jsonl"))
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want not-exist", err)
	}
}
