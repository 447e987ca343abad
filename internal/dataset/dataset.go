// Package dataset reads the JSONL input files of the pipeline: catalog
// foods, recipe vocabulary and nutrient amounts.
package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cognicore/foodcanon/pkg/foodcanon/internalerr"
	"github.com/cognicore/foodcanon/pkg/foodcanon/match"
	"github.com/cognicore/foodcanon/pkg/foodcanon/store"
)

// Food is one catalog line.
type Food struct {
	ExternalID  int64  `json:"externalId"`
	Description string `json:"description"`
	Category    string `json:"category"`
	DataType    string `json:"dataType"`
}

// Ingredient is one vocabulary line. A missing or non-positive frequency
// counts as 1.
type Ingredient struct {
	Text      string `json:"text"`
	Frequency int64  `json:"frequency"`
}

// Nutrient is one nutrient amount line.
type Nutrient struct {
	ExternalID int64    `json:"externalId"`
	NutrientID int64    `json:"nutrientId"`
	Name       string   `json:"name"`
	Unit       string   `json:"unit"`
	Amount     *float64 `json:"amount"`
}

// LoadCatalog reads catalog foods. Every line needs a positive externalId
// and a description.
func LoadCatalog(path string) ([]match.CatalogItem, error) {
	foods, err := load(path, func(f Food) error {
		if f.ExternalID <= 0 {
			return errors.New("externalId must be positive")
		}
		if strings.TrimSpace(f.Description) == "" {
			return errors.New("description is empty")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]match.CatalogItem, len(foods))
	for i, f := range foods {
		out[i] = match.CatalogItem{
			ExternalID:  f.ExternalID,
			Description: f.Description,
			Category:    f.Category,
			DataType:    f.DataType,
		}
	}
	return out, nil
}

// LoadVocabulary reads recipe ingredient strings.
func LoadVocabulary(path string) ([]match.VocabItem, error) {
	items, err := load(path, func(in Ingredient) error {
		if strings.TrimSpace(in.Text) == "" {
			return errors.New("text is empty")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]match.VocabItem, len(items))
	for i, in := range items {
		freq := in.Frequency
		if freq <= 0 {
			freq = 1
		}
		out[i] = match.VocabItem{Text: in.Text, Frequency: freq}
	}
	return out, nil
}

// LoadNutrients reads nutrient amounts.
func LoadNutrients(path string) ([]store.NutrientAmount, error) {
	rows, err := load(path, func(n Nutrient) error {
		if n.ExternalID <= 0 || n.NutrientID <= 0 {
			return errors.New("externalId and nutrientId must be positive")
		}
		if n.Amount == nil {
			return errors.New("amount is missing")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]store.NutrientAmount, len(rows))
	for i, n := range rows {
		out[i] = store.NutrientAmount{
			ExternalID: n.ExternalID,
			NutrientID: n.NutrientID,
			Name:       n.Name,
			Unit:       n.Unit,
			Amount:     *n.Amount,
		}
	}
	return out, nil
}

// load decodes one JSON object per non-blank line. A malformed line fails
// the whole file so a run never silently works on partial input.
func load[T any](path string, validate func(T) error) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", internalerr.ErrInvalidInput, path, line, err)
		}
		if err := validate(v); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", internalerr.ErrInvalidInput, path, line, err)
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no records in %s", internalerr.ErrInvalidInput, path)
	}
	return out, nil
}
