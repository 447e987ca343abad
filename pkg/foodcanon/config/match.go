package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/foodcanon/pkg/foodcanon/canonical"
	"github.com/cognicore/foodcanon/pkg/foodcanon/internalerr"
	"github.com/cognicore/foodcanon/pkg/foodcanon/normalize"
)

// EnvPrefix prefixes environment overrides, e.g. FOODCANON_THRESHOLDS_MAPPED.
const EnvPrefix = "FOODCANON"

// Weights are the linear weights of the five scoring signals.
type Weights struct {
	Overlap    float64 `mapstructure:"overlap" yaml:"overlap"`
	Similarity float64 `mapstructure:"similarity" yaml:"similarity"`
	Segment    float64 `mapstructure:"segment" yaml:"segment"`
	Affinity   float64 `mapstructure:"affinity" yaml:"affinity"`
	Synonym    float64 `mapstructure:"synonym" yaml:"synonym"`
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Overlap + w.Similarity + w.Segment + w.Affinity + w.Synonym
}

// Thresholds map a score to a classification.
type Thresholds struct {
	Mapped float64 `mapstructure:"mapped" yaml:"mapped"`
	Review float64 `mapstructure:"review" yaml:"review"`
}

// Gate caps string similarity when token overlap is too weak to trust it.
type Gate struct {
	MinOverlap float64 `mapstructure:"min_overlap" yaml:"min_overlap"`
	Cap        float64 `mapstructure:"cap" yaml:"cap"`
}

// MatchConfig is read once when a run starts and stays fixed for the run.
type MatchConfig struct {
	Weights          Weights    `mapstructure:"weights" yaml:"weights"`
	Thresholds       Thresholds `mapstructure:"thresholds" yaml:"thresholds"`
	Gate             Gate       `mapstructure:"gate" yaml:"gate"`
	NearTieDelta     float64    `mapstructure:"near_tie_delta" yaml:"near_tie_delta"`
	MaxNearTies      int        `mapstructure:"max_near_ties" yaml:"max_near_ties"`
	MinSamples       int        `mapstructure:"min_samples" yaml:"min_samples"`
	IncludeBranded   bool       `mapstructure:"include_branded" yaml:"include_branded"`
	KeepBreakdowns   bool       `mapstructure:"keep_breakdowns" yaml:"keep_breakdowns"`
	TokenizerVersion string     `mapstructure:"tokenizer_version" yaml:"tokenizer_version"`
	RuleVersion      string     `mapstructure:"rule_version" yaml:"rule_version"`

	// Workers bounds the scoring pool; 0 means GOMAXPROCS. It does not
	// change results and is left out of the hash.
	Workers int `mapstructure:"workers" yaml:"-"`
}

// Default returns the stock configuration.
func Default() MatchConfig {
	return MatchConfig{
		Weights: Weights{
			Overlap:    0.35,
			Similarity: 0.25,
			Segment:    0.20,
			Affinity:   0.10,
			Synonym:    0.10,
		},
		Thresholds:       Thresholds{Mapped: 0.80, Review: 0.40},
		Gate:             Gate{MinOverlap: 0.2, Cap: 0.1},
		NearTieDelta:     0.05,
		MaxNearTies:      5,
		MinSamples:       3,
		KeepBreakdowns:   true,
		TokenizerVersion: normalize.Version,
		RuleVersion:      canonical.RuleVersion,
	}
}

// Validate checks ranges and that the weights sum to one.
func (c MatchConfig) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"weights.overlap", c.Weights.Overlap},
		{"weights.similarity", c.Weights.Similarity},
		{"weights.segment", c.Weights.Segment},
		{"weights.affinity", c.Weights.Affinity},
		{"weights.synonym", c.Weights.Synonym},
		{"thresholds.mapped", c.Thresholds.Mapped},
		{"thresholds.review", c.Thresholds.Review},
		{"gate.min_overlap", c.Gate.MinOverlap},
		{"gate.cap", c.Gate.Cap},
		{"near_tie_delta", c.NearTieDelta},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 || f.v > 1 {
			return fmt.Errorf("%w: %s = %v, want a value in [0,1]", internalerr.ErrInvalidConfig, f.name, f.v)
		}
	}
	if sum := c.Weights.Sum(); math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("%w: weights sum to %.6f, want 1.0", internalerr.ErrInvalidConfig, sum)
	}
	if c.Thresholds.Mapped < c.Thresholds.Review {
		return fmt.Errorf("%w: thresholds.mapped (%v) is below thresholds.review (%v)",
			internalerr.ErrInvalidConfig, c.Thresholds.Mapped, c.Thresholds.Review)
	}
	if c.MaxNearTies < 0 {
		return fmt.Errorf("%w: max_near_ties = %d, want >= 0", internalerr.ErrInvalidConfig, c.MaxNearTies)
	}
	if c.MinSamples < 1 {
		return fmt.Errorf("%w: min_samples = %d, want >= 1", internalerr.ErrInvalidConfig, c.MinSamples)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers = %d, want >= 0", internalerr.ErrInvalidConfig, c.Workers)
	}
	if c.TokenizerVersion == "" || c.RuleVersion == "" {
		return fmt.Errorf("%w: tokenizer_version and rule_version are required", internalerr.ErrInvalidConfig)
	}
	return nil
}

// Hash identifies the result-affecting configuration as 16 hex digits.
func (c MatchConfig) Hash() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		// MatchConfig holds only scalars; Marshal cannot fail.
		panic(fmt.Sprintf("config: encode for hash: %v", err))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// Load reads a match configuration. Values come from Default, then the
// YAML file at path (optional), then FOODCANON_* environment variables,
// including those from a .env file in the working directory.
func Load(path string) (MatchConfig, error) {
	if err := loadDotEnv(".env"); err != nil {
		return MatchConfig{}, err
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return MatchConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg MatchConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return MatchConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return MatchConfig{}, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper, d MatchConfig) {
	v.SetDefault("weights.overlap", d.Weights.Overlap)
	v.SetDefault("weights.similarity", d.Weights.Similarity)
	v.SetDefault("weights.segment", d.Weights.Segment)
	v.SetDefault("weights.affinity", d.Weights.Affinity)
	v.SetDefault("weights.synonym", d.Weights.Synonym)
	v.SetDefault("thresholds.mapped", d.Thresholds.Mapped)
	v.SetDefault("thresholds.review", d.Thresholds.Review)
	v.SetDefault("gate.min_overlap", d.Gate.MinOverlap)
	v.SetDefault("gate.cap", d.Gate.Cap)
	v.SetDefault("near_tie_delta", d.NearTieDelta)
	v.SetDefault("max_near_ties", d.MaxNearTies)
	v.SetDefault("min_samples", d.MinSamples)
	v.SetDefault("include_branded", d.IncludeBranded)
	v.SetDefault("keep_breakdowns", d.KeepBreakdowns)
	v.SetDefault("tokenizer_version", d.TokenizerVersion)
	v.SetDefault("rule_version", d.RuleVersion)
	v.SetDefault("workers", d.Workers)
}
