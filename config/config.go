package config

import (
	"fmt"
	"math"

	"github.com/spf13/viper"

	"github.com/auenatural/pricelens/internal/domain"
)

// Config holds all configuration for the matching pipeline.
type Config struct {
	Matching  MatchingConfig  `mapstructure:"matching"`
	Recovery  RecoveryConfig  `mapstructure:"recovery"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Output    OutputConfig    `mapstructure:"output"`
	Normalize NormalizeConfig `mapstructure:"normalize"`
	Debug     bool            `mapstructure:"debug"`
}

// MatchingConfig holds the main-engine weights and thresholds. The observed
// defaults were hand-tuned on the pilot dataset; they are policy, not law.
type MatchingConfig struct {
	MinSimilarity      float64 `mapstructure:"min_similarity"`
	LowThreshold       float64 `mapstructure:"low_threshold"`
	MediumThreshold    float64 `mapstructure:"medium_threshold"`
	HighThreshold      float64 `mapstructure:"high_threshold"`
	LexicalWeight      float64 `mapstructure:"lexical_weight"`
	SemanticWeight     float64 `mapstructure:"semantic_weight"`
	LexicalRatioWeight float64 `mapstructure:"lexical_ratio_weight"` // blend inside the lexical signal
	SizeTolerance      float64 `mapstructure:"size_tolerance"`
	SizeExactEpsilon   float64 `mapstructure:"size_exact_epsilon"`
	BrandBonus         float64 `mapstructure:"brand_bonus"`
	BrandPenalty       float64 `mapstructure:"brand_penalty"`
	SubcategoryBonus   float64 `mapstructure:"subcategory_bonus"`
	SubcategoryPenalty float64 `mapstructure:"subcategory_penalty"`
	Workers            int     `mapstructure:"workers"`
}

// RecoveryConfig holds the relaxed thresholds for the recovery pass over
// unmatched products.
type RecoveryConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MinSimilarity    float64 `mapstructure:"min_similarity"`
	BrandBonus       float64 `mapstructure:"brand_bonus"`
	BrandPenalty     float64 `mapstructure:"brand_penalty"`
	SizeTolerance    float64 `mapstructure:"size_tolerance"`
	NearDupThreshold float64 `mapstructure:"near_dup_threshold"`
}

// EmbeddingConfig holds the sentence-embedding backend configuration.
type EmbeddingConfig struct {
	Endpoint       string  `mapstructure:"endpoint"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	BatchSize      int     `mapstructure:"batch_size"`
	RequestsPerSec float64 `mapstructure:"requests_per_sec"`
}

// CacheConfig holds the embedding cache store configuration.
type CacheConfig struct {
	Path string `mapstructure:"path"` // SQLite file; empty = in-memory only
}

// OutputConfig holds report output locations.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// NormalizeConfig holds the normalizer's domain lists.
type NormalizeConfig struct {
	KnownBrands   []string `mapstructure:"known_brands"`
	GenericTitles []string `mapstructure:"generic_titles"`
}

// Load loads configuration from config.yaml, PRICELENS_* environment
// variables, and defaults, then validates it. Validation failures are fatal
// before any scoring begins.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricelens/")

	v.SetEnvPrefix("PRICELENS")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; env vars and defaults apply.
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Main engine. Thresholds tuned on the pilot dataset alongside the
	// hybrid lexical/semantic blend.
	v.SetDefault("matching.min_similarity", 65.0)
	v.SetDefault("matching.low_threshold", 65.0)
	v.SetDefault("matching.medium_threshold", 75.0)
	v.SetDefault("matching.high_threshold", 88.0)
	v.SetDefault("matching.lexical_weight", 0.6)
	v.SetDefault("matching.semantic_weight", 0.4)
	v.SetDefault("matching.lexical_ratio_weight", 0.6)
	v.SetDefault("matching.size_tolerance", 0.20)
	v.SetDefault("matching.size_exact_epsilon", 0.05)
	v.SetDefault("matching.brand_bonus", 20.0)
	v.SetDefault("matching.brand_penalty", 25.0)
	v.SetDefault("matching.subcategory_bonus", 10.0)
	v.SetDefault("matching.subcategory_penalty", 15.0)
	v.SetDefault("matching.workers", 1)

	// Recovery pass is intentionally looser than the main engine.
	v.SetDefault("recovery.enabled", true)
	v.SetDefault("recovery.min_similarity", 60.0)
	v.SetDefault("recovery.brand_bonus", 25.0)
	v.SetDefault("recovery.brand_penalty", 15.0)
	v.SetDefault("recovery.size_tolerance", 0.10)
	v.SetDefault("recovery.near_dup_threshold", 95.0)

	v.SetDefault("embedding.endpoint", "https://api.openai.com/v1/embeddings")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.batch_size", 50)
	v.SetDefault("embedding.requests_per_sec", 2.0)

	v.SetDefault("cache.path", "data/processed/embeddings.sqlite")
	v.SetDefault("output.dir", "data/processed")

	v.SetDefault("normalize.known_brands", []string{
		"Garnier", "Friendly Soap", "Kitsch", "Faith in Nature",
		"Davines", "Soaphoria", "weDo", "Biovene", "Little Soap Company",
		"Eco Warrior", "LOOKFANTASTIC", "Justmylook", "Anihana", "Tree Hut",
		"The Earthling Co.", "Ethique", "Abhati Suisse",
	})
	v.SetDefault("normalize.generic_titles", []string{
		"shampoo bar", "shampoo bars", "conditioner bar", "conditioner bars",
		"hair shampoo bar", "shampoo soap bars", "body butter", "body butters",
		"face serum", "serum", "brightening serum", "whipped body butter",
		"body butter moisturiser",
	})
}

// Validate checks weights and thresholds. Every violation wraps
// domain.ErrInvalidConfig so callers can fail the run before scoring.
func Validate(config *Config) error {
	m := &config.Matching

	if math.Abs(m.LexicalWeight+m.SemanticWeight-1.0) > 1e-9 {
		return fmt.Errorf("%w: lexical_weight (%.3f) + semantic_weight (%.3f) must sum to 1",
			domain.ErrInvalidConfig, m.LexicalWeight, m.SemanticWeight)
	}
	for name, w := range map[string]float64{
		"lexical_weight":       m.LexicalWeight,
		"semantic_weight":      m.SemanticWeight,
		"lexical_ratio_weight": m.LexicalRatioWeight,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%w: %s must be in [0,1], got %.3f", domain.ErrInvalidConfig, name, w)
		}
	}
	for name, th := range map[string]float64{
		"min_similarity":   m.MinSimilarity,
		"low_threshold":    m.LowThreshold,
		"medium_threshold": m.MediumThreshold,
		"high_threshold":   m.HighThreshold,
	} {
		if th < 0 || th > 100 {
			return fmt.Errorf("%w: %s must be in [0,100], got %.1f", domain.ErrInvalidConfig, name, th)
		}
	}
	if !(m.MinSimilarity <= m.LowThreshold && m.LowThreshold < m.MediumThreshold && m.MediumThreshold < m.HighThreshold) {
		return fmt.Errorf("%w: thresholds must be ordered min <= low < medium < high (got %.1f/%.1f/%.1f/%.1f)",
			domain.ErrInvalidConfig, m.MinSimilarity, m.LowThreshold, m.MediumThreshold, m.HighThreshold)
	}
	if m.SizeTolerance <= 0 || m.SizeTolerance >= 1 {
		return fmt.Errorf("%w: size_tolerance must be in (0,1), got %.3f", domain.ErrInvalidConfig, m.SizeTolerance)
	}
	if m.SizeExactEpsilon <= 0 || m.SizeExactEpsilon >= m.SizeTolerance {
		return fmt.Errorf("%w: size_exact_epsilon must be in (0, size_tolerance), got %.3f", domain.ErrInvalidConfig, m.SizeExactEpsilon)
	}
	if m.Workers < 1 {
		m.Workers = 1
	}

	r := &config.Recovery
	if r.Enabled {
		if r.MinSimilarity < 0 || r.MinSimilarity > 100 {
			return fmt.Errorf("%w: recovery.min_similarity must be in [0,100], got %.1f", domain.ErrInvalidConfig, r.MinSimilarity)
		}
		if r.MinSimilarity > m.MinSimilarity {
			return fmt.Errorf("%w: recovery.min_similarity (%.1f) must not exceed matching.min_similarity (%.1f)",
				domain.ErrInvalidConfig, r.MinSimilarity, m.MinSimilarity)
		}
		if r.SizeTolerance <= 0 || r.SizeTolerance >= 1 {
			return fmt.Errorf("%w: recovery.size_tolerance must be in (0,1), got %.3f", domain.ErrInvalidConfig, r.SizeTolerance)
		}
	}

	if config.Embedding.BatchSize <= 0 {
		config.Embedding.BatchSize = 50
	}
	if config.Embedding.RequestsPerSec <= 0 {
		config.Embedding.RequestsPerSec = 2.0
	}

	return nil
}
