package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/model"
)

type GraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

type RegistryConfig struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisDB       int    `toml:"redis_db"`
	KeyPrefix     string `toml:"key_prefix"`
	RetentionDays int    `toml:"retention_days"`
}

type EventsConfig struct {
	RedisAddr string `toml:"redis_addr"`
	Channel   string `toml:"channel"`
}

// ResolutionConfig holds the two-stage candidate resolution knobs. The two
// merge thresholds are intentionally independent: the within-batch one must
// be at least as strict as the cross-batch one.
type ResolutionConfig struct {
	TopK                 int     `toml:"top_k"`
	MergeThreshold       float64 `toml:"merge_threshold"`
	WithinBatchThreshold float64 `toml:"within_batch_threshold"`
	TieEpsilon           float64 `toml:"tie_epsilon"`
	NewValueConfidence   float64 `toml:"new_value_confidence"`
	ExistingConfidence   float64 `toml:"existing_value_confidence"`
	LexicalFloor         float64 `toml:"lexical_floor"`
	RetrieveTimeoutMS    int     `toml:"retrieve_timeout_ms"`
}

// RetrieveTimeout is the per-candidate retrieval deadline.
func (r ResolutionConfig) RetrieveTimeout() time.Duration {
	return time.Duration(r.RetrieveTimeoutMS) * time.Millisecond
}

// ScoringConfig weights the scorer's sub-scores. Weights must sum to 1.
type ScoringConfig struct {
	SemanticWeight   float64 `toml:"semantic_weight"`
	StructuralWeight float64 `toml:"structural_weight"`
	ContextualWeight float64 `toml:"contextual_weight"`
}

type ValidationConfig struct {
	DifficultyMin float64  `toml:"difficulty_min"`
	DifficultyMax float64  `toml:"difficulty_max"`
	OrderingTypes []string `toml:"ordering_types"`
}

type PersistenceConfig struct {
	BatchSize int `toml:"batch_size"`
}

type ServerConfig struct {
	Port    string `toml:"port"`
	LogMode string `toml:"log_mode"`
}

type Config struct {
	Graph       GraphConfig       `toml:"graph"`
	Registry    RegistryConfig    `toml:"registry"`
	Events      EventsConfig      `toml:"events"`
	Resolution  ResolutionConfig  `toml:"resolution"`
	Scoring     ScoringConfig     `toml:"scoring"`
	Validation  ValidationConfig  `toml:"validation"`
	Persistence PersistenceConfig `toml:"persistence"`
	Server      ServerConfig      `toml:"server"`
}

// Default returns the configuration the pipeline runs with when no file is
// present. Every value here is a documented tuning knob.
func Default() *Config {
	return &Config{
		Graph: GraphConfig{
			URI:  "bolt://localhost:7687",
			User: "neo4j",
		},
		Registry: RegistryConfig{
			KeyPrefix:     "fingerprint",
			RetentionDays: 30,
		},
		Events: EventsConfig{
			Channel: "graph.batch.completed",
		},
		Resolution: ResolutionConfig{
			TopK:                 20,
			MergeThreshold:       0.85,
			WithinBatchThreshold: 0.90,
			TieEpsilon:           0.01,
			NewValueConfidence:   0.7,
			ExistingConfidence:   1.0,
			LexicalFloor:         0.85,
			RetrieveTimeoutMS:    2500,
		},
		Scoring: ScoringConfig{
			SemanticWeight:   0.6,
			StructuralWeight: 0.3,
			ContextualWeight: 0.1,
		},
		Validation: ValidationConfig{
			DifficultyMin: 1,
			DifficultyMax: 5,
			OrderingTypes: model.DefaultOrderingTypes(),
		},
		Persistence: PersistenceConfig{
			BatchSize: 100,
		},
		Server: ServerConfig{
			Port:    "8080",
			LogMode: "dev",
		},
	}
}

// Load reads a TOML config file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	cfg.fillDefaults()

	return cfg, nil
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.Resolution.TopK <= 0 {
		c.Resolution.TopK = d.Resolution.TopK
	}
	if c.Resolution.RetrieveTimeoutMS <= 0 {
		c.Resolution.RetrieveTimeoutMS = d.Resolution.RetrieveTimeoutMS
	}
	if c.Persistence.BatchSize <= 0 {
		c.Persistence.BatchSize = d.Persistence.BatchSize
	}
	if len(c.Validation.OrderingTypes) == 0 {
		c.Validation.OrderingTypes = model.DefaultOrderingTypes()
	}
	if c.Registry.RetentionDays <= 0 {
		c.Registry.RetentionDays = d.Registry.RetentionDays
	}
	if c.Registry.KeyPrefix == "" {
		c.Registry.KeyPrefix = d.Registry.KeyPrefix
	}
	if c.Events.Channel == "" {
		c.Events.Channel = d.Events.Channel
	}
	if c.Server.Port == "" {
		c.Server.Port = d.Server.Port
	}
}

// Validate checks internal consistency: scorer weights must sum to 1 and the
// thresholds must be ordered and in range.
func (c *Config) Validate() error {
	var errs []string

	sum := c.Scoring.SemanticWeight + c.Scoring.StructuralWeight + c.Scoring.ContextualWeight
	if c.Scoring.SemanticWeight < 0 || c.Scoring.StructuralWeight < 0 || c.Scoring.ContextualWeight < 0 {
		errs = append(errs, "scorer weights must be >= 0")
	}
	if math.Abs(sum-1.0) > 1e-6 {
		errs = append(errs, fmt.Sprintf("scorer weights must sum to 1, got %.4f", sum))
	}

	if c.Resolution.MergeThreshold <= 0 || c.Resolution.MergeThreshold > 1 {
		errs = append(errs, "merge_threshold must be in (0,1]")
	}
	if c.Resolution.WithinBatchThreshold < c.Resolution.MergeThreshold {
		errs = append(errs, "within_batch_threshold must be >= merge_threshold")
	}
	if c.Resolution.WithinBatchThreshold > 1 {
		errs = append(errs, "within_batch_threshold must be <= 1")
	}
	if c.Resolution.TieEpsilon < 0 {
		errs = append(errs, "tie_epsilon must be >= 0")
	}
	if c.Resolution.NewValueConfidence <= 0 || c.Resolution.NewValueConfidence > 1 {
		errs = append(errs, "new_value_confidence must be in (0,1]")
	}

	if c.Validation.DifficultyMin >= c.Validation.DifficultyMax {
		errs = append(errs, "difficulty_min must be < difficulty_max")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
