package core

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tunables for the routing engine.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. YAML file, when loaded explicitly
//  3. Environment variables (highest priority)
//
// The factor weights are implementation parameters calibrated empirically;
// they are centralized here so deployments can re-tune them without code
// changes.
type Config struct {
	// Scoring factor weights. Must sum to ~1.0.
	ScoringWeights ScoringWeights `yaml:"scoring"`

	// ConfidenceFloor is the minimum normalized classification score a
	// category must reach; below it the request routes as "general".
	ConfidenceFloor float64 `yaml:"confidence_floor"`

	// SuccessThreshold is the minimum outcome score for a tier to count
	// as solved.
	SuccessThreshold float64 `yaml:"success_threshold"`

	// TierTimeout bounds each executor invocation within a tier.
	TierTimeout time.Duration `yaml:"-"`

	// MaxSecondaries caps the secondary executors in a routing plan.
	MaxSecondaries int `yaml:"max_secondaries"`

	// Learning parameters for the weight updater.
	LearningRate  float64 `yaml:"learning_rate"`
	WeightDecay   float64 `yaml:"weight_decay"`
	WeightFloor   float64 `yaml:"weight_floor"`
	WeightCeiling float64 `yaml:"weight_ceiling"`

	// DiscoveryLimit caps how many discovered candidates get ranked.
	DiscoveryLimit int `yaml:"discovery_limit"`

	// RedisURL enables Redis-backed registry and learned-state stores
	// when set; in-memory stores are used otherwise.
	RedisURL string `yaml:"redis_url"`

	// Namespace prefixes all Redis keys.
	Namespace string `yaml:"namespace"`

	// CatalogPath points at the static executor catalog file.
	CatalogPath string `yaml:"catalog_path"`
}

// ScoringWeights are the composite score's per-factor weights.
type ScoringWeights struct {
	Category float64 `yaml:"category"`
	Privacy  float64 `yaml:"privacy"`
	Cost     float64 `yaml:"cost"`
	Latency  float64 `yaml:"latency"`
	Learned  float64 `yaml:"learned"`
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() *Config {
	return &Config{
		ScoringWeights: ScoringWeights{
			Category: 0.35,
			Privacy:  0.25,
			Cost:     0.20,
			Latency:  0.10,
			Learned:  0.10,
		},
		ConfidenceFloor:  0.3,
		SuccessThreshold: 0.6,
		TierTimeout:      30 * time.Second,
		MaxSecondaries:   2,
		LearningRate:     0.1,
		WeightDecay:      0.95,
		WeightFloor:      0.1,
		WeightCeiling:    3.0,
		DiscoveryLimit:   10,
		Namespace:        "toolroute",
	}
}

// fileConfig mirrors Config for YAML decoding; durations travel as
// milliseconds in the file.
type fileConfig struct {
	Config        `yaml:",inline"`
	TierTimeoutMS int64 `yaml:"tier_timeout_ms"`
}

// LoadConfig reads a YAML config file over the defaults and then applies
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		fc := fileConfig{Config: *cfg}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, ErrInvalidConfiguration)
		}
		*cfg = fc.Config
		if fc.TierTimeoutMS > 0 {
			cfg.TierTimeout = time.Duration(fc.TierTimeoutMS) * time.Millisecond
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variables on top of the current
// values. TOOLROUTE_* variables win over generic ones.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TOOLROUTE_REDIS_URL"); v != "" {
		c.RedisURL = v
	} else if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("TOOLROUTE_NAMESPACE"); v != "" {
		c.Namespace = v
	}
	if v := os.Getenv("TOOLROUTE_CATALOG"); v != "" {
		c.CatalogPath = v
	}
	if v := os.Getenv("TOOLROUTE_TIER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.TierTimeout = d
		}
	}
	if v := os.Getenv("TOOLROUTE_SUCCESS_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.SuccessThreshold = f
		}
	}
	if v := os.Getenv("TOOLROUTE_LEARNING_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.LearningRate = f
		}
	}
}

// Validate checks invariants the engine depends on.
func (c *Config) Validate() error {
	if c.SuccessThreshold <= 0 || c.SuccessThreshold > 1 {
		return fmt.Errorf("success threshold %v out of (0,1]: %w", c.SuccessThreshold, ErrInvalidConfiguration)
	}
	if c.WeightFloor <= 0 || c.WeightFloor >= c.WeightCeiling {
		return fmt.Errorf("weight bounds [%v,%v] invalid: %w", c.WeightFloor, c.WeightCeiling, ErrInvalidConfiguration)
	}
	if c.WeightDecay <= 0 || c.WeightDecay >= 1 {
		return fmt.Errorf("weight decay %v out of (0,1): %w", c.WeightDecay, ErrInvalidConfiguration)
	}
	if c.TierTimeout <= 0 {
		return fmt.Errorf("tier timeout must be positive: %w", ErrInvalidConfiguration)
	}
	if c.MaxSecondaries < 0 || c.MaxSecondaries > 2 {
		return fmt.Errorf("max secondaries %d out of [0,2]: %w", c.MaxSecondaries, ErrInvalidConfiguration)
	}
	return nil
}

// CatalogFile is the YAML layout for the static executor catalog loaded
// at startup.
type CatalogFile struct {
	Executors []*ExecutorDescriptor `yaml:"executors"`
}

// LoadCatalog reads a static executor catalog from a YAML file. Entries
// without an explicit active flag load as active.
func LoadCatalog(path string) ([]*ExecutorDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	var file struct {
		Executors []*catalogEntry `yaml:"executors"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, ErrInvalidConfiguration)
	}
	out := make([]*ExecutorDescriptor, 0, len(file.Executors))
	for _, e := range file.Executors {
		d := e.ExecutorDescriptor
		if e.Active == nil {
			d.Active = true
		} else {
			d.Active = *e.Active
		}
		if d.ID == "" {
			return nil, fmt.Errorf("catalog entry missing id: %w", ErrInvalidConfiguration)
		}
		out = append(out, &d)
	}
	return out, nil
}

// catalogEntry wraps ExecutorDescriptor so an omitted active flag can
// default to true instead of false.
type catalogEntry struct {
	ExecutorDescriptor `yaml:",inline"`
	Active             *bool `yaml:"active"`
}
