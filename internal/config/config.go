package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/packrat-dev/packrat/internal/graph"
	"github.com/packrat-dev/packrat/internal/pack"
)

const FileName = "config.yaml"

// Config is everything the core reads from configuration. Budgets are still
// caller-supplied per pack call; DefaultBudgetTokens only fills in when the
// caller passes nothing.
type Config struct {
	MaxDepth            int          `yaml:"max_depth"`
	BaseConfidence      float64      `yaml:"base_confidence"`
	Weights             pack.Weights `yaml:"weights"`
	MinPackSize         int          `yaml:"min_pack_size"`
	DefaultBudgetTokens int          `yaml:"default_budget_tokens"`
	Tokenizer           string       `yaml:"tokenizer"`
}

func Default() Config {
	return Config{
		MaxDepth:            5,
		BaseConfidence:      0.8,
		Weights:             pack.DefaultWeights(),
		MinPackSize:         256,
		DefaultBudgetTokens: 8192,
		Tokenizer:           "heuristic",
	}
}

// Load reads .packrat/config.yaml under root, falling back to defaults when
// the file is absent. A .env at the root is loaded first so config values
// can reference the environment the same way the rest of the toolchain does.
func Load(root string) (Config, error) {
	loadDotenv(root)

	cfg := Default()
	path := filepath.Join(root, graph.IndexDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if c.BaseConfidence <= 0 || c.BaseConfidence >= 1 {
		return fmt.Errorf("base_confidence must be in (0,1), got %g", c.BaseConfidence)
	}
	if c.MinPackSize < 0 {
		return fmt.Errorf("min_pack_size must not be negative, got %d", c.MinPackSize)
	}
	if c.DefaultBudgetTokens <= 0 {
		return fmt.Errorf("default_budget_tokens must be positive, got %d", c.DefaultBudgetTokens)
	}
	return nil
}

// loadDotenv mirrors the usual assistant-tooling convention: a .env in the
// project root wins over one in the working directory, and neither is
// required.
func loadDotenv(root string) {
	_ = godotenv.Load(filepath.Join(root, ".env"))
	_ = godotenv.Load()
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PACKRAT_TOKENIZER"); v != "" {
		cfg.Tokenizer = v
	}
	if v := os.Getenv("PACKRAT_BUDGET_TOKENS"); v != "" {
		if budget, err := strconv.Atoi(v); err == nil && budget > 0 {
			cfg.DefaultBudgetTokens = budget
		}
	}
	if v := os.Getenv("PACKRAT_MAX_DEPTH"); v != "" {
		if depth, err := strconv.Atoi(v); err == nil && depth > 0 {
			cfg.MaxDepth = depth
		}
	}
}
