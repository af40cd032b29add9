package cluster

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"horse.fit/paperboy/internal/rank"
	"horse.fit/paperboy/internal/tagger"
)

//go:embed engine_default.yaml
var defaultConfigYAML []byte

// Config is the operator-tunable side of the engine: source precedence for
// title selection, the tag vocabulary, and the scoring table. Everything
// here is injected at construction so tests can run alternate tables.
type Config struct {
	// Precedence ranks sources for title selection; a higher rank's title
	// replaces a lower rank's on merge.
	Precedence map[string]int `yaml:"precedence"`
	Tags       tagger.Config  `yaml:"tags"`
	Score      rank.Config    `yaml:"score"`
}

// DefaultConfig returns the built-in tuning shipped with the binary.
func DefaultConfig() (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse built-in engine config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads the engine config from path, or the built-in default
// when path is empty.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read engine config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse engine config %s: %w", path, err)
	}
	return cfg, nil
}
