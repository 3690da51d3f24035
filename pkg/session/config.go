package session

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flownetio/flownet/pkg/graph"
	"github.com/flownetio/flownet/pkg/validation"
)

// Duration is a time.Duration that unmarshals from YAML strings like "150ms"
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(n)
	return nil
}

// Config configures a session. Zero values fall back to DefaultConfig
// settings where a default exists; NetworkDir is the only required field.
type Config struct {
	// NetworkDir is the directory holding the node TOML files and config.toml
	NetworkDir string `yaml:"network_dir"`

	// DataDir holds the durable collection journals. Empty means in-memory
	// collections only; the TOML directory is then the sole persistence.
	DataDir string `yaml:"data_dir"`

	// SchemaFile is an optional YAML block type catalog for aggregation
	SchemaFile string `yaml:"schema_file"`

	// DeletePolicy is "orphan" or "cascade"
	DeletePolicy string `yaml:"delete_policy"`

	// Watch enables the directory watcher
	Watch bool `yaml:"watch"`

	// WatchDebounce is the settle window for external file changes
	WatchDebounce Duration `yaml:"watch_debounce"`

	// LogLevel is debug, info, warn or error
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the default session configuration
func DefaultConfig() Config {
	return Config{
		DeletePolicy:  "orphan",
		WatchDebounce: Duration(150 * time.Millisecond),
		LogLevel:      "info",
	}
}

// LoadConfig reads a YAML config file over the defaults
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration
func (c Config) Validate() error {
	cv := validation.NewConfigValidator("SessionConfig")
	cv.Required("NetworkDir", c.NetworkDir).
		OneOf("DeletePolicy", c.DeletePolicy, "orphan", "cascade").
		OneOf("LogLevel", c.LogLevel, "debug", "info", "warn", "error")
	if c.Watch {
		cv.MinDuration("WatchDebounce", time.Duration(c.WatchDebounce), 10*time.Millisecond)
	}
	return cv.Error()
}

func (c Config) deletePolicy() graph.DeletePolicy {
	if c.DeletePolicy == "cascade" {
		return graph.CascadeChildren
	}
	return graph.OrphanChildren
}
