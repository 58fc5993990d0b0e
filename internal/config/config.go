// Package config loads the latentscope settings from defaults, an optional
// YAML or JSON file and LATENTSCOPE_* environment variables, in that order.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no file is given and it exists in the working
// directory.
const DefaultFile = "latentscope.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LATENTSCOPE_"

// Config holds everything the commands need to build an explorer.
type Config struct {
	Model      string        `mapstructure:"model"`
	Embeddings string        `mapstructure:"embeddings"`
	Grid       Grid          `mapstructure:"grid"`
	Initial    Latent        `mapstructure:"initial"`
	Clamp      bool          `mapstructure:"clamp"`
	Bounds     domain.Bounds `mapstructure:"bounds"`
	Listen     string        `mapstructure:"listen"`
	Metrics    bool          `mapstructure:"metrics"`
	CacheSize  int           `mapstructure:"cache_size"`
	Redis      Redis         `mapstructure:"redis"`
	LogLevel   string        `mapstructure:"log_level"`
}

// Grid is the decoder output grid.
type Grid struct {
	Rows int `mapstructure:"rows"`
	Cols int `mapstructure:"cols"`
}

// Latent is the coordinate decoded when the model becomes ready.
type Latent struct {
	X float64 `mapstructure:"x"`
	Y float64 `mapstructure:"y"`
}

// Redis enables the shared frame cache when Addr is set.
type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Shape returns the grid as a domain shape.
func (c *Config) Shape() domain.Shape {
	return domain.Shape{Rows: c.Grid.Rows, Cols: c.Grid.Cols}
}

// InitialLatent returns the initial coordinate as a latent vector.
func (c *Config) InitialLatent() domain.LatentVector {
	return domain.LatentVector{X: c.Initial.X, Y: c.Initial.Y}
}

// SlogLevel maps LogLevel to a slog level. Unknown names fall back to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Validate reports the first setting that cannot produce a working explorer.
func (c *Config) Validate() error {
	if c.Model == "" {
		return errors.New("model path is required")
	}
	if !c.Shape().Valid() {
		return fmt.Errorf("invalid grid %dx%d", c.Grid.Rows, c.Grid.Cols)
	}
	if c.Clamp && !c.Bounds.Valid() {
		return fmt.Errorf("invalid clamp bounds %+v", c.Bounds)
	}
	if c.Redis.TTL < 0 {
		return fmt.Errorf("redis ttl must not be negative: %s", c.Redis.TTL)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return nil
}

func defaults() map[string]any {
	return map[string]any{
		"model":      "",
		"embeddings": "",
		"grid":       map[string]any{"rows": domain.DefaultShape.Rows, "cols": domain.DefaultShape.Cols},
		"initial":    map[string]any{"x": domain.DefaultLatent.X, "y": domain.DefaultLatent.Y},
		"clamp":      false,
		"bounds":     map[string]any{"min_x": -4.0, "max_x": 4.0, "min_y": -4.0, "max_y": 4.0},
		"listen":     ":8080",
		"metrics":    true,
		"cache_size": 1024,
		"redis": map[string]any{
			"addr":     "",
			"password": "",
			"db":       0,
			"prefix":   "latentscope:frame:",
			"ttl":      "0s",
		},
		"log_level": "info",
	}
}

// envKeys lists the dotted keys that can be overridden from the
// environment: redis.addr is LATENTSCOPE_REDIS_ADDR.
var envKeys = []string{
	"model", "embeddings",
	"grid.rows", "grid.cols",
	"initial.x", "initial.y",
	"clamp", "bounds.min_x", "bounds.max_x", "bounds.min_y", "bounds.max_y",
	"listen", "metrics", "cache_size",
	"redis.addr", "redis.password", "redis.db", "redis.prefix", "redis.ttl",
	"log_level",
}

// EnvName is the environment variable overriding a dotted key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load builds the configuration. An empty path reads DefaultFile when it
// exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	settings := defaults()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, err
		}
		merge(settings, file)
	}

	for _, key := range envKeys {
		if v, ok := os.LookupEnv(EnvName(key)); ok {
			set(settings, strings.Split(key, "."), v)
		}
	}

	return decode(settings)
}

func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	out := map[string]any{}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return out, nil
}

func decode(settings map[string]any) (*Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(settings); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// merge copies src into dst, descending into nested maps.
func merge(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				merge(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
}

func set(settings map[string]any, path []string, v string) {
	m := settings
	for _, k := range path[:len(path)-1] {
		sub, ok := m[k].(map[string]any)
		if !ok {
			sub = map[string]any{}
			m[k] = sub
		}
		m = sub
	}
	m[path[len(path)-1]] = v
}
