package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "BLOCKSWEEP_"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	Bluesky    BlueskyConfig    `koanf:"bluesky"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Scan       ScanConfig       `koanf:"scan"`
	Audit      AuditConfig      `koanf:"audit"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type LogConfig struct {
	Level       string `koanf:"level"`
	Format      string `koanf:"format"`
	BufferBytes int    `koanf:"buffer_bytes"`
}

type BlueskyConfig struct {
	BaseURL           string  `koanf:"base_url"`
	Identifier        string  `koanf:"identifier"`
	AppPassword       string  `koanf:"app_password"`
	BlocklistURI      string  `koanf:"blocklist_uri"`
	BlocklistLink     string  `koanf:"blocklist_link"`
	SearchLimit       int     `koanf:"search_limit"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

type ClassifierConfig struct {
	BaseURL     string  `koanf:"base_url"`
	APIKey      string  `koanf:"api_key"`
	Model       string  `koanf:"model"`
	VisionModel string  `koanf:"vision_model"`
	Temperature float64 `koanf:"temperature"`
	TimeoutSecs int     `koanf:"timeout_secs"`
}

// Timeout returns the per-call generation timeout.
func (c ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

type ScanConfig struct {
	Keywords []string `koanf:"keywords"`
}

type AuditConfig struct {
	BufferSize      int `koanf:"buffer_size"`
	BatchSize       int `koanf:"batch_size"`
	FlushIntervalMs int `koanf:"flush_interval_ms"`
	RecentSize      int `koanf:"recent_size"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// HasCredentials reports whether both login fields are set.
func (c BlueskyConfig) HasCredentials() bool {
	return c.Identifier != "" && c.AppPassword != ""
}

// Public is the subset of the configuration safe to return to clients.
type Public struct {
	Keywords      []string `json:"keywords"`
	Identifier    string   `json:"identifier"`
	BlocklistURI  string   `json:"blocklistUri"`
	BlocklistLink string   `json:"blocklistLink,omitempty"`
	Model         string   `json:"model"`
	VisionModel   string   `json:"visionModel"`
}

// Public returns the redacted view of cfg. The app password and API key are
// never included.
func (c *Config) Public() Public {
	keywords := c.Scan.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return Public{
		Keywords:      keywords,
		Identifier:    c.Bluesky.Identifier,
		BlocklistURI:  c.Bluesky.BlocklistURI,
		BlocklistLink: c.Bluesky.BlocklistLink,
		Model:         c.Classifier.Model,
		VisionModel:   c.Classifier.VisionModel,
	}
}

func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	_ = k.Load(confmap.Provider(map[string]any{
		"server.port":                 8080,
		"server.host":                 "0.0.0.0",
		"log.level":                   "info",
		"log.format":                  "json",
		"log.buffer_bytes":            256 << 10,
		"bluesky.base_url":            "https://bsky.social/xrpc",
		"bluesky.search_limit":        100,
		"bluesky.requests_per_second": 5.0,
		"classifier.base_url":         "http://localhost:11434/v1",
		"classifier.api_key":          "ollama",
		"classifier.model":            "llama3.2-vision",
		"classifier.temperature":      0.0,
		"classifier.timeout_secs":     20,
		"audit.buffer_size":           1024,
		"audit.batch_size":            64,
		"audit.flush_interval_ms":     500,
		"audit.recent_size":           500,
		"metrics.enabled":             true,
	}, "."), nil)

	// YAML file (optional)
	for _, path := range configPaths {
		if path == "" {
			continue
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Environment variables override everything.
	// BLOCKSWEEP_BLUESKY_APP_PASSWORD -> bluesky.app_password
	// BLOCKSWEEP_SCAN_KEYWORDS=a,b    -> scan.keywords [a b]
	_ = k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		key = strings.Replace(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "_", ".", 1)
		if key == "scan.keywords" {
			return key, splitList(value)
		}
		return key, value
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if cfg.Classifier.VisionModel == "" {
		cfg.Classifier.VisionModel = cfg.Classifier.Model
	}

	return &cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
