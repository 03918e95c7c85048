package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Search     Search     `yaml:"search"`
	Embedding  Embedding  `yaml:"embedding"`
	Generation Generation `yaml:"generation"`
	Pipeline   Pipeline   `yaml:"pipeline"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

type Search struct {
	Providers         []string      `yaml:"providers"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	MaxResults        int           `yaml:"max_results"`
	Window            time.Duration `yaml:"window"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Feeds             []Feed        `yaml:"feeds"`
	Cache             Cache         `yaml:"cache"`
	Enrich            Enrich        `yaml:"enrich"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Cache struct {
	Enabled     bool          `yaml:"enabled"`
	RedisURLEnv string        `yaml:"redis_url_env"`
	TTL         time.Duration `yaml:"ttl"`
}

type Enrich struct {
	Enabled          bool          `yaml:"enabled"`
	MinContentLength int           `yaml:"min_content_length"`
	Timeout          time.Duration `yaml:"timeout"`
}

type Embedding struct {
	Provider          string        `yaml:"provider"`
	Model             string        `yaml:"model"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	OllamaURL         string        `yaml:"ollama_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

type Generation struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	OllamaURL string        `yaml:"ollama_url"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Pipeline struct {
	Concurrency   int           `yaml:"concurrency"`
	TripleTimeout time.Duration `yaml:"triple_timeout"`
	Schedule      string        `yaml:"schedule"`
	BriefOnManual bool          `yaml:"brief_on_manual"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConfigDir returns the XDG config directory for newsjacker.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "newsjacker")
}

// DataDir returns the XDG data directory for newsjacker.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "newsjacker")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/newsjacker/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'newsjacker init' to create a default config",
		xdgConfig,
	)
}

// Load reads, parses and validates a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Search: Search{
			Providers:         []string{"tavily"},
			APIKeyEnv:         "TAVILY_API_KEY",
			MaxResults:        3,
			Window:            24 * time.Hour,
			Timeout:           30 * time.Second,
			RequestsPerMinute: 60,
			Cache: Cache{
				RedisURLEnv: "REDIS_URL",
				TTL:         30 * time.Minute,
			},
			Enrich: Enrich{
				MinContentLength: 280,
				Timeout:          15 * time.Second,
			},
		},
		Embedding: Embedding{
			Provider:          "openai",
			Model:             "text-embedding-ada-002",
			APIKeyEnv:         "OPENAI_API_KEY",
			OllamaURL:         "http://localhost:11434",
			Timeout:           30 * time.Second,
			RequestsPerMinute: 500,
		},
		Generation: Generation{
			Provider:  "gemini",
			Model:     "gemini-2.0-flash",
			APIKeyEnv: "GEMINI_API_KEY",
			OllamaURL: "http://localhost:11434",
			MaxTokens: 8192,
			Timeout:   60 * time.Second,
		},
		Pipeline: Pipeline{
			Concurrency:   1,
			TripleTimeout: 2 * time.Minute,
			Schedule:      "@every 1h",
			BriefOnManual: true,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

var (
	searchProviders     = []string{"tavily", "rss"}
	embeddingProviders  = []string{"openai", "ollama"}
	generationProviders = []string{"gemini", "openai", "anthropic", "ollama"}
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Search.Providers) == 0 {
		errs = append(errs, errors.New("search.providers must not be empty"))
	}
	for _, p := range c.Search.Providers {
		if !oneOf(p, searchProviders) {
			errs = append(errs, fmt.Errorf("search.providers: unknown provider %q", p))
		}
	}
	if c.Search.MaxResults <= 0 {
		errs = append(errs, errors.New("search.max_results must be positive"))
	}
	if c.Search.Window <= 0 {
		errs = append(errs, errors.New("search.window must be positive"))
	}
	if c.Search.Timeout <= 0 {
		errs = append(errs, errors.New("search.timeout must be positive"))
	}
	if !oneOf(c.Embedding.Provider, embeddingProviders) {
		errs = append(errs, fmt.Errorf("embedding.provider: unknown provider %q", c.Embedding.Provider))
	}
	if c.Embedding.Timeout <= 0 {
		errs = append(errs, errors.New("embedding.timeout must be positive"))
	}
	if !oneOf(c.Generation.Provider, generationProviders) {
		errs = append(errs, fmt.Errorf("generation.provider: unknown provider %q", c.Generation.Provider))
	}
	if c.Generation.MaxTokens <= 0 {
		errs = append(errs, errors.New("generation.max_tokens must be positive"))
	}
	if c.Pipeline.Concurrency <= 0 {
		errs = append(errs, errors.New("pipeline.concurrency must be positive"))
	}
	if c.Pipeline.TripleTimeout <= 0 {
		errs = append(errs, errors.New("pipeline.triple_timeout must be positive"))
	}

	return errors.Join(errs...)
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath returns the SQLite database path inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "newsjacker.db")
}

func oneOf(v string, allowed []string) bool {
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
