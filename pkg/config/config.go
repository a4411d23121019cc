package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	DB          DBConfig          `yaml:"db"`
	Request     RequestConfig     `yaml:"request"`
	SPARQL      SPARQLConfig      `yaml:"sparql"`
	Wikidata    WikidataConfig    `yaml:"wikidata"`
	Commons     CommonsConfig     `yaml:"commons"`
	Languages   LanguagesConfig   `yaml:"languages"`
	ImageCounts ImageCountsConfig `yaml:"image_counts"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// RequestConfig holds outbound HTTP settings.
type RequestConfig struct {
	Timeout  Duration `yaml:"timeout"`
	Retries  int      `yaml:"retries"`
	CacheTTL Duration `yaml:"cache_ttl"`
	// Minimum interval between requests to the same provider.
	ProviderInterval Duration `yaml:"provider_interval"`
	// Failure cooldown window per provider, doubling up to the cap.
	BackoffBase Duration `yaml:"backoff_base"`
	BackoffMax  Duration `yaml:"backoff_max"`
}

// SPARQLConfig holds query endpoint settings.
type SPARQLConfig struct {
	Endpoint     string `yaml:"endpoint"`
	DefaultLimit int    `yaml:"default_limit"`
}

// WikidataConfig holds action-API and write settings.
type WikidataConfig struct {
	APIEndpoint    string `yaml:"api_endpoint"`
	CollectionQID  string `yaml:"collection_qid"`
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
}

// CommonsConfig holds media repository settings.
type CommonsConfig struct {
	APIEndpoint    string `yaml:"api_endpoint"`
	PetscanURL     string `yaml:"petscan_url"`
	ViewItURL      string `yaml:"view_it_url"`
	CitoidURL      string `yaml:"citoid_url"`
	ThumbWidth     int    `yaml:"thumb_width"`
	UploadMaxBytes int64  `yaml:"upload_max_bytes"`
}

// LanguagesConfig holds the supported UI language set.
type LanguagesConfig struct {
	Supported []string `yaml:"supported"`
	Default   string   `yaml:"default"`
}

// ImageCountsConfig holds metric-cache settings.
type ImageCountsConfig struct {
	TTL     Duration `yaml:"ttl"`
	Workers int      `yaml:"workers"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: "127.0.0.1:8742"},
		Log:    LogConfig{Level: "INFO", Path: "logs/locexd.log"},
		DB:     DBConfig{Path: "data/locex.db"},
		Request: RequestConfig{
			Timeout:          Duration(15_000_000_000), // 15s
			Retries:          3,
			CacheTTL:         Duration(300_000_000_000), // 5m
			ProviderInterval: Duration(100_000_000),     // 100ms
			BackoffBase:      Duration(500_000_000),     // 500ms
			BackoffMax:       Duration(30_000_000_000),  // 30s
		},
		SPARQL: SPARQLConfig{
			Endpoint:     "https://query.wikidata.org/sparql",
			DefaultLimit: 500,
		},
		Wikidata: WikidataConfig{
			APIEndpoint:   "https://www.wikidata.org/w/api.php",
			CollectionQID: "Q138299296",
		},
		Commons: CommonsConfig{
			APIEndpoint:    "https://commons.wikimedia.org/w/api.php",
			PetscanURL:     "https://petscan.wmcloud.org/",
			ViewItURL:      "https://view-it.toolforge.org/api",
			CitoidURL:      "https://en.wikipedia.org/api/rest_v1/data/citation/mediawiki/",
			ThumbWidth:     320,
			UploadMaxBytes: 100 << 20,
		},
		Languages: LanguagesConfig{
			Supported: []string{"fi", "sv", "en"},
			Default:   "fi",
		},
		ImageCounts: ImageCountsConfig{
			TTL:     Duration(86_400_000_000_000), // 24h
			Workers: 4,
		},
	}
}

// Load reads the configuration from the given path, merging over defaults.
// A missing file is created with default values. OAuth consumer credentials
// fall back to the environment so secrets stay out of the YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	if cfg.Wikidata.ConsumerKey == "" {
		cfg.Wikidata.ConsumerKey = os.Getenv("MEDIAWIKI_CONSUMER_KEY")
	}
	if cfg.Wikidata.ConsumerSecret == "" {
		cfg.Wikidata.ConsumerSecret = os.Getenv("MEDIAWIKI_CONSUMER_SECRET")
	}

	return cfg, nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
