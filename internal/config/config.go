package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/expomatch/expomatch/internal/domain/facet"
)

// Config holds the expomatch API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds HNSW index build settings.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// RetrievalConfig holds scoring and retry settings for the search engine.
type RetrievalConfig struct {
	BreadthWeight        float64 `yaml:"breadth_weight"`
	DepthWeight          float64 `yaml:"depth_weight"`
	RelaxedMinSimilarity float64 `yaml:"relaxed_min_similarity"`
	RawLimitFactor       int     `yaml:"raw_limit_factor"`
	LookupTimeoutMs      int     `yaml:"lookup_timeout_ms"`
}

// CatalogConfig holds the entity tables and facet catalog.
type CatalogConfig struct {
	Tables []string            `yaml:"tables"`
	Facets []string            `yaml:"facets"` // empty = built-in catalog
	Pairs  map[string][]string `yaml:"pairs"`  // empty = built-in pairings
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 32
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 400
	}
	if c.Retrieval.BreadthWeight <= 0 {
		c.Retrieval.BreadthWeight = 0.4
	}
	if c.Retrieval.DepthWeight <= 0 {
		c.Retrieval.DepthWeight = 0.6
	}
	if c.Retrieval.RelaxedMinSimilarity <= 0 {
		c.Retrieval.RelaxedMinSimilarity = 0.15
	}
	if c.Retrieval.RawLimitFactor <= 1 {
		c.Retrieval.RawLimitFactor = 2
	}
	if c.Retrieval.LookupTimeoutMs <= 0 {
		c.Retrieval.LookupTimeoutMs = 2000
	}
	if len(c.Catalog.Tables) == 0 {
		c.Catalog.Tables = []string{"exhibitors", "sessions", "speakers", "attendees"}
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	if c.Retrieval.BreadthWeight+c.Retrieval.DepthWeight > 1.0001 {
		return fmt.Errorf("retrieval weights must sum to at most 1, got %g + %g",
			c.Retrieval.BreadthWeight, c.Retrieval.DepthWeight)
	}
	if c.Retrieval.RelaxedMinSimilarity >= 1 {
		return fmt.Errorf("retrieval.relaxed_min_similarity must be below 1, got %g",
			c.Retrieval.RelaxedMinSimilarity)
	}
	if _, _, err := c.FacetCatalog(); err != nil {
		return err
	}
	return nil
}

// FacetCatalog builds the configured facet catalog and pairing table,
// falling back to the built-in defaults when unset.
func (c *Config) FacetCatalog() (facet.Catalog, facet.PairingTable, error) {
	catalog := facet.DefaultCatalog()
	if len(c.Catalog.Facets) > 0 {
		types := make([]facet.Type, len(c.Catalog.Facets))
		for i, f := range c.Catalog.Facets {
			types[i] = facet.Type(f)
		}
		var err error
		catalog, err = facet.NewCatalog(types)
		if err != nil {
			return facet.Catalog{}, facet.PairingTable{}, fmt.Errorf("catalog.facets: %w", err)
		}
	}

	if len(c.Catalog.Pairs) == 0 {
		if len(c.Catalog.Facets) > 0 {
			// Custom catalog without pairs: everything self-matches.
			pt, err := facet.NewPairingTable(catalog, nil)
			if err != nil {
				return facet.Catalog{}, facet.PairingTable{}, fmt.Errorf("catalog.pairs: %w", err)
			}
			return catalog, pt, nil
		}
		return catalog, facet.DefaultPairingTable(catalog), nil
	}

	pairs := make(map[facet.Type][]facet.Type, len(c.Catalog.Pairs))
	for from, targets := range c.Catalog.Pairs {
		list := make([]facet.Type, len(targets))
		for i, to := range targets {
			list[i] = facet.Type(to)
		}
		pairs[facet.Type(from)] = list
	}
	pt, err := facet.NewPairingTable(catalog, pairs)
	if err != nil {
		return facet.Catalog{}, facet.PairingTable{}, fmt.Errorf("catalog.pairs: %w", err)
	}
	return catalog, pt, nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
