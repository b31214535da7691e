package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/dedup"
	"github.com/fwojciec/leadscout/discover"
	"github.com/fwojciec/leadscout/gemini"
	"github.com/fwojciec/leadscout/vet"
	"gopkg.in/yaml.v3"
)

// Config is the leadscout.yaml file. Zero fields take the values from
// defaults().
type Config struct {
	DB      string `yaml:"db"`
	DataDir string `yaml:"data"`

	// APIKey comes from GEMINI_API_KEY only.
	APIKey string `yaml:"-"`

	Industry string        `yaml:"industry"`
	Plan     discover.Plan `yaml:"plan"`

	Models    ModelConfig      `yaml:"models"`
	Discovery DiscoveryConfig  `yaml:"discovery"`
	Vet       VetConfig        `yaml:"vet"`
	Dedup     dedup.Thresholds `yaml:"dedup"`
	Crawl     CrawlConfig      `yaml:"crawl"`
	Extract   ExtractConfig    `yaml:"extract"`
	Serve     ServeConfig      `yaml:"serve"`
}

// ModelConfig names the Gemini models.
type ModelConfig struct {
	Chat      string `yaml:"chat"`
	Embedding string `yaml:"embedding"`
	// Tokenizer counts tokens for chunking. The local tokenizer lags behind
	// the hosted models.
	Tokenizer string `yaml:"tokenizer"`
	// Timeout bounds each model call; a timed out call is retried.
	Timeout time.Duration `yaml:"timeout"`
}

// DiscoveryConfig configures the search engine drivers.
type DiscoveryConfig struct {
	// Engines names the search engines to query: google, bing, brave,
	// duckduckgo.
	Engines []string `yaml:"engines"`
	// Browser renders result pages in headless Chrome instead of plain HTTP.
	Browser bool `yaml:"browser"`
	// Headful shows the browser window so challenges can be solved by hand.
	Headful     bool          `yaml:"headful"`
	Pages       int           `yaml:"pages"`
	Parallelism int           `yaml:"parallelism"`
	Interval    time.Duration `yaml:"interval"`
	Jitter      time.Duration `yaml:"jitter"`
	MaxResults  int           `yaml:"maxResults"`
	Blacklist   []string      `yaml:"blacklist"`
}

// VetConfig configures rule and model vetting.
type VetConfig struct {
	Keywords    []string       `yaml:"keywords"`
	Thresholds  vet.Thresholds `yaml:"thresholds"`
	Parallelism int            `yaml:"parallelism"`
	// ModelRPS paces classifier calls.
	ModelRPS float64 `yaml:"modelRps"`
}

// CrawlConfig bounds crawls.
type CrawlConfig struct {
	MaxPages    int           `yaml:"maxPages"`
	MaxDepth    int           `yaml:"maxDepth"`
	Concurrency int           `yaml:"concurrency"`
	Parallel    int           `yaml:"parallel"`
	Pool        int64         `yaml:"pool"`
	MinDelay    time.Duration `yaml:"minDelay"`
	MaxDelay    time.Duration `yaml:"maxDelay"`
	UserAgent   string        `yaml:"userAgent"`
}

// ExtractConfig configures catalog extraction.
type ExtractConfig struct {
	Parallelism int     `yaml:"parallelism"`
	ModelRPS    float64 `yaml:"modelRps"`
}

// ServeConfig configures the HTTP API.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

func defaults() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dir := filepath.Join(home, ".leadscout")
	return &Config{
		DB:      filepath.Join(dir, "leadscout.db"),
		DataDir: filepath.Join(dir, "data"),
		Models: ModelConfig{
			Chat:      gemini.DefaultModel,
			Embedding: gemini.DefaultEmbeddingModel,
			Tokenizer: gemini.DefaultModel,
			Timeout:   leadscout.DefaultModelTimeout,
		},
		Discovery: DiscoveryConfig{
			Engines:     []string{"duckduckgo", "bing"},
			Pages:       1,
			Parallelism: 2,
			Interval:    8 * time.Second,
			Jitter:      4 * time.Second,
			MaxResults:  200,
		},
		Vet: VetConfig{
			Thresholds:  vet.DefaultThresholds(),
			Parallelism: vet.DefaultParallelism,
			ModelRPS:    1,
		},
		Dedup: dedup.DefaultThresholds(),
		Crawl: CrawlConfig{
			MaxPages:    200,
			MaxDepth:    4,
			Concurrency: 4,
			Parallel:    4,
			Pool:        16,
			MinDelay:    time.Second,
			MaxDelay:    30 * time.Second,
		},
		Extract: ExtractConfig{
			Parallelism: 2,
			ModelRPS:    1,
		},
		Serve: ServeConfig{Addr: "127.0.0.1:8080"},
	}
}

// LoadConfig reads the config file at path over the defaults and applies
// environment overrides. A missing file is not an error unless the path was
// given explicitly.
func LoadConfig(path string, explicit bool, getenv func(string) string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, leadscout.Errorf(leadscout.EINVALID, "parse config %s: %v", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, leadscout.Errorf(leadscout.EINVALID, "read config: %v", err)
	}

	if v := getenv("GEMINI_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := getenv("LEADSCOUT_DB"); v != "" {
		cfg.DB = v
	}
	if v := getenv("LEADSCOUT_DATA"); v != "" {
		cfg.DataDir = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.DB == "" {
		return leadscout.Errorf(leadscout.EINVALID, "database path required")
	}
	if err := c.Vet.Thresholds.Merge(vet.DefaultThresholds()).Validate(); err != nil {
		return err
	}
	if err := c.Dedup.Validate(); err != nil {
		return err
	}
	if c.Crawl.MinDelay > c.Crawl.MaxDelay && c.Crawl.MaxDelay > 0 {
		return leadscout.Errorf(leadscout.EINVALID, "crawl minDelay exceeds maxDelay")
	}
	return nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "leadscout.yaml"
	}
	return filepath.Join(home, ".leadscout", "leadscout.yaml")
}
