package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration. Values are resolved in order:
// built-in defaults, optional YAML file, environment variables. CLI flags
// are applied last by the command layer.
type Config struct {
	Network     string `yaml:"network"`
	Concurrency int    `yaml:"concurrency"`

	TimeoutSeconds int `yaml:"timeout_seconds"`

	Alchemy struct {
		APIKey         string  `yaml:"api_key"`
		MaxConcurrency int     `yaml:"max_concurrency"`
		RPS            float64 `yaml:"rps"`
		MaxRetries     int     `yaml:"max_retries"`
	} `yaml:"alchemy"`

	Pricing struct {
		Enabled          bool     `yaml:"enabled"`
		CoinMarketCapKey string   `yaml:"coinmarketcap_key"`
		Providers        []string `yaml:"providers"`
		CacheTTLSeconds  int      `yaml:"cache_ttl_seconds"`
	} `yaml:"pricing"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

func Default() *Config {
	c := &Config{
		Network:        "eth-mainnet",
		Concurrency:    10,
		TimeoutSeconds: 30,
	}
	c.Alchemy.MaxConcurrency = 10
	c.Alchemy.RPS = 20
	c.Alchemy.MaxRetries = 5
	c.Pricing.Enabled = true
	c.Pricing.Providers = []string{"coinmarketcap", "coingecko"}
	c.Pricing.CacheTTLSeconds = 86400
	return c
}

// Load reads the optional YAML config at path and applies environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	c.applyEnv()
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ALCHEMY_API_KEY"); v != "" {
		c.Alchemy.APIKey = v
	}
	if v := os.Getenv("COINMARKETCAP_API_KEY"); v != "" {
		c.Pricing.CoinMarketCapKey = v
	}
	if v := os.Getenv("ENABLE_PRICE_SERVICE"); v != "" {
		c.Pricing.Enabled = parseBool(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "no", "off":
		return false
	}
	return true
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *Config) PriceCacheTTL() time.Duration {
	return time.Duration(c.Pricing.CacheTTLSeconds) * time.Second
}

// Validate checks settings that must be present before any per-wallet
// work starts.
func (c *Config) Validate() error {
	if c.Alchemy.APIKey == "" {
		return fmt.Errorf("alchemy API key must be provided via --alchemy-key, config file, or ALCHEMY_API_KEY")
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
