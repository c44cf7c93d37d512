package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address string `yaml:"address"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		URL    string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Catalog struct {
		Path string `yaml:"path"`
	} `yaml:"catalog"`
	Billing struct {
		// "googleplay" or "simulator"
		Provider    string `yaml:"provider"`
		PackageName string `yaml:"package_name"`
	} `yaml:"billing"`
	RewardAds struct {
		Amount   int64 `yaml:"amount"`
		DedupTTL int   `yaml:"dedup_ttl_hours"`
	} `yaml:"reward_ads"`
	Sweeper struct {
		IntervalMinutes int `yaml:"interval_minutes"`
	} `yaml:"sweeper"`
}

// Load reads the YAML config. Secrets (JWT key, DB password, service account
// JSON, S3 keys) come from the environment, never from this file.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":4001"
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "config/catalog.yaml"
	}
	if cfg.Billing.Provider == "" {
		cfg.Billing.Provider = "simulator"
	}
	if cfg.RewardAds.Amount == 0 {
		cfg.RewardAds.Amount = 250
	}
	if cfg.RewardAds.DedupTTL == 0 {
		cfg.RewardAds.DedupTTL = 48
	}
	if cfg.Sweeper.IntervalMinutes == 0 {
		cfg.Sweeper.IntervalMinutes = 60
	}
	return cfg, nil
}
