package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the optional overrides file looked up in the
// working directory.
const DefaultConfigFile = "cubby.yaml"

type fileOverrides struct {
	View struct {
		FailurePolicy string `yaml:"failure_policy"`
	} `yaml:"view"`
	Retry struct {
		MaxAttempts int `yaml:"max_attempts"`
	} `yaml:"retry"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Redis struct {
		Addr string `yaml:"addr"`
		DB   int    `yaml:"db"`
	} `yaml:"redis"`
}

// applyFileOverrides layers cubby.yaml over the env-derived config.
// A missing file is normal; a malformed one is ignored rather than
// taking the server down over a tuning knob.
func applyFileOverrides(cfg *Config) {
	data, err := os.ReadFile(DefaultConfigFile)
	if err != nil {
		return
	}

	var overrides fileOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return
	}

	if overrides.View.FailurePolicy != "" {
		cfg.ViewFailurePolicy = overrides.View.FailurePolicy
	}
	if overrides.Retry.MaxAttempts > 0 {
		cfg.RetryMaxAttempts = overrides.Retry.MaxAttempts
	}
	if len(overrides.Kafka.Brokers) > 0 {
		cfg.KafkaBrokers = overrides.Kafka.Brokers
	}
	if overrides.Kafka.Topic != "" {
		cfg.KafkaTopic = overrides.Kafka.Topic
	}
	if overrides.Redis.Addr != "" {
		cfg.RedisAddr = overrides.Redis.Addr
	}
	if overrides.Redis.DB != 0 {
		cfg.RedisDB = overrides.Redis.DB
	}
}
