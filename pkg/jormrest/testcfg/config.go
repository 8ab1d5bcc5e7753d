package testcfg

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds settings for client acceptance tests against a running node
type Config struct {
	NodeAddress         string        `env:"JORMPROBE_TEST_NODE_ADDRESS" envDefault:"http://127.0.0.1:8443/api"`
	HTTPTimeout         time.Duration `env:"JORMPROBE_TEST_HTTP_TIMEOUT" envDefault:"30s"`
	RewardHistoryLength uint32        `env:"JORMPROBE_TEST_REWARD_HISTORY_LENGTH" envDefault:"3"`
}

// parseConfig wraps env.Parse to return (Config, error) for use with env.Must
func parseConfig() (Config, error) {
	var cfg Config
	err := env.Parse(&cfg)
	return cfg, err
}

// New loads test configuration from environment variables
func New() Config {
	return env.Must(parseConfig())
}
