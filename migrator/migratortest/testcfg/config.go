package testcfg

import "github.com/caarlos0/env/v11"

// Config holds the PostgreSQL server used to create test databases
type Config struct {
	User     string `env:"JORMPROBE_TEST_DB_USER" envDefault:"jormprobe"`
	Password string `env:"JORMPROBE_TEST_DB_PASSWORD" envDefault:"jormprobe"`
	Host     string `env:"JORMPROBE_TEST_DB_HOST" envDefault:"localhost"`
	Port     string `env:"JORMPROBE_TEST_DB_PORT" envDefault:"5432"`
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
