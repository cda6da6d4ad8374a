package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App       App      `yaml:"app"`
	Server    Server   `yaml:"server"`
	Database  DB       `yaml:"database"`
	Cache     Cache    `yaml:"cache"`
	Auth      Auth     `yaml:"auth"`
	RateLimit Limit    `yaml:"rate_limit"`
	Resolver  Resolver `yaml:"resolver"`
}

type App struct {
	Name    string `yaml:"name"`
	Mode    string `yaml:"mode"`
	Version string `yaml:"version"`
	// BaseURL is the externally visible base used to build short links.
	// It is injected here, never computed from the request.
	BaseURL string `yaml:"base_url"`
}

type Server struct {
	Port         int `yaml:"port"`
	ReadTimeout  int `yaml:"read_timeout"`
	WriteTimeout int `yaml:"write_timeout"`
}

type DB struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
}

type Cache struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Auth struct {
	Secret          string `yaml:"secret"`
	Issuer          string `yaml:"issuer"`
	ExpirationHours int    `yaml:"expiration_hours"`
}

type Limit struct {
	Enabled   bool     `yaml:"enabled"`
	Requests  int64    `yaml:"requests_per_minute"`
	Burst     int64    `yaml:"burst"`
	SkipPaths []string `yaml:"skip_paths"`
}

// Resolver bounds the network work done while following redirect chains.
type Resolver struct {
	TimeoutSeconds    int `yaml:"timeout_seconds"`
	JITTimeoutSeconds int `yaml:"jit_timeout_seconds"`
}

// Load reads the YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Resolver.TimeoutSeconds == 0 {
		cfg.Resolver.TimeoutSeconds = 8
	}
	if cfg.Resolver.JITTimeoutSeconds == 0 {
		cfg.Resolver.JITTimeoutSeconds = 4
	}

	return &cfg, nil
}
