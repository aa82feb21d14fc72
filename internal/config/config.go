package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	Env            string
	ServiceName    string
	ServiceVersion string

	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string

	GraphQLEndpoint string
	AuthToken       string

	JWTSecret string
	JWTIssuer string

	OtelExporterOTLPEndpoint string
	OtelExporterOTLPHeaders  string

	Port string

	Cache CacheConfig
}

type CacheConfig struct {
	Store               string        `yaml:"store"`
	OperationTimeout    time.Duration `yaml:"operation_timeout"`
	Singleflight        bool          `yaml:"singleflight"`
	MemorySweepInterval time.Duration `yaml:"memory_sweep_interval"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:                      os.Getenv("ENV"),
		ServiceName:              os.Getenv("SERVICE_NAME"),
		ServiceVersion:           os.Getenv("SERVICE_VERSION"),
		RedisHost:                os.Getenv("REDIS_HOST"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		GraphQLEndpoint:          os.Getenv("GRAPHQL_ENDPOINT"),
		AuthToken:                os.Getenv("AUTH_TOKEN"),
		JWTSecret:                os.Getenv("JWT_SECRET"),
		JWTIssuer:                os.Getenv("JWT_ISSUER"),
		OtelExporterOTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelExporterOTLPHeaders:  os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		Port:                     os.Getenv("PORT"),
		Cache: CacheConfig{
			Store: os.Getenv("CACHE_STORE"),
		},
	}

	var err error
	if cfg.RedisPort, err = envInt("REDIS_PORT", 6379); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if v := os.Getenv("CACHE_OPERATION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CACHE_OPERATION_TIMEOUT: %w", err)
		}
		cfg.Cache.OperationTimeout = d
	}
	if v := os.Getenv("CACHE_SINGLEFLIGHT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("CACHE_SINGLEFLIGHT: %w", err)
		}
		cfg.Cache.Singleflight = b
	}

	// Load from YAML file if available
	if err := cfg.LoadFromYAML("config.yaml"); err != nil {
		return nil, fmt.Errorf("failed to load YAML config: %w", err)
	}

	// Set defaults
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "collabify-cachekit"
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "1.0.0"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.RedisHost == "" {
		cfg.RedisHost = "localhost"
	}
	if cfg.GraphQLEndpoint == "" {
		cfg.GraphQLEndpoint = "http://localhost:4000/graphql"
	}

	cfg.SetCacheDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// RedisAddr returns the host:port pair of the cache store.
func (c *Config) RedisAddr() string {
	return net.JoinHostPort(c.RedisHost, strconv.Itoa(c.RedisPort))
}

func (c *Config) LoadFromYAML(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is not an error
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlConfig struct {
		Cache CacheConfig `yaml:"cache"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlConfig.Cache.Store != "" {
		c.Cache.Store = yamlConfig.Cache.Store
	}
	if yamlConfig.Cache.OperationTimeout != 0 {
		c.Cache.OperationTimeout = yamlConfig.Cache.OperationTimeout
	}
	if yamlConfig.Cache.Singleflight {
		c.Cache.Singleflight = yamlConfig.Cache.Singleflight
	}
	if yamlConfig.Cache.MemorySweepInterval != 0 {
		c.Cache.MemorySweepInterval = yamlConfig.Cache.MemorySweepInterval
	}

	return nil
}

func (c *Config) SetCacheDefaults() {
	if c.Cache.Store == "" {
		c.Cache.Store = StoreRedis
	}
	if c.Cache.OperationTimeout == 0 {
		c.Cache.OperationTimeout = 250 * time.Millisecond
	}
	if c.Cache.MemorySweepInterval == 0 {
		c.Cache.MemorySweepInterval = time.Minute
	}
}

func (c *Config) validate() error {
	if c.RedisPort < 1 || c.RedisPort > 65535 {
		return fmt.Errorf("REDIS_PORT must be between 1 and 65535, got %d", c.RedisPort)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("REDIS_DB must not be negative, got %d", c.RedisDB)
	}
	if c.Cache.Store != StoreRedis && c.Cache.Store != StoreMemory {
		return fmt.Errorf("unknown cache store %q", c.Cache.Store)
	}
	if c.Cache.OperationTimeout <= 0 {
		return fmt.Errorf("cache operation timeout must be positive")
	}
	return nil
}

func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}
