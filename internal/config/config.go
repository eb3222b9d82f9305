package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	History   HistoryConfig
	Jobs      JobsConfig
	Generator GeneratorConfig
	Suno      SunoConfig
	R2        R2Config
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled         bool
	GeneratePerHour int
}

type HistoryConfig struct {
	Backend      string // file, sqlite, postgres, mysql or redis
	Path         string // file backend
	DSN          string // sql backends
	Namespace    string
	SeedDefaults bool
}

type JobsConfig struct {
	Dispatcher  string // local or asynq
	Records     string // memory or redis
	Concurrency int
	Timeout     time.Duration
	RecordTTL   time.Duration
}

type GeneratorConfig struct {
	Backend  string // simulated or suno
	Interval time.Duration
	Step     int
	AudioURL string
}

type SunoConfig struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	MaxWait      time.Duration
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// NeedsRedis reports whether any configured component talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.History.Backend == "redis" ||
		c.Jobs.Dispatcher == "asynq" ||
		c.Jobs.Records == "redis" ||
		c.RateLimit.Enabled
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("HISTORY_DSN")
	readSecret("SUNO_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables
	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("ratelimit.enabled", "RATELIMIT_ENABLED")
	_ = v.BindEnv("ratelimit.generate_per_hour", "RATELIMIT_GENERATE_PER_HOUR")
	_ = v.BindEnv("history.backend", "HISTORY_BACKEND")
	_ = v.BindEnv("history.path", "HISTORY_PATH")
	_ = v.BindEnv("history.dsn", "HISTORY_DSN")
	_ = v.BindEnv("history.namespace", "HISTORY_NAMESPACE")
	_ = v.BindEnv("history.seed_defaults", "HISTORY_SEED_DEFAULTS")
	_ = v.BindEnv("jobs.dispatcher", "JOBS_DISPATCHER")
	_ = v.BindEnv("jobs.records", "JOBS_RECORDS")
	_ = v.BindEnv("jobs.concurrency", "JOBS_CONCURRENCY")
	_ = v.BindEnv("jobs.timeout", "JOBS_TIMEOUT")
	_ = v.BindEnv("jobs.record_ttl", "JOBS_RECORD_TTL")
	_ = v.BindEnv("generator.backend", "GENERATOR_BACKEND")
	_ = v.BindEnv("generator.interval", "GENERATOR_INTERVAL")
	_ = v.BindEnv("generator.step", "GENERATOR_STEP")
	_ = v.BindEnv("generator.audio_url", "GENERATOR_AUDIO_URL")
	_ = v.BindEnv("suno.api_key", "SUNO_API_KEY")
	_ = v.BindEnv("suno.base_url", "SUNO_BASE_URL")
	_ = v.BindEnv("suno.poll_interval", "SUNO_POLL_INTERVAL")
	_ = v.BindEnv("suno.max_wait", "SUNO_MAX_WAIT")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.generate_per_hour", 30)

	// History defaults
	v.SetDefault("history.backend", "file")
	v.SetDefault("history.path", "./data/history.json")
	v.SetDefault("history.dsn", "")
	v.SetDefault("history.namespace", "generatedMusic")
	v.SetDefault("history.seed_defaults", false)

	// Job defaults
	v.SetDefault("jobs.dispatcher", "local")
	v.SetDefault("jobs.records", "memory")
	v.SetDefault("jobs.concurrency", 1)
	v.SetDefault("jobs.timeout", "10m")
	v.SetDefault("jobs.record_ttl", "24h")

	// Generator defaults
	v.SetDefault("generator.backend", "simulated")
	v.SetDefault("generator.interval", "300ms")
	v.SetDefault("generator.step", 10)
	v.SetDefault("generator.audio_url", "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-4.mp3")

	// Suno defaults
	v.SetDefault("suno.base_url", "https://api.sunoapi.org")
	v.SetDefault("suno.poll_interval", "5s")
	v.SetDefault("suno.max_wait", "10m")

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("server.port"),
			Env:      v.GetString("server.env"),
			LogLevel: v.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			Enabled:         v.GetBool("ratelimit.enabled"),
			GeneratePerHour: v.GetInt("ratelimit.generate_per_hour"),
		},
		History: HistoryConfig{
			Backend:      v.GetString("history.backend"),
			Path:         v.GetString("history.path"),
			DSN:          v.GetString("history.dsn"),
			Namespace:    v.GetString("history.namespace"),
			SeedDefaults: v.GetBool("history.seed_defaults"),
		},
		Jobs: JobsConfig{
			Dispatcher:  v.GetString("jobs.dispatcher"),
			Records:     v.GetString("jobs.records"),
			Concurrency: v.GetInt("jobs.concurrency"),
			Timeout:     v.GetDuration("jobs.timeout"),
			RecordTTL:   v.GetDuration("jobs.record_ttl"),
		},
		Generator: GeneratorConfig{
			Backend:  v.GetString("generator.backend"),
			Interval: v.GetDuration("generator.interval"),
			Step:     v.GetInt("generator.step"),
			AudioURL: v.GetString("generator.audio_url"),
		},
		Suno: SunoConfig{
			APIKey:       v.GetString("suno.api_key"),
			BaseURL:      v.GetString("suno.base_url"),
			PollInterval: v.GetDuration("suno.poll_interval"),
			MaxWait:      v.GetDuration("suno.max_wait"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
	}

	if cfg.Jobs.Concurrency < 1 {
		cfg.Jobs.Concurrency = 1
	}

	return cfg, nil
}
