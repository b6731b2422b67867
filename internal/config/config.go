package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	RefineAPIKey string

	// Enhancement service
	DeepSeekAPIKey  string
	DeepSeekBaseURL string
	DeepSeekModel   string

	// Upload limits
	MaxFileSizeMB int64

	// Enhancement engine
	WorkerCount       int
	MaxRetries        int
	CallTimeout       time.Duration
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	RateLimitCooldown time.Duration

	// Chunking
	ChunkMaxChars int
	ChunkMinChars int

	// Job queue
	JobWorkers   int
	MaxQueueSize int
	JobTTL       time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		RefineAPIKey: os.Getenv("REFINE_API_KEY"),

		DeepSeekAPIKey:  os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekBaseURL: envOr("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		DeepSeekModel:   envOr("DEEPSEEK_MODEL", "deepseek-chat"),

		MaxFileSizeMB: envInt64("MAX_FILE_SIZE_MB", 50),

		WorkerCount:       envInt("WORKER_COUNT", 3),
		MaxRetries:        envInt("MAX_RETRIES", 3),
		CallTimeout:       envDuration("CALL_TIMEOUT", 30*time.Second),
		RetryBaseDelay:    envDuration("RETRY_BASE_DELAY", 2*time.Second),
		RetryMaxDelay:     envDuration("RETRY_MAX_DELAY", 30*time.Second),
		RateLimitCooldown: envDuration("RATE_LIMIT_COOLDOWN", 15*time.Second),

		ChunkMaxChars: envInt("CHUNK_MAX_CHARS", 1000),
		ChunkMinChars: envInt("CHUNK_MIN_CHARS", 200),

		JobWorkers:   envInt("JOB_WORKERS", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 50),
		JobTTL:       envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = 50
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 3
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 30 * time.Second
	}
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = 15 * time.Second
	}
	if cfg.ChunkMaxChars <= 0 {
		cfg.ChunkMaxChars = 1000
	}
	if cfg.ChunkMinChars <= 0 || cfg.ChunkMinChars > cfg.ChunkMaxChars {
		cfg.ChunkMinChars = cfg.ChunkMaxChars / 5
	}
	if cfg.JobWorkers <= 0 {
		cfg.JobWorkers = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.RefineAPIKey == "" {
		return fmt.Errorf("REFINE_API_KEY is required")
	}
	if c.DeepSeekAPIKey == "" {
		return fmt.Errorf("DEEPSEEK_API_KEY is required")
	}
	return nil
}

// MaxFileBytes converts the configured megabyte limit into bytes.
func (c Config) MaxFileBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
