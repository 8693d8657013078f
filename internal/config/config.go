package config

import (
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Refine struct {
		MaxIterations         int     `env:"REFINE_MAX_ITERATIONS" envDefault:"20"`
		TargetScore           float64 `env:"REFINE_TARGET_SCORE" envDefault:"0.85"`
		PlateauThreshold      int     `env:"REFINE_PLATEAU_THRESHOLD" envDefault:"3"`
		MinImprovementPercent float64 `env:"REFINE_MIN_IMPROVEMENT_PCT" envDefault:"1"`
		MaxHistory            int     `env:"REFINE_MAX_HISTORY" envDefault:"50"`
	}
	RefStore struct {
		Dir       string `env:"REFSTORE_DIR" envDefault:"data/references"`
		CacheSize int    `env:"REFSTORE_CACHE_SIZE" envDefault:"64"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	// Ensure the reference image directory exists
	if cfg.RefStore.Dir != "" {
		if err := os.MkdirAll(cfg.RefStore.Dir, 0o755); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// GetEnv returns the value of the environment variable or the default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt returns the value of the environment variable as int or the default value
func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := GetEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// GetEnvAsBool returns the value of the environment variable as bool or the default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := GetEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
