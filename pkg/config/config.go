package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Redis
	RedisURL string `mapstructure:"REDIS_URL"`

	// CORS
	CorsOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Optimization
	MaxTeamCount        int           `mapstructure:"MAX_TEAM_COUNT"`
	MaxPlayers          int           `mapstructure:"MAX_PLAYERS"`
	ResultCacheTTL      time.Duration `mapstructure:"RESULT_CACHE_TTL"`
	EnabledSolvers      []string      `mapstructure:"ENABLED_SOLVERS"`
	BalanceThreshold    float64       `mapstructure:"BALANCE_THRESHOLD"`
	OptimizationTimeout int           `mapstructure:"OPTIMIZATION_TIMEOUT"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	// Set defaults
	viper.SetDefault("PORT", "8082")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	viper.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("MAX_TEAM_COUNT", 16)
	viper.SetDefault("MAX_PLAYERS", 500)
	viper.SetDefault("RESULT_CACHE_TTL", "1h")
	viper.SetDefault("ENABLED_SOLVERS", "genetic,tabu,annealing,antcolony,constraint")
	viper.SetDefault("BALANCE_THRESHOLD", 100.0)
	viper.SetDefault("OPTIMIZATION_TIMEOUT", 30)

	// Read from environment
	viper.AutomaticEnv()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Parse CORS origins from comma-separated string
	if corsStr := viper.GetString("CORS_ORIGINS"); corsStr != "" {
		config.CorsOrigins = strings.Split(corsStr, ",")
	}

	// Parse enabled solvers from comma-separated string
	if solversStr := viper.GetString("ENABLED_SOLVERS"); solversStr != "" {
		config.EnabledSolvers = strings.Split(solversStr, ",")
	}

	return &config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
