package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/titanbuild/vistalink/internal/db"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	ListenAddr     string
	AdminToken     string
	MinSimilarity  float64
	MigrationsPath string
	AllowedOrigins []string
}

// DefaultServerConfig returns a default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:     ":8080",
		MinSimilarity:  0.5,
		MigrationsPath: "migrations",
		AllowedOrigins: []string{"http://localhost:5173"},
	}
}

// LoadDBConfig loads database settings from config.yaml with env overrides.
func LoadDBConfig(configPath string) (db.Config, error) {
	// Start with default
	cfg := db.DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()     // allow environment overrides
	v.SetEnvPrefix("DB") // map env vars like DB_HOST, DB_PORT

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	}

	// Override defaults if values exist
	if v.IsSet("database.host") {
		cfg.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.SSLMode = v.GetString("database.sslmode")
	}

	return cfg, nil
}

// LoadServerConfig loads server settings from config.yaml with env overrides.
func LoadServerConfig(configPath string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("SERVER") // SERVER_LISTEN_ADDR, SERVER_ADMIN_TOKEN, ...

	v.BindEnv("server.listen_addr")
	v.BindEnv("server.admin_token")
	v.BindEnv("server.min_similarity")
	v.BindEnv("server.migrations_path")
	v.BindEnv("server.allowed_origins")

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config.yaml found, using defaults and env vars")
	}

	if v.IsSet("server.listen_addr") {
		cfg.ListenAddr = v.GetString("server.listen_addr")
	}
	if v.IsSet("server.admin_token") {
		cfg.AdminToken = v.GetString("server.admin_token")
	}
	if v.IsSet("server.min_similarity") {
		cfg.MinSimilarity = v.GetFloat64("server.min_similarity")
	}
	if v.IsSet("server.migrations_path") {
		cfg.MigrationsPath = v.GetString("server.migrations_path")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}

	if cfg.MinSimilarity <= 0 || cfg.MinSimilarity > 1 {
		return cfg, fmt.Errorf("min_similarity must be in (0,1], got %v", cfg.MinSimilarity)
	}

	return cfg, nil
}
