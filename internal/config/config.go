package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	VK struct {
		APIBase      string
		Version      string
		GroupToken   string
		UserToken    string
		GroupID      int64
		Confirmation string
		Secret       string
	}

	HTTP struct {
		Addr    string
		Enabled bool
	}

	Search struct {
		Count int
	}
}

func New() *Config {
	// .env is optional; real deployments use plain env vars
	_ = godotenv.Load()

	cfg := &Config{}

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "vkinder_bot")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "vkinder")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	if dbStr := getEnvDefault("REDIS_DB", "0"); dbStr != "" {
		if dbInt, err := strconv.Atoi(dbStr); err == nil {
			cfg.Redis.DB = dbInt
		}
	}

	// VK API
	cfg.VK.APIBase = getEnvDefault("VK_API_BASE", "https://api.vk.com")
	cfg.VK.Version = getEnvDefault("VK_API_VERSION", "5.131")
	cfg.VK.GroupToken = os.Getenv("VK_GROUP_TOKEN")
	cfg.VK.UserToken = os.Getenv("VK_USER_TOKEN")
	if idStr := os.Getenv("VK_GROUP_ID"); idStr != "" {
		if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
			cfg.VK.GroupID = id
		}
	}
	cfg.VK.Confirmation = os.Getenv("VK_CALLBACK_CONFIRMATION")
	cfg.VK.Secret = os.Getenv("VK_CALLBACK_SECRET")

	// Ops / callback HTTP server
	cfg.HTTP.Addr = getEnvDefault("HTTP_ADDR", "127.0.0.1:8080")
	cfg.HTTP.Enabled = isTruthy(getEnvDefault("HTTP_ENABLED", "true"))

	// Candidate search
	cfg.Search.Count = 50
	if cStr := os.Getenv("SEARCH_COUNT"); cStr != "" {
		if c, err := strconv.Atoi(cStr); err == nil && c > 0 {
			cfg.Search.Count = c
		}
	}

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
