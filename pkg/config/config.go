package config

import (
	"fmt"
	"time"
)

// Config is the process-wide configuration for the task gateway.
type Config struct {
	Server   ServerConfig   `koanf:"server"   validate:"required"`
	Database DatabaseConfig `koanf:"database" validate:"required"`
	Content  ContentConfig  `koanf:"content"  validate:"required"`
	Provider ProviderConfig `koanf:"provider"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"    validate:"required"`
	Port    int           `koanf:"port"    validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig contains Postgres connection settings. Prefer ConnString;
// when empty a DSN is synthesized from the individual fields.
type DatabaseConfig struct {
	ConnString  string `koanf:"conn_string"`
	Host        string `koanf:"host"`
	Port        string `koanf:"port"`
	User        string `koanf:"user"`
	Password    string `koanf:"password"`
	DBName      string `koanf:"name"`
	SSLMode     string `koanf:"ssl_mode"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// DSN returns the connection string for the database.
func (d *DatabaseConfig) DSN() string {
	if d.ConnString != "" {
		return d.ConnString
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// ContentConfig locates the authored content tree that task definitions and
// markdown context files are read from.
type ContentConfig struct {
	Root string `koanf:"root" validate:"required"`
}

// ProviderConfig holds the system fallback provider. Requests resolve to
// this key only when neither team nor personal credentials apply.
type ProviderConfig struct {
	Name    string `koanf:"name"`
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

// AuthConfig points at the external identity provider used to validate
// bearer tokens.
type AuthConfig struct {
	BaseURL string `koanf:"base_url" validate:"required"`
	APIKey  string `koanf:"api_key"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// Default returns the baseline configuration before env overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    5480,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			DBName:  "taskgate",
			SSLMode: "disable",
		},
		Content: ContentConfig{
			Root: "./content",
		},
		Provider: ProviderConfig{
			Name:    "gemini",
			Model:   "gemini-1.5-pro-latest",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		},
		Auth: AuthConfig{
			BaseURL: "http://localhost:9999",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
