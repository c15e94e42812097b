// Package config provides unified configuration for the datafrage server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (DATAFRAGE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the datafrage server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Generator GeneratorConfig `yaml:"generator"`
	Engine    EngineConfig    `yaml:"engine"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 1 MiB
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	AllowedOrigins  []string      `yaml:"allowed_origins"`  // default: ["*"]
}

// SessionConfig describes the analysis session inputs: the semantic
// layer artifact and the tabular dataset it annotates.
type SessionConfig struct {
	SemanticLayer string `yaml:"semantic_layer"` // path to the YAML artifact, required
	Dataset       string `yaml:"dataset"`        // path to the CSV dataset, required
}

// GeneratorConfig holds code generation backend settings.
type GeneratorConfig struct {
	BaseURL string        `yaml:"base_url"` // default: http://localhost:11434
	Model   string        `yaml:"model"`    // default: qwen2.5-coder:7b
	Timeout time.Duration `yaml:"timeout"`  // default: 60s
}

// EngineConfig holds query orchestration settings.
type EngineConfig struct {
	// RetryBudget is the number of regeneration attempts after the
	// first failure. Use -1 to disable retries entirely.
	RetryBudget int `yaml:"retry_budget"` // default: 2

	GenerationTimeout time.Duration `yaml:"generation_timeout"` // default: 60s
	ExecutionTimeout  time.Duration `yaml:"execution_timeout"`  // default: 5s
}

// StorageConfig holds result persistence settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type    string         `yaml:"type"`     // "none" or "apikey", default: "none"
	APIKeys []APIKeyConfig `yaml:"api_keys"` // API key entries for type=apikey
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key     string   `yaml:"key"`
	KeyFile string   `yaml:"key_file"` // _file variant for key
	Subject string   `yaml:"subject"`
	Scopes  []string `yaml:"scopes"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "trace", "debug", "info", "warn", "error", default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"

	// Debug lists comma-separated debug categories (e.g. "generator,sandbox"
	// or "all"). Empty disables category logging.
	Debug string `yaml:"debug"`
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			MaxBodySize:     1 << 20,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Generator: GeneratorConfig{
			BaseURL: "http://localhost:11434",
			Model:   "qwen2.5-coder:7b",
			Timeout: 60 * time.Second,
		},
		Engine: EngineConfig{
			RetryBudget:       2,
			GenerationTimeout: 60 * time.Second,
			ExecutionTimeout:  5 * time.Second,
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
