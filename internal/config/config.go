// Package config provides structures and utilities for managing the
// FormBench application configuration.
package config

// EmbeddedConfig holds the content of the configuration file, typically
// passed from main.go via go:embed.
type EmbeddedConfig []byte

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g. "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g. "UTC").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// CORSConfig holds cross-origin settings for the HTTP server.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Address is the listen address (e.g. ":8080").
	Address string `yaml:"address"`
	// ReadTimeoutSeconds bounds request reads.
	ReadTimeoutSeconds int `yaml:"read_timeout_seconds"`
	// WriteTimeoutSeconds bounds response writes.
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`
	// CORS configures cross-origin access for the API.
	CORS CORSConfig `yaml:"cors"`
}

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds settings for the application database.
// Type "memory" selects the in-memory repositories; "postgres", "mysql"
// and "sqlite" select the GORM repositories with the matching dialector.
type DatabaseConfig struct {
	Type    string     `yaml:"type" mapstructure:"type"`
	DSN     string     `yaml:"dsn" mapstructure:"dsn"`
	Migrate bool       `yaml:"migrate" mapstructure:"migrate"`
	Pool    PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// StorageConfig holds settings for the object store used for form images,
// batch documents and exports. Type is "local" or "gcs".
type StorageConfig struct {
	Type            string `yaml:"type" mapstructure:"type"`
	BaseDir         string `yaml:"base_dir" mapstructure:"base_dir"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
}

// EnginesConfig lists the layout detectors and OCR engines to register at
// startup. Entries are raw maps decoded per engine type with mapstructure,
// since the option set differs between local and sidecar adapters.
type EnginesConfig struct {
	Layout []map[string]interface{} `yaml:"layout"`
	OCR    []map[string]interface{} `yaml:"ocr"`
}

// EngineConfig is the decoded form of a single engines entry.
type EngineConfig struct {
	// Name is the library name used in test run requests (e.g. "easyocr").
	Name string `yaml:"name" mapstructure:"name"`
	// Type selects the adapter implementation: "tesseract", "vision" or "remote".
	Type string `yaml:"type" mapstructure:"type"`
	// Endpoint is the sidecar base URL for remote adapters.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Languages restricts recognition languages where the adapter supports it.
	Languages []string `yaml:"languages" mapstructure:"languages"`
	// CredentialsFile points at a service account key for cloud adapters.
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	// TimeoutSeconds bounds a single adapter call.
	TimeoutSeconds int `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// OTLPConfig holds the OTLP exporter settings. An empty endpoint disables
// the exporter pipelines.
type OTLPConfig struct {
	Endpoint string `yaml:"endpoint"`
	// Protocol is "grpc" or "http".
	Protocol string `yaml:"protocol"`
	Insecure bool   `yaml:"insecure"`
}

// ObservabilityConfig holds tracing and metrics export settings.
type ObservabilityConfig struct {
	ServiceName string     `yaml:"service_name"`
	OTLP        OTLPConfig `yaml:"otlp"`
}

// FormbenchConfig holds all configuration under the "formbench" top-level key.
type FormbenchConfig struct {
	System        SystemConfig        `yaml:"system"`
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Storage       StorageConfig       `yaml:"storage"`
	Engines       EnginesConfig       `yaml:"engines"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Formbench FormbenchConfig `yaml:"formbench"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new Config populated with default values.
func NewConfig() *Config {
	return &Config{
		Formbench: FormbenchConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Server: ServerConfig{
				Address:             ":8080",
				ReadTimeoutSeconds:  30,
				WriteTimeoutSeconds: 60,
				CORS:                CORSConfig{AllowedOrigins: []string{"*"}},
			},
			Database: DatabaseConfig{
				Type:    "sqlite",
				DSN:     "formbench.db",
				Migrate: true,
				Pool: PoolConfig{
					MaxOpenConns:           10,
					MaxIdleConns:           5,
					ConnMaxLifetimeMinutes: 30,
				},
			},
			Storage: StorageConfig{
				Type:    "local",
				BaseDir: "./data",
				Bucket:  "formbench",
			},
			Observability: ObservabilityConfig{
				ServiceName: "formbench",
				OTLP:        OTLPConfig{Protocol: "grpc", Insecure: true},
			},
		},
	}
}
