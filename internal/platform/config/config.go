package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Webhooks WebhooksConfig `mapstructure:"webhooks"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type WebhooksConfig struct {
	// Source identifies this instance in outbound payloads. Empty falls back
	// to the UDL_INSTANCE_ID env var, then "UDL".
	Source       string              `mapstructure:"source"`
	MaxBodyBytes int64               `mapstructure:"max_body_bytes"`
	DebounceMs   int                 `mapstructure:"debounce_ms"`
	Plugins      []PluginConfig      `mapstructure:"plugins"`
	Destinations []DestinationConfig `mapstructure:"destinations"`
}

// PluginConfig registers a default CRUD handler for a plugin at startup.
type PluginConfig struct {
	Name    string `mapstructure:"name"`
	Path    string `mapstructure:"path"`
	IDField string `mapstructure:"id_field"`
	// NodeTypes lists the node types this plugin writes. Each gets an index
	// on IDField so identity resolution stays off the scan fallback.
	NodeTypes []string `mapstructure:"node_types"`
	Verifier  string   `mapstructure:"verifier"` // "hmac", "jwt" or empty (trusted)
	Secret    string   `mapstructure:"secret"`
	// Header carrying the HMAC signature. Defaults to X-Webhook-Signature.
	SignatureHeader string `mapstructure:"signature_header"`
}

type DestinationConfig struct {
	URL          string            `mapstructure:"url"`
	Method       string            `mapstructure:"method"`
	Headers      map[string]string `mapstructure:"headers"`
	Retries      *int              `mapstructure:"retries"`
	RetryDelayMs int               `mapstructure:"retry_delay_ms"`
	Condition    string            `mapstructure:"condition"`
}

type AdminConfig struct {
	// bcrypt hash of the admin API key. Empty disables the admin endpoints.
	APIKeyHash string `mapstructure:"api_key_hash"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.path", "data/udl.db")
	viper.SetDefault("webhooks.max_body_bytes", 1<<20)
	viper.SetDefault("webhooks.debounce_ms", 5000)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
