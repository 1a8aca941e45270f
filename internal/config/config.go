package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName            string        `mapstructure:"app_name"`
	Env                string        `mapstructure:"app_env"`
	LogLevel           string        `mapstructure:"log_level"`
	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`

	TokenStore             string        `mapstructure:"token_store"`
	TokenStorePath         string        `mapstructure:"token_store_path"`
	TokenSession           string        `mapstructure:"token_session"`
	TokenTTLSeconds        int64         `mapstructure:"token_ttl_seconds"`
	TokenCleanupSeconds    int64         `mapstructure:"token_cleanup_interval_seconds"`
	TokenTTL               time.Duration `mapstructure:"-"`
	TokenCleanupInterval   time.Duration `mapstructure:"-"`
	GatewayAddr            string        `mapstructure:"gateway_addr"`
	SessionSecret          string        `mapstructure:"session_secret"`
	SessionName            string        `mapstructure:"session_name"`
	GatewayShutdownSeconds int64         `mapstructure:"gateway_shutdown_seconds"`

	FireEye  FireEyeConfig  `mapstructure:"-"`
	Nessus   NessusConfig   `mapstructure:"-"`
	VxStream VxStreamConfig `mapstructure:"-"`
}

// FireEyeConfig carries the FireEye appliance settings.
type FireEyeConfig struct {
	BaseURL  string
	Username string
	Secret   string
}

// NessusConfig carries the Nessus scanner settings.
type NessusConfig struct {
	BaseURL   string
	AccessKey string
	SecretKey string
}

// VxStreamConfig carries the VxStream sandbox settings.
type VxStreamConfig struct {
	BaseURL string
	APIKey  string
	Secret  string
}

// Enabled reports whether a base URL was configured; credentials are checked
// when the client is built.
func (c FireEyeConfig) Enabled() bool  { return strings.TrimSpace(c.BaseURL) != "" }
func (c NessusConfig) Enabled() bool   { return strings.TrimSpace(c.BaseURL) != "" }
func (c VxStreamConfig) Enabled() bool { return strings.TrimSpace(c.BaseURL) != "" }

var serviceKeys = []string{
	"rest_client_fireeye_base_url",
	"rest_client_fireeye_username",
	"rest_client_fireeye_api_secret",
	"rest_client_nessus_base_url",
	"rest_client_nessus_api_key",
	"rest_client_nessus_api_secret",
	"rest_client_vx_base_url",
	"rest_client_vx_api_key",
	"rest_client_vx_api_secret",
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("app_name", "tinyclients")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_timeout_seconds", 0)
	v.SetDefault("token_store", "memory")
	v.SetDefault("token_store_path", "./data/tokens.db")
	v.SetDefault("token_session", "default")
	v.SetDefault("token_ttl_seconds", int64((12*time.Hour)/time.Second))
	v.SetDefault("token_cleanup_interval_seconds", int64(time.Hour/time.Second))
	v.SetDefault("gateway_addr", ":8080")
	v.SetDefault("session_secret", "")
	v.SetDefault("session_name", "tinyclients")
	v.SetDefault("gateway_shutdown_seconds", 10)
	for _, key := range serviceKeys {
		v.SetDefault(key, "")
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.FireEye = FireEyeConfig{
		BaseURL:  v.GetString("rest_client_fireeye_base_url"),
		Username: v.GetString("rest_client_fireeye_username"),
		Secret:   v.GetString("rest_client_fireeye_api_secret"),
	}
	cfg.Nessus = NessusConfig{
		BaseURL:   v.GetString("rest_client_nessus_base_url"),
		AccessKey: v.GetString("rest_client_nessus_api_key"),
		SecretKey: v.GetString("rest_client_nessus_api_secret"),
	}
	cfg.VxStream = VxStreamConfig{
		BaseURL: v.GetString("rest_client_vx_base_url"),
		APIKey:  v.GetString("rest_client_vx_api_key"),
		Secret:  v.GetString("rest_client_vx_api_secret"),
	}

	// Zero disables the default request timeout.
	if cfg.HTTPTimeoutSeconds < 0 {
		return nil, fmt.Errorf("invalid http_timeout_seconds (must be zero or positive seconds)")
	}
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	if cfg.TokenTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid token_ttl_seconds (must be positive seconds)")
	}
	if cfg.TokenCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid token_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.TokenTTL = time.Duration(cfg.TokenTTLSeconds) * time.Second
	cfg.TokenCleanupInterval = time.Duration(cfg.TokenCleanupSeconds) * time.Second

	return &cfg, nil
}
