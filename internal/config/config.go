// FilePath: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Sensing  SensingConfig
	Notify   NotifyConfig
	Admin    AdminConfig
	Keycloak KeycloakConfig
	Redis    RedisConfig
	Webapp   WebappConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type StoreConfig struct {
	DBPath           string
	CanonicalMapPath string
}

type SensingConfig struct {
	SensorAPIKey  string
	SensorTimeout time.Duration
	CheckInterval time.Duration
	ThresholdUp   float64
	ThresholdDown float64
}

type NotifyConfig struct {
	RatePerSec  int
	Concurrency int
	MaxRetries  int
	DedupWindow time.Duration
}

type AdminConfig struct {
	AdminIDs            []string
	DeployFreezeMinutes time.Duration
	LeaseTTL            time.Duration
	MaxJobAttempts      int
}

type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
}

type RedisConfig struct {
	Addr string
}

type WebappConfig struct {
	SharedSecret string
}

// Load initializes configuration from environment variables, using
// un-prefixed key names (SENSOR_API_KEY, DB_PATH, ...). Unlike the original
// hive-server config this does not read a YAML file: every key the service
// recognizes is an env var.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v)

	cfg := &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            v.GetInt("api_port"),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			DBPath:           v.GetString("db_path"),
			CanonicalMapPath: v.GetString("canonical_map_path"),
		},
		Sensing: SensingConfig{
			SensorAPIKey:  v.GetString("sensor_api_key"),
			SensorTimeout: time.Duration(v.GetInt("sensor_timeout_sec")) * time.Second,
			CheckInterval: time.Duration(v.GetInt("check_interval_sec")) * time.Second,
			ThresholdUp:   0.5,
			ThresholdDown: 0.4,
		},
		Notify: NotifyConfig{
			RatePerSec:  v.GetInt("broadcast_rate_per_sec"),
			Concurrency: v.GetInt("broadcast_concurrency"),
			MaxRetries:  v.GetInt("broadcast_max_retries"),
			DedupWindow: 10 * time.Second,
		},
		Admin: AdminConfig{
			AdminIDs:            splitCSV(v.GetString("admin_ids")),
			DeployFreezeMinutes: time.Duration(v.GetInt("deploy_freeze_minutes")) * time.Minute,
			LeaseTTL:            time.Duration(v.GetInt("lease_ttl_sec")) * time.Second,
			MaxJobAttempts:      v.GetInt("max_job_attempts"),
		},
		Keycloak: KeycloakConfig{
			URL:          v.GetString("keycloak_url"),
			Realm:        v.GetString("keycloak_realm"),
			ClientID:     v.GetString("keycloak_client_id"),
			ClientSecret: v.GetString("keycloak_client_secret"),
		},
		Redis: RedisConfig{
			Addr: v.GetString("redis_addr"),
		},
		Webapp: WebappConfig{
			SharedSecret: v.GetString("webapp_shared_secret"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_port", 8081)
	v.SetDefault("sensor_timeout_sec", 150)
	v.SetDefault("check_interval_sec", 15)
	v.SetDefault("broadcast_rate_per_sec", 20)
	v.SetDefault("broadcast_concurrency", 8)
	v.SetDefault("broadcast_max_retries", 1)
	v.SetDefault("deploy_freeze_minutes", 20)
	v.SetDefault("lease_ttl_sec", 60)
	v.SetDefault("max_job_attempts", 5)
}

func bindEnv(v *viper.Viper) {
	keys := []string{
		"sensor_api_key", "api_port", "db_path", "canonical_map_path",
		"sensor_timeout_sec", "check_interval_sec",
		"broadcast_rate_per_sec", "broadcast_concurrency", "broadcast_max_retries",
		"admin_ids", "deploy_freeze_minutes",
		"keycloak_url", "keycloak_realm", "keycloak_client_id", "keycloak_client_secret",
		"redis_addr", "webapp_shared_secret",
		"lease_ttl_sec", "max_job_attempts",
	}
	for _, k := range keys {
		_ = v.BindEnv(k, strings.ToUpper(k))
	}
}

func validate(cfg *Config) error {
	if cfg.Sensing.SensorAPIKey == "" {
		return fmt.Errorf("SENSOR_API_KEY is required")
	}
	if cfg.Store.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	return nil
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsAdmin reports whether chatID is in the configured admin set.
func (c *Config) IsAdmin(chatID string) bool {
	for _, id := range c.Admin.AdminIDs {
		if id == chatID {
			return true
		}
	}
	return false
}
