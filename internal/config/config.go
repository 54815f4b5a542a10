// Package config loads engine configuration from flags, environment
// variables, and an optional config file, in that priority order. A .env
// file in the working directory seeds the environment for local runs.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/toriidata/filermap/pkg/constants"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/reconcile"
)

// Config is the engine's full runtime configuration.
type Config struct {
	// Repository
	RepositoryRoot string `mapstructure:"repository_root"`

	// Sources
	DisclosureBaseURL string `mapstructure:"disclosure_base_url"`
	DisclosureAPIKey  string `mapstructure:"disclosure_api_key"`
	VenueBaseURL      string `mapstructure:"venue_base_url"`
	VenueAPIKey       string `mapstructure:"venue_api_key"`
	BridgeBaseURL     string `mapstructure:"bridge_base_url"`

	// Reconciliation
	ExemptSegments    []string `mapstructure:"exempt_segments"`
	DiscoveryWindow   int      `mapstructure:"discovery_window_days"`
	AuditSampleSize   int      `mapstructure:"audit_sample_size"`
	DeltaMaxAgeHours  int      `mapstructure:"delta_max_age_hours"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second"`
	MergerOwner       string   `mapstructure:"merger_owner"`
}

// Load builds the configuration. Env vars use the FILERMAP_ prefix; an
// optional YAML config file is read when path is non-empty.
func Load(path string) (*Config, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("FILERMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("repository_root", "./data")
	v.SetDefault("disclosure_base_url", "https://api.edinet-fsa.go.jp/api/v2")
	v.SetDefault("venue_base_url", "https://api.jquants.com/v1")
	v.SetDefault("bridge_base_url", "https://disclosure.edinet-fsa.go.jp")
	v.SetDefault("exempt_segments", reconcile.DefaultExemptSegments)
	v.SetDefault("discovery_window_days", constants.DiscoveryWindowDays)
	v.SetDefault("audit_sample_size", 200)
	v.SetDefault("delta_max_age_hours", 24)
	v.SetDefault("requests_per_second", float64(constants.SourceRequestsPerSecond))
	v.SetDefault("merger_owner", hostnameOwner())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapIO("read", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapParse("yaml", "configuration", err)
	}
	return &cfg, nil
}

// GetString reads a key from the environment, FILERMAP_ prefixed or bare.
func GetString(key string) string {
	if value := os.Getenv("FILERMAP_" + key); value != "" {
		return value
	}
	return os.Getenv(key)
}

func hostnameOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "filermap"
	}
	return host
}
