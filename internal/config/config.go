package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvAPIKey       = "MAILCHIMP_API_KEY"
	EnvServerPrefix = "MAILCHIMP_SERVER_PREFIX"
	EnvListID       = "MAILCHIMP_LIST_ID"
)

// Config is built once at process start and never mutated afterwards.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Port           string
	GinMode        string
	LogLevel       string
	Mailchimp      MailchimpConfig
	HealthCheck    HealthCheckConfig
}

type MailchimpConfig struct {
	APIKey       string
	ServerPrefix string
	ListID       string
	BaseURL      string
	Timeout      time.Duration
}

// HealthCheckConfig controls how often the provider ping and list lookup run.
// A zero TTL verifies the provider on every request.
type HealthCheckConfig struct {
	TTL        time.Duration
	CacheStore string
}

// Endpoint returns the API root for the configured data center.
func (c MailchimpConfig) Endpoint() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("https://%s.api.mailchimp.com/3.0", c.ServerPrefix)
}

// MissingError lists every required variable that was absent.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return "missing required Mailchimp configuration: " + strings.Join(e.Keys, ", ")
}

// Load reads a best-effort .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, which has the signature of
// os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	var missing []string
	required := func(key string) string {
		v := get(key, "")
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := &Config{
		ServiceName:    get("SERVICE_NAME", "signup-gateway"),
		ServiceVersion: get("SERVICE_VERSION", "1.0.0"),
		Port:           get("PORT", "8080"),
		GinMode:        get("GIN_MODE", ""),
		LogLevel:       get("LOG_LEVEL", "info"),
		Mailchimp: MailchimpConfig{
			APIKey:       required(EnvAPIKey),
			ServerPrefix: strings.ToLower(required(EnvServerPrefix)),
			ListID:       required(EnvListID),
			BaseURL:      get("MAILCHIMP_BASE_URL", ""),
		},
		HealthCheck: HealthCheckConfig{
			CacheStore: get("HEALTH_CACHE_STORE", ""),
		},
	}

	if len(missing) > 0 {
		return nil, &MissingError{Keys: missing}
	}

	var err error
	if cfg.Mailchimp.Timeout, err = parseDuration(get("MAILCHIMP_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("MAILCHIMP_TIMEOUT: %w", err)
	}
	if cfg.HealthCheck.TTL, err = parseDuration(get("HEALTH_CHECK_TTL", "0s")); err != nil {
		return nil, fmt.Errorf("HEALTH_CHECK_TTL: %w", err)
	}

	return cfg, nil
}

func parseDuration(v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", v)
	}
	return d, nil
}
