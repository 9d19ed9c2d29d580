// Package config reads the publisher's settings from the environment,
// after loading .env files with godotenv.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // the publishing window is computed in a fixed civil timezone

	"github.com/extraviadosmx/fbpublisher/internal/mpp"
	"github.com/extraviadosmx/fbpublisher/internal/xpost"
	"github.com/extraviadosmx/fbpublisher/internal/xpost/facebook"
	"github.com/joho/godotenv"
)

const (
	EnvFile        = "ENV_FILE"
	EnvPageID      = "FB_PAGE_ID"
	EnvAccessToken = "FB_PAGE_ACCESS_TOKEN"
	EnvRegistryURL = "FBPUBLISHER_REGISTRY_URL"
	EnvGraphURL    = "FBPUBLISHER_GRAPH_URL"
	EnvTimezone    = "FBPUBLISHER_TIMEZONE"

	DefaultTimezone = "America/Mexico_City"
)

// Config holds the process configuration.
type Config struct {
	PageID      string
	AccessToken string
	RegistryURL string
	GraphURL    string
	Location    *time.Location
}

// LoadEnvFiles loads ENV_FILE when set, otherwise .env.local and .env.
// Variables already present in the environment win; missing files are ignored.
func LoadEnvFiles() error {
	if envFile := os.Getenv(EnvFile); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		return nil
	}
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the configuration from the environment. FB_PAGE_ID and
// FB_PAGE_ACCESS_TOKEN are required.
func Load() (Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		PageID:      strings.TrimSpace(os.Getenv(EnvPageID)),
		AccessToken: strings.TrimSpace(os.Getenv(EnvAccessToken)),
		RegistryURL: envOr(EnvRegistryURL, mpp.DefaultSiteURL),
		GraphURL:    envOr(EnvGraphURL, facebook.DefaultGraphURL),
	}

	var missing []string
	if cfg.PageID == "" {
		missing = append(missing, EnvPageID)
	}
	if cfg.AccessToken == "" {
		missing = append(missing, EnvAccessToken)
	}
	if len(missing) > 0 {
		return Config{}, xpost.MissingEnvError{Provider: "facebook", Variables: missing}
	}

	tz := envOr(EnvTimezone, DefaultTimezone)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, xpost.ValidationError{Provider: "config", Reason: fmt.Sprintf("unknown timezone %q", tz)}
	}
	cfg.Location = loc

	return cfg, nil
}

func envOr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}
