package properties

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultBaseURL  = "https://sh.dataspace.copernicus.eu"
	DefaultTokenURL = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
	DefaultRootPath = "data"
)

// Config holds everything read from the environment. It is built once by Load
// and handed to whoever needs it.
type Config struct {
	InstanceID   string
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
	RootPath     string

	DiscordErrorNotificationURL   string
	DiscordSuccessNotificationURL string
}

// Load reads the given .env files (missing ones are skipped) and overlays the
// process environment on top of them.
func Load(envFiles ...string) (*Config, error) {
	var existing []string
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}

	values := map[string]string{}
	if len(existing) > 0 {
		var err error
		values, err = godotenv.Read(existing...)
		if err != nil {
			return nil, fmt.Errorf("failed to read env files %v: %w", existing, err)
		}
	}

	get := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := os.LookupEnv(k); ok && v != "" {
				return v
			}
			if v := values[k]; v != "" {
				return v
			}
		}
		return ""
	}
	orDefault := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}

	return &Config{
		InstanceID:   get("INSTANCE_ID"),
		ClientID:     get("SH_CLIENT_ID", "COPERNICUS_CLIENT_ID"),
		ClientSecret: get("SH_CLIENT_SECRET", "COPERNICUS_CLIENT_SECRET"),
		TokenURL:     orDefault(get("SH_TOKEN_URL", "COPERNICUS_TOKEN_URL"), DefaultTokenURL),
		BaseURL:      strings.TrimSuffix(orDefault(get("SH_BASE_URL"), DefaultBaseURL), "/"),
		RootPath:     orDefault(get("ROOT_PATH"), DefaultRootPath),

		DiscordErrorNotificationURL:   get("DISCORD_ERROR_NOTIFICATION_URL"),
		DiscordSuccessNotificationURL: get("DISCORD_SUCCESS_NOTIFICATION_URL"),
	}, nil
}

// Validate reports the credentials needed to talk to Sentinel Hub.
func (c *Config) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "SH_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "SH_CLIENT_SECRET")
	}
	if c.TokenURL == "" {
		missing = append(missing, "SH_TOKEN_URL")
	}
	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}
	return nil
}

func redact(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{instance_id=%s client_id=%s client_secret=%s token_url=%s base_url=%s root_path=%s}",
		redact(c.InstanceID), redact(c.ClientID), redact(c.ClientSecret), c.TokenURL, c.BaseURL, c.RootPath)
}
