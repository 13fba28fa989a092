package connector

import (
	"fmt"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the platforms.yml file: one entry per platform the process
// should register at startup.
type Config struct {
	Platforms map[string]PlatformConfig `yaml:"platforms"`
}

type PlatformConfig struct {
	Enabled           bool        `yaml:"enabled"`
	Credentials       Credentials `yaml:"credentials"`
	WebhookSecret     string      `yaml:"webhook_secret"`
	RollbackOnPartial bool        `yaml:"rollback_on_partial"`
}

// WebhookSecrets collects the inbound webhook secrets per platform. A
// platform without a secret cannot receive webhooks.
func (c *Config) WebhookSecrets() map[string]string {
	secrets := map[string]string{}
	for platform, pc := range c.Platforms {
		if pc.Enabled && pc.WebhookSecret != "" {
			secrets[platform] = pc.WebhookSecret
		}
	}
	return secrets
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read platform config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse platform config: %w", err)
	}

	return &config, nil
}

// BuildRegistry assembles the static connector registry from configuration.
// An unknown platform name is an error here, at startup, rather than a
// runtime lookup failure later.
func BuildRegistry(config *Config, httpClient *http.Client, userAgent string) (*Registry, error) {
	registry := NewRegistry()

	for platform, pc := range config.Platforms {
		if !pc.Enabled {
			continue
		}

		c, err := newConnector(platform, pc, httpClient, userAgent)
		if err != nil {
			return nil, err
		}

		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", platform, err)
		}
	}

	return registry, nil
}

func newConnector(platform string, pc PlatformConfig, httpClient *http.Client, userAgent string) (Connector, error) {
	switch platform {
	case "twitter":
		return NewTwitter(httpClient, userAgent, pc.RollbackOnPartial), nil
	case "linkedin":
		return NewLinkedIn(httpClient, userAgent), nil
	case "medium":
		return NewMedium(httpClient, userAgent), nil
	case "devto":
		return NewDevTo(httpClient, userAgent), nil
	case "mastodon":
		return NewMastodon(httpClient, userAgent, pc.Credentials.Extra["server"]), nil
	case "discord":
		return NewDiscord(pc.Credentials.Extra["channel_id"]), nil
	default:
		return nil, fmt.Errorf("unknown platform %q in configuration", platform)
	}
}
