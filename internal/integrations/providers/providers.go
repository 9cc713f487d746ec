package providers

import (
	"fmt"

	"github.com/BearBump/FleetSync/config"
	"github.com/BearBump/FleetSync/internal/integrations/provider"
	"github.com/BearBump/FleetSync/internal/integrations/provider/fake"
	"github.com/BearBump/FleetSync/internal/integrations/provider/project44"
	"github.com/BearBump/FleetSync/internal/integrations/provider/sensolus"
	"github.com/BearBump/FleetSync/internal/integrations/provider/tive"
	"github.com/BearBump/FleetSync/internal/integrations/provider/traccar"
	"github.com/BearBump/FleetSync/internal/models"
	"github.com/pkg/errors"
)

// Status describes how a provider is configured, for the status endpoint.
type Status struct {
	Name       string `json:"name"`
	Enabled    bool   `json:"enabled"`
	Configured bool   `json:"configured"`
	Mode       string `json:"mode"`
}

type entry struct {
	name string
	cfg  config.ProviderConfig
}

func entries(cfg config.ProvidersConfig) []entry {
	return []entry{
		{provider.Traccar, cfg.Traccar},
		{provider.Sensolus, cfg.Sensolus},
		{provider.Tive, cfg.Tive},
		{provider.Project44, cfg.Project44},
	}
}

// Build creates adapters for every enabled provider in a fixed order. Missing
// credentials on an enabled provider is a configuration error.
func Build(cfg config.ProvidersConfig, rl provider.Limiter) ([]provider.Adapter, error) {
	var out []provider.Adapter
	for _, e := range entries(cfg) {
		if !e.cfg.Enabled {
			continue
		}
		a, err := build(e.name, e.cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, provider.WithRateLimit(a, rl, int64(e.cfg.RateLimitPerMinute)))
	}
	return out, nil
}

func Statuses(cfg config.ProvidersConfig) []Status {
	out := make([]Status, 0, 4)
	for _, e := range entries(cfg) {
		out = append(out, Status{
			Name:       e.name,
			Enabled:    e.cfg.Enabled,
			Configured: e.cfg.Mode == "fake" || missingCredential(e.name, e.cfg) == "",
			Mode:       e.cfg.Mode,
		})
	}
	return out
}

func build(name string, c config.ProviderConfig) (provider.Adapter, error) {
	if c.Mode == "fake" {
		return fake.New(name, c.FakeDevices...), nil
	}
	if m := missingCredential(name, c); m != "" {
		return nil, errors.Wrap(models.ErrConfiguration, fmt.Sprintf("%s: %s is not set", name, m))
	}

	switch name {
	case provider.Traccar:
		return traccar.New(c.BaseURL, c.Username, c.Password, c.Timeout()), nil
	case provider.Sensolus:
		return sensolus.New(c.BaseURL, c.APIKey, c.Timeout()), nil
	case provider.Tive:
		return tive.New(c.BaseURL, c.APIKey, c.Timeout()), nil
	case provider.Project44:
		return project44.New(c.BaseURL, c.APIKey, c.Timeout()), nil
	default:
		return nil, errors.Wrap(models.ErrConfiguration, "unknown provider "+name)
	}
}

func missingCredential(name string, c config.ProviderConfig) string {
	switch name {
	case provider.Traccar:
		if c.BaseURL == "" {
			return "base_url"
		}
		if c.Username == "" || c.Password == "" {
			return "username/password"
		}
	default:
		if c.APIKey == "" {
			return "api_key"
		}
	}
	return ""
}
