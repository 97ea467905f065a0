package config

import (
	"fmt"
	"strings"

	domainerrors "github.com/reelfeed/reelfeed/internal/errors"
	"github.com/reelfeed/reelfeed/internal/validation"
)

func (c *Config) normalize() error {
	var err error
	if c.Store.Path, err = expandPath(c.Store.Path, defaultStorePath); err != nil {
		return fmt.Errorf("store.path: %w", err)
	}
	if c.Store.IndexPath, err = expandPath(c.Store.IndexPath, defaultIndexPath); err != nil {
		return fmt.Errorf("store.index_path: %w", err)
	}

	c.App.Environment = strings.ToLower(strings.TrimSpace(c.App.Environment))
	c.App.LogLevel = strings.ToLower(strings.TrimSpace(c.App.LogLevel))
	c.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(c.Provider.BaseURL), "/")
	c.Provider.APIKey = strings.TrimSpace(c.Provider.APIKey)

	if len(c.Jobs) == 0 {
		c.Jobs = DefaultJobs()
	}
	for i := range c.Jobs {
		j := &c.Jobs[i]
		j.Name = strings.TrimSpace(j.Name)
		j.EntityType = strings.ToLower(strings.TrimSpace(j.EntityType))
		if j.WindowDays == 0 {
			j.WindowDays = 1
		}
	}
	return nil
}

// Validate checks the configuration. Every failure is a CONFIG error; field
// level problems carry the validator's details.
func (c *Config) Validate() error {
	if err := validation.New().Validate(c); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeConfig, "invalid configuration")
	}

	seen := make(map[string]struct{}, len(c.Jobs))
	for _, j := range c.Jobs {
		if _, dup := seen[j.Name]; dup {
			return domainerrors.Configf("duplicate job name %q", j.Name)
		}
		seen[j.Name] = struct{}{}
	}

	if c.Provider.BackoffMax.Std() < c.Provider.BackoffBase.Std() {
		return domainerrors.Config("provider.backoff_max must not be below provider.backoff_base")
	}
	return nil
}

// RequireAPIKey reports a CONFIG error when no upstream credential is set.
// Only commands that call the provider need it.
func (c *Config) RequireAPIKey() error {
	if c.Provider.APIKey == "" {
		return domainerrors.Config("provider.api_key is required. Set PROVIDER_API_KEY or edit the config file")
	}
	return nil
}
