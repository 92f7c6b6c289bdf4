package config

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	validBinds := []string{"loopback", "all", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "server.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Server.Bind),
		})
	}

	if cfg.Server.PublicURL != "" {
		if _, err := url.ParseRequestURI(cfg.Server.PublicURL); err != nil {
			issues = append(issues, ValidationIssue{
				Path:    "server.publicUrl",
				Message: fmt.Sprintf("not a valid URL: %q", cfg.Server.PublicURL),
			})
		}
	}

	validStores := []string{"memory", "sqlite"}
	if cfg.Storage.Store != "" && !slices.Contains(validStores, cfg.Storage.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "storage.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Storage.Store),
		})
	}

	if cfg.Simulation.SuccessRate < 0 || cfg.Simulation.SuccessRate > 1 {
		issues = append(issues, ValidationIssue{
			Path:    "simulation.successRate",
			Message: fmt.Sprintf("must be between 0 and 1, got %v", cfg.Simulation.SuccessRate),
		})
	}

	if cfg.Simulation.MinDelayMs < 0 || cfg.Simulation.MaxDelayMs < cfg.Simulation.MinDelayMs {
		issues = append(issues, ValidationIssue{
			Path:    "simulation",
			Message: fmt.Sprintf("delay bounds invalid: min=%dms max=%dms",
				cfg.Simulation.MinDelayMs, cfg.Simulation.MaxDelayMs),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}
