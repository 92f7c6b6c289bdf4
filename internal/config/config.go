// Package config loads and validates the tablecall configuration.
package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 5000,
			Bind: "loopback",
		},
		ElevenLabs: ElevenLabsConfig{
			BaseURL: "https://api.elevenlabs.io/v1",
		},
		Storage: StorageConfig{
			Store: "memory",
		},
		Simulation: SimulationConfig{
			MinDelayMs:  4000,
			MaxDelayMs:  8000,
			SuccessRate: 0.7,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// applyDefaults fills in zero values after unmarshalling a partial file.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = def.Server.Bind
	}
	if cfg.ElevenLabs.BaseURL == "" {
		cfg.ElevenLabs.BaseURL = def.ElevenLabs.BaseURL
	}
	if cfg.Storage.Store == "" {
		cfg.Storage.Store = def.Storage.Store
	}
	if cfg.Simulation.MinDelayMs == 0 {
		cfg.Simulation.MinDelayMs = def.Simulation.MinDelayMs
	}
	if cfg.Simulation.MaxDelayMs == 0 {
		cfg.Simulation.MaxDelayMs = def.Simulation.MaxDelayMs
	}
	if cfg.Simulation.SuccessRate == 0 {
		cfg.Simulation.SuccessRate = def.Simulation.SuccessRate
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
}
