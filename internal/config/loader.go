package config

import (
	"os"
	"regexp"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so tokens can be stored as ${ENV_VAR} in the file.
func expandSensitiveFields(cfg *Config) {
	cfg.Twilio.AccountSID = expandEnvVars(cfg.Twilio.AccountSID)
	cfg.Twilio.AuthToken = expandEnvVars(cfg.Twilio.AuthToken)
	cfg.ElevenLabs.APIKey = expandEnvVars(cfg.ElevenLabs.APIKey)
}

// applyEnvOverrides lets environment variables override file values.
// The variable names match what the Twilio/ElevenLabs consoles hand out.
func applyEnvOverrides(cfg *Config) {
	setIfEnv := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setIfEnv(&cfg.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	setIfEnv(&cfg.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	setIfEnv(&cfg.Twilio.PhoneNumber, "TWILIO_PHONE_NUMBER")
	setIfEnv(&cfg.ElevenLabs.APIKey, "ELEVENLABS_API_KEY")
	setIfEnv(&cfg.ElevenLabs.AgentID, "ELEVENLABS_AGENT_ID")
	setIfEnv(&cfg.ElevenLabs.PhoneNumberID, "ELEVENLABS_PHONE_NUMBER_ID")
	setIfEnv(&cfg.Server.PublicURL, "SERVER_URL")

	if v, ok := os.LookupEnv("PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// Load reads the config file, applies .env and environment overrides, and
// returns a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	// .env in the working directory, if present, mirrors the provider consoles
	_ = godotenv.Load()

	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}
