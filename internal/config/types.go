package config

// Config is the root configuration for tablecall.
type Config struct {
	Server     ServerConfig     `yaml:"server,omitempty"`
	Twilio     TwilioConfig     `yaml:"twilio,omitempty"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs,omitempty"`
	Storage    StorageConfig    `yaml:"storage,omitempty"`
	Simulation SimulationConfig `yaml:"simulation,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket server.
type ServerConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "all" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty"`
	PublicURL      string   `yaml:"publicUrl,omitempty"` // base URL Twilio/ElevenLabs use for callbacks
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// TwilioConfig holds outbound-calling credentials.
type TwilioConfig struct {
	AccountSID  string `yaml:"accountSid,omitempty"`
	AuthToken   string `yaml:"authToken,omitempty"`
	PhoneNumber string `yaml:"phoneNumber,omitempty"` // E.164 caller ID
}

// ElevenLabsConfig holds voice-agent credentials and identifiers.
type ElevenLabsConfig struct {
	APIKey        string `yaml:"apiKey,omitempty"`
	AgentID       string `yaml:"agentId,omitempty"`
	PhoneNumberID string `yaml:"phoneNumberId,omitempty"`
	BaseURL       string `yaml:"baseUrl,omitempty"`
}

// StorageConfig selects the reservation repository backend.
type StorageConfig struct {
	Store string `yaml:"store,omitempty"` // "memory" | "sqlite"
	Path  string `yaml:"path,omitempty"`  // sqlite file path; empty means <data dir>/tablecall.db
}

// SimulationConfig tunes the simulated-conversation fallback.
type SimulationConfig struct {
	MinDelayMs  int     `yaml:"minDelayMs,omitempty"`
	MaxDelayMs  int     `yaml:"maxDelayMs,omitempty"`
	SuccessRate float64 `yaml:"successRate,omitempty"` // 0..1
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
}
