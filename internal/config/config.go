package config

import "time"

// Config holds client and dev server configuration values.
type Config struct {
	ServerURL       string        `mapstructure:"server_url" yaml:"server_url"`
	DataPath        string        `mapstructure:"data_path" yaml:"data_path"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	LogFile         string        `mapstructure:"log_file" yaml:"log_file"`
	BannedWords     []string      `mapstructure:"banned_words" yaml:"banned_words"`
	TypingTimeout   time.Duration `mapstructure:"typing_timeout" yaml:"typing_timeout"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	OutboxSize      int           `mapstructure:"outbox_size" yaml:"outbox_size"`
	PrivilegedToken string        `mapstructure:"privileged_token" yaml:"privileged_token"`
	Server          ServerConfig  `mapstructure:"server" yaml:"server"`
}

// ServerConfig configures the bundled development matchmaking server.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AdminSecret       string        `mapstructure:"admin_secret" yaml:"admin_secret"`
	MessageRate       float64       `mapstructure:"message_rate" yaml:"message_rate"`
	MessageBurst      int           `mapstructure:"message_burst" yaml:"message_burst"`
	StripMarkup       bool          `mapstructure:"strip_markup" yaml:"strip_markup"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ServerURL:     "ws://localhost:5000/ws",
		DataPath:      "strangerchat.db",
		LogLevel:      "info",
		LogFile:       "strangerchat.log",
		TypingTimeout: 2 * time.Second,
		DialTimeout:   10 * time.Second,
		OutboxSize:    32,
		Server: ServerConfig{
			Addr:              ":5000",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
			MessageRate:       5,
			MessageBurst:      10,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.DataPath != "" {
		c.DataPath = other.DataPath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFile != "" {
		c.LogFile = other.LogFile
	}
	if len(other.BannedWords) > 0 {
		c.BannedWords = other.BannedWords
	}
	if other.TypingTimeout != 0 {
		c.TypingTimeout = other.TypingTimeout
	}
	if other.DialTimeout != 0 {
		c.DialTimeout = other.DialTimeout
	}
	if other.OutboxSize != 0 {
		c.OutboxSize = other.OutboxSize
	}
	if other.PrivilegedToken != "" {
		c.PrivilegedToken = other.PrivilegedToken
	}
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.ReadHeaderTimeout != 0 {
		c.Server.ReadHeaderTimeout = other.Server.ReadHeaderTimeout
	}
	if other.Server.ShutdownTimeout != 0 {
		c.Server.ShutdownTimeout = other.Server.ShutdownTimeout
	}
	if other.Server.AdminSecret != "" {
		c.Server.AdminSecret = other.Server.AdminSecret
	}
	if other.Server.MessageRate != 0 {
		c.Server.MessageRate = other.Server.MessageRate
	}
	if other.Server.MessageBurst != 0 {
		c.Server.MessageBurst = other.Server.MessageBurst
	}
	if other.Server.StripMarkup {
		c.Server.StripMarkup = true
	}
}
