package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/khsu/mailcat/internal/crypto"
)

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host      string `mapstructure:"host" yaml:"host"`
	Port      int    `mapstructure:"port" yaml:"port"`
	StartTLS  bool   `mapstructure:"starttls" yaml:"starttls"`
	VerifySSL bool   `mapstructure:"verify_ssl" yaml:"verify_ssl"`
}

// ServerConfig holds connection settings for a receiving server
// (IMAP or POP3).
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	SSL  bool   `mapstructure:"ssl" yaml:"ssl"`
}

// AppConfig is the top-level application configuration. Configuration
// changes are applied by building a new AppConfig value and calling
// SaveConfig; fields are never mutated piecemeal on a shared value.
type AppConfig struct {
	// ID identifies this account instance; generated on first save.
	ID string `mapstructure:"id" yaml:"id"`

	// Email is the login identity for all three protocols.
	Email string `mapstructure:"email" yaml:"email"`

	// Name is the display name used in the From header.
	Name string `mapstructure:"name" yaml:"name"`

	// Password is kept decrypted in memory. On disk it is stored as a
	// Fernet token; legacy plaintext values load unchanged.
	Password string `mapstructure:"password" yaml:"password"`

	// Signature is appended to composed messages.
	Signature string `mapstructure:"signature" yaml:"signature"`

	// RecvProtocol selects the receive path: "imap" or "pop3".
	RecvProtocol string `mapstructure:"recv_protocol" yaml:"recv_protocol"`

	SMTP SMTPConfig   `mapstructure:"smtp" yaml:"smtp"`
	IMAP ServerConfig `mapstructure:"imap" yaml:"imap"`
	POP3 ServerConfig `mapstructure:"pop3" yaml:"pop3"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailcat/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailcat", "config.yaml")
}

// KeyPath returns the path of the password encryption key file, stored
// beside the configuration file.
func KeyPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), ".mailcat.key")
}

// CachePath returns the path of the mail cache database, stored beside
// the configuration file.
func CachePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "mail_cache.db")
}

// defaultAppConfig returns the configuration used when no file exists.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		RecvProtocol: ProtocolPOP3,
		SMTP:         SMTPConfig{Host: "mx.hurricanesoft.com.tw", Port: 25, StartTLS: true},
		IMAP:         ServerConfig{Host: "webmail.hurricanesoft.com.tw", Port: 993, SSL: true},
		POP3:         ServerConfig{Host: "webmail.hurricanesoft.com.tw", Port: 995, SSL: true},
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. Missing keys fall back to defaults; a missing file yields the
// default configuration. The stored password is decrypted with the key
// file beside the config.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("recv_protocol", ProtocolPOP3)
	v.SetDefault("smtp.host", "mx.hurricanesoft.com.tw")
	v.SetDefault("smtp.port", 25)
	v.SetDefault("smtp.starttls", true)
	v.SetDefault("imap.host", "webmail.hurricanesoft.com.tw")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.ssl", true)
	v.SetDefault("pop3.host", "webmail.hurricanesoft.com.tw")
	v.SetDefault("pop3.port", 995)
	v.SetDefault("pop3.ssl", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Password != "" {
		key, err := crypto.LoadOrCreateKey(KeyPath(path))
		if err != nil {
			return nil, fmt.Errorf("loading encryption key: %w", err)
		}
		cfg.Password = crypto.DecryptPassword(key, cfg.Password)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. The password is encrypted
// before it touches disk; the in-memory value is left untouched.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	saved := *cfg
	if saved.ID == "" {
		saved.ID = uuid.New().String()
		cfg.ID = saved.ID
	}

	if saved.Password != "" {
		key, err := crypto.LoadOrCreateKey(KeyPath(path))
		if err != nil {
			return fmt.Errorf("loading encryption key: %w", err)
		}
		enc, err := crypto.EncryptPassword(key, saved.Password)
		if err != nil {
			return fmt.Errorf("encrypting password: %w", err)
		}
		saved.Password = enc
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("id", saved.ID)
	v.Set("email", saved.Email)
	v.Set("name", saved.Name)
	v.Set("password", saved.Password)
	v.Set("signature", saved.Signature)
	v.Set("recv_protocol", saved.RecvProtocol)
	v.Set("smtp", saved.SMTP)
	v.Set("imap", saved.IMAP)
	v.Set("pop3", saved.POP3)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("restricting config permissions: %w", err)
	}

	return nil
}
