// Package config loads service and client configuration from defaults, an
// optional .env file, and CSREPORT_* environment variables, in that order of
// precedence (environment wins).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Client  ClientConfig
	Mail    MailConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

// ClientConfig configures the resilient transport: one primary endpoint, one
// fallback, and the per-attempt timeout.
type ClientConfig struct {
	PrimaryBaseURL  string
	FallbackBaseURL string
	Timeout         time.Duration
}

// MailConfig configures the SMTP relay. Email sending is disabled when
// SMTPHost is empty.
type MailConfig struct {
	SMTPHost string
	SMTPPort int
	Username string
	Password string
	From     string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Client: ClientConfig{
			PrimaryBaseURL: "http://127.0.0.1:4600",
			Timeout:        10 * time.Second,
		},
		Mail: MailConfig{
			SMTPPort: 587,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "csreport-data"
		}
	}
	return filepath.Join(dir, "csreport")
}

// Load reads configuration. A .env file in the working directory is applied
// first if present; explicit environment variables always win.
func Load() (Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	cfg := defaults()

	setString(&cfg.Storage.DataDir, "CSREPORT_DATA_DIR")
	setString(&cfg.Client.PrimaryBaseURL, "CSREPORT_PRIMARY_URL")
	setString(&cfg.Client.FallbackBaseURL, "CSREPORT_FALLBACK_URL")
	setString(&cfg.Mail.SMTPHost, "CSREPORT_SMTP_HOST")
	setString(&cfg.Mail.Username, "CSREPORT_SMTP_USER")
	setString(&cfg.Mail.Password, "CSREPORT_SMTP_PASS")
	setString(&cfg.Mail.From, "CSREPORT_FROM_EMAIL")
	setString(&cfg.Log.Level, "CSREPORT_LOG_LEVEL")

	if err := setInt(&cfg.Server.Port, "CSREPORT_PORT"); err != nil {
		return Config{}, err
	}
	if err := setInt(&cfg.Mail.SMTPPort, "CSREPORT_SMTP_PORT"); err != nil {
		return Config{}, err
	}
	if err := setDuration(&cfg.Client.Timeout, "CSREPORT_TIMEOUT"); err != nil {
		return Config{}, err
	}

	// A lone endpoint is a valid deployment; the fallback attempt then
	// simply retries the same address.
	if cfg.Client.FallbackBaseURL == "" {
		cfg.Client.FallbackBaseURL = cfg.Client.PrimaryBaseURL
	}

	if cfg.Mail.SMTPHost != "" && cfg.Mail.From == "" {
		return Config{}, fmt.Errorf("CSREPORT_FROM_EMAIL is required when CSREPORT_SMTP_HOST is set")
	}

	return cfg, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	*dst = d
	return nil
}
