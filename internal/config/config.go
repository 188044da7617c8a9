// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the email relay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shineum/email-relay/internal/relay"
)

// defaultMaxMessageSize is 25 MB in bytes.
const defaultMaxMessageSize = 26214400

// Config holds the complete application configuration.
type Config struct {
	Webhook WebhookConfig `yaml:"webhook"`
	Forward ForwardConfig `yaml:"forward"`
	SMTP    SMTPConfig    `yaml:"smtp"`
	Graph   GraphConfig   `yaml:"graph"`
	SES     SESConfig     `yaml:"ses"`
	IMAP    IMAPConfig    `yaml:"imap"`
	Logging LoggingConfig `yaml:"logging"`
}

// WebhookConfig selects where and how notifications are posted.
type WebhookConfig struct {
	URL string `yaml:"url"`

	// Notifier is "webhook" (generic JSON POST) or "slack".
	Notifier  string `yaml:"notifier"`
	Username  string `yaml:"username"`
	IconEmoji string `yaml:"icon_emoji"`

	// RateLimit caps posts per second. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
}

// ForwardConfig holds the secondary mailbox settings.
type ForwardConfig struct {
	Address string `yaml:"address"`

	// Provider is "ses", "graph" or "stdout". Empty selects automatically.
	Provider string `yaml:"provider"`
}

// SMTPConfig holds SMTP listener configuration.
type SMTPConfig struct {
	Listen         string `yaml:"listen"`
	Hostname       string `yaml:"hostname"`
	MaxMessageSize int64  `yaml:"max_message_size"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Sender       string `yaml:"sender"`
}

// SESConfig holds AWS SES configuration.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender"`
}

// IMAPConfig holds the mailbox polled by the imap command.
type IMAPConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	Mailbox      string        `yaml:"mailbox"`
	StartTLS     bool          `yaml:"starttls"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	return cfg, nil
}

// Relay returns the handler configuration.
func (c *Config) Relay() relay.Config {
	return relay.Config{
		WebhookURL:     c.Webhook.URL,
		ForwardAddress: c.Forward.Address,
	}
}

// GraphConfigured returns true if all four Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != "" &&
		c.Graph.Sender != ""
}

// IMAPConfigured returns true if the IMAP server and login are set.
func (c *Config) IMAPConfigured() bool {
	return c.IMAP.Addr != "" && c.IMAP.Username != "" && c.IMAP.Password != ""
}

// SESConfigured returns true if the SES region and sender are set.
// Credentials may come from the default AWS chain.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != "" && c.SES.Sender != ""
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Webhook.Notifier = "webhook"
	c.SMTP.Listen = ":2525"
	c.SMTP.Hostname = "localhost"
	c.SMTP.MaxMessageSize = defaultMaxMessageSize
	c.IMAP.Mailbox = "INBOX"
	c.IMAP.PollInterval = time.Minute
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	// SLACK_WEBHOOK_URL is accepted for existing deployments; WEBHOOK_URL wins.
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		c.Webhook.URL = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		c.Webhook.URL = v
	}
	if v := os.Getenv("NOTIFIER"); v != "" {
		c.Webhook.Notifier = strings.ToLower(v)
	}
	if v := os.Getenv("SLACK_USERNAME"); v != "" {
		c.Webhook.Username = v
	}
	if v := os.Getenv("SLACK_ICON_EMOJI"); v != "" {
		c.Webhook.IconEmoji = v
	}

	if v := os.Getenv("NOTIFY_RATE_LIMIT"); v != "" {
		if limit, err := strconv.ParseFloat(v, 64); err == nil {
			c.Webhook.RateLimit = limit
		}
	}

	if v := os.Getenv("FORWARD_ADDRESS"); v != "" {
		c.Forward.Address = v
	}
	if v := os.Getenv("FORWARD_PROVIDER"); v != "" {
		c.Forward.Provider = strings.ToLower(v)
	}

	if v := os.Getenv("SMTP_LISTEN"); v != "" {
		c.SMTP.Listen = v
	}
	if v := os.Getenv("SMTP_HOSTNAME"); v != "" {
		c.SMTP.Hostname = v
	}
	if v := os.Getenv("SMTP_MAX_MESSAGE_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.SMTP.MaxMessageSize = size
		}
	}

	if v := os.Getenv("GRAPH_TENANT_ID"); v != "" {
		c.Graph.TenantID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_ID"); v != "" {
		c.Graph.ClientID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_SECRET"); v != "" {
		c.Graph.ClientSecret = v
	}
	if v := os.Getenv("GRAPH_SENDER"); v != "" {
		c.Graph.Sender = v
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}
	if v := os.Getenv("SES_SENDER"); v != "" {
		c.SES.Sender = v
	}

	if v := os.Getenv("IMAP_ADDR"); v != "" {
		c.IMAP.Addr = v
	}
	if v := os.Getenv("IMAP_USERNAME"); v != "" {
		c.IMAP.Username = v
	}
	if v := os.Getenv("IMAP_PASSWORD"); v != "" {
		c.IMAP.Password = v
	}
	if v := os.Getenv("IMAP_MAILBOX"); v != "" {
		c.IMAP.Mailbox = v
	}
	if v := os.Getenv("IMAP_STARTTLS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.IMAP.StartTLS = b
		}
	}
	if v := os.Getenv("IMAP_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.IMAP.PollInterval = d
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}
