package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultAssistantIdentity is the chat identity the assistant uses inside
// group conversations. Existing group threads are keyed on this identity, so
// changing it orphans the assistant participant in previously created
// conversations.
const DefaultAssistantIdentity = "beauchbot_assistant"

// Config captures all runtime configuration for the assistant.
type Config struct {
	App       AppConfig
	Twilio    TwilioConfig
	Directory DirectoryConfig
	MCP       MCPConfig
	Events    EventsConfig
	Webhook   WebhookConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

// TwilioConfig stores Twilio credentials and addressing for messaging.
type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	PhoneNumber       string
	OwnerPhoneNumber  string
	AssistantIdentity string
}

// DirectoryConfig locates the phone directory document.
type DirectoryConfig struct {
	FilePath string
}

// MCPConfig controls the MCP tool server.
type MCPConfig struct {
	ServerName string
}

// EventsConfig enables optional dispatch event publishing. Publishing stays
// disabled when no brokers are configured.
type EventsConfig struct {
	Brokers []string
	Topic   string
}

// WebhookConfig tunes the inbound webhook server.
type WebhookConfig struct {
	MaxConcurrent int
}

// Enabled reports whether event publishing is configured.
func (e EventsConfig) Enabled() bool {
	return len(e.Brokers) > 0 && strings.TrimSpace(e.Topic) != ""
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.Port = ldr.getInt("APP_PORT", 8080, false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Twilio.AccountSID = ldr.getString("TWILIO_ACCOUNT_SID", "", true)
	cfg.Twilio.AuthToken = ldr.getString("TWILIO_AUTH_TOKEN", "", true)
	cfg.Twilio.PhoneNumber = ldr.getString("TWILIO_PHONE_NUMBER", "", true)
	cfg.Twilio.OwnerPhoneNumber = ldr.getString("MY_PHONE_NUMBER", "", false)
	cfg.Twilio.AssistantIdentity = ldr.getString("ASSISTANT_IDENTITY", DefaultAssistantIdentity, false)

	cfg.Directory.FilePath = ldr.getString("PHONE_DIRECTORY_FILE", "", false)

	cfg.MCP.ServerName = ldr.getString("MCP_SERVER_NAME", "beauchbot-server", false)

	cfg.Events.Brokers = ldr.getStringSlice("KAFKA_BROKERS", false)
	cfg.Events.Topic = ldr.getString("KAFKA_DISPATCH_TOPIC", "", false)

	cfg.Webhook.MaxConcurrent = ldr.getInt("WEBHOOK_MAX_CONCURRENT", 8, false)

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid integer", key))
			return def
		}
		return i
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
