// Package config reads the responder settings from the environment.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendRules = "rules"
	BackendLLM   = "llm"

	// DefaultDeliveryPattern matches the messaging API calls the web client
	// makes when a message is delivered to the open inbox.
	DefaultDeliveryPattern = `/voyager/api/(?:voyagerMessagingGraphQL|messaging)/|/realtime/`
)

type Config struct {
	Mail     string
	Password string

	Signature string
	Headless  bool

	RulesPath   string
	StoragePath string
	JournalPath string

	Backend string
	Persona string

	MinLength        int
	SweepInterval    time.Duration
	SaveInterval     time.Duration
	DeliveryPattern  *regexp.Regexp
	RepliesPerMinute int
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a getenv-style lookup.
func FromEnv(getenv func(string) string) (Config, error) {
	str := func(name, def string) string {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Mail:        str("LINKEDIN_MAIL", ""),
		Password:    getenv("LINKEDIN_PASSWORD"),
		Signature:   getenv("SIGNATURE"),
		Headless:    parseBool(getenv("RESPONDER_HEADLESS"), false),
		RulesPath:   str("RESPONDER_RULES", "answers.json"),
		StoragePath: str("RESPONDER_STORAGE", "cookies.json"),
		JournalPath: str("RESPONDER_JOURNAL", "replies.db"),
		Persona:     getenv("RESPONDER_PERSONA"),
	}

	cfg.Backend = strings.ToLower(str("RESPONDER_BACKEND", ""))
	switch cfg.Backend {
	case "":
		cfg.Backend = BackendRules
		if strings.TrimSpace(getenv(providerKeyEnv(getenv("LLM_PROVIDER")))) != "" {
			cfg.Backend = BackendLLM
		}
	case BackendRules, BackendLLM:
	default:
		return Config{}, fmt.Errorf("RESPONDER_BACKEND: unknown backend %q (use %q or %q)", cfg.Backend, BackendRules, BackendLLM)
	}

	var err error
	if cfg.MinLength, err = parseInt(getenv("RESPONDER_MIN_LENGTH"), 10); err != nil {
		return Config{}, fmt.Errorf("RESPONDER_MIN_LENGTH: %w", err)
	}
	if cfg.RepliesPerMinute, err = parseInt(getenv("RESPONDER_REPLIES_PER_MINUTE"), 6); err != nil {
		return Config{}, fmt.Errorf("RESPONDER_REPLIES_PER_MINUTE: %w", err)
	}
	if cfg.SweepInterval, err = parseDuration(getenv("RESPONDER_SWEEP_INTERVAL"), 30*time.Second); err != nil {
		return Config{}, fmt.Errorf("RESPONDER_SWEEP_INTERVAL: %w", err)
	}
	if cfg.SaveInterval, err = parseDuration(getenv("RESPONDER_SAVE_INTERVAL"), 10*time.Second); err != nil {
		return Config{}, fmt.Errorf("RESPONDER_SAVE_INTERVAL: %w", err)
	}
	if cfg.DeliveryPattern, err = regexp.Compile(str("RESPONDER_DELIVERY_PATTERN", DefaultDeliveryPattern)); err != nil {
		return Config{}, fmt.Errorf("RESPONDER_DELIVERY_PATTERN: %w", err)
	}
	return cfg, nil
}

// providerKeyEnv names the API key variable of the LLM provider. OpenAI is
// the default provider.
func providerKeyEnv(provider string) string {
	if strings.EqualFold(strings.TrimSpace(provider), "anthropic") {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// Credentials reports whether sign-in credentials are configured.
func (c Config) Credentials() bool {
	return c.Mail != "" && c.Password != ""
}

func parseBool(val string, def bool) bool {
	val = strings.TrimSpace(val)
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func parseInt(val string, def int) (int, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative: %d", n)
	}
	return n, nil
}

func parseDuration(val string, def time.Duration) (time.Duration, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return def, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive: %s", val)
	}
	return d, nil
}
