package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port string `yaml:"port"`
}

type AuthConfig struct {
	// Bearer token required on every route except /health and /metrics.
	// When empty the API fails closed.
	Token string `yaml:"token"`
}

type IMAPConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	UseTLS       bool   `yaml:"use_tls"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	InboxFolder  string `yaml:"inbox_folder"`
	DraftsFolder string `yaml:"drafts_folder"`
}

type ScanConfig struct {
	Cron                  string `yaml:"cron"`
	ScanOnStart           bool   `yaml:"scan_on_start"`
	Limit                 int    `yaml:"limit"`
	FetchBodySnippet      bool   `yaml:"fetch_body_snippet"`
	FetchFullBody         bool   `yaml:"fetch_full_body"`
	DeduplicateThreads    bool   `yaml:"deduplicate_threads"`
	ThreadItemLimit       int    `yaml:"thread_item_limit"`
	IncludeRepliedThreads bool   `yaml:"include_replied_threads"`
}

type RulesConfig struct {
	IgnoreSenders  []string `yaml:"ignore_senders"`
	IgnoreSubjects []string `yaml:"ignore_subjects"`
	ActionKeywords []string `yaml:"action_keywords"`
}

type WebhookConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	IMAP    IMAPConfig    `yaml:"imap"`
	Scan    ScanConfig    `yaml:"scan"`
	Rules   RulesConfig   `yaml:"rules"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: ":8080"},
		IMAP: IMAPConfig{
			Host:         "imap.gmail.com",
			Port:         993,
			UseTLS:       true,
			InboxFolder:  "INBOX",
			DraftsFolder: "[Gmail]/Drafts",
		},
		Scan: ScanConfig{
			Cron:                  "0 * * * *",
			ScanOnStart:           true,
			Limit:                 50,
			FetchBodySnippet:      true,
			FetchFullBody:         false,
			DeduplicateThreads:    true,
			ThreadItemLimit:       6,
			IncludeRepliedThreads: true,
		},
		Rules: RulesConfig{
			IgnoreSenders: []string{"no-reply", "noreply", "donotreply"},
			IgnoreSubjects: []string{
				"newsletter", "unsubscribe", "no-reply", "noreply", "do not reply",
			},
			ActionKeywords: []string{
				"action required", "urgent", "invoice", "payment", "overdue",
				"confirm", "meeting", "reschedule", "sign document",
				"signature required", "approve", "maintenance",
			},
		},
	}
}

// Load reads the YAML file at path (missing file is fine, defaults apply),
// applies environment-variable overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	overrideFromEnv(cfg)
	normalize(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("GATEKEEPER_API_TOKEN"); v != "" {
		cfg.Auth.Token = v
	}

	if v := os.Getenv("IMAP_HOST"); v != "" {
		cfg.IMAP.Host = v
	}
	if v := os.Getenv("IMAP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.IMAP.Port = p
		}
	}
	if v := os.Getenv("IMAP_USE_TLS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.IMAP.UseTLS = b
		}
	}
	if v := os.Getenv("IMAP_USERNAME"); v != "" {
		cfg.IMAP.Username = v
	}
	if v := os.Getenv("IMAP_PASSWORD"); v != "" {
		cfg.IMAP.Password = v
	}
	if v := os.Getenv("IMAP_INBOX_FOLDER"); v != "" {
		cfg.IMAP.InboxFolder = v
	}
	if v := os.Getenv("IMAP_DRAFTS_FOLDER"); v != "" {
		cfg.IMAP.DraftsFolder = v
	}

	if v := os.Getenv("GATEKEEPER_CRON"); v != "" {
		cfg.Scan.Cron = v
	}
	if v := os.Getenv("SCAN_ON_START"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Scan.ScanOnStart = b
		}
	}
	if v := os.Getenv("SCAN_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.Limit = n
		}
	}

	if v := os.Getenv("IGNORE_SENDER_PATTERNS"); v != "" {
		cfg.Rules.IgnoreSenders = splitPatterns(v)
	}
	if v := os.Getenv("IGNORE_SUBJECT_PATTERNS"); v != "" {
		cfg.Rules.IgnoreSubjects = splitPatterns(v)
	}
	if v := os.Getenv("ACTION_SUBJECT_PATTERNS"); v != "" {
		cfg.Rules.ActionKeywords = splitPatterns(v)
	}

	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Webhook.URL = v
	}
	if v := os.Getenv("WEBHOOK_TOKEN"); v != "" {
		cfg.Webhook.Token = v
	}
}

// normalize lower-cases the classification pattern lists; matching is
// case-insensitive throughout.
func normalize(cfg *Config) {
	cfg.Rules.IgnoreSenders = lowerAll(cfg.Rules.IgnoreSenders)
	cfg.Rules.IgnoreSubjects = lowerAll(cfg.Rules.IgnoreSubjects)
	cfg.Rules.ActionKeywords = lowerAll(cfg.Rules.ActionKeywords)
}

func validate(cfg *Config) error {
	if cfg.IMAP.Host == "" {
		return fmt.Errorf("config: imap host is required")
	}
	if cfg.IMAP.Username == "" || cfg.IMAP.Password == "" {
		return fmt.Errorf("config: imap credentials are required")
	}
	if cfg.Scan.Limit <= 0 {
		return fmt.Errorf("config: scan limit must be positive, got %d", cfg.Scan.Limit)
	}
	if cfg.Scan.ThreadItemLimit <= 0 {
		return fmt.Errorf("config: thread item limit must be positive, got %d", cfg.Scan.ThreadItemLimit)
	}
	return nil
}

func splitPatterns(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}
