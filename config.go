package taskvault

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/taskvault/taskvault/internal/googleauth"
	"github.com/taskvault/taskvault/policy"
	"github.com/taskvault/taskvault/service/orchestrator"
)

// Duration wraps time.Duration so intervals can be written as "30s" or "24h"
// in YAML configuration.
type Duration time.Duration

// UnmarshalYAML parses a duration literal.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration literal.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config assembles everything the service needs: where the vault lives, which
// sources to poll, the approval policy and the periodic chores.
type Config struct {
	// VaultPath is the root directory holding the bucket folders.
	VaultPath string `yaml:"vaultPath"`

	// DropzonePath is the watched folder; empty disables the file source.
	DropzonePath string `yaml:"dropzonePath,omitempty"`

	// DedupPath holds seen-item records; defaults to <vault>/.seen.
	DedupPath string `yaml:"dedupPath,omitempty"`

	// BriefingPath receives daily and weekly reports; defaults to
	// <vault>/Briefings.
	BriefingPath string `yaml:"briefingPath,omitempty"`

	// Policy is the security policy configuration.
	Policy policy.Config `yaml:"policy,omitempty"`

	// Gmail credentials; unset disables the mailbox source and the e-mail
	// executor.
	Gmail googleauth.Credentials `yaml:"gmail,omitempty"`

	// MailFilter is the Gmail search query for the mailbox source.
	MailFilter string `yaml:"mailFilter,omitempty"`

	// DropzoneInterval and MailInterval override the adapters' poll cadence.
	DropzoneInterval Duration `yaml:"dropzoneInterval,omitempty"`
	MailInterval     Duration `yaml:"mailInterval,omitempty"`

	// HealthInterval is the cadence of the health sweep.
	HealthInterval Duration `yaml:"healthInterval,omitempty"`

	// DailyInterval and WeeklyInterval drive the briefing jobs.
	DailyInterval  Duration `yaml:"dailyInterval,omitempty"`
	WeeklyInterval Duration `yaml:"weeklyInterval,omitempty"`

	// Orchestrator tunes the worker pool and retries.
	Orchestrator orchestrator.Config `yaml:"orchestrator,omitempty"`

	// TraceFile receives exported spans; empty leaves tracing uninitialised.
	TraceFile string `yaml:"traceFile,omitempty"`
}

// DefaultConfig returns a config with every interval filled in.
func DefaultConfig() Config {
	config := Config{
		Policy:         policy.DefaultConfig(),
		HealthInterval: Duration(30 * time.Second),
		DailyInterval:  Duration(24 * time.Hour),
		WeeklyInterval: Duration(7 * 24 * time.Hour),
		Orchestrator:   orchestrator.DefaultConfig(),
	}
	return config
}

// LoadConfig reads YAML configuration from location and overlays environment
// variables on top. A .env file in the working directory is honoured.
func LoadConfig(ctx context.Context, location string) (*Config, error) {
	config := DefaultConfig()
	if location != "" {
		fs := afs.New()
		data, err := fs.DownloadWithURL(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", location, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", location, err)
		}
	}
	config.applyEnv()
	config.Init()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyEnv overlays TASKVAULT_* environment variables; values from the
// environment win over the file.
func (c *Config) applyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("TASKVAULT_VAULT"); v != "" {
		c.VaultPath = v
	}
	if v := os.Getenv("TASKVAULT_DROPZONE"); v != "" {
		c.DropzonePath = v
	}
	if v := os.Getenv("TASKVAULT_LOW_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Policy.LowThreshold = f
		}
	}
	if v := os.Getenv("TASKVAULT_HIGH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Policy.HighThreshold = f
		}
	}
	if v := os.Getenv("TASKVAULT_KNOWN_CONTACTS"); v != "" {
		var contacts []string
		for _, contact := range strings.Split(v, ",") {
			if contact = strings.TrimSpace(contact); contact != "" {
				contacts = append(contacts, contact)
			}
		}
		c.Policy.KnownContacts = contacts
	}
	if v := os.Getenv("TASKVAULT_GMAIL_SECRETS"); v != "" {
		c.Gmail.ClientSecretsFile = v
	}
	if v := os.Getenv("TASKVAULT_GMAIL_TOKEN"); v != "" {
		c.Gmail.TokenFile = v
	}
	if v := os.Getenv("TASKVAULT_MAIL_FILTER"); v != "" {
		c.MailFilter = v
	}
}

// Init fills derived defaults.
func (c *Config) Init() {
	if c.DedupPath == "" && c.VaultPath != "" {
		c.DedupPath = c.VaultPath + "/.seen"
	}
	if c.BriefingPath == "" && c.VaultPath != "" {
		c.BriefingPath = c.VaultPath + "/Briefings"
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = Duration(30 * time.Second)
	}
	if c.DailyInterval <= 0 {
		c.DailyInterval = Duration(24 * time.Hour)
	}
	if c.WeeklyInterval <= 0 {
		c.WeeklyInterval = Duration(7 * 24 * time.Hour)
	}
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	if c.VaultPath == "" {
		return fmt.Errorf("vaultPath is required")
	}
	if c.Policy.LowThreshold > c.Policy.HighThreshold && c.Policy.HighThreshold > 0 {
		return fmt.Errorf("policy lowThreshold %.2f exceeds highThreshold %.2f", c.Policy.LowThreshold, c.Policy.HighThreshold)
	}
	return nil
}
