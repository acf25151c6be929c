package bot

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v3"
)

const (
	DEFAULT_ADDR          = ":8080"
	DEFAULT_DB_PATH       = "leadbot.db"
	DEFAULT_CONFIG_PATH   = "leadbot.yaml"
	DEFAULT_PROFILE_NAME  = "default"
	DEFAULT_AIRTABLE_BASE = "appM1yx0NobvowCAg"
	DEFAULT_AIRTABLE_TAB  = "Accelerator Leads"

	// ManyChat gives up after 10s so answer before that
	DEFAULT_RUN_TIMEOUT   = 9 * time.Second
	DEFAULT_POLL_INTERVAL = 1 * time.Second
	DEFAULT_LOCK_IDLE_TTL = 10 * time.Minute
	DEFAULT_CRM_TIMEOUT   = 5 * time.Second
)

type Config struct {
	Addr   string
	DBPath string

	OpenAIKey    string
	DefaultModel string
	// skips the profile lookup when set
	AssistantID string
	ProfileName string
	// uploaded to a vector store when a new assistant is created
	KnowledgeFile string

	AirtableKey   string
	AirtableBase  string
	AirtableTable string
	CRMTimeout    time.Duration

	// how long a single /check call may block
	RunTimeout   time.Duration
	PollInterval time.Duration
	// run locks unused for this long are pruned
	LockIdleTTL time.Duration
}

// fileConfig is the optional yaml file. Secrets stay in the environment.
type fileConfig struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Assistant struct {
		Model         string `yaml:"model"`
		Profile       string `yaml:"profile"`
		KnowledgeFile string `yaml:"knowledge_file"`
	} `yaml:"assistant"`
	Airtable struct {
		BaseID     string `yaml:"base_id"`
		Table      string `yaml:"table"`
		TimeoutRaw string `yaml:"timeout"`
	} `yaml:"airtable"`
	Runs struct {
		TimeoutRaw      string `yaml:"timeout"`
		PollIntervalRaw string `yaml:"poll_interval"`
		LockIdleTTLRaw  string `yaml:"lock_idle_ttl"`
	} `yaml:"runs"`
}

func DefaultConfig() *Config {
	return &Config{
		Addr:          DEFAULT_ADDR,
		DBPath:        DEFAULT_DB_PATH,
		DefaultModel:  openai.GPT4o,
		ProfileName:   DEFAULT_PROFILE_NAME,
		AirtableBase:  DEFAULT_AIRTABLE_BASE,
		AirtableTable: DEFAULT_AIRTABLE_TAB,
		CRMTimeout:    DEFAULT_CRM_TIMEOUT,
		RunTimeout:    DEFAULT_RUN_TIMEOUT,
		PollInterval:  DEFAULT_POLL_INTERVAL,
		LockIdleTTL:   DEFAULT_LOCK_IDLE_TTL,
	}
}

// LoadConfig reads .env (if any), the yaml file at path (if any) and then
// the environment. Missing credentials are an error.
func LoadConfig(path string) (*Config, error) {
	// a missing .env is fine in production
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("LEADBOT_CONFIG")
	}
	if path == "" {
		path = DEFAULT_CONFIG_PATH
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.applyYAML(data); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

func (c *Config) applyYAML(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &fc); err != nil {
		return err
	}

	setString(&c.Addr, fc.Server.Addr)
	setString(&c.DBPath, fc.Database.Path)
	setString(&c.DefaultModel, fc.Assistant.Model)
	setString(&c.ProfileName, fc.Assistant.Profile)
	setString(&c.KnowledgeFile, fc.Assistant.KnowledgeFile)
	setString(&c.AirtableBase, fc.Airtable.BaseID)
	setString(&c.AirtableTable, fc.Airtable.Table)

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"airtable.timeout", fc.Airtable.TimeoutRaw, &c.CRMTimeout},
		{"runs.timeout", fc.Runs.TimeoutRaw, &c.RunTimeout},
		{"runs.poll_interval", fc.Runs.PollIntervalRaw, &c.PollInterval},
		{"runs.lock_idle_ttl", fc.Runs.LockIdleTTLRaw, &c.LockIdleTTL},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.raw, err)
		}
		*d.dst = parsed
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.OpenAIKey, os.Getenv("OPENAI_API_KEY"))
	setString(&c.AirtableKey, os.Getenv("AIRTABLE_API_KEY"))
	setString(&c.AirtableBase, os.Getenv("AIRTABLE_BASE_ID"))
	setString(&c.AirtableTable, os.Getenv("AIRTABLE_TABLE"))
	setString(&c.AssistantID, os.Getenv("ASSISTANT_ID"))
	setString(&c.Addr, os.Getenv("LEADBOT_ADDR"))
	setString(&c.DBPath, os.Getenv("LEADBOT_DB"))
	setString(&c.KnowledgeFile, os.Getenv("KNOWLEDGE_FILE"))
	setString(&c.DefaultModel, os.Getenv("OPENAI_MODEL"))
}

func (c *Config) Validate() error {
	if c.OpenAIKey == "" {
		return errors.New("unable to get Open AI API Key (OPENAI_API_KEY)")
	}
	if c.AirtableKey == "" {
		return errors.New("unable to get Airtable API Key (AIRTABLE_API_KEY)")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.RunTimeout < c.PollInterval {
		return fmt.Errorf("run timeout %s is shorter than poll interval %s", c.RunTimeout, c.PollInterval)
	}
	return nil
}

func setString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}
