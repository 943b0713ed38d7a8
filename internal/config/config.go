package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"worklogbot/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	defaultExternalHTTPTimeout        = 90 * time.Second
	defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)
	defaultLLMTimeoutSeconds          = 120
	defaultStateTTLMinutes            = 30
	defaultEmptyReportText            = "No work-log entries for this period."

	// MaxIssues is the most issues the tracker returns for one search.
	MaxIssues = 100

	TransportTelegram = "telegram"
	TransportSlack    = "slack"

	StateBackendMemory = "memory"
	StateBackendSQLite = "sqlite"

	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

type Config struct {
	Transport        string `yaml:"transport"`
	TelegramBotToken string `yaml:"telegram_bot_token"`
	SlackBotToken    string `yaml:"slack_bot_token"`
	SlackAppToken    string `yaml:"slack_app_token"`

	JiraURL string `yaml:"jira_url"`

	DBPath          string `yaml:"db_path"`
	StateBackend    string `yaml:"state_backend"`
	StateTTLMinutes int    `yaml:"state_ttl_minutes"`

	LLMProvider         string `yaml:"llm_provider"`
	LLMModel            string `yaml:"llm_model"`
	OllamaHost          string `yaml:"ollama_host"`
	AnthropicAPIKey     string `yaml:"anthropic_api_key"`
	OpenAIAPIKey        string `yaml:"openai_api_key"`
	LLMSystemPromptPath string `yaml:"llm_system_prompt_path"`
	LLMTimeoutSeconds   int    `yaml:"llm_timeout_seconds"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`

	Timezone          string `yaml:"timezone"`
	WorklogCutoffTime string `yaml:"worklog_cutoff_time"`
	WorklogWindowMode string `yaml:"worklog_window_mode"`
	WorklogFixedDays  int    `yaml:"worklog_fixed_days"`
	WorklogMaxIssues  int    `yaml:"worklog_max_issues"`
	ReportEmptyText   string `yaml:"report_empty_text"`

	DigestSchedule  string   `yaml:"digest_schedule"`
	DigestUserIDs   []string `yaml:"digest_user_ids"`
	DigestSummarize bool     `yaml:"digest_summarize"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

// LoadConfig reads config.yaml (or CONFIG_PATH), applies environment
// overrides and defaults, and validates the result for running the bot.
// Every returned error wraps domain.ErrConfiguration.
func LoadConfig() (Config, error) {
	return Load(DefaultPath(), true)
}

// DefaultPath is CONFIG_PATH, or config.yaml when unset.
func DefaultPath() string {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return envPath
	}
	return "config.yaml"
}

// Load starts from the defaults, reads the YAML file at configPath (a
// missing file is fine) and applies env overrides and validation. With requireBot false the
// chat transport tokens and jira_url are not required, which suits the
// offline CLI commands.
func Load(configPath string, requireBot bool) (Config, error) {
	cfg := defaultConfig()

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, configErr("parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.Transport, "TRANSPORT")
	envOverride(&cfg.TelegramBotToken, "BOT_TOKEN")
	envOverride(&cfg.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.JiraURL, "JIRA_URL")
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.DBPath = strings.TrimPrefix(dsn, "sqlite:///")
	}
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.StateBackend, "STATE_BACKEND")
	if err := envOverrideInt(&cfg.StateTTLMinutes, "STATE_TTL_MINUTES"); err != nil {
		return cfg, err
	}
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.OllamaHost, "OLLAMA_HOST")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.LLMSystemPromptPath, "LLM_SYSTEM_PROMPT_PATH")
	if err := envOverrideInt(&cfg.LLMTimeoutSeconds, "LLM_TIMEOUT_SECONDS"); err != nil {
		return cfg, err
	}
	if err := envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS"); err != nil {
		return cfg, err
	}
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.WorklogCutoffTime, "WORKLOG_CUTOFF_TIME")
	envOverride(&cfg.WorklogWindowMode, "WORKLOG_WINDOW_MODE")
	if err := envOverrideInt(&cfg.WorklogFixedDays, "WORKLOG_FIXED_DAYS"); err != nil {
		return cfg, err
	}
	if err := envOverrideInt(&cfg.WorklogMaxIssues, "WORKLOG_MAX_ISSUES"); err != nil {
		return cfg, err
	}
	envOverrideAllowEmpty(&cfg.ReportEmptyText, "REPORT_EMPTY_TEXT")
	envOverride(&cfg.DigestSchedule, "DIGEST_SCHEDULE")
	envOverrideList(&cfg.DigestUserIDs, "DIGEST_USER_IDS")
	envOverrideBool(&cfg.DigestSummarize, "DIGEST_SUMMARIZE")

	if err := cfg.validate(requireBot); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// defaultConfig holds the values used for keys absent from both the YAML
// file and the environment. Explicit zero values still override them.
func defaultConfig() Config {
	return Config{
		Transport:                  TransportTelegram,
		DBPath:                     "./worklogbot.db",
		StateBackend:               StateBackendSQLite,
		StateTTLMinutes:            defaultStateTTLMinutes,
		LLMProvider:                ProviderOllama,
		OllamaHost:                 "http://localhost:11434",
		LLMTimeoutSeconds:          defaultLLMTimeoutSeconds,
		ExternalHTTPTimeoutSeconds: defaultExternalHTTPTimeoutSeconds,
		Timezone:                   "Local",
		WorklogCutoffTime:          domain.DefaultCutoffTime,
		WorklogWindowMode:          domain.WindowModeCutoff,
		WorklogFixedDays:           domain.DefaultFixedDays,
		WorklogMaxIssues:           MaxIssues,
		ReportEmptyText:            defaultEmptyReportText,
	}
}

func (c *Config) validate(requireBot bool) error {
	switch c.Transport {
	case TransportTelegram:
		if requireBot && c.TelegramBotToken == "" {
			return configErr("telegram_bot_token is required when transport=telegram")
		}
	case TransportSlack:
		if requireBot && (c.SlackBotToken == "" || c.SlackAppToken == "") {
			return configErr("slack_bot_token and slack_app_token are required when transport=slack")
		}
	default:
		return configErr("transport must be 'telegram' or 'slack', got '%s'", c.Transport)
	}

	if requireBot && strings.TrimSpace(c.JiraURL) == "" {
		return configErr("Required config 'jira_url' is not set (via config.yaml or env var)")
	}
	c.JiraURL = strings.TrimRight(strings.TrimSpace(c.JiraURL), "/")

	switch c.StateBackend {
	case StateBackendMemory, StateBackendSQLite:
	default:
		return configErr("state_backend must be 'memory' or 'sqlite', got '%s'", c.StateBackend)
	}

	switch c.LLMProvider {
	case ProviderOllama:
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return configErr("anthropic_api_key is required when llm_provider=anthropic")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return configErr("openai_api_key is required when llm_provider=openai")
		}
	default:
		return configErr("llm_provider must be 'ollama', 'anthropic' or 'openai', got '%s'", c.LLMProvider)
	}

	if strings.EqualFold(c.Timezone, "Local") {
		c.Location = time.Local
	} else {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return configErr("invalid timezone '%s': %v", c.Timezone, err)
		}
		c.Location = loc
	}

	if _, _, err := domain.ParseClock(c.WorklogCutoffTime); err != nil {
		return configErr("invalid worklog_cutoff_time '%s': %v", c.WorklogCutoffTime, err)
	}
	switch c.WorklogWindowMode {
	case domain.WindowModeCutoff, domain.WindowModeFixed:
	default:
		return configErr("worklog_window_mode must be 'cutoff' or 'fixed', got '%s'", c.WorklogWindowMode)
	}
	if c.WorklogFixedDays < 0 {
		return configErr("invalid worklog_fixed_days '%d': must be >= 0", c.WorklogFixedDays)
	}
	if c.WorklogMaxIssues < 1 || c.WorklogMaxIssues > MaxIssues {
		return configErr("invalid worklog_max_issues '%d': must be between 1 and %d", c.WorklogMaxIssues, MaxIssues)
	}
	if c.ExternalHTTPTimeoutSeconds < 5 {
		return configErr("invalid external_http_timeout_seconds '%d': must be >= 5", c.ExternalHTTPTimeoutSeconds)
	}
	if c.LLMTimeoutSeconds < 5 {
		return configErr("invalid llm_timeout_seconds '%d': must be >= 5", c.LLMTimeoutSeconds)
	}
	if c.StateTTLMinutes < 1 {
		return configErr("invalid state_ttl_minutes '%d': must be >= 1", c.StateTTLMinutes)
	}
	if c.DigestSchedule != "" && len(c.DigestUserIDs) == 0 {
		log.Printf("WARNING: digest_schedule is set but digest_user_ids is empty; digest will send nothing")
	}
	return nil
}

// Schedule returns the business-day cadence the window resolver uses.
func (c Config) Schedule() domain.Schedule {
	hour, min, err := domain.ParseClock(c.WorklogCutoffTime)
	if err != nil {
		return domain.DefaultSchedule(c.Location)
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return domain.Schedule{CutoffHour: hour, CutoffMinute: min, Location: loc}
}

func (c Config) WindowPolicy() domain.WindowPolicy {
	return domain.WindowPolicy{
		Mode:      c.WorklogWindowMode,
		FixedDays: c.WorklogFixedDays,
		Schedule:  c.Schedule(),
	}
}

func (c Config) DefaultLLMModel() string {
	if c.LLMModel != "" {
		return c.LLMModel
	}
	switch c.LLMProvider {
	case ProviderAnthropic:
		return "claude-sonnet-4-5-20250929"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	default:
		return "qwen2.5"
	}
}

func (c Config) ExternalHTTPTimeout() time.Duration {
	return time.Duration(c.ExternalHTTPTimeoutSeconds) * time.Second
}

func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

func (c Config) StateTTL() time.Duration {
	return time.Duration(c.StateTTLMinutes) * time.Minute
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrConfiguration, fmt.Sprintf(format, args...))
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return configErr("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

func envOverrideList(field *[]string, envKey string) {
	raw := os.Getenv(envKey)
	if raw == "" {
		return
	}
	*field = nil
	for _, v := range strings.Split(raw, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			*field = append(*field, v)
		}
	}
}
