// Package config resolves run settings from a YAML file, the environment and command-line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"issuerank/internal/errs"
	"issuerank/internal/oracle"
)

const (
	DefaultConfigPath     = "issuerank.yaml"
	DefaultIssuesPath     = "input-issues.json"
	DefaultOutputPath     = "prioritized-issues.json"
	DefaultStrategy       = "bubble"
	DefaultMaxComparisons = 1.0
	DefaultSeed           = 42
	DefaultLogLevel       = "info"

	defaultExternalHTTPTimeout = 90 * time.Second
)

const DefaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

type Config struct {
	IssuesPath string `yaml:"issues_path"`
	OutputPath string `yaml:"output_path"`
	Strategy   string `yaml:"strategy"`
	// PromptPath defaults to <strategy>_prompt.txt.
	PromptPath string `yaml:"prompt_path"`

	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	LLMMaxTokens    int    `yaml:"llm_max_tokens"`
	LLMBaseURL      string `yaml:"llm_base_url"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`

	// MaxComparisons is the fraction of pairs the elo strategy compares. Zero is valid.
	MaxComparisons float64 `yaml:"max_comparisons"`
	Seed           int64   `yaml:"seed"`

	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`
	LogLevel                   string `yaml:"log_level"`

	HistoryDBPath  string `yaml:"history_db_path"`
	XLSXOutputPath string `yaml:"xlsx_output_path"`
	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	Schedule string `yaml:"schedule"`
	Timezone string `yaml:"timezone"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

// LoadConfig reads the YAML file and applies environment overrides. An empty path means
// CONFIG_PATH, else issuerank.yaml; only the implicit default may be absent.
func LoadConfig(path string) (Config, error) {
	// Zero is meaningful for these, so their defaults are set before decoding.
	cfg := Config{MaxComparisons: DefaultMaxComparisons, Seed: DefaultSeed}

	explicit := true
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path, explicit = DefaultConfigPath, false
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errs.Configuration(fmt.Sprintf("cannot parse %s", path), "", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, errs.Configuration(fmt.Sprintf("cannot read config file %s", path), "check --config or CONFIG_PATH", err)
	}

	env := envReader{}
	env.str(&cfg.IssuesPath, "ISSUERANK_ISSUES_PATH")
	env.str(&cfg.OutputPath, "ISSUERANK_OUTPUT_PATH")
	env.str(&cfg.Strategy, "ISSUERANK_STRATEGY")
	env.str(&cfg.PromptPath, "ISSUERANK_PROMPT_PATH")
	env.str(&cfg.LLMProvider, "ISSUERANK_LLM_PROVIDER")
	env.str(&cfg.LLMModel, "ISSUERANK_LLM_MODEL")
	env.integer(&cfg.LLMMaxTokens, "ISSUERANK_LLM_MAX_TOKENS")
	env.str(&cfg.LLMBaseURL, "ISSUERANK_LLM_BASE_URL")
	env.str(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	env.str(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	env.str(&cfg.GeminiAPIKey, "GEMINI_API_KEY")
	env.number(&cfg.MaxComparisons, "ISSUERANK_MAX_COMPARISONS")
	env.integer64(&cfg.Seed, "ISSUERANK_SEED")
	env.integer(&cfg.ExternalHTTPTimeoutSeconds, "ISSUERANK_EXTERNAL_HTTP_TIMEOUT_SECONDS")
	env.str(&cfg.LogLevel, "ISSUERANK_LOG_LEVEL")
	env.str(&cfg.HistoryDBPath, "ISSUERANK_HISTORY_DB_PATH")
	env.str(&cfg.XLSXOutputPath, "ISSUERANK_XLSX_OUTPUT_PATH")
	env.str(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	env.str(&cfg.SlackChannelID, "ISSUERANK_SLACK_CHANNEL_ID")
	env.str(&cfg.Schedule, "ISSUERANK_SCHEDULE")
	env.str(&cfg.Timezone, "ISSUERANK_TIMEZONE")
	if env.err != nil {
		return Config{}, env.err
	}
	return cfg, nil
}

// ApplyDefaults fills every unset option. Call it after flag overrides.
func (c *Config) ApplyDefaults() {
	if c.IssuesPath == "" {
		c.IssuesPath = DefaultIssuesPath
	}
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutputPath
	}
	c.Strategy = strings.ToLower(strings.TrimSpace(c.Strategy))
	if c.Strategy == "" {
		c.Strategy = DefaultStrategy
	}
	if c.PromptPath == "" {
		c.PromptPath = c.Strategy + "_prompt.txt"
	}
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	if c.LLMProvider == "" {
		c.LLMProvider = oracle.ProviderAnthropic
	}
	if c.LLMModel == "" {
		c.LLMModel = oracle.DefaultModel(c.LLMProvider)
	}
	if c.LLMMaxTokens == 0 {
		c.LLMMaxTokens = oracle.DefaultMaxTokens
	}
	if c.ExternalHTTPTimeoutSeconds == 0 {
		c.ExternalHTTPTimeoutSeconds = DefaultExternalHTTPTimeoutSeconds
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
}

// Validate checks everything except provider credentials and resolves Location.
func (c *Config) Validate() error {
	switch c.Strategy {
	case "bubble", "elo", "score":
	default:
		return errs.Configuration(fmt.Sprintf("invalid strategy '%s'", c.Strategy), "choose one of bubble, elo, score", nil)
	}
	if c.MaxComparisons < 0 || math.IsNaN(c.MaxComparisons) {
		return errs.Configuration(fmt.Sprintf("invalid max_comparisons '%v': must be >= 0", c.MaxComparisons), "", nil)
	}
	switch c.LLMProvider {
	case oracle.ProviderAnthropic, oracle.ProviderBedrock, oracle.ProviderOpenAI, oracle.ProviderGemini, oracle.ProviderNone:
	default:
		return errs.Configuration(fmt.Sprintf("invalid llm_provider '%s'", c.LLMProvider), "choose one of anthropic, bedrock, openai, gemini, none", nil)
	}
	if c.LLMMaxTokens < 1 {
		return errs.Configuration(fmt.Sprintf("invalid llm_max_tokens '%d': must be >= 1", c.LLMMaxTokens), "", nil)
	}
	if c.ExternalHTTPTimeoutSeconds < 5 {
		return errs.Configuration(fmt.Sprintf("invalid external_http_timeout_seconds '%d': must be >= 5", c.ExternalHTTPTimeoutSeconds), "", nil)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return errs.Configuration(fmt.Sprintf("invalid log_level '%s'", c.LogLevel), "choose one of debug, info, warn, error", nil)
	}
	if (c.SlackBotToken == "") != (c.SlackChannelID == "") {
		return errs.Configuration("partial Slack config", "slack_bot_token and slack_channel_id are required together", nil)
	}

	if strings.EqualFold(c.Timezone, "Local") {
		c.Location = time.Local
	} else {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return errs.Configuration(fmt.Sprintf("invalid timezone '%s'", c.Timezone), "use an IANA name such as Europe/Berlin", err)
		}
		c.Location = loc
	}
	return nil
}

// ValidateCredentials checks that the selected provider can authenticate. Bedrock relies on
// the AWS default credential chain and the none provider needs nothing.
func (c Config) ValidateCredentials() error {
	if key := c.APIKey(); key == "" {
		switch c.LLMProvider {
		case oracle.ProviderAnthropic, oracle.ProviderOpenAI, oracle.ProviderGemini:
			return errs.Configuration(
				fmt.Sprintf("%s_api_key is required when llm_provider=%s", c.LLMProvider, c.LLMProvider),
				fmt.Sprintf("set %s_API_KEY or use --provider none for severity-only ranking", strings.ToUpper(c.LLMProvider)),
				nil,
			)
		}
	}
	return nil
}

// APIKey returns the key for the configured provider.
func (c Config) APIKey() string {
	switch c.LLMProvider {
	case oracle.ProviderAnthropic:
		return c.AnthropicAPIKey
	case oracle.ProviderOpenAI:
		return c.OpenAIAPIKey
	case oracle.ProviderGemini:
		return c.GeminiAPIKey
	}
	return ""
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

func (c Config) ExternalHTTPTimeout() time.Duration {
	return time.Duration(c.ExternalHTTPTimeoutSeconds) * time.Second
}

// envReader applies environment overrides and keeps the first parse error.
type envReader struct {
	err error
}

func (e *envReader) str(field *string, key string) {
	if val := os.Getenv(key); val != "" {
		*field = val
	}
}

func (e *envReader) integer(field *int, key string) {
	if val := os.Getenv(key); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			e.fail(key, val, err)
			return
		}
		*field = parsed
	}
}

func (e *envReader) integer64(field *int64, key string) {
	if val := os.Getenv(key); val != "" {
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			e.fail(key, val, err)
			return
		}
		*field = parsed
	}
}

func (e *envReader) number(field *float64, key string) {
	if val := os.Getenv(key); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			e.fail(key, val, err)
			return
		}
		*field = parsed
	}
}

func (e *envReader) fail(key, val string, err error) {
	if e.err == nil {
		e.err = errs.Configuration(fmt.Sprintf("invalid %s '%s'", key, val), "", err)
	}
}
