// Package config loads fpf settings from a YAML file and FPF_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/morganross/FilePromptForge/internal/domain"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "fpf.yaml"

// EnvPrefix prefixes every environment override. "__" separates nested keys.
const EnvPrefix = "FPF_"

type Config struct {
	Provider     string            `koanf:"provider"`
	Model        string            `koanf:"model"`
	ProviderURLs map[string]string `koanf:"provider_urls"`

	PromptTemplate     string `koanf:"prompt_template"`
	PromptTemplateFile string `koanf:"prompt_template_file"`

	// SecretsFile is never taken from the environment.
	SecretsFile string `koanf:"secrets_file"`

	Output         OutputConfig  `koanf:"output"`
	LogsDir        string        `koanf:"logs_dir"`
	RequestTimeout time.Duration `koanf:"request_timeout"`

	Sampling  SamplingConfig  `koanf:"sampling"`
	WebSearch WebSearchConfig `koanf:"web_search"`
	Reasoning ReasoningConfig `koanf:"reasoning"`

	Referer string `koanf:"referer"`
	Title   string `koanf:"title"`
	JSON    bool   `koanf:"json"`

	Verification map[string]VerificationConfig `koanf:"verification"`
	Grounding    GroundingConfig               `koanf:"grounding"`
	Batch        BatchConfig                   `koanf:"batch"`
	Storage      StorageConfig                 `koanf:"storage"`
	Telemetry    TelemetryConfig               `koanf:"telemetry"`
	PricingFile  string                        `koanf:"pricing_file"`
	Test         TestConfig                    `koanf:"test"`

	// Dir is the directory of the loaded config file. Relative paths resolve against it.
	Dir string `koanf:"-"`
}

type OutputConfig struct {
	Pattern string `koanf:"pattern"`
	Dir     string `koanf:"dir"`
}

type SamplingConfig struct {
	Temperature *float64 `koanf:"temperature"`
	MaxTokens   *int     `koanf:"max_tokens"`
	TopP        *float64 `koanf:"top_p"`
}

type WebSearchConfig struct {
	MaxResults   int                  `koanf:"max_results"`
	SearchPrompt string               `koanf:"search_prompt"`
	ContextSize  string               `koanf:"context_size"`
	UserLocation *domain.UserLocation `koanf:"user_location"`
}

type ReasoningConfig struct {
	Effort    string `koanf:"effort"`
	MaxTokens int    `koanf:"max_tokens"`
	Summary   string `koanf:"summary"`
}

// VerificationConfig tunes the web search verifier for one provider.
type VerificationConfig struct {
	StringFallback  *bool    `koanf:"string_fallback"`
	CitationMarkers []string `koanf:"citation_markers"`
}

// GroundingConfig controls the pre-flight grounding policy.
type GroundingConfig struct {
	Enabled                 bool                `koanf:"enabled"`
	AllowUngroundedFallback bool                `koanf:"allow_ungrounded_fallback"`
	Allow                   map[string][]string `koanf:"allow"`
}

type BatchConfig struct {
	Delay time.Duration `koanf:"delay"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

// TestConfig holds default inputs used when no files are given on the command line.
type TestConfig struct {
	FileA string `koanf:"file_a"`
	FileB string `koanf:"file_b"`
}

// DefaultSearchPrompt is sent to providers that accept a search prompt.
const DefaultSearchPrompt = "A web search was conducted. Incorporate the following web search results into your response. " +
	"IMPORTANT: Cite them using markdown links named using the domain of the source. " +
	"Example: [nytimes.com](https://nytimes.com/some-page)."

var defaults = map[string]any{
	"provider":                   "openai",
	"model":                      "gpt-5",
	"secrets_file":               ".env",
	"output.pattern":             "<file_b_stem>.<model_name>.fpf.response.txt",
	"logs_dir":                   "logs",
	"request_timeout":            "10m",
	"web_search.max_results":     5,
	"web_search.search_prompt":   DefaultSearchPrompt,
	"web_search.context_size":    "medium",
	"reasoning.effort":           "high",
	"reasoning.summary":          "auto",
	"referer":                    "https://local.dev/fpf",
	"title":                      "File Prompt Forge",
	"grounding.enabled":          true,
	"grounding.allow.openai":     []string{"gpt-5", "o3", "o4-mini", "-deep-research"},
	"grounding.allow.google":     []string{"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.5-flash-lite"},
	"grounding.allow.openrouter": []string{":online"},
	"batch.delay":                "1s",
	"storage.type":               "sqlite",
	"storage.sqlite.path":        "fpf.db",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (DefaultPath when empty) and applies FPF_ environment overrides.
// A missing default file is tolerated; a missing explicit file is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	k := koanf.New(".")

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	cfg.Dir = dir

	for name, url := range cfg.ProviderURLs {
		cfg.ProviderURLs[name] = substituteEnvVars(url)
	}
	cfg.Referer = substituteEnvVars(cfg.Referer)

	cfg.SecretsFile = cfg.resolve(cfg.SecretsFile)
	cfg.PromptTemplateFile = cfg.resolve(cfg.PromptTemplateFile)
	cfg.PricingFile = cfg.resolve(cfg.PricingFile)
	cfg.LogsDir = cfg.resolve(cfg.LogsDir)
	cfg.Storage.SQLite.Path = cfg.resolve(cfg.Storage.SQLite.Path)
	cfg.Test.FileA = cfg.resolve(cfg.Test.FileA)
	cfg.Test.FileB = cfg.resolve(cfg.Test.FileB)

	return &cfg, nil
}

// envKey maps FPF_WEB_SEARCH__MAX_RESULTS to web_search.max_results.
// The secrets file location is deliberately unreachable from the environment.
func envKey(s string) string {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	if key == "secrets_file" {
		return ""
	}
	return key
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Validate reports settings that cannot produce a run.
func (c *Config) Validate() error {
	var errs []error

	if _, err := domain.ParseProvider(c.Provider); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.WebSearch.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("web_search.max_results must not be negative, got %d", c.WebSearch.MaxResults))
	}
	switch c.WebSearch.ContextSize {
	case "", "low", "medium", "high":
	default:
		errs = append(errs, fmt.Errorf("web_search.context_size %q is not one of low, medium, high", c.WebSearch.ContextSize))
	}
	switch c.Reasoning.Effort {
	case "", "minimal", "low", "medium", "high":
	default:
		errs = append(errs, fmt.Errorf("reasoning.effort %q is not one of minimal, low, medium, high", c.Reasoning.Effort))
	}
	if c.Batch.Delay < 0 {
		errs = append(errs, fmt.Errorf("batch.delay must not be negative, got %s", c.Batch.Delay))
	}
	switch c.Storage.Type {
	case "sqlite", "memory", "none", "":
	default:
		errs = append(errs, fmt.Errorf("storage.type %q is not one of sqlite, memory, none", c.Storage.Type))
	}
	if c.Storage.Type == "sqlite" && c.Storage.SQLite.Path == "" {
		errs = append(errs, errors.New("storage.sqlite.path is required for sqlite storage"))
	}
	for name := range c.ProviderURLs {
		if _, err := domain.ParseProvider(name); err != nil {
			errs = append(errs, fmt.Errorf("provider_urls: %w", err))
		}
	}

	return errors.Join(errs...)
}

// ProviderKind returns the configured provider. Call Validate first.
func (c *Config) ProviderKind() domain.Provider {
	p, _ := domain.ParseProvider(c.Provider)
	return p
}

// ProviderURL returns the configured endpoint for p, or fallback when none is set.
func (c *Config) ProviderURL(p domain.Provider, fallback string) string {
	if u := c.ProviderURLs[string(p)]; u != "" {
		return u
	}
	return fallback
}

// VerificationFor returns the verifier settings for p.
func (c *Config) VerificationFor(p domain.Provider) VerificationConfig {
	return c.Verification[string(p)]
}

// GroundingAllow returns the grounding allow-list for p.
func (c *Config) GroundingAllow(p domain.Provider) []string {
	return c.Grounding.Allow[string(p)]
}

// RequestSpec builds the immutable run input for prompt.
func (c *Config) RequestSpec(prompt string) *domain.RequestSpec {
	return &domain.RequestSpec{
		Provider: c.ProviderKind(),
		Model:    c.Model,
		Prompt:   prompt,
		Sampling: domain.Sampling{
			Temperature: c.Sampling.Temperature,
			MaxTokens:   c.Sampling.MaxTokens,
			TopP:        c.Sampling.TopP,
		},
		WebSearch: domain.WebSearchOptions{
			MaxResults:   c.WebSearch.MaxResults,
			SearchPrompt: c.WebSearch.SearchPrompt,
			ContextSize:  c.WebSearch.ContextSize,
			UserLocation: c.WebSearch.UserLocation,
		},
		Reasoning: domain.ReasoningOptions{
			Effort:    c.Reasoning.Effort,
			MaxTokens: c.Reasoning.MaxTokens,
			Summary:   c.Reasoning.Summary,
		},
		Referer:  c.Referer,
		Title:    c.Title,
		JSONMode: c.JSON,
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
