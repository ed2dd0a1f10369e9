// Package config loads and hot-reloads the wenshape process configuration:
// server ports, the project data directory, LLM provider selection, rate
// limits, and the context-budget ratios of spec.md §4.6.1.
//
// Grounded on internal/config/config.go in the teacher (viper + fsnotify
// hot-reload), adapted from shelf's DefraDB-seeded config store to a plain
// YAML file, since spec.md has no graph-database component.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ProviderConfig describes one configured LLM provider.
type ProviderConfig struct {
	Type      string  `mapstructure:"type" yaml:"type"`
	Model     string  `mapstructure:"model" yaml:"model"`
	APIKey    string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL   string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
}

// BudgetRatios mirrors spec.md §4.6.1's BudgetManager input ratios.
type BudgetRatios struct {
	SystemRules   float64 `mapstructure:"system_rules" yaml:"system_rules"`
	Cards         float64 `mapstructure:"cards" yaml:"cards"`
	Canon         float64 `mapstructure:"canon" yaml:"canon"`
	Summaries     float64 `mapstructure:"summaries" yaml:"summaries"`
	CurrentDraft  float64 `mapstructure:"current_draft" yaml:"current_draft"`
	OutputReserve float64 `mapstructure:"output_reserve" yaml:"output_reserve"`
}

// Quota is a per-evidence-type [min,max] selection quota (spec.md §4.3).
type Quota struct {
	Min int `mapstructure:"min" yaml:"min"`
	Max int `mapstructure:"max" yaml:"max"`
}

// Config is the top-level wenshape process configuration.
type Config struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`

	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	LLMProviders map[string]ProviderConfig `mapstructure:"llm_providers" yaml:"llm_providers"`
	DefaultLLM   string                    `mapstructure:"default_llm" yaml:"default_llm"`
	WriterLLM    string                    `mapstructure:"writer_llm" yaml:"writer_llm"`

	ContextWindow   int          `mapstructure:"context_window" yaml:"context_window"`
	MaxOutputTokens int          `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
	BudgetRatios    BudgetRatios `mapstructure:"budget_ratios" yaml:"budget_ratios"`

	Quotas map[string]Quota `mapstructure:"quotas" yaml:"quotas"`

	MaxResearchRounds int `mapstructure:"max_research_rounds" yaml:"max_research_rounds"`
	HistoryKeep       int `mapstructure:"history_keep" yaml:"history_keep"`

	DebugAgents bool `mapstructure:"debug_agents" yaml:"debug_agents"`
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads the initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{callbacks: make([]func(*Config), 0)}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg
	return cm, nil
}

func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("host", defaults.Host)
	viper.SetDefault("port", defaults.Port)
	viper.SetDefault("data_dir", defaults.DataDir)
	viper.SetDefault("llm_providers", defaults.LLMProviders)
	viper.SetDefault("default_llm", defaults.DefaultLLM)
	viper.SetDefault("writer_llm", defaults.WriterLLM)
	viper.SetDefault("context_window", defaults.ContextWindow)
	viper.SetDefault("max_output_tokens", defaults.MaxOutputTokens)
	viper.SetDefault("budget_ratios", defaults.BudgetRatios)
	viper.SetDefault("quotas", defaults.Quotas)
	viper.SetDefault("max_research_rounds", defaults.MaxResearchRounds)
	viper.SetDefault("history_keep", defaults.HistoryKeep)
	viper.SetDefault("debug_agents", defaults.DebugAgents)

	viper.SetEnvPrefix("WENSHAPE")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.wenshape")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback invoked after every successful reload.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables fsnotify-driven hot reloading.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ResolvedProviders returns LLMProviders with every APIKey's ${ENV_VAR}
// references expanded.
func (c *Config) ResolvedProviders() map[string]ProviderConfig {
	out := make(map[string]ProviderConfig, len(c.LLMProviders))
	for name, p := range c.LLMProviders {
		p.APIKey = ResolveEnvVars(p.APIKey)
		out[name] = p
	}
	return out
}

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# wenshape configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENAI_API_KEY=xxx OPENROUTER_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
