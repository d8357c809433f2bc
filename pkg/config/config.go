// Package config loads the emma configuration from a YAML file, an optional
// .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/andrew/emma/pkg/llm"
)

// DefaultPath is the config file read when none is given
const DefaultPath = "config.yaml"

// DefaultPersonality names the preset that can never be removed
const DefaultPersonality = "default"

// Config is the full emma configuration
type Config struct {
	Model             string            `yaml:"model"`
	Temperature       float64           `yaml:"temperature"`
	MaxTokens         int               `yaml:"max_tokens"`
	TopP              float64           `yaml:"top_p"`
	TopK              int               `yaml:"top_k"`
	ContextSize       int               `yaml:"context_size"`
	SystemPrompt      string            `yaml:"system_prompt"`
	ChatHistoryLimit  int               `yaml:"chat_history_limit"`
	SaveConversations bool              `yaml:"save_conversations"`
	ConversationDir   string            `yaml:"conversation_dir"`
	StorageBackend    string            `yaml:"storage_backend"`
	StrictListing     bool              `yaml:"strict_listing"`
	Verbose           bool              `yaml:"verbose"`
	OllamaHost        string            `yaml:"ollama_host"`
	APIKey            string            `yaml:"api_key"`
	UserName          string            `yaml:"user_name"`
	UsePanels         bool              `yaml:"use_panels"`
	LogDir            string            `yaml:"log_dir"`
	Personalities     map[string]string `yaml:"personalities"`
}

// Default returns the built-in configuration
func Default() *Config {
	opts := llm.DefaultOptions()
	return &Config{
		Model:             "gemma3:1b",
		Temperature:       opts.Temperature,
		MaxTokens:         opts.MaxTokens,
		TopP:              opts.TopP,
		TopK:              opts.TopK,
		ContextSize:       4096,
		SystemPrompt:      "You are Emma, a smart and friendly virtual assistant.",
		ChatHistoryLimit:  20,
		SaveConversations: true,
		ConversationDir:   "conversations",
		StorageBackend:    "json",
		Verbose:           false,
		OllamaHost:        llm.DefaultHost,
		UserName:          "You",
		UsePanels:         true,
		LogDir:            "logs",
		Personalities: map[string]string{
			DefaultPersonality: "You are Emma, a smart and friendly virtual assistant.",
			"creative":         "You are Emma, a creative assistant with a vivid imagination.",
			"technical":        "You are Emma, a technical assistant expert in programming and technology.",
			"concise":          "You are Emma, an assistant who gives short, direct answers.",
			"educational":      "You are Emma, an educational assistant who explains concepts clearly and didactically.",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path, then
// the environment (including a .env file in the working directory). A
// missing file is created with the defaults.
func Load(path string, logger *zap.Logger) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// a personalities block replaces the presets rather than merging into them
		cfg.Personalities = nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if cfg.Personalities == nil {
			cfg.Personalities = Default().Personalities
		}
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("config file not found, writing defaults", zap.String("path", path))
		if err := cfg.Save(path); err != nil {
			logger.Error("failed to write default config", zap.Error(err))
		}
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", zap.Error(err))
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		if !strings.Contains(v, "://") {
			v = "http://" + v
		}
		c.OllamaHost = v
	}
	if v := os.Getenv("EMMA_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("EMMA_CONVERSATION_DIR"); v != "" {
		c.ConversationDir = v
	}
	if v := os.Getenv("EMMA_USER_NAME"); v != "" {
		c.UserName = v
	}
}

// Validate checks the generation parameters are in range
func (c *Config) Validate() error {
	var errs []error
	if c.Temperature < 0 || c.Temperature > 1 {
		errs = append(errs, fmt.Errorf("temperature must be between 0 and 1, got %v", c.Temperature))
	}
	if c.TopP < 0 || c.TopP > 1 {
		errs = append(errs, fmt.Errorf("top_p must be between 0 and 1, got %v", c.TopP))
	}
	if c.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("max_tokens must be at least 1, got %d", c.MaxTokens))
	}
	if c.TopK < 0 {
		errs = append(errs, fmt.Errorf("top_k must not be negative, got %d", c.TopK))
	}
	if c.ContextSize < 0 {
		errs = append(errs, fmt.Errorf("context_size must not be negative, got %d", c.ContextSize))
	}
	if c.ChatHistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("chat_history_limit must not be negative, got %d", c.ChatHistoryLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// GenerationOptions returns the configured generation parameters
func (c *Config) GenerationOptions() llm.Options {
	return llm.Options{
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		TopP:        c.TopP,
		TopK:        c.TopK,
	}
}

// Personality returns the system prompt of a named preset
func (c *Config) Personality(name string) (string, bool) {
	prompt, ok := c.Personalities[name]
	return prompt, ok
}

// AddPersonality adds or replaces a preset
func (c *Config) AddPersonality(name, prompt string) {
	if c.Personalities == nil {
		c.Personalities = map[string]string{}
	}
	c.Personalities[name] = prompt
}

// RemovePersonality deletes a preset. The default preset is kept.
func (c *Config) RemovePersonality(name string) bool {
	if name == DefaultPersonality {
		return false
	}
	if _, ok := c.Personalities[name]; !ok {
		return false
	}
	delete(c.Personalities, name)
	return true
}
