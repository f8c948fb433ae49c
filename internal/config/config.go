// Package config loads provider settings for the receipt tools.
//
// Settings come from an optional TOML file and the process environment. API keys
// found in the environment override the file so that secrets can stay out of it.
//
//	default_provider = "gemini"
//	request_timeout_seconds = 120
//
//	[llms.gemini]
//	model = "gemini-1.5-flash"
//
//	[llms.ollama]
//	base_url = "http://localhost:11434"
//	model = "llava"
//
//	[ocr]
//	api_key = "..."
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	appName        = "receipt-batch"
	configFileName = "config.toml"

	defaultTimeoutSeconds = 120
)

// Provider names
const (
	Gemini    = "gemini"
	Anthropic = "anthropic"
	OpenAI    = "openai"
	Ollama    = "ollama"
)

var (
	// ErrMissingCredential is returned when the selected provider needs an API key and has none
	ErrMissingCredential = errors.New("missing API credential")
	// ErrUnknownProvider is returned for a provider name with no implementation
	ErrUnknownProvider = errors.New("unknown provider")
)

// envKeys maps providers to the environment variable holding their API key
var envKeys = map[string]string{
	Gemini:    "GEMINI_API_KEY",
	Anthropic: "ANTHROPIC_API_KEY",
	OpenAI:    "OPENAI_API_KEY",
}

// visionKeyEnv holds the Cloud Vision API key used by OCR mode
const visionKeyEnv = "GOOGLE_VISION_API_KEY"

// Config holds provider selection and per-provider settings
type Config struct {
	DefaultProvider       string              `toml:"default_provider"`
	RequestTimeoutSeconds int                 `toml:"request_timeout_seconds"`
	LLMs                  map[string]Provider `toml:"llms"`
	OCR                   OCR                 `toml:"ocr"`
}

// OCR holds the Cloud Vision settings for text detection
type OCR struct {
	APIKey  string `toml:"api_key,omitempty"`
	BaseURL string `toml:"base_url,omitempty"`
}

// Provider holds the settings of a single LLM provider
type Provider struct {
	BaseURL string `toml:"base_url,omitempty"`
	APIKey  string `toml:"api_key,omitempty"`
	Model   string `toml:"model,omitempty"`
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		DefaultProvider:       Gemini,
		RequestTimeoutSeconds: defaultTimeoutSeconds,
		LLMs: map[string]Provider{
			Gemini:    {},
			Anthropic: {},
			OpenAI:    {},
			Ollama:    {BaseURL: "http://localhost:11434"},
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/receipt-batch/config.toml, falling back to ~/.config
func DefaultPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("determining user home directory: %w", err)
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, appName, configFileName), nil
}

// Load reads the TOML file at path over the defaults. An empty path means the
// default location, which may be absent. An explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("accessing config file %s: %w", path, err)
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decoding config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		slog.Warn("Unknown configuration keys", "path", path, "keys", undecoded)
	}
	slog.Debug("Loaded configuration", "path", path)

	return cfg, nil
}

// ApplyEnv overlays API keys from the environment using lookup (usually os.Getenv)
func (c *Config) ApplyEnv(lookup func(string) string) {
	if c.LLMs == nil {
		c.LLMs = make(map[string]Provider)
	}
	for name, key := range envKeys {
		if v := lookup(key); v != "" {
			p := c.LLMs[name]
			p.APIKey = v
			c.LLMs[name] = p
		}
	}
	if v := lookup(visionKeyEnv); v != "" {
		c.OCR.APIKey = v
	}
}

// Timeout returns the per-request timeout
func (c Config) Timeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return defaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Provider returns the validated settings for name. Every provider except
// ollama requires an API key.
func (c Config) Provider(name string) (Provider, error) {
	if _, known := envKeys[name]; !known && name != Ollama {
		return Provider{}, fmt.Errorf("%w: %q (valid: %v)", ErrUnknownProvider, name, Names())
	}

	p := c.LLMs[name]
	if name != Ollama && p.APIKey == "" {
		return Provider{}, fmt.Errorf("%w: set %s for provider %s", ErrMissingCredential, envKeys[name], name)
	}
	return p, nil
}

// VisionKey returns the Cloud Vision API key or ErrMissingCredential
func (c Config) VisionKey() (string, error) {
	if c.OCR.APIKey == "" {
		return "", fmt.Errorf("%w: set %s for OCR", ErrMissingCredential, visionKeyEnv)
	}
	return c.OCR.APIKey, nil
}

// Names returns the supported provider names in sorted order
func Names() []string {
	names := []string{Ollama}
	for name := range envKeys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
