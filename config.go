package alttext

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProviderSettings carries connection details for one provider prefix.
type ProviderSettings struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
	Mode     string `mapstructure:"mode"`   // moondream: "cloud" or "local"
	Detail   string `mapstructure:"detail"` // chat backends: image detail hint
	Length   string `mapstructure:"length"` // moondream: "short" or "normal"

	// RequestsPerMinute caps outbound calls for backends that rate limit
	// client-side (openai). Zero uses the backend default.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// QueueConfig selects the redis queue connection and list name.
type QueueConfig struct {
	Addr string `mapstructure:"addr"`
	Name string `mapstructure:"name"`
}

// Config is the complete plugin configuration, resolved once at startup
// and threaded explicitly into every component. It is never mutated after
// Load returns.
type Config struct {
	// Model addresses the backend as "provider/model", e.g. "openai/gpt-4.1".
	Model string `mapstructure:"model"`

	SystemMessage string  `mapstructure:"system_message"`
	Prompt        string  `mapstructure:"prompt"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	Temperature   float64 `mapstructure:"temperature"`
	// Timeout bounds each outbound provider call, in seconds.
	Timeout int `mapstructure:"timeout"`

	AltTextField   string `mapstructure:"alt_text_field"`
	LogCompletions bool   `mapstructure:"log_completions"`

	// MaxDimensionPixels caps the larger image dimension before upload;
	// nil disables resizing.
	MaxDimensionPixels *int `mapstructure:"max_dimension_pixels"`

	// AutomaticGenerationEvents lists host lifecycle events that trigger
	// generation for assets with an empty alt-text field.
	AutomaticGenerationEvents []string `mapstructure:"automatic_generation_events"`

	IgnorePatterns    []string `mapstructure:"ignore_patterns"`
	IgnoreFieldHandle string   `mapstructure:"ignore_field_handle"`

	// Params is merged shallowly over each provider request payload.
	Params map[string]any `mapstructure:"params"`

	Providers map[string]ProviderSettings `mapstructure:"providers"`

	Queue QueueConfig `mapstructure:"queue"`

	// MarkerTTL is the pending-marker lifetime in minutes. Must exceed
	// the worst-case generation latency.
	MarkerTTL int `mapstructure:"marker_ttl"`

	StorePath  string `mapstructure:"store_path"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoadConfig reads YAML configuration from path ("" skips the file) with
// AUTO_ALT_TEXT_* environment overrides, fills defaults, and validates.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("AUTO_ALT_TEXT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model", "openai/gpt-4.1")
	v.SetDefault("system_message",
		"You are an accessibility expert generating concise, descriptive alt text for images. "+
			"Focus on the most important visual elements that convey meaning and context. "+
			"Keep descriptions brief but informative for screen readers. "+
			"Reply with the alt text only, no introduction or explanations.")
	v.SetDefault("prompt", defaultPrompt)
	v.SetDefault("max_tokens", 100)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("timeout", 60)
	v.SetDefault("alt_text_field", "alt")
	v.SetDefault("log_completions", false)
	v.SetDefault("max_dimension_pixels", 2048)
	v.SetDefault("automatic_generation_events", []string{})
	v.SetDefault("ignore_patterns", []string{})
	v.SetDefault("ignore_field_handle", "auto_alt_text_ignore")
	v.SetDefault("queue.addr", "localhost:6379")
	v.SetDefault("queue.name", "alttext:jobs")
	v.SetDefault("marker_ttl", 15)
	v.SetDefault("store_path", "./alttext.db")
	v.SetDefault("listen_addr", ":8380")
}

func (c *Config) validate() error {
	if c.Model == "" {
		return fmt.Errorf("config: model must not be empty")
	}
	if c.AltTextField == "" {
		return fmt.Errorf("config: alt_text_field must not be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive")
	}
	if c.MarkerTTL <= 0 {
		return fmt.Errorf("config: marker_ttl must be positive")
	}
	return nil
}

// ProviderTimeout returns the per-call provider budget.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// MarkerLifetime returns the pending-marker TTL.
func (c *Config) MarkerLifetime() time.Duration {
	return time.Duration(c.MarkerTTL) * time.Minute
}

// Provider returns the settings block for a provider prefix, zero-valued
// when absent.
func (c *Config) Provider(name string) ProviderSettings {
	return c.Providers[name]
}
