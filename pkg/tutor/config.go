// Package tutor hosts the language-tutoring application built on the
// streaming core: practice sessions, listening exercises, writing review.
package tutor

import (
	"fmt"
	"os"
	"strings"

	"github.com/rhazera/lingora/pkg/configutil"
	"github.com/spf13/viper"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	Language      LanguageConfig      `mapstructure:"language"`
	Audio         AudioConfig         `mapstructure:"audio"`
	Live          VendorConfig        `mapstructure:"live"`
	Gen           VendorConfig        `mapstructure:"gen"`
	Turn          TurnConfig          `mapstructure:"turn"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// VendorConfig carries one endpoint's provider-specific settings map.
// Values are expanded against the environment before use.
type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type LanguageConfig struct {
	Target  string            `mapstructure:"target"`
	Native  string            `mapstructure:"native"`
	Level   string            `mapstructure:"level"`
	Voice   string            `mapstructure:"voice"`
	Prompts map[string]string `mapstructure:"prompts"`
}

type AudioConfig struct {
	CaptureRate       int  `mapstructure:"capture_rate"`
	CaptureBlock      int  `mapstructure:"capture_block"`
	OutputChannels    int  `mapstructure:"output_channels"`
	ReplicateChannels bool `mapstructure:"replicate_channels"`
}

type TurnConfig struct {
	BargeInThresholdMS int `mapstructure:"barge_in_threshold_ms"`
	SpeechGate         int `mapstructure:"speech_gate"`
}

type ObservabilityConfig struct {
	ArtifactsDir string `mapstructure:"artifacts_dir"`
	Metrics      bool   `mapstructure:"metrics"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("language.target", "fr")
	v.SetDefault("language.native", "en")
	v.SetDefault("language.level", "beginner")
	v.SetDefault("audio.capture_rate", 16000)
	v.SetDefault("audio.capture_block", 4096)
	v.SetDefault("audio.output_channels", 1)
	v.SetDefault("audio.replicate_channels", false)
	v.SetDefault("turn.barge_in_threshold_ms", 500)
	v.SetDefault("turn.speech_gate", 500)
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.metrics", false)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	cfg.Live.Settings = expandSettings(cfg.Live.Settings)
	cfg.Gen.Settings = expandSettings(cfg.Gen.Settings)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

var liveSchema = configutil.Schema{
	Required: []string{"url", "api_key"},
	Optional: []string{"model", "input_transcription", "output_transcription"},
}

var genSchema = configutil.Schema{
	Required: []string{"base_url"},
	Optional: []string{"api_key", "model", "timeout_ms", "retries", "backoff_ms"},
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Live.Provider) == "" {
		return fmt.Errorf("live.provider is required")
	}
	if err := configutil.ValidateSettings(c.Live.Settings, liveSchema); err != nil {
		return fmt.Errorf("live.settings: %w", err)
	}
	if strings.TrimSpace(c.Gen.Provider) != "" {
		if err := configutil.ValidateSettings(c.Gen.Settings, genSchema); err != nil {
			return fmt.Errorf("gen.settings: %w", err)
		}
	}
	if c.Audio.CaptureRate <= 0 {
		return fmt.Errorf("audio.capture_rate must be positive")
	}
	if c.Audio.CaptureBlock <= 0 {
		return fmt.Errorf("audio.capture_block must be positive")
	}
	return nil
}

// SystemPrompt resolves the practice prompt for the configured target
// language, falling back to a generic tutoring prompt.
func (c *Config) SystemPrompt() string {
	if p, ok := c.Language.Prompts[c.Language.Target]; ok && strings.TrimSpace(p) != "" {
		return p
	}
	return fmt.Sprintf(
		"You are a friendly %s language tutor. The learner's native language is %s and their level is %s. "+
			"Speak mostly in %s, keep replies short, and gently correct mistakes.",
		c.Language.Target, c.Language.Native, c.Language.Level, c.Language.Target)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}
