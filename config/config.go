package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Assistant     AssistantConfig     `yaml:"assistant"`
	Chat          ChatConfig          `yaml:"chat"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	OpenAI        OpenAIConfig        `yaml:"openai"`
	Anthropic     AnthropicConfig     `yaml:"anthropic"`
	Audio         AudioConfig         `yaml:"audio"`
	Location      LocationConfig      `yaml:"location"`
	Server        ServerConfig        `yaml:"server"`
	Retry         RetryConfig         `yaml:"retry"`
	Pushover      PushoverConfig      `yaml:"pushover"`
	Log           LogConfig           `yaml:"log"`
}

type AssistantConfig struct {
	Name              string `yaml:"name"`
	Welcome           string `yaml:"welcome"`
	FallbackReply     string `yaml:"fallback_reply"`
	ApologyReply      string `yaml:"apology_reply"`
	SystemInstruction string `yaml:"system_instruction"`
}

type ChatConfig struct {
	// Provider is "rest" (hand-rolled generateContent client), "sdk"
	// (google.golang.org/genai) or "anthropic" (Messages API with web search).
	Provider      string `yaml:"provider"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	BaseURL       string `yaml:"base_url"`
	SendTimeout   string `yaml:"send_timeout"`
	CreateTimeout string `yaml:"create_timeout"`
}

type TranscriptionConfig struct {
	// Provider is "gemini" (uses the chat provider's client) or "openai".
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	MimeType    string `yaml:"mime_type"`
	Instruction string `yaml:"instruction"`
	Timeout     string `yaml:"timeout"`
}

type OpenAIConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type AudioConfig struct {
	Source      string `yaml:"source"`
	FilePath    string `yaml:"file_path"`
	SampleRate  int    `yaml:"sample_rate"`
	ChunkBytes  int    `yaml:"chunk_bytes"`
	MaxDuration string `yaml:"max_duration"`
}

type LocationConfig struct {
	Provider  string  `yaml:"provider"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	IPURL     string  `yaml:"ip_url"`
	Timeout   string  `yaml:"timeout"`
}

type ServerConfig struct {
	Addr          string `yaml:"addr"`
	RatePerMinute int    `yaml:"rate_per_minute"`
	Burst         int    `yaml:"burst"`
	AuthToken     string `yaml:"auth_token"`
}

type RetryConfig struct {
	MaxAttempts  int    `yaml:"max_attempts"`
	InitialDelay string `yaml:"initial_delay"`
	MaxDelay     string `yaml:"max_delay"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse expands environment variables in data, decodes it and fills defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

const DefaultWelcome = "أهلاً وسهلاً في صالون مسودة! 💇‍♂️✨\nأنا هون عشان أجاوب على كل استفساراتك.\n\n⏰ دوامنا: يومياً من 10:30 صباحاً - 9:00 مساءً.\n🚭 ملاحظة: التدخين ممنوع داخل المحل.\n\nكيف بقدر أساعدك اليوم؟"

func (c *Config) setDefaults() {
	if c.Assistant.Name == "" {
		c.Assistant.Name = "Maswadh AI"
	}
	if c.Assistant.Welcome == "" {
		c.Assistant.Welcome = DefaultWelcome
	}
	if c.Chat.APIKey == "" {
		c.Chat.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Chat.Provider == "" {
		c.Chat.Provider = "rest"
	}
	if c.Chat.Model == "" {
		c.Chat.Model = "gemini-2.5-flash"
	}
	if c.Chat.SendTimeout == "" {
		c.Chat.SendTimeout = "60s"
	}
	if c.Chat.CreateTimeout == "" {
		c.Chat.CreateTimeout = "15s"
	}
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = "gemini"
	}
	if c.Transcription.MimeType == "" {
		c.Transcription.MimeType = "audio/wav"
	}
	if c.Transcription.Instruction == "" {
		c.Transcription.Instruction = "Transcribe this audio exactly as spoken in Arabic/English."
	}
	if c.Transcription.Timeout == "" {
		c.Transcription.Timeout = "30s"
	}
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "whisper-1"
	}
	if c.Anthropic.APIKey == "" {
		c.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = "claude-sonnet-4-20250514"
	}
	if c.Audio.Source == "" {
		c.Audio.Source = "microphone"
	}
	if c.Audio.FilePath == "" {
		c.Audio.FilePath = "./audio"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.ChunkBytes == 0 {
		c.Audio.ChunkBytes = 4096
	}
	if c.Audio.MaxDuration == "" {
		c.Audio.MaxDuration = "2m"
	}
	if c.Location.Provider == "" {
		c.Location.Provider = "ip"
	}
	if c.Location.Timeout == "" {
		c.Location.Timeout = "10s"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RatePerMinute == 0 {
		c.Server.RatePerMinute = 30
	}
	if c.Server.Burst == 0 {
		c.Server.Burst = 5
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialDelay == "" {
		c.Retry.InitialDelay = "250ms"
	}
	if c.Retry.MaxDelay == "" {
		c.Retry.MaxDelay = "5s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	checks := []struct {
		field, value string
		allowed      []string
	}{
		{"chat.provider", c.Chat.Provider, []string{"rest", "sdk", "anthropic"}},
		{"transcription.provider", c.Transcription.Provider, []string{"gemini", "openai"}},
		{"audio.source", c.Audio.Source, []string{"microphone", "file"}},
		{"location.provider", c.Location.Provider, []string{"ip", "static", "none"}},
	}
	for _, chk := range checks {
		if !slices.Contains(chk.allowed, chk.value) {
			return fmt.Errorf("invalid %s %q (want one of %v)", chk.field, chk.value, chk.allowed)
		}
	}
	return nil
}

// Duration parses value, returning fallback together with the parse error
// when value is not a valid duration.
func Duration(value string, fallback time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	return d, nil
}
