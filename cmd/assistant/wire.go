package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"salon-assistant/config"
	"salon-assistant/internal/application"
	"salon-assistant/internal/infra"
	"salon-assistant/internal/infra/anthropic"
	"salon-assistant/internal/infra/audio"
	"salon-assistant/internal/infra/gemini"
	"salon-assistant/internal/infra/genai"
	"salon-assistant/internal/infra/geo"
	"salon-assistant/internal/infra/metrics"
	"salon-assistant/internal/infra/openai"
	"salon-assistant/internal/infra/pushover"
)

// inlineRequestLimit bounds an inline request, which carries the recording
// base64 encoded.
const inlineRequestLimit = 20 << 20

// maxInlineAudio is the largest raw recording whose encoding fits in
// inlineRequestLimit, leaving room for the WAV header and the JSON envelope.
const maxInlineAudio = (inlineRequestLimit - 64<<10) / 4 * 3

type app struct {
	orch     *application.Orchestrator
	locator  application.Locator
	factory  application.SessionFactory
	alerter  application.Alerter
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type durations struct {
	logger *slog.Logger
}

func (d durations) get(field, value string, fallback time.Duration) time.Duration {
	v, err := config.Duration(value, fallback)
	if err != nil {
		d.logger.Warn("invalid duration, using default", "field", field, "error", err, "value", value)
	}
	return v
}

func build(ctx context.Context, cfg *config.Config, notifier application.Notifier, logger *slog.Logger) (*app, error) {
	dur := durations{logger: logger}

	retry := infra.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Retry.MaxAttempts
	retry.InitialDelay = dur.get("retry.initial_delay", cfg.Retry.InitialDelay, retry.InitialDelay)
	retry.MaxDelay = dur.get("retry.max_delay", cfg.Retry.MaxDelay, retry.MaxDelay)

	factory, geminiSTT, err := createChatBackend(ctx, cfg, retry)
	if err != nil {
		return nil, err
	}

	stt := createTranscriber(cfg, geminiSTT, retry, logger)

	capture := createCapture(cfg, dur, logger)

	var alerter application.Alerter
	if cfg.Pushover.Enabled {
		alerter = pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey, cfg.Assistant.Name)
	} else {
		alerter = &application.NoopAlerter{}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	locator, err := createLocator(cfg.Location, retry)
	if err != nil {
		return nil, err
	}

	opts := application.Options{
		AssistantName:     cfg.Assistant.Name,
		Welcome:           cfg.Assistant.Welcome,
		FallbackReply:     cfg.Assistant.FallbackReply,
		ApologyReply:      cfg.Assistant.ApologyReply,
		SendTimeout:       dur.get("chat.send_timeout", cfg.Chat.SendTimeout, 60*time.Second),
		CreateTimeout:     dur.get("chat.create_timeout", cfg.Chat.CreateTimeout, 15*time.Second),
		TranscribeTimeout: dur.get("transcription.timeout", cfg.Transcription.Timeout, 30*time.Second),
		LocateTimeout:     dur.get("location.timeout", cfg.Location.Timeout, 10*time.Second),
	}

	orch := application.NewOrchestrator(capture, stt, notifier, alerter, m, opts, logger)

	logger.Info("assistant configured",
		"name", opts.AssistantName,
		"chat_provider", cfg.Chat.Provider,
		"model", cfg.Chat.Model,
		"transcription_provider", cfg.Transcription.Provider,
		"audio_source", capture.Name(),
		"location_provider", cfg.Location.Provider,
	)

	return &app{
		orch:     orch,
		locator:  locator,
		factory:  factory,
		alerter:  alerter,
		registry: registry,
		metrics:  m,
		logger:   logger,
	}, nil
}

// createChatBackend returns the session factory and, for Gemini backends, a
// transcriber sharing its client.
func createChatBackend(ctx context.Context, cfg *config.Config, retry infra.RetryConfig) (application.SessionFactory, application.Transcriber, error) {
	if cfg.Chat.Provider == "anthropic" {
		if cfg.Anthropic.APIKey == "" {
			return nil, nil, fmt.Errorf("anthropic.api_key is not set (or export ANTHROPIC_API_KEY)")
		}
		client := anthropic.NewClaudeClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, systemInstruction(cfg)).
			WithRetryConfig(retry)
		return client, nil, nil
	}

	if cfg.Chat.APIKey == "" {
		return nil, nil, fmt.Errorf("chat.api_key is not set (or export GEMINI_API_KEY)")
	}

	switch cfg.Chat.Provider {
	case "sdk":
		client, err := genai.NewClient(ctx, genai.Config{
			APIKey:            cfg.Chat.APIKey,
			Model:             cfg.Chat.Model,
			SystemInstruction: systemInstruction(cfg),
			BaseURL:           cfg.Chat.BaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, client.NewTranscriber(cfg.Transcription.Model, cfg.Transcription.Instruction), nil
	default:
		client := gemini.NewClientWithURL(cfg.Chat.APIKey, cfg.Chat.Model, cfg.Chat.BaseURL).
			WithSystemInstruction(cfg.Assistant.SystemInstruction).
			WithRetryConfig(retry)
		return client, client.NewTranscriber(cfg.Transcription.Model, cfg.Transcription.Instruction), nil
	}
}

func systemInstruction(cfg *config.Config) string {
	if cfg.Assistant.SystemInstruction != "" {
		return cfg.Assistant.SystemInstruction
	}
	return gemini.DefaultSystemInstruction
}

func createTranscriber(cfg *config.Config, geminiSTT application.Transcriber, retry infra.RetryConfig, logger *slog.Logger) application.Transcriber {
	if cfg.Transcription.Provider != "openai" {
		if geminiSTT == nil {
			logger.Warn("gemini transcription needs a gemini chat provider, voice input disabled", "chat_provider", cfg.Chat.Provider)
			return &application.NoopTranscriber{}
		}
		return geminiSTT
	}
	if cfg.OpenAI.APIKey == "" {
		logger.Warn("openai.api_key not set, voice input disabled")
		return &application.NoopTranscriber{}
	}
	return openai.NewWhisperClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.Transcription.Instruction).
		WithLanguage(cfg.OpenAI.Language).
		WithRetryConfig(retry)
}

func createCapture(cfg *config.Config, dur durations, logger *slog.Logger) *audio.Capture {
	switch cfg.Audio.Source {
	case "file":
		mimeType := audio.MimeTypeForPath(cfg.Audio.FilePath)
		if mimeType == "" {
			mimeType = cfg.Transcription.MimeType
		}
		device := audio.NewFileDevice(cfg.Audio.FilePath, cfg.Audio.ChunkBytes)
		return audio.NewCapture(device, audio.PassthroughEncoder{Mime: mimeType}, maxInlineAudio, logger)
	default:
		format := application.DefaultAudioFormat()
		format.SampleRate = cfg.Audio.SampleRate

		maxDuration := dur.get("audio.max_duration", cfg.Audio.MaxDuration, 2*time.Minute)

		device := audio.NewMicrophoneDevice(format.SampleRate, logger)
		return audio.NewCapture(device, audio.NewWAVEncoder(format), maxRecordingBytes(format, maxDuration), logger)
	}
}

// maxRecordingBytes is the PCM size of maxDuration in format, capped at
// maxInlineAudio.
func maxRecordingBytes(format application.AudioFormat, maxDuration time.Duration) int {
	n := int(maxDuration.Seconds()) * format.SampleRate * format.Channels * format.BitDepth / 8
	return min(n, maxInlineAudio)
}

func createLocator(cfg config.LocationConfig, retry infra.RetryConfig) (application.Locator, error) {
	switch cfg.Provider {
	case "static":
		return geo.NewStaticLocator(cfg.Latitude, cfg.Longitude)
	case "none":
		return geo.DisabledLocator{}, nil
	default:
		return geo.NewIPLocator(cfg.IPURL).WithRetryConfig(retry), nil
	}
}
