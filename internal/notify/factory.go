package notify

import (
	"context"
	"log/slog"

	"github.com/phunks/voicemail/internal/config"
)

// NewTranscriber picks AssemblyAI or GCP Speech based on which backend's
// credentials are configured, preferring AssemblyAI when both are set.
// With neither configured it returns NoOpTranscriber.
func NewTranscriber(cfg *config.Config) Transcriber {
	switch {
	case cfg.AssemblyAIAPIKey != "":
		slog.Info("notify: transcription backend", "backend", "assemblyai")
		return NewAssemblyAIClient(cfg.AssemblyAIAPIKey, cfg.AssemblyAILanguage)
	case cfg.GoogleCloudProjectID != "":
		slog.Info("notify: transcription backend", "backend", "gcp-speech")
		return NewGCPSpeechClient(cfg.GoogleCloudProjectID, cfg.GoogleCloudRegion, cfg.GoogleLanguageCodes, cfg.GoogleCredentialsPath)
	default:
		slog.Info("notify: transcription backend", "backend", "none")
		return NoOpTranscriber{}
	}
}

// NewNotifier builds an SNS-backed Notifier when a topic ARN is
// configured, otherwise NoOpNotifier.
func NewNotifier(ctx context.Context, cfg *config.Config) Notifier {
	if cfg.SNSTopicARN == "" {
		slog.Info("notify: sms backend", "backend", "none")
		return NoOpNotifier{}
	}
	n, err := NewSNSNotifier(ctx, cfg.SNSTopicARN, cfg.SNSSenderID)
	if err != nil {
		slog.Error("notify: failed to build SNS notifier, falling back to no-op", "error", err)
		return NoOpNotifier{}
	}
	slog.Info("notify: sms backend", "backend", "sns")
	return n
}
