package notify

import (
	"context"
	"testing"

	"github.com/phunks/voicemail/internal/config"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0x02, 0x00}
	wav := encodeWAV(pcm, 8000)

	if string(wav[0:4]) != "RIFF" {
		t.Errorf("missing RIFF chunk id, got %q", wav[0:4])
	}
	if string(wav[8:12]) != "WAVE" {
		t.Errorf("missing WAVE format, got %q", wav[8:12])
	}
	if string(wav[36:40]) != "data" {
		t.Errorf("missing data chunk id, got %q", wav[36:40])
	}
	if len(wav) != 44+len(pcm) {
		t.Errorf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
}

func TestFactoryDefaultsToNoOp(t *testing.T) {
	cfg := &config.Config{}

	if _, ok := NewTranscriber(cfg).(NoOpTranscriber); !ok {
		t.Error("NewTranscriber with no backend configured should return NoOpTranscriber")
	}
	if _, ok := NewNotifier(context.Background(), cfg).(NoOpNotifier); !ok {
		t.Error("NewNotifier with no topic configured should return NoOpNotifier")
	}
}
