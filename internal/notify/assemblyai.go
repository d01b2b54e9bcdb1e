package notify

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/phunks/voicemail/internal/codecutil"
)

const assemblyAIBaseURL = "https://api.assemblyai.com/v2"

// AssemblyAIClient transcribes recordings via AssemblyAI's upload/submit/
// poll HTTP API. Encoding the decoded PCM samples into a container
// AssemblyAI accepts is this adapter's own concern, not the core's — here
// that container is a minimal WAV header, since the pack carries no MP3
// encoder dependency for this single call site.
type AssemblyAIClient struct {
	APIKey       string
	LanguageCode string
	HTTPClient   *http.Client
	PollInterval time.Duration
}

// NewAssemblyAIClient builds a client for the given API key and ISO-639-1
// language code.
func NewAssemblyAIClient(apiKey, languageCode string) *AssemblyAIClient {
	return &AssemblyAIClient{
		APIKey:       apiKey,
		LanguageCode: languageCode,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		PollInterval: 2 * time.Second,
	}
}

func (c *AssemblyAIClient) Transcribe(ctx context.Context, pcmu []byte) (string, error) {
	wav := encodeWAV(codecutil.DecodeUlaw(pcmu), codecutil.PCMU.SampleRate)

	uploadURL, err := c.upload(ctx, wav)
	if err != nil {
		return "", fmt.Errorf("notify: assemblyai upload: %w", err)
	}

	id, err := c.submit(ctx, uploadURL)
	if err != nil {
		return "", fmt.Errorf("notify: assemblyai submit: %w", err)
	}

	text, err := c.poll(ctx, id)
	if err != nil {
		return "", fmt.Errorf("notify: assemblyai poll: %w", err)
	}
	return text, nil
}

func (c *AssemblyAIClient) upload(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, assemblyAIBaseURL+"/upload", bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.UploadURL, nil
}

func (c *AssemblyAIClient) submit(ctx context.Context, audioURL string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"audio_url":     audioURL,
		"language_code": c.LanguageCode,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, assemblyAIBaseURL+"/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.ID, nil
}

func (c *AssemblyAIClient) poll(ctx context.Context, id string) (string, error) {
	url := fmt.Sprintf("%s/transcript/%s", assemblyAIBaseURL, id)

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", c.APIKey)

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return "", err
		}
		var body struct {
			Status string `json:"status"`
			Text   string `json:"text"`
			Error  string `json:"error"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if decodeErr != nil {
			return "", decodeErr
		}

		switch body.Status {
		case "completed":
			return body.Text, nil
		case "error":
			return "", fmt.Errorf("transcription failed: %s", body.Error)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.PollInterval):
		}
	}
}

// encodeWAV wraps 16-bit little-endian linear PCM bytes (as produced by
// codecutil.DecodeUlaw) in a minimal canonical WAV header.
func encodeWAV(pcm []byte, sampleRate uint32) []byte {
	dataSize := len(pcm)
	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, sampleRate)
	binary.Write(buf, binary.LittleEndian, sampleRate*2) // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	binary.Write(buf, binary.LittleEndian, pcm)

	return buf.Bytes()
}
