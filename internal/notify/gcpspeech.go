package notify

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"github.com/phunks/voicemail/internal/codecutil"
)

// GCPSpeechClient transcribes recordings via Google Cloud Speech-to-Text's
// synchronous Recognize RPC.
type GCPSpeechClient struct {
	ProjectID       string
	Region          string
	LanguageCodes   []string
	CredentialsPath string
}

// NewGCPSpeechClient builds a client from the configured project, region,
// language codes, and service account credentials file.
func NewGCPSpeechClient(projectID, region, languageCodes, credentialsPath string) *GCPSpeechClient {
	codes := strings.Split(languageCodes, ",")
	for i := range codes {
		codes[i] = strings.TrimSpace(codes[i])
	}
	return &GCPSpeechClient{
		ProjectID:       projectID,
		Region:          region,
		LanguageCodes:   codes,
		CredentialsPath: credentialsPath,
	}
}

func (g *GCPSpeechClient) Transcribe(ctx context.Context, pcmu []byte) (string, error) {
	var opts []option.ClientOption
	if g.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(g.CredentialsPath))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("notify: gcp speech client: %w", err)
	}
	defer client.Close()

	pcm := codecutil.DecodeUlaw(pcmu)

	languageCode := "en-US"
	if len(g.LanguageCodes) > 0 && g.LanguageCodes[0] != "" {
		languageCode = g.LanguageCodes[0]
	}

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(codecutil.PCMU.SampleRate),
			LanguageCode:    languageCode,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
		},
	})
	if err != nil {
		return "", fmt.Errorf("notify: gcp speech recognize: %w", err)
	}

	var text strings.Builder
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		if text.Len() > 0 {
			text.WriteString(" ")
		}
		text.WriteString(result.Alternatives[0].Transcript)
	}
	return text.String(), nil
}
