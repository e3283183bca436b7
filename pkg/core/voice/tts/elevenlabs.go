package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hireloop/interview-gateway/pkg/core"
)

const (
	elevenLabsDefaultBaseURL = "https://api.elevenlabs.io/v1"
	elevenLabsDefaultVoice   = "21m00Tcm4TlvDq8ikWAM"
)

// ElevenLabsProvider synthesizes speech through the ElevenLabs streaming
// endpoint, buffered into a single payload.
type ElevenLabsProvider struct {
	apiKey       string
	defaultVoice string
	httpClient   *http.Client
	baseURL      string
}

func NewElevenLabs(apiKey, defaultVoice string) *ElevenLabsProvider {
	return NewElevenLabsWithClient(apiKey, defaultVoice, nil)
}

func NewElevenLabsWithClient(apiKey, defaultVoice string, client *http.Client) *ElevenLabsProvider {
	if client == nil {
		client = &http.Client{Timeout: 180 * time.Second}
	}
	if defaultVoice == "" {
		defaultVoice = elevenLabsDefaultVoice
	}
	return &ElevenLabsProvider{
		apiKey:       strings.TrimSpace(apiKey),
		defaultVoice: defaultVoice,
		httpClient:   client,
		baseURL:      elevenLabsDefaultBaseURL,
	}
}

// WithBaseURL overrides the endpoint, used by tests.
func (e *ElevenLabsProvider) WithBaseURL(base string) *ElevenLabsProvider {
	base = strings.TrimSpace(base)
	if base != "" {
		e.baseURL = strings.TrimRight(base, "/")
	}
	return e
}

func (e *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

func (e *ElevenLabsProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	format := opts.Format
	if format == "" {
		format = "mp3"
	}
	if strings.TrimSpace(text) == "" {
		return &Synthesis{Format: format}, nil
	}
	if e.apiKey == "" {
		return nil, core.NewCollaboratorError("elevenlabs", fmt.Errorf("api key not configured"))
	}

	voice := opts.Voice
	if voice == "" {
		voice = e.defaultVoice
	}

	payload, err := json.Marshal(map[string]any{
		"text": text,
		"voice_settings": map[string]any{
			"stability":        0.35,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return nil, core.NewCollaboratorError("elevenlabs", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s/stream", e.baseURL, voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, core.NewCollaboratorError("elevenlabs", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if format == "mp3" {
		req.Header.Set("Accept", "audio/mpeg")
	} else {
		req.Header.Set("Accept", "audio/wav")
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, core.NewCollaboratorError("elevenlabs", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, core.NewCollaboratorError("elevenlabs",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewCollaboratorError("elevenlabs", err)
	}
	return &Synthesis{Audio: audio, Format: format}, nil
}
