package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hireloop/interview-gateway/pkg/core"
)

const deepgramDefaultBaseURL = "https://api.deepgram.com/v1/listen"

// DeepgramProvider transcribes prerecorded audio through the Deepgram
// listen endpoint.
type DeepgramProvider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

func NewDeepgram(apiKey string) *DeepgramProvider {
	return NewDeepgramWithClient(apiKey, nil)
}

func NewDeepgramWithClient(apiKey string, client *http.Client) *DeepgramProvider {
	if client == nil {
		client = &http.Client{Timeout: 180 * time.Second}
	}
	return &DeepgramProvider{
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: client,
		baseURL:    deepgramDefaultBaseURL,
	}
}

// WithBaseURL overrides the endpoint, used by tests.
func (d *DeepgramProvider) WithBaseURL(base string) *DeepgramProvider {
	base = strings.TrimSpace(base)
	if base != "" {
		d.baseURL = base
	}
	return d
}

func (d *DeepgramProvider) Name() string {
	return "deepgram"
}

func (d *DeepgramProvider) Transcribe(ctx context.Context, audio []byte, opts TranscribeOptions) (*Transcript, error) {
	if d.apiKey == "" {
		return nil, core.NewCollaboratorError("deepgram", fmt.Errorf("api key not configured"))
	}

	endpoint := d.baseURL
	if opts.Language != "" {
		q := url.Values{"language": {opts.Language}}
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return nil, core.NewCollaboratorError("deepgram", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", contentTypeFor(opts.Format))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, core.NewCollaboratorError("deepgram", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, core.NewCollaboratorError("deepgram", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.NewCollaboratorError("deepgram",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var parsed struct {
		Metadata struct {
			Duration float64 `json:"duration"`
		} `json:"metadata"`
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
				DetectedLanguage string `json:"detected_language"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, core.NewCollaboratorError("deepgram", fmt.Errorf("decode response: %w", err))
	}

	t := &Transcript{
		Language: opts.Language,
		Duration: parsed.Metadata.Duration,
	}
	if len(parsed.Results.Channels) > 0 {
		ch := parsed.Results.Channels[0]
		if len(ch.Alternatives) > 0 {
			t.Text = ch.Alternatives[0].Transcript
		}
		if ch.DetectedLanguage != "" {
			t.Language = ch.DetectedLanguage
		}
	}
	return t, nil
}

func contentTypeFor(format string) string {
	switch strings.ToLower(format) {
	case "", "wav":
		return "audio/wav"
	case "mp3":
		return "audio/mpeg"
	case "webm":
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}
