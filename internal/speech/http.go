package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPTTS calls a text-to-speech HTTP endpoint and returns raw audio bytes.
type HTTPTTS struct {
	url    string
	client *http.Client
}

func NewHTTPTTS(url string) *HTTPTTS {
	return &HTTPTTS{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id,omitempty"`
}

func (p *HTTPTTS) Synthesize(ctx context.Context, text, voiceID string) (Synthesis, error) {
	payload, err := json.Marshal(synthesizeRequest{Text: text, VoiceID: voiceID})
	if err != nil {
		return Synthesis{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return Synthesis{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return Synthesis{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Synthesis{}, fmt.Errorf("tts http status %d: %s", res.StatusCode, string(body))
	}

	audio, err := io.ReadAll(io.LimitReader(res.Body, 16<<20))
	if err != nil {
		return Synthesis{}, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return Synthesis{}, fmt.Errorf("tts returned no audio")
	}

	ct := strings.TrimSpace(res.Header.Get("Content-Type"))
	if ct == "" {
		ct = "audio/mpeg"
	}
	return Synthesis{Audio: audio, ContentType: ct}, nil
}

// HTTPTranscriber calls a speech-to-text HTTP endpoint.
type HTTPTranscriber struct {
	url    string
	client *http.Client
}

func NewHTTPTranscriber(url string) *HTTPTranscriber {
	return &HTTPTranscriber{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type transcribeRequest struct {
	AudioBase64 string `json:"audio_base64"`
	Format      string `json:"format,omitempty"`
}

func (p *HTTPTranscriber) Transcribe(ctx context.Context, audioBase64, format string) (Transcription, error) {
	payload, err := json.Marshal(transcribeRequest{AudioBase64: audioBase64, Format: format})
	if err != nil {
		return Transcription{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return Transcription{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return Transcription{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Transcription{}, fmt.Errorf("stt http status %d: %s", res.StatusCode, string(body))
	}

	var out struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Transcription{}, fmt.Errorf("decode response: %w", err)
	}
	return Transcription{Text: out.Text, Confidence: out.Confidence}, nil
}
