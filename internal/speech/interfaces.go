package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Synthesis is one text-to-speech result.
type Synthesis struct {
	Audio       []byte
	ContentType string
}

// TTSProvider turns AI reply text into playable audio.
type TTSProvider interface {
	Synthesize(ctx context.Context, text, voiceID string) (Synthesis, error)
}

// Transcription is one speech-to-text result.
type Transcription struct {
	Text       string
	Confidence float64
}

// Transcriber turns base64 call audio into text. Used when the client sends
// raw capture instead of a pre-recognized transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioBase64, format string) (Transcription, error)
}

// Config controls provider construction.
type Config struct {
	Mode   string
	TTSURL string
	STTURL string
}

// NewProviders builds the TTS and STT collaborators for the configured mode.
func NewProviders(cfg Config) (TTSProvider, Transcriber, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		var tts TTSProvider = NewMockProvider()
		var stt Transcriber = NewMockProvider()
		if strings.TrimSpace(cfg.TTSURL) != "" {
			tts = NewHTTPTTS(cfg.TTSURL)
		}
		if strings.TrimSpace(cfg.STTURL) != "" {
			stt = NewHTTPTranscriber(cfg.STTURL)
		}
		return tts, stt, nil
	case "http":
		if strings.TrimSpace(cfg.TTSURL) == "" {
			return nil, nil, errors.New("tts url is required for http mode")
		}
		if strings.TrimSpace(cfg.STTURL) == "" {
			return nil, nil, errors.New("stt url is required for http mode")
		}
		return NewHTTPTTS(cfg.TTSURL), NewHTTPTranscriber(cfg.STTURL), nil
	case "mock":
		p := NewMockProvider()
		return p, p, nil
	default:
		return nil, nil, fmt.Errorf("unsupported speech mode %q", cfg.Mode)
	}
}
