package speech

import (
	"context"
	"strings"
)

// MockProvider is the local fallback when no speech services are configured.
// Synthesized "audio" is just the reply text bytes, which keeps the demo
// pipeline playable end to end in tests.
type MockProvider struct {
	SynthesizeErr error
	TranscribeErr error
	TTSCalls      int
	STTCalls      int
}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Synthesize(ctx context.Context, text, _ string) (Synthesis, error) {
	select {
	case <-ctx.Done():
		return Synthesis{}, ctx.Err()
	default:
	}
	p.TTSCalls++
	if p.SynthesizeErr != nil {
		return Synthesis{}, p.SynthesizeErr
	}
	return Synthesis{
		Audio:       []byte(text),
		ContentType: "audio/mock",
	}, nil
}

func (p *MockProvider) Transcribe(ctx context.Context, audioBase64, _ string) (Transcription, error) {
	select {
	case <-ctx.Done():
		return Transcription{}, ctx.Err()
	default:
	}
	p.STTCalls++
	if p.TranscribeErr != nil {
		return Transcription{}, p.TranscribeErr
	}
	if strings.TrimSpace(audioBase64) == "" {
		return Transcription{}, nil
	}
	return Transcription{Text: "simulated voice input", Confidence: 0.7}, nil
}
