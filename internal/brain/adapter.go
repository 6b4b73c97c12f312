package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/voicedesk/voicedesk/internal/protocol"
)

// ReplyRequest is the normalized request sent to the AI reply generator.
type ReplyRequest struct {
	CallID    string             `json:"call_id"`
	TurnID    string             `json:"turn_id"`
	InputText string             `json:"input_text"`
	Context   []string           `json:"context,omitempty"`
	Template  string             `json:"template,omitempty"`
	Sentiment protocol.Sentiment `json:"sentiment"`
}

// ReplyResponse is the structured reply.
type ReplyResponse struct {
	Text           string `json:"text"`
	ShouldEscalate bool   `json:"should_escalate"`
}

// Adapter bridges the turn processor with the AI reply service.
type Adapter interface {
	Reply(ctx context.Context, req ReplyRequest) (ReplyResponse, error)
}

// Config controls adapter construction.
type Config struct {
	Mode    string
	HTTPURL string
}

func NewAdapter(cfg Config) (Adapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewFallbackAdapter(NewHTTPAdapter(cfg.HTTPURL), NewMockAdapter()), nil
		}
		return NewMockAdapter(), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("brain HTTP url is required for http mode")
		}
		return NewHTTPAdapter(cfg.HTTPURL), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported brain adapter mode %q", cfg.Mode)
	}
}
