package brain

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter provides deterministic local replies when no AI service is
// configured.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Reply(ctx context.Context, req ReplyRequest) (ReplyResponse, error) {
	select {
	case <-ctx.Done():
		return ReplyResponse{}, ctx.Err()
	default:
	}

	input := strings.TrimSpace(req.InputText)
	if input == "" {
		return ReplyResponse{Text: "I'm listening. How can I help you today?"}, nil
	}

	var text string
	switch req.Sentiment.Label {
	case "negative":
		text = fmt.Sprintf("I understand that's frustrating. Let me help with %q right away.", input)
	case "positive":
		text = fmt.Sprintf("Glad to hear it! To follow up on %q, here's what I can do.", input)
	default:
		text = fmt.Sprintf("Thanks for telling me. Regarding %q, let me look into that for you.", input)
	}

	return ReplyResponse{
		Text:           text,
		ShouldEscalate: req.Sentiment.Label == "negative" && req.Sentiment.Emotions.Anger > 0.5,
	}, nil
}
