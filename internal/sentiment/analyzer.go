package sentiment

import (
	"context"
	"fmt"
	"strings"

	"github.com/voicedesk/voicedesk/internal/protocol"
)

// Analyzer scores customer text for sentiment and a five-way emotion vector.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (protocol.Sentiment, error)
}

// Neutral is the substitute used when the analyzer fails; a failed sentiment
// call never aborts a turn.
func Neutral() protocol.Sentiment {
	return protocol.Sentiment{
		Label: "neutral",
		Score: 0.5,
		Emotions: protocol.EmotionBreakdown{
			Joy:      0.2,
			Anger:    0.2,
			Sadness:  0.2,
			Fear:     0.2,
			Surprise: 0.2,
		},
	}
}

// New builds an analyzer for the configured mode.
func New(mode, httpURL string) (Analyzer, error) {
	m := strings.ToLower(strings.TrimSpace(mode))
	if m == "" {
		m = "auto"
	}
	switch m {
	case "auto":
		if strings.TrimSpace(httpURL) != "" {
			return NewHTTPAnalyzer(httpURL), nil
		}
		return NewLexiconAnalyzer(), nil
	case "http":
		if strings.TrimSpace(httpURL) == "" {
			return nil, fmt.Errorf("sentiment http url is required for http mode")
		}
		return NewHTTPAnalyzer(httpURL), nil
	case "lexicon":
		return NewLexiconAnalyzer(), nil
	case "mock":
		return NewMockAnalyzer(), nil
	default:
		return nil, fmt.Errorf("unsupported sentiment mode %q", mode)
	}
}
