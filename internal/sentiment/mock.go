package sentiment

import (
	"context"

	"github.com/voicedesk/voicedesk/internal/protocol"
)

// MockAnalyzer returns a fixed score; used in tests and when no analyzer is
// wanted at all.
type MockAnalyzer struct {
	Result protocol.Sentiment
	Err    error
	Calls  int
}

func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{Result: Neutral()}
}

func (a *MockAnalyzer) Analyze(_ context.Context, _ string) (protocol.Sentiment, error) {
	a.Calls++
	if a.Err != nil {
		return protocol.Sentiment{}, a.Err
	}
	return a.Result, nil
}
