package telephony

import (
	"context"
	"sync"
)

// DialRecord captures one agent dial attempt.
type DialRecord struct {
	CallID string
	Number string
}

// MockProvider records dial attempts for tests.
type MockProvider struct {
	mu    sync.Mutex
	Err   error
	dials []DialRecord
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) DialAgent(_ context.Context, callID, number string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.dials = append(p.dials, DialRecord{CallID: callID, Number: number})
	return nil
}

func (p *MockProvider) Dials() []DialRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]DialRecord, len(p.dials))
	copy(out, p.dials)
	return out
}
