package telephony

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Provider bridges escalations to a human agent over the phone network.
type Provider interface {
	// DialAgent rings the configured agent line and asks them to take over
	// the given call. Best effort; the demo call keeps running either way.
	DialAgent(ctx context.Context, callID, number string) error
}

// New builds a provider for the configured backend. An empty name disables
// escalation dialing entirely.
func New(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return nil, nil
	case "log":
		return &LogProvider{}, nil
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported telephony provider %q", name)
	}
}

// LogProvider records dial attempts in the process log. Stands in for a real
// carrier integration in demo deployments.
type LogProvider struct{}

func (p *LogProvider) DialAgent(_ context.Context, callID, number string) error {
	log.Printf("telephony: would dial agent %s for call %s", number, callID)
	return nil
}
