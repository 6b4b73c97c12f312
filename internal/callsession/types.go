package callsession

import (
	"time"

	"github.com/voicedesk/voicedesk/internal/protocol"
)

// Status tracks the call lifecycle.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusActive     Status = "active"
	StatusEnded      Status = "ended"
)

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerCustomer Speaker = "customer"
	SpeakerAI       Speaker = "ai"
	SpeakerAgent    Speaker = "agent"
)

// TranscriptEntry is one utterance in a call transcript. Entries are
// append-only; array position matches chronological emission order.
type TranscriptEntry struct {
	ID         string
	Speaker    Speaker
	Text       string
	Timestamp  time.Time
	Confidence float64
	Sentiment  *protocol.Sentiment
}

// Wire converts an entry to its protocol form.
func (e TranscriptEntry) Wire() protocol.TranscriptEntry {
	return protocol.TranscriptEntry{
		ID:         e.ID,
		Speaker:    string(e.Speaker),
		Text:       e.Text,
		Timestamp:  e.Timestamp,
		Confidence: e.Confidence,
		Sentiment:  e.Sentiment,
	}
}

// Session is one active demo call. All mutation goes through Registry
// methods; callers only ever see snapshots.
type Session struct {
	ID             string
	OwnerID        string
	Status         Status
	Template       string
	MessageIndex   int
	Transcript     []TranscriptEntry
	Aggregate      protocol.Sentiment
	VoiceEnabled   bool
	StartedAt      time.Time
	LastActivityAt time.Time

	// simTimer is the pending scripted-simulation timer. Owned exclusively
	// by the session; cancelled before voice mode is enabled and before any
	// transition out of active. Snapshots returned by the registry never
	// carry the handle.
	simTimer *time.Timer
}
