package turn

import "github.com/voicedesk/voicedesk/internal/protocol"

// Broadcaster fans server events out to every client viewing a call. The
// websocket hub implements it; tests supply a recording fake.
type Broadcaster interface {
	BroadcastStatus(callID string, status protocol.VoiceStatus)
	BroadcastTranscript(callID string, entry protocol.TranscriptEntry, aggregate protocol.Sentiment)
	BroadcastSentiment(callID string, s protocol.Sentiment)
	BroadcastAudio(callID string, msg protocol.AudioResponse)
	BroadcastCallEnded(callID string)
}

// NopBroadcaster drops every event. Useful for offline replay tooling.
type NopBroadcaster struct{}

func (NopBroadcaster) BroadcastStatus(string, protocol.VoiceStatus)                          {}
func (NopBroadcaster) BroadcastTranscript(string, protocol.TranscriptEntry, protocol.Sentiment) {}
func (NopBroadcaster) BroadcastSentiment(string, protocol.Sentiment)                         {}
func (NopBroadcaster) BroadcastAudio(string, protocol.AudioResponse)                         {}
func (NopBroadcaster) BroadcastCallEnded(string)                                             {}
