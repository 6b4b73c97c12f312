package turn

import (
	"context"
	"encoding/base64"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/voicedesk/voicedesk/internal/callsession"
	"github.com/voicedesk/voicedesk/internal/protocol"
)

// ScheduleSimulation arms the next scripted exchange for a call. The registry
// refuses to arm while voice mode is on, so enabling voice mid-simulation
// simply stops the script.
func (p *Processor) ScheduleSimulation(callID string) error {
	return p.registry.ScheduleSimulation(callID, p.opts.SimulationInterval, func() {
		p.runScriptedTurn(callID)
	})
}

// runScriptedTurn plays one canned customer/AI exchange. When the script is
// exhausted the call ends on its own.
func (p *Processor) runScriptedTurn(callID string) {
	unlock := p.lockCall(callID)
	defer unlock()

	session, err := p.registry.Get(callID)
	if err != nil {
		return
	}
	if session.VoiceEnabled {
		return
	}

	idx, err := p.registry.AdvanceMessageIndex(callID)
	if err != nil {
		return
	}
	lines := callsession.Script(session.Template)
	if idx >= len(lines) {
		if err := p.EndCall(callID); err != nil {
			log.Printf("turn: end of script for %s: %v", callID, err)
		}
		return
	}
	line := lines[idx]

	agg := p.analyzeSentiment(context.Background(), line.Customer)

	now := time.Now().UTC()
	customerEntry := callsession.TranscriptEntry{
		ID:         uuid.NewString(),
		Speaker:    callsession.SpeakerCustomer,
		Text:       line.Customer,
		Timestamp:  now,
		Confidence: 1,
		Sentiment:  &agg,
	}
	aiEntry := callsession.TranscriptEntry{
		ID:        uuid.NewString(),
		Speaker:   callsession.SpeakerAI,
		Text:      line.AI,
		Timestamp: now,
	}
	if err := p.registry.AppendEntries(callID, customerEntry, aiEntry); err != nil {
		return
	}

	p.broadcaster.BroadcastTranscript(callID, customerEntry.Wire(), agg)
	p.broadcaster.BroadcastTranscript(callID, aiEntry.Wire(), agg)
	p.broadcaster.BroadcastSentiment(callID, agg)

	p.broadcaster.BroadcastStatus(callID, protocol.StatusSpeaking)
	synth := p.synthesize(context.Background(), line.AI)
	audioMsg := protocol.AudioResponse{
		Type:         protocol.TypeAudioResponse,
		CallID:       callID,
		Text:         line.AI,
		TranscriptID: aiEntry.ID,
	}
	if len(synth.Audio) > 0 {
		audioMsg.AudioData = base64.StdEncoding.EncodeToString(synth.Audio)
		audioMsg.ContentType = synth.ContentType
	}
	p.broadcaster.BroadcastAudio(callID, audioMsg)
	p.broadcaster.BroadcastStatus(callID, protocol.StatusIdle)

	p.persistExchange(callID, customerEntry, aiEntry, agg)
	p.countEvent("turn_scripted")

	if err := p.ScheduleSimulation(callID); err != nil {
		log.Printf("turn: reschedule simulation for %s: %v", callID, err)
	}
}
