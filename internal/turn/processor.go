package turn

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voicedesk/voicedesk/internal/audio"
	"github.com/voicedesk/voicedesk/internal/brain"
	"github.com/voicedesk/voicedesk/internal/callsession"
	"github.com/voicedesk/voicedesk/internal/observability"
	"github.com/voicedesk/voicedesk/internal/protocol"
	"github.com/voicedesk/voicedesk/internal/redact"
	"github.com/voicedesk/voicedesk/internal/sentiment"
	"github.com/voicedesk/voicedesk/internal/speech"
	"github.com/voicedesk/voicedesk/internal/store"
	"github.com/voicedesk/voicedesk/internal/telephony"
)

const (
	sentimentTimeout  = 3 * time.Second
	replyTimeout      = 30 * time.Second
	synthesisTimeout  = 10 * time.Second
	transcribeTimeout = 10 * time.Second
	persistTimeout    = 2 * time.Second
	escalateTimeout   = 5 * time.Second

	// apologyReply replaces the AI response when the reply service and its
	// fallback both fail. It never escalates.
	apologyReply = "I'm sorry, I'm having a little trouble on my end. Could you say that again?"

	// inaudibleText stands in for the customer utterance when raw audio
	// arrives and transcription fails. The turn still completes.
	inaudibleText = "(inaudible)"
)

// SpeechInput is one normalized voice_input frame.
type SpeechInput struct {
	CallID     string
	Transcript string
	AudioData  string
	Format     string
	Confidence float64
	IsFinal    bool
}

// Result summarizes one processed turn.
type Result struct {
	CallID         string
	TurnID         string
	Interim        bool
	CustomerText   string
	ReplyText      string
	TranscriptID   string
	Audio          []byte
	ContentType    string
	Sentiment      protocol.Sentiment
	ShouldEscalate bool
}

// Options carries the scalar knobs for the processor.
type Options struct {
	ContextWindow      int
	TTSVoice           string
	AgentDialNumber    string
	SimulationInterval time.Duration
}

// Processor runs the speech turn pipeline: sentiment, reply generation,
// transcript bookkeeping, and audio synthesis. Turns for the same call are
// serialized; turns for different calls run concurrently.
type Processor struct {
	registry    *callsession.Registry
	broadcaster Broadcaster
	analyzer    sentiment.Analyzer
	adapter     brain.Adapter
	tts         speech.TTSProvider
	transcriber speech.Transcriber
	store       store.Store
	dialer      telephony.Provider
	metrics     *observability.Metrics
	opts        Options

	lockMu    sync.Mutex
	callLocks map[string]*sync.Mutex
}

func NewProcessor(
	registry *callsession.Registry,
	broadcaster Broadcaster,
	analyzer sentiment.Analyzer,
	adapter brain.Adapter,
	tts speech.TTSProvider,
	transcriber speech.Transcriber,
	st store.Store,
	dialer telephony.Provider,
	metrics *observability.Metrics,
	opts Options,
) *Processor {
	if broadcaster == nil {
		broadcaster = NopBroadcaster{}
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = 8
	}
	if opts.SimulationInterval <= 0 {
		opts.SimulationInterval = 4 * time.Second
	}
	return &Processor{
		registry:    registry,
		broadcaster: broadcaster,
		analyzer:    analyzer,
		adapter:     adapter,
		tts:         tts,
		transcriber: transcriber,
		store:       st,
		dialer:      dialer,
		metrics:     metrics,
		opts:        opts,
		callLocks:   make(map[string]*sync.Mutex),
	}
}

// ProcessSpeech handles one voice_input frame. Interim input only refreshes
// the listening status; final input runs the full pipeline and emits exactly
// one audio_response before returning the call to idle.
func (p *Processor) ProcessSpeech(ctx context.Context, input SpeechInput) (Result, error) {
	if _, err := p.registry.Get(input.CallID); err != nil {
		return Result{}, fmt.Errorf("process speech for %s: %w", input.CallID, err)
	}

	if !input.IsFinal {
		if err := p.registry.Touch(input.CallID); err != nil {
			return Result{}, fmt.Errorf("process speech for %s: %w", input.CallID, err)
		}
		p.broadcaster.BroadcastStatus(input.CallID, protocol.StatusListening)
		p.countEvent("turn_interim")
		return Result{CallID: input.CallID, Interim: true}, nil
	}

	unlock := p.lockCall(input.CallID)
	defer unlock()

	started := time.Now()
	turnID := uuid.NewString()

	p.broadcaster.BroadcastStatus(input.CallID, protocol.StatusProcessing)

	customerText := strings.TrimSpace(input.Transcript)
	confidence := input.Confidence
	if customerText == "" {
		customerText, confidence = p.transcribe(ctx, input)
	}

	agg := p.analyzeSentiment(ctx, customerText)

	session, err := p.registry.Get(input.CallID)
	if err != nil {
		return Result{}, fmt.Errorf("process speech for %s: %w", input.CallID, err)
	}

	reply := p.generateReply(ctx, session, turnID, customerText, agg)

	now := time.Now().UTC()
	customerEntry := callsession.TranscriptEntry{
		ID:         uuid.NewString(),
		Speaker:    callsession.SpeakerCustomer,
		Text:       customerText,
		Timestamp:  now,
		Confidence: confidence,
		Sentiment:  &agg,
	}
	aiEntry := callsession.TranscriptEntry{
		ID:        uuid.NewString(),
		Speaker:   callsession.SpeakerAI,
		Text:      reply.Text,
		Timestamp: now,
	}
	if err := p.registry.AppendEntries(input.CallID, customerEntry, aiEntry); err != nil {
		return Result{}, fmt.Errorf("append transcript for %s: %w", input.CallID, err)
	}

	p.broadcaster.BroadcastTranscript(input.CallID, customerEntry.Wire(), agg)
	p.broadcaster.BroadcastTranscript(input.CallID, aiEntry.Wire(), agg)
	p.broadcaster.BroadcastSentiment(input.CallID, agg)

	p.broadcaster.BroadcastStatus(input.CallID, protocol.StatusSpeaking)

	synth := p.synthesize(ctx, reply.Text)
	audioMsg := protocol.AudioResponse{
		Type:         protocol.TypeAudioResponse,
		CallID:       input.CallID,
		Text:         reply.Text,
		TranscriptID: aiEntry.ID,
	}
	if len(synth.Audio) > 0 {
		audioMsg.AudioData = base64.StdEncoding.EncodeToString(synth.Audio)
		audioMsg.ContentType = synth.ContentType
	}
	p.broadcaster.BroadcastAudio(input.CallID, audioMsg)

	p.broadcaster.BroadcastStatus(input.CallID, protocol.StatusIdle)

	p.persistExchange(input.CallID, customerEntry, aiEntry, agg)
	if reply.ShouldEscalate {
		p.escalate(input.CallID)
	}

	if p.metrics != nil {
		p.metrics.ObserveTurnLatency(time.Since(started))
	}
	p.countEvent("turn_final")

	return Result{
		CallID:         input.CallID,
		TurnID:         turnID,
		CustomerText:   customerText,
		ReplyText:      reply.Text,
		TranscriptID:   aiEntry.ID,
		Audio:          synth.Audio,
		ContentType:    synth.ContentType,
		Sentiment:      agg,
		ShouldEscalate: reply.ShouldEscalate,
	}, nil
}

// EndCall tears the session down and tells every viewer the call is over.
func (p *Processor) EndCall(callID string) error {
	_, err := p.registry.End(callID)
	if err != nil {
		return fmt.Errorf("end call %s: %w", callID, err)
	}
	p.broadcaster.BroadcastCallEnded(callID)
	p.countEvent("call_ended")
	if p.metrics != nil {
		p.metrics.ActiveCalls.Set(float64(p.registry.ActiveCount()))
	}
	p.dropCallLock(callID)
	return nil
}

func (p *Processor) transcribe(ctx context.Context, input SpeechInput) (string, float64) {
	if p.transcriber == nil || strings.TrimSpace(input.AudioData) == "" {
		return inaudibleText, 0
	}
	tctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	audioData, format := normalizeAudio(input.AudioData, input.Format)
	tr, err := p.transcriber.Transcribe(tctx, audioData, format)
	if err != nil || strings.TrimSpace(tr.Text) == "" {
		if err != nil {
			log.Printf("turn: transcription failed for %s: %v", input.CallID, err)
			p.countCollaboratorError("stt", "transcribe")
		}
		p.observeIndicator("transcribe_fallback")
		return inaudibleText, 0
	}
	return strings.TrimSpace(tr.Text), tr.Confidence
}

// normalizeAudio wraps headerless PCM16 in a WAV container before it reaches
// the transcription backend. Anything else passes through untouched.
func normalizeAudio(audioBase64, format string) (string, string) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "pcm", "pcm16", "pcm16le":
	default:
		return audioBase64, format
	}
	raw, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		return audioBase64, format
	}
	wav, err := audio.WrapPCM16(raw, 16000)
	if err != nil {
		return audioBase64, format
	}
	return base64.StdEncoding.EncodeToString(wav), "wav"
}

func (p *Processor) analyzeSentiment(ctx context.Context, text string) protocol.Sentiment {
	stageStart := time.Now()
	sctx, cancel := context.WithTimeout(ctx, sentimentTimeout)
	defer cancel()

	agg, err := p.analyzer.Analyze(sctx, text)
	p.observeStage("sentiment", time.Since(stageStart))
	if err != nil {
		log.Printf("turn: sentiment analysis failed: %v", err)
		p.countCollaboratorError("sentiment", "analyze")
		p.observeIndicator("sentiment_fallback")
		return sentiment.Neutral()
	}
	return agg
}

func (p *Processor) generateReply(ctx context.Context, session *callsession.Session, turnID, customerText string, agg protocol.Sentiment) brain.ReplyResponse {
	recent, err := p.registry.RecentTranscript(session.ID, p.opts.ContextWindow)
	if err != nil {
		recent = nil
	}
	contextLines := make([]string, 0, len(recent))
	for _, e := range recent {
		contextLines = append(contextLines, fmt.Sprintf("%s: %s", e.Speaker, e.Text))
	}

	stageStart := time.Now()
	rctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()

	reply, err := p.adapter.Reply(rctx, brain.ReplyRequest{
		CallID:    session.ID,
		TurnID:    turnID,
		InputText: customerText,
		Context:   contextLines,
		Template:  session.Template,
		Sentiment: agg,
	})
	p.observeStage("reply", time.Since(stageStart))
	if err != nil || strings.TrimSpace(reply.Text) == "" {
		if err != nil {
			log.Printf("turn: reply generation failed for %s: %v", session.ID, err)
			p.countCollaboratorError("brain", "reply")
		}
		p.observeIndicator("reply_fallback")
		return brain.ReplyResponse{Text: apologyReply}
	}
	return reply
}

func (p *Processor) synthesize(ctx context.Context, text string) speech.Synthesis {
	if p.tts == nil {
		return speech.Synthesis{}
	}
	stageStart := time.Now()
	sctx, cancel := context.WithTimeout(ctx, synthesisTimeout)
	defer cancel()

	synth, err := p.tts.Synthesize(sctx, text, p.opts.TTSVoice)
	p.observeStage("synthesis", time.Since(stageStart))
	if err != nil {
		log.Printf("turn: synthesis failed: %v", err)
		p.countCollaboratorError("tts", "synthesize")
		p.observeIndicator("synthesis_fallback")
		return speech.Synthesis{}
	}
	return synth
}

func (p *Processor) persistExchange(callID string, customer, ai callsession.TranscriptEntry, agg protocol.Sentiment) {
	if p.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	customerText, _ := redact.Transcript(customer.Text)
	aiText, _ := redact.Transcript(ai.Text)
	records := []store.InteractionRecord{
		{
			ID:             customer.ID,
			CallID:         callID,
			Speaker:        string(customer.Speaker),
			Text:           customerText,
			SentimentLabel: agg.Label,
			SentimentScore: agg.Score,
			CreatedAt:      customer.Timestamp,
		},
		{
			ID:        ai.ID,
			CallID:    callID,
			Speaker:   string(ai.Speaker),
			Text:      aiText,
			CreatedAt: ai.Timestamp,
		},
	}
	for _, r := range records {
		if err := p.store.SaveInteraction(ctx, r); err != nil {
			log.Printf("turn: persist interaction for %s: %v", callID, err)
			p.countCollaboratorError("store", "save")
			return
		}
	}
}

func (p *Processor) escalate(callID string) {
	p.countEvent("escalation")
	if p.dialer == nil || strings.TrimSpace(p.opts.AgentDialNumber) == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), escalateTimeout)
	defer cancel()

	if err := p.dialer.DialAgent(ctx, callID, p.opts.AgentDialNumber); err != nil {
		log.Printf("turn: agent dial for %s failed: %v", callID, err)
		p.countCollaboratorError("telephony", "dial")
	}
}

func (p *Processor) lockCall(callID string) func() {
	p.lockMu.Lock()
	mu, ok := p.callLocks[callID]
	if !ok {
		mu = &sync.Mutex{}
		p.callLocks[callID] = mu
	}
	p.lockMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (p *Processor) dropCallLock(callID string) {
	p.lockMu.Lock()
	delete(p.callLocks, callID)
	p.lockMu.Unlock()
}

func (p *Processor) observeStage(stage string, d time.Duration) {
	if p.metrics != nil {
		p.metrics.ObserveTurnStage(stage, d)
	}
}

func (p *Processor) observeIndicator(name string) {
	if p.metrics != nil {
		p.metrics.ObserveTurnIndicator(name)
	}
}

func (p *Processor) countEvent(event string) {
	if p.metrics != nil {
		p.metrics.CallEvents.WithLabelValues(event).Inc()
	}
}

func (p *Processor) countCollaboratorError(collaborator, stage string) {
	if p.metrics != nil {
		p.metrics.CollaboratorErrors.WithLabelValues(collaborator, stage).Inc()
	}
}
