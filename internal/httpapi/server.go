package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voicedesk/voicedesk/internal/auth"
	"github.com/voicedesk/voicedesk/internal/callsession"
	"github.com/voicedesk/voicedesk/internal/config"
	"github.com/voicedesk/voicedesk/internal/observability"
	"github.com/voicedesk/voicedesk/internal/protocol"
	"github.com/voicedesk/voicedesk/internal/transport"
	"github.com/voicedesk/voicedesk/internal/turn"
)

// TurnProcessor is the slice of the turn pipeline the API needs.
type TurnProcessor interface {
	ProcessSpeech(ctx context.Context, input turn.SpeechInput) (turn.Result, error)
	ScheduleSimulation(callID string) error
	EndCall(callID string) error
}

type Server struct {
	cfg        config.Config
	registry   *callsession.Registry
	processor  TurnProcessor
	hub        *transport.Hub
	authorizer *auth.Authorizer
	metrics    *observability.Metrics
	upgrader   websocket.Upgrader
}

func New(
	cfg config.Config,
	registry *callsession.Registry,
	processor TurnProcessor,
	hub *transport.Hub,
	authorizer *auth.Authorizer,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		cfg:        cfg,
		registry:   registry,
		processor:  processor,
		hub:        hub,
		authorizer: authorizer,
		metrics:    metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Other websites must not be able to drive a viewer's demo
				// call if the service is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/perf/latency", s.handlePerfLatency)

	r.Post("/demo-calls", s.handleCreateDemoCall)
	r.Get("/demo-calls/ws", s.handleWS)
	r.Get("/demo-calls/{id}", s.handleGetDemoCall)
	r.Post("/demo-calls/{id}/speech", s.handleSpeech)
	r.Post("/demo-calls/{id}/enable-voice", s.handleEnableVoice)
	r.Post("/demo-calls/{id}/disable-voice", s.handleDisableVoice)
	r.Post("/demo-calls/{id}/resume-simulation", s.handleResumeSimulation)
	r.Post("/demo-calls/{id}/end", s.handleEndDemoCall)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"active_calls": s.registry.ActiveCount(),
	})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"generated_at": "",
			"window_size":  0,
			"stages":       []any{},
		})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.TurnStages())
}

type createDemoCallRequest struct {
	CallID   string `json:"callId"`
	OwnerID  string `json:"ownerId"`
	Template string `json:"template"`
}

type demoCallResponse struct {
	CallID       string    `json:"callId"`
	OwnerID      string    `json:"ownerId,omitempty"`
	Status       string    `json:"status"`
	Template     string    `json:"template"`
	VoiceEnabled bool      `json:"voiceEnabled"`
	StartedAt    time.Time `json:"startedAt"`
	Transcript   []any     `json:"transcript,omitempty"`
}

func (s *Server) handleCreateDemoCall(w http.ResponseWriter, r *http.Request) {
	var req createDemoCallRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.CallID) == "" {
		req.CallID = uuid.NewString()
	}
	if strings.TrimSpace(req.Template) == "" {
		req.Template = "customer-support"
	}

	sess := s.registry.GetOrCreate(req.CallID, req.OwnerID, req.Template)
	if err := s.registry.Activate(sess.ID); err != nil {
		respondError(w, http.StatusNotFound, "call_not_found", err.Error())
		return
	}
	if err := s.processor.ScheduleSimulation(sess.ID); err != nil {
		respondError(w, http.StatusNotFound, "call_not_found", err.Error())
		return
	}
	s.countCallEvent("created")
	s.syncActiveCalls()

	respondJSON(w, http.StatusCreated, toDemoCallResponse(sess, false))
}

func (s *Server) handleGetDemoCall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.registry.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "call_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, toDemoCallResponse(sess, true))
}

type speechRequest struct {
	Transcript string  `json:"transcript"`
	AudioData  string  `json:"audioData"`
	Format     string  `json:"format"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"isFinal"`
}

type speechResponse struct {
	CallID         string  `json:"callId"`
	Interim        bool    `json:"interim"`
	CustomerText   string  `json:"customerText,omitempty"`
	AIResponse     string  `json:"aiResponse,omitempty"`
	AudioData      string  `json:"audioData,omitempty"`
	ContentType    string  `json:"contentType,omitempty"`
	TranscriptID   string  `json:"transcriptId,omitempty"`
	SentimentLabel string  `json:"sentimentLabel,omitempty"`
	SentimentScore float64 `json:"sentimentScore,omitempty"`
	ShouldEscalate bool    `json:"shouldEscalate"`
}

// handleSpeech is the non-websocket fallback for turn processing.
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req speechRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.IsFinal && strings.TrimSpace(req.Transcript) == "" && strings.TrimSpace(req.AudioData) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "final speech requires transcript or audio data")
		return
	}

	res, err := s.processor.ProcessSpeech(r.Context(), turn.SpeechInput{
		CallID:     id,
		Transcript: req.Transcript,
		AudioData:  req.AudioData,
		Format:     req.Format,
		Confidence: req.Confidence,
		IsFinal:    req.IsFinal,
	})
	if err != nil {
		if errors.Is(err, callsession.ErrNotFound) {
			respondError(w, http.StatusNotFound, "call_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "turn_failed", err.Error())
		return
	}

	resp := speechResponse{
		CallID:         res.CallID,
		Interim:        res.Interim,
		CustomerText:   res.CustomerText,
		AIResponse:     res.ReplyText,
		ContentType:    res.ContentType,
		TranscriptID:   res.TranscriptID,
		SentimentLabel: res.Sentiment.Label,
		SentimentScore: res.Sentiment.Score,
		ShouldEscalate: res.ShouldEscalate,
	}
	if len(res.Audio) > 0 {
		resp.AudioData = encodeAudio(res.Audio)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnableVoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.EnableVoice(id); err != nil {
		respondError(w, http.StatusNotFound, "call_not_found", err.Error())
		return
	}
	// The session is quiet until the first live utterance arrives; tell
	// viewers so the UI settles on the idle indicator.
	s.hub.BroadcastStatus(id, protocol.StatusIdle)
	s.countCallEvent("voice_enabled")
	respondJSON(w, http.StatusOK, map[string]any{"callId": id, "voiceEnabled": true})
}

// handleDisableVoice turns live voice off. The scripted simulation does not
// restart on its own; callers resume it explicitly.
func (s *Server) handleDisableVoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.DisableVoice(id); err != nil {
		respondError(w, http.StatusNotFound, "call_not_found", err.Error())
		return
	}
	s.countCallEvent("voice_disabled")
	respondJSON(w, http.StatusOK, map[string]any{"callId": id, "voiceEnabled": false})
}

func (s *Server) handleResumeSimulation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.processor.ScheduleSimulation(id); err != nil {
		respondError(w, http.StatusNotFound, "call_not_found", err.Error())
		return
	}
	s.countCallEvent("simulation_resumed")
	respondJSON(w, http.StatusOK, map[string]any{"callId": id, "simulation": "scheduled"})
}

func (s *Server) handleEndDemoCall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.processor.EndCall(id); err != nil {
		respondError(w, http.StatusNotFound, "call_not_found", err.Error())
		return
	}
	s.syncActiveCalls()
	respondJSON(w, http.StatusOK, map[string]any{"callId": id, "status": "ended"})
}

func toDemoCallResponse(sess *callsession.Session, withTranscript bool) demoCallResponse {
	resp := demoCallResponse{
		CallID:       sess.ID,
		OwnerID:      sess.OwnerID,
		Status:       string(sess.Status),
		Template:     sess.Template,
		VoiceEnabled: sess.VoiceEnabled,
		StartedAt:    sess.StartedAt,
	}
	if withTranscript {
		for _, e := range sess.Transcript {
			resp.Transcript = append(resp.Transcript, e.Wire())
		}
	}
	return resp
}

func (s *Server) countCallEvent(event string) {
	if s.metrics != nil {
		s.metrics.CallEvents.WithLabelValues(event).Inc()
	}
}

func (s *Server) syncActiveCalls() {
	if s.metrics != nil {
		s.metrics.ActiveCalls.Set(float64(s.registry.ActiveCount()))
	}
}

func encodeAudio(audio []byte) string {
	return base64.StdEncoding.EncodeToString(audio)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
