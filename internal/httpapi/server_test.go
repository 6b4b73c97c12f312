package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicedesk/voicedesk/internal/auth"
	"github.com/voicedesk/voicedesk/internal/brain"
	"github.com/voicedesk/voicedesk/internal/callsession"
	"github.com/voicedesk/voicedesk/internal/config"
	"github.com/voicedesk/voicedesk/internal/protocol"
	"github.com/voicedesk/voicedesk/internal/sentiment"
	"github.com/voicedesk/voicedesk/internal/speech"
	"github.com/voicedesk/voicedesk/internal/store"
	"github.com/voicedesk/voicedesk/internal/transport"
	"github.com/voicedesk/voicedesk/internal/turn"
)

type testEnv struct {
	srv      *httptest.Server
	registry *callsession.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Config{
		AllowAnyOrigin:     true,
		DemoAccessToken:    "demo-access",
		ContextWindow:      8,
		SimulationInterval: time.Hour,
	}
	registry := callsession.NewRegistry(time.Minute)
	hub := transport.NewHub(nil)
	mock := speech.NewMockProvider()
	processor := turn.NewProcessor(
		registry,
		hub,
		sentiment.NewMockAnalyzer(),
		brain.NewMockAdapter(),
		mock,
		mock,
		store.NewInMemoryStore(),
		nil,
		nil,
		turn.Options{ContextWindow: cfg.ContextWindow, SimulationInterval: cfg.SimulationInterval},
	)
	server := New(cfg, registry, processor, hub, auth.NewAuthorizer(cfg.DemoAccessToken, nil), nil)

	srv := httptest.NewServer(server.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, registry: registry}
}

func (e *testEnv) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	resp, err := http.Post(e.srv.URL+path, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(env.srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCreateAndFetchDemoCall(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/demo-calls", createDemoCallRequest{CallID: "call-1", Template: "sales-outreach"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decodeBody[demoCallResponse](t, resp)
	if created.CallID != "call-1" || created.Status != "active" || created.Template != "sales-outreach" {
		t.Fatalf("created = %+v", created)
	}
	if !env.registry.HasPendingSimulation("call-1") {
		t.Fatalf("creation should arm the simulation")
	}

	resp, err := http.Get(env.srv.URL + "/demo-calls/call-1")
	if err != nil {
		t.Fatalf("GET call: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(env.srv.URL + "/demo-calls/ghost")
	if err != nil {
		t.Fatalf("GET ghost: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("ghost status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSpeechEndpointRunsTurn(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/demo-calls", createDemoCallRequest{CallID: "call-1"}).Body.Close()

	resp := env.post(t, "/demo-calls/call-1/speech", speechRequest{
		Transcript: "I need help with my account",
		Confidence: 0.9,
		IsFinal:    true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("speech status = %d", resp.StatusCode)
	}
	res := decodeBody[speechResponse](t, resp)
	if res.Interim || res.AIResponse == "" || res.TranscriptID == "" {
		t.Fatalf("speech result = %+v", res)
	}
	if res.AudioData == "" || res.ContentType != "audio/mock" {
		t.Fatalf("expected audio in result: %+v", res)
	}

	s, err := env.registry.Get("call-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(s.Transcript) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(s.Transcript))
	}
}

func TestSpeechEndpointValidation(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/demo-calls", createDemoCallRequest{CallID: "call-1"}).Body.Close()

	resp := env.post(t, "/demo-calls/call-1/speech", speechRequest{IsFinal: true})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty final status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.post(t, "/demo-calls/ghost/speech", speechRequest{Transcript: "hi", IsFinal: true})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown call status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestVoiceModeToggleControlsSimulation(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/demo-calls", createDemoCallRequest{CallID: "call-1"}).Body.Close()

	if !env.registry.HasPendingSimulation("call-1") {
		t.Fatalf("precondition: simulation armed")
	}

	resp := env.post(t, "/demo-calls/call-1/enable-voice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enable status = %d", resp.StatusCode)
	}
	resp.Body.Close()
	if env.registry.HasPendingSimulation("call-1") {
		t.Fatalf("enabling voice must clear the simulation timer")
	}
	if !env.registry.VoiceEnabled("call-1") {
		t.Fatalf("voice should be enabled")
	}

	resp = env.post(t, "/demo-calls/call-1/disable-voice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("disable status = %d", resp.StatusCode)
	}
	resp.Body.Close()
	if env.registry.VoiceEnabled("call-1") {
		t.Fatalf("voice should be disabled")
	}
	if env.registry.HasPendingSimulation("call-1") {
		t.Fatalf("disabling voice must not restart the simulation on its own")
	}

	resp = env.post(t, "/demo-calls/call-1/resume-simulation", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resume status = %d", resp.StatusCode)
	}
	resp.Body.Close()
	if !env.registry.HasPendingSimulation("call-1") {
		t.Fatalf("resume endpoint should arm the simulation")
	}

	resp = env.post(t, "/demo-calls/ghost/enable-voice", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("ghost enable status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEnableVoiceBroadcastsIdleStatus(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	if err := conn.WriteJSON(protocol.JoinDemoCall{Type: protocol.TypeJoinDemoCall, CallID: "call-1", Token: "demo-access"}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	if _, ok := readEvent(t, conn).(protocol.JoinedDemoCall); !ok {
		t.Fatalf("expected joined_demo_call")
	}

	resp := env.post(t, "/demo-calls/call-1/enable-voice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enable status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	status, ok := readEvent(t, conn).(protocol.VoiceInteractionStatus)
	if !ok || status.Status != protocol.StatusIdle || status.CallID != "call-1" {
		t.Fatalf("event = %+v, want idle status for call-1", status)
	}
}

func TestEndDemoCall(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/demo-calls", createDemoCallRequest{CallID: "call-1"}).Body.Close()

	resp := env.post(t, "/demo-calls/call-1/end", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err := http.Get(env.srv.URL + "/demo-calls/call-1")
	if err != nil {
		t.Fatalf("GET after end: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status after end = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/demo-calls/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	evt, err := protocol.ParseServerEvent(data)
	if err != nil {
		t.Fatalf("parse event: %v", err)
	}
	return evt
}

func TestWSJoinRejectsBadToken(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	if err := conn.WriteJSON(protocol.JoinDemoCall{Type: protocol.TypeJoinDemoCall, CallID: "call-1", Token: "wrong"}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	evt, ok := readEvent(t, conn).(protocol.ErrorEvent)
	if !ok || evt.Code != "unauthorized" {
		t.Fatalf("event = %+v, want unauthorized error", evt)
	}
	if _, err := env.registry.Get("call-1"); err == nil {
		t.Fatalf("rejected join must not create a session")
	}
}

func TestWSVoiceInputBeforeJoinRejected(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	if err := conn.WriteJSON(protocol.VoiceInput{Type: protocol.TypeVoiceInput, CallID: "call-1", Transcript: "hello", IsFinal: true}); err != nil {
		t.Fatalf("write voice input: %v", err)
	}
	evt, ok := readEvent(t, conn).(protocol.ErrorEvent)
	if !ok || evt.Code != "not_joined" {
		t.Fatalf("event = %+v, want not_joined error", evt)
	}
}

func TestWSJoinAndFinalTurn(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	if err := conn.WriteJSON(protocol.JoinDemoCall{Type: protocol.TypeJoinDemoCall, CallID: "call-1", Token: "demo-access"}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	joined, ok := readEvent(t, conn).(protocol.JoinedDemoCall)
	if !ok || joined.CallID != "call-1" {
		t.Fatalf("event = %+v, want joined_demo_call", joined)
	}

	if err := conn.WriteJSON(protocol.VoiceInput{
		Type:       protocol.TypeVoiceInput,
		CallID:     "call-1",
		Transcript: "I need help with my account",
		IsFinal:    true,
	}); err != nil {
		t.Fatalf("write voice input: %v", err)
	}

	var statuses []protocol.VoiceStatus
	var transcripts, updates, audios int
	for {
		evt := readEvent(t, conn)
		done := false
		switch m := evt.(type) {
		case protocol.VoiceInteractionStatus:
			statuses = append(statuses, m.Status)
			if m.Status == protocol.StatusIdle {
				done = true
			}
		case protocol.TranscriptEntryEvent:
			transcripts++
		case protocol.DemoTranscriptUpdate:
			updates++
		case protocol.DemoSentimentUpdate:
		case protocol.AudioResponse:
			audios++
			if m.Text == "" || m.TranscriptID == "" {
				t.Fatalf("audio response = %+v", m)
			}
		default:
			t.Fatalf("unexpected event %T", evt)
		}
		if done {
			break
		}
	}

	want := []protocol.VoiceStatus{protocol.StatusProcessing, protocol.StatusSpeaking, protocol.StatusIdle}
	if len(statuses) != len(want) {
		t.Fatalf("statuses = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", statuses, want)
		}
	}
	if audios != 1 {
		t.Fatalf("audio responses = %d, want exactly 1", audios)
	}
	if transcripts != 2 || updates != 2 {
		t.Fatalf("transcript events = %d/%d, want 2/2", transcripts, updates)
	}

	s, err := env.registry.Get("call-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(s.Transcript) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(s.Transcript))
	}
	if s.Transcript[0].Speaker != callsession.SpeakerCustomer || s.Transcript[1].Speaker != callsession.SpeakerAI {
		t.Fatalf("speaker order = %s, %s", s.Transcript[0].Speaker, s.Transcript[1].Speaker)
	}
}

func TestWSLeaveThenRejoinOnSameConnection(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	if err := conn.WriteJSON(protocol.JoinDemoCall{Type: protocol.TypeJoinDemoCall, CallID: "call-1", Token: "demo-access"}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	if _, ok := readEvent(t, conn).(protocol.JoinedDemoCall); !ok {
		t.Fatalf("expected joined_demo_call")
	}

	if err := conn.WriteJSON(protocol.LeaveCall{Type: protocol.TypeLeaveCall, CallID: "call-1"}); err != nil {
		t.Fatalf("write leave: %v", err)
	}

	if err := conn.WriteJSON(protocol.JoinDemoCall{Type: protocol.TypeJoinDemoCall, CallID: "call-2", Token: "demo-access"}); err != nil {
		t.Fatalf("write second join: %v", err)
	}
	joined, ok := readEvent(t, conn).(protocol.JoinedDemoCall)
	if !ok || joined.CallID != "call-2" {
		t.Fatalf("event = %+v, want joined_demo_call for call-2", joined)
	}

	if err := conn.WriteJSON(protocol.VoiceInput{
		Type:       protocol.TypeVoiceInput,
		CallID:     "call-2",
		Transcript: "hel",
		IsFinal:    false,
	}); err != nil {
		t.Fatalf("write voice input: %v", err)
	}
	status, ok := readEvent(t, conn).(protocol.VoiceInteractionStatus)
	if !ok || status.Status != protocol.StatusListening || status.CallID != "call-2" {
		t.Fatalf("event = %+v, want listening status on rejoined call", status)
	}
}

func TestWSInterimOnlySignalsListening(t *testing.T) {
	env := newTestEnv(t)
	conn := dialWS(t, env)

	if err := conn.WriteJSON(protocol.JoinDemoCall{Type: protocol.TypeJoinDemoCall, CallID: "call-2", Token: "demo-access"}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	if _, ok := readEvent(t, conn).(protocol.JoinedDemoCall); !ok {
		t.Fatalf("expected joined_demo_call")
	}

	if err := conn.WriteJSON(protocol.VoiceInput{
		Type:       protocol.TypeVoiceInput,
		CallID:     "call-2",
		Transcript: "I need...",
		IsFinal:    false,
	}); err != nil {
		t.Fatalf("write voice input: %v", err)
	}

	status, ok := readEvent(t, conn).(protocol.VoiceInteractionStatus)
	if !ok || status.Status != protocol.StatusListening {
		t.Fatalf("event = %+v, want listening status", status)
	}

	s, err := env.registry.Get("call-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(s.Transcript) != 0 {
		t.Fatalf("interim input must not append transcript entries")
	}
}
