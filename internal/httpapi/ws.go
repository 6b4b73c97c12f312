package httpapi

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicedesk/voicedesk/internal/callsession"
	"github.com/voicedesk/voicedesk/internal/protocol"
	"github.com/voicedesk/voicedesk/internal/transport"
	"github.com/voicedesk/voicedesk/internal/turn"
)

const (
	wsReadLimit    = 2 << 20
	wsReadTimeout  = 120 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// handleWS runs one websocket connection. The first meaningful frame is a
// join_demo_call; until then the read loop is the connection's only writer,
// afterwards all writes go through the hub socket.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.countCallEvent("ws_connected")
	defer s.countCallEvent("ws_disconnected")

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	var (
		socket *transport.Socket
		callID string
	)
	defer func() {
		if socket != nil {
			s.hub.Leave(socket)
		}
	}()

	sendError := func(code, message string) {
		evt := protocol.ErrorEvent{
			Type:    protocol.TypeErrorEvent,
			CallID:  callID,
			Code:    code,
			Message: message,
		}
		if socket != nil {
			socket.Send(evt)
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		_ = conn.WriteJSON(evt)
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			if errors.Is(err, protocol.ErrUnsupportedType) {
				sendError("unsupported_type", err.Error())
				continue
			}
			sendError("invalid_client_message", err.Error())
			continue
		}
		if t, ok := protocol.MessageTypeOf(parsed); ok && s.metrics != nil {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}

		switch msg := parsed.(type) {
		case protocol.JoinDemoCall:
			if socket != nil {
				sendError("already_joined", "connection already joined a call")
				continue
			}
			if err := s.authorizer.AuthorizeJoin(r.Context(), msg.CallID, msg.Token); err != nil {
				sendError("unauthorized", "access token rejected")
				continue
			}

			sess := s.registry.GetOrCreate(msg.CallID, "", "customer-support")
			if err := s.registry.Activate(sess.ID); err != nil {
				sendError("call_not_found", err.Error())
				continue
			}
			callID = sess.ID
			socket = s.hub.Join(callID, conn)
			s.countCallEvent("joined")
			s.syncActiveCalls()

			if err := s.processor.ScheduleSimulation(callID); err != nil {
				log.Printf("httpapi: schedule simulation for %s: %v", callID, err)
			}
			socket.Send(protocol.JoinedDemoCall{Type: protocol.TypeJoinedDemoCall, CallID: callID})

		case protocol.VoiceInput:
			if socket == nil || msg.CallID != callID {
				sendError("not_joined", "join the call before sending voice input")
				continue
			}
			_, err := s.processor.ProcessSpeech(r.Context(), turn.SpeechInput{
				CallID:     msg.CallID,
				Transcript: msg.Transcript,
				AudioData:  msg.AudioData,
				Format:     msg.Format,
				Confidence: msg.Confidence,
				IsFinal:    msg.IsFinal,
			})
			if err != nil {
				if errors.Is(err, callsession.ErrNotFound) {
					sendError("call_not_found", "call is no longer active")
					continue
				}
				sendError("turn_failed", "could not process voice input")
			}

		case protocol.LeaveCall:
			if socket == nil || msg.CallID != callID {
				continue
			}
			s.hub.Leave(socket)
			socket = nil
			callID = ""
		}
	}
}
