package transport

import (
	"sync"
	"time"

	"github.com/voicedesk/voicedesk/internal/observability"
	"github.com/voicedesk/voicedesk/internal/protocol"
)

const outboundQueueSize = 256

// Conn is the slice of a websocket connection the hub needs. Satisfied by
// *websocket.Conn; tests substitute an in-process fake.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

type writeDeadlineConn interface {
	SetWriteDeadline(t time.Time) error
}

// Socket is one subscriber attached to a call room. All writes go through a
// single writer goroutine; producers enqueue and never touch the conn.
type Socket struct {
	callID    string
	conn      Conn
	outbound  chan any
	done      chan struct{}
	stopped   chan struct{}
	once      sync.Once
	closeConn bool
}

// Send enqueues one event without blocking. Saturated subscribers lose
// events rather than stalling the turn pipeline.
func (s *Socket) Send(msg any) bool {
	select {
	case <-s.done:
		return false
	case s.outbound <- msg:
		return true
	default:
		return false
	}
}

// Close stops the writer after draining already queued events. The
// underlying connection stays open; its handler owns that lifetime and may
// attach it to another room afterwards.
func (s *Socket) Close() {
	s.stop(false)
}

func (s *Socket) stop(closeConn bool) {
	s.once.Do(func() {
		s.closeConn = closeConn
		close(s.done)
	})
}

func (s *Socket) writeLoop(metrics *observability.Metrics) {
	defer close(s.stopped)
	for {
		select {
		case <-s.done:
			for {
				select {
				case msg := <-s.outbound:
					s.write(msg, metrics)
				default:
					if s.closeConn {
						_ = s.conn.Close()
					}
					return
				}
			}
		case msg := <-s.outbound:
			if !s.write(msg, metrics) {
				// Broken conn; close it so the peer's read loop unblocks.
				_ = s.conn.Close()
				return
			}
		}
	}
}

func (s *Socket) write(msg any, metrics *observability.Metrics) bool {
	if dc, ok := s.conn.(writeDeadlineConn); ok {
		_ = dc.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return false
	}
	if metrics != nil {
		if t, ok := protocol.MessageTypeOf(msg); ok {
			metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
		}
	}
	return true
}

// Hub fans server events out to every socket watching a call. It implements
// the turn processor's Broadcaster.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Socket]struct{}
	metrics *observability.Metrics
}

func NewHub(metrics *observability.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Socket]struct{}),
		metrics: metrics,
	}
}

// Join attaches a connection to a call room and starts its writer.
func (h *Hub) Join(callID string, conn Conn) *Socket {
	s := &Socket{
		callID:   callID,
		conn:     conn,
		outbound: make(chan any, outboundQueueSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	h.mu.Lock()
	room, ok := h.rooms[callID]
	if !ok {
		room = make(map[*Socket]struct{})
		h.rooms[callID] = room
	}
	room[s] = struct{}{}
	h.mu.Unlock()

	go s.writeLoop(h.metrics)
	return s
}

// Leave detaches a socket and stops its writer, returning once the writer
// has drained. The connection is left open so the caller can rejoin it to
// another call. Idempotent.
func (h *Hub) Leave(s *Socket) {
	if s == nil {
		return
	}
	h.mu.Lock()
	if room, ok := h.rooms[s.callID]; ok {
		delete(room, s)
		if len(room) == 0 {
			delete(h.rooms, s.callID)
		}
	}
	h.mu.Unlock()
	s.Close()
	<-s.stopped
}

// CloseRoom detaches every socket watching a call and closes their
// connections; an ended call has nothing left to say to its viewers.
func (h *Hub) CloseRoom(callID string) {
	h.mu.Lock()
	room := h.rooms[callID]
	delete(h.rooms, callID)
	h.mu.Unlock()

	for s := range room {
		s.stop(true)
	}
}

// RoomSize reports the number of subscribers for a call.
func (h *Hub) RoomSize(callID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[callID])
}

func (h *Hub) broadcast(callID string, msg any) {
	h.mu.RLock()
	room := h.rooms[callID]
	targets := make([]*Socket, 0, len(room))
	for s := range room {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.Send(msg)
	}
}

func (h *Hub) BroadcastStatus(callID string, status protocol.VoiceStatus) {
	h.broadcast(callID, protocol.VoiceInteractionStatus{
		Type:   protocol.TypeVoiceInteractionStatus,
		CallID: callID,
		Status: status,
	})
}

// BroadcastTranscript emits the entry on both transcript channels: the voice
// widget listens for transcript_entry, the dashboard for the richer
// demo_transcript_update. Clients dedupe by entry id.
func (h *Hub) BroadcastTranscript(callID string, entry protocol.TranscriptEntry, aggregate protocol.Sentiment) {
	h.broadcast(callID, protocol.TranscriptEntryEvent{
		Type:   protocol.TypeTranscriptEntry,
		CallID: callID,
		Entry:  entry,
	})
	h.broadcast(callID, protocol.DemoTranscriptUpdate{
		Type:      protocol.TypeDemoTranscriptUpdate,
		CallID:    callID,
		Entry:     entry,
		Sentiment: aggregate,
	})
}

func (h *Hub) BroadcastSentiment(callID string, s protocol.Sentiment) {
	h.broadcast(callID, protocol.DemoSentimentUpdate{
		Type:      protocol.TypeDemoSentimentUpdate,
		CallID:    callID,
		Sentiment: s,
	})
}

func (h *Hub) BroadcastAudio(callID string, msg protocol.AudioResponse) {
	h.broadcast(callID, msg)
}

// BroadcastCallEnded notifies every viewer, then tears the room down.
func (h *Hub) BroadcastCallEnded(callID string) {
	h.broadcast(callID, protocol.DemoCallEnded{
		Type:   protocol.TypeDemoCallEnded,
		CallID: callID,
	})
	h.CloseRoom(callID)
}
