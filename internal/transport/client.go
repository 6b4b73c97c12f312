package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicedesk/voicedesk/internal/protocol"
	"github.com/voicedesk/voicedesk/internal/reliability"
)

// ClientState is the lifecycle phase of a transport client.
type ClientState string

const (
	StateIdle       ClientState = "idle"
	StateConnecting ClientState = "connecting"
	StateActive     ClientState = "active"
	StateEnded      ClientState = "ended"
)

const (
	maxReconnectAttempts = 5
	reconnectBase        = time.Second
	reconnectCap         = 10 * time.Second
	dialTimeout          = 10 * time.Second
)

// ErrGaveUp is reported after the reconnect budget is exhausted.
var ErrGaveUp = errors.New("reconnect attempts exhausted")

// Handlers receives server events. Callbacks run on the client's internal
// goroutines and must not call back into the client.
type Handlers struct {
	OnStatus      func(protocol.VoiceInteractionStatus)
	OnTranscript  func(protocol.TranscriptEntry)
	OnSentiment   func(protocol.Sentiment)
	OnAudio       func(protocol.AudioResponse)
	OnCallEnded   func(callID string)
	OnError       func(err error)
	OnStateChange func(state ClientState)
}

// Client maintains one websocket connection to the call server, rejoining
// the same call after transient drops. Transcript entries arriving on both
// transcript channels are deduplicated by entry id.
type Client struct {
	url      string
	token    string
	handlers Handlers

	// Reconnect budget; tests shrink the delays.
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration

	mu         sync.Mutex
	state      ClientState
	callID     string
	conn       *websocket.Conn
	seen       map[string]struct{}
	attempts   int
	retryTimer *time.Timer
	gen        int

	writeMu sync.Mutex
}

func NewClient(url, token string, handlers Handlers) *Client {
	return &Client{
		url:         url,
		token:       token,
		handlers:    handlers,
		maxAttempts: maxReconnectAttempts,
		backoffBase: reconnectBase,
		backoffCap:  reconnectCap,
		state:       StateIdle,
		seen:        make(map[string]struct{}),
	}
}

func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) CallID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callID
}

// JoinCall connects and announces the client on the given call. A failed
// initial dial still arms the reconnect schedule.
func (c *Client) JoinCall(ctx context.Context, callID string) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateActive {
		c.mu.Unlock()
		return fmt.Errorf("already joined call %s", c.callID)
	}
	c.callID = callID
	c.seen = make(map[string]struct{})
	c.attempts = 0
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	if err := c.dialAndJoin(ctx); err != nil {
		c.mu.Lock()
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return err
	}
	return nil
}

// SendVoiceInput forwards one voice frame. Outside an active connection the
// frame is dropped with a logged warning rather than queued.
func (c *Client) SendVoiceInput(msg protocol.VoiceInput) {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	msg.Type = protocol.TypeVoiceInput
	msg.CallID = c.callID
	c.mu.Unlock()

	if state != StateActive || conn == nil {
		log.Printf("transport: dropping voice input, client state is %s", state)
		return
	}
	if err := c.writeJSON(conn, msg); err != nil {
		log.Printf("transport: send voice input: %v", err)
	}
}

// Disconnect leaves the call deliberately. No reconnect follows; the client
// returns to idle and can join another call.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	conn := c.conn
	callID := c.callID
	c.conn = nil
	c.callID = ""
	c.attempts = 0
	c.gen++
	c.seen = make(map[string]struct{})
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	if conn != nil {
		if callID != "" {
			_ = c.writeJSON(conn, protocol.LeaveCall{Type: protocol.TypeLeaveCall, CallID: callID})
		}
		_ = conn.Close()
	}
}

func (c *Client) dialAndJoin(ctx context.Context) error {
	c.mu.Lock()
	callID := c.callID
	c.mu.Unlock()
	if callID == "" {
		return errors.New("no call to join")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	join := protocol.JoinDemoCall{Type: protocol.TypeJoinDemoCall, CallID: callID, Token: c.token}
	if err := c.writeJSON(conn, join); err != nil {
		conn.Close()
		return fmt.Errorf("send join: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.attempts = 0
	c.gen++
	gen := c.gen
	c.setStateLocked(StateActive)
	c.mu.Unlock()

	go c.readLoop(gen, conn)
	return nil
}

func (c *Client) readLoop(gen int, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(gen, err)
			return
		}
		evt, perr := protocol.ParseServerEvent(data)
		if perr != nil {
			if errors.Is(perr, protocol.ErrUnsupportedType) {
				continue
			}
			c.reportError(fmt.Errorf("decode server event: %w", perr))
			continue
		}
		c.dispatch(evt)
	}
}

func (c *Client) dispatch(evt any) {
	switch m := evt.(type) {
	case protocol.JoinedDemoCall:
		// Join acknowledgement; state already reflects it.
	case protocol.VoiceInteractionStatus:
		if c.handlers.OnStatus != nil {
			c.handlers.OnStatus(m)
		}
	case protocol.TranscriptEntryEvent:
		c.deliverTranscript(m.Entry)
	case protocol.DemoTranscriptUpdate:
		c.deliverTranscript(m.Entry)
		if c.handlers.OnSentiment != nil {
			c.handlers.OnSentiment(m.Sentiment)
		}
	case protocol.DemoSentimentUpdate:
		if c.handlers.OnSentiment != nil {
			c.handlers.OnSentiment(m.Sentiment)
		}
	case protocol.AudioResponse:
		if c.handlers.OnAudio != nil {
			c.handlers.OnAudio(m)
		}
	case protocol.DemoCallEnded:
		c.handleCallEnded(m.CallID)
	case protocol.ErrorEvent:
		c.reportError(fmt.Errorf("server error %s: %s", m.Code, m.Message))
	}
}

func (c *Client) deliverTranscript(entry protocol.TranscriptEntry) {
	c.mu.Lock()
	if _, dup := c.seen[entry.ID]; dup {
		c.mu.Unlock()
		return
	}
	c.seen[entry.ID] = struct{}{}
	c.mu.Unlock()

	if c.handlers.OnTranscript != nil {
		c.handlers.OnTranscript(entry)
	}
}

func (c *Client) handleCallEnded(callID string) {
	c.mu.Lock()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.gen++
	c.setStateLocked(StateEnded)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if c.handlers.OnCallEnded != nil {
		c.handlers.OnCallEnded(callID)
	}
}

func (c *Client) handleReadError(gen int, err error) {
	c.mu.Lock()
	if gen != c.gen || c.state == StateIdle || c.state == StateEnded {
		// Deliberate disconnect or a stale loop; nothing to recover.
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && !reliability.IsRetryableCloseCode(closeErr.Code) {
		c.setStateLocked(StateEnded)
		c.mu.Unlock()
		c.reportError(fmt.Errorf("connection closed by server: %w", err))
		return
	}

	c.scheduleReconnectLocked()
	c.mu.Unlock()
	c.reportError(fmt.Errorf("connection lost: %w", err))
}

func (c *Client) scheduleReconnectLocked() {
	if c.attempts >= c.maxAttempts {
		c.setStateLocked(StateEnded)
		c.callID = ""
		go c.reportError(ErrGaveUp)
		return
	}
	delay := reliability.ExponentialBackoff(c.attempts, c.backoffBase, c.backoffCap)
	c.attempts++
	c.setStateLocked(StateConnecting)
	c.retryTimer = time.AfterFunc(delay, c.redial)
}

func (c *Client) redial() {
	c.mu.Lock()
	if c.state != StateConnecting || c.callID == "" {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := c.dialAndJoin(ctx); err != nil {
		c.mu.Lock()
		c.scheduleReconnectLocked()
		c.mu.Unlock()
	}
}

func (c *Client) writeJSON(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(v)
}

func (c *Client) setStateLocked(state ClientState) {
	if c.state == state {
		return
	}
	c.state = state
	if c.handlers.OnStateChange != nil {
		c.handlers.OnStateChange(state)
	}
}

func (c *Client) reportError(err error) {
	if c.handlers.OnError != nil {
		c.handlers.OnError(err)
	}
}
