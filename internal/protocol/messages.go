package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	// Client -> server.
	TypeJoinDemoCall MessageType = "join_demo_call"
	TypeVoiceInput   MessageType = "voice_input"
	TypeLeaveCall    MessageType = "leave_call"

	// Server -> client.
	TypeJoinedDemoCall         MessageType = "joined_demo_call"
	TypeVoiceInteractionStatus MessageType = "voice_interaction_status"
	TypeAudioResponse          MessageType = "audio_response"
	TypeTranscriptEntry        MessageType = "transcript_entry"
	TypeDemoTranscriptUpdate   MessageType = "demo_transcript_update"
	TypeDemoSentimentUpdate    MessageType = "demo_sentiment_update"
	TypeDemoCallEnded          MessageType = "demo_call_ended"
	TypeErrorEvent             MessageType = "error"
)

// VoiceStatus is the UI state hint carried by voice_interaction_status.
type VoiceStatus string

const (
	StatusListening  VoiceStatus = "listening"
	StatusProcessing VoiceStatus = "processing"
	StatusSpeaking   VoiceStatus = "speaking"
	StatusIdle       VoiceStatus = "idle"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// AudioMetrics carries client-side signal measurements alongside voice input.
type AudioMetrics struct {
	Volume     float64 `json:"volume"`
	Clarity    float64 `json:"clarity"`
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sampleRate"`
	BitRate    int     `json:"bitRate"`
}

// EmotionBreakdown is the five-way emotion vector attached to sentiment.
type EmotionBreakdown struct {
	Joy      float64 `json:"joy"`
	Anger    float64 `json:"anger"`
	Sadness  float64 `json:"sadness"`
	Fear     float64 `json:"fear"`
	Surprise float64 `json:"surprise"`
}

// Sentiment is the scored sentiment shape shared by transcript and
// standalone sentiment events.
type Sentiment struct {
	Label    string           `json:"label"`
	Score    float64          `json:"score"`
	Emotions EmotionBreakdown `json:"emotions"`
}

// TranscriptEntry is the wire form of one utterance.
type TranscriptEntry struct {
	ID         string     `json:"id"`
	Speaker    string     `json:"speaker"`
	Text       string     `json:"text"`
	Timestamp  time.Time  `json:"timestamp"`
	Confidence float64    `json:"confidence,omitempty"`
	Sentiment  *Sentiment `json:"sentiment,omitempty"`
}

type JoinDemoCall struct {
	Type   MessageType `json:"type"`
	CallID string      `json:"callId"`
	Token  string      `json:"token"`
}

type VoiceInput struct {
	Type   MessageType `json:"type"`
	CallID string      `json:"callId"`
	// AudioData carries base64 audio when the client sends raw capture;
	// Transcript carries pre-recognized text. At least one is expected for
	// final input; interim input may carry an empty transcript.
	AudioData    string       `json:"audioData,omitempty"`
	Format       string       `json:"format,omitempty"`
	Transcript   string       `json:"transcript,omitempty"`
	IsFinal      bool         `json:"isFinal"`
	Confidence   float64      `json:"confidence,omitempty"`
	AudioMetrics AudioMetrics `json:"audioMetrics"`
}

type LeaveCall struct {
	Type   MessageType `json:"type"`
	CallID string      `json:"callId"`
}

type JoinedDemoCall struct {
	Type   MessageType `json:"type"`
	CallID string      `json:"callId"`
}

type VoiceInteractionStatus struct {
	Type   MessageType `json:"type"`
	CallID string      `json:"callId"`
	Status VoiceStatus `json:"status"`
}

type AudioResponse struct {
	Type         MessageType `json:"type"`
	CallID       string      `json:"callId"`
	Text         string      `json:"text"`
	AudioData    string      `json:"audioData,omitempty"`
	ContentType  string      `json:"contentType,omitempty"`
	TranscriptID string      `json:"transcriptId"`
}

type TranscriptEntryEvent struct {
	Type   MessageType     `json:"type"`
	CallID string          `json:"callId"`
	Entry  TranscriptEntry `json:"entry"`
}

type DemoTranscriptUpdate struct {
	Type      MessageType     `json:"type"`
	CallID    string          `json:"callId"`
	Entry     TranscriptEntry `json:"entry"`
	Sentiment Sentiment       `json:"sentiment"`
}

type DemoSentimentUpdate struct {
	Type      MessageType `json:"type"`
	CallID    string      `json:"callId"`
	Sentiment Sentiment   `json:"sentiment"`
}

type DemoCallEnded struct {
	Type   MessageType `json:"type"`
	CallID string      `json:"callId"`
}

type ErrorEvent struct {
	Type    MessageType `json:"type"`
	CallID  string      `json:"callId,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
}

// ParseClientMessage decodes one inbound frame into its typed form.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeJoinDemoCall:
		var msg JoinDemoCall
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.CallID) == "" || strings.TrimSpace(msg.Token) == "" {
			return nil, errors.New("invalid join_demo_call")
		}
		return msg, nil
	case TypeVoiceInput:
		var msg VoiceInput
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.CallID) == "" {
			return nil, errors.New("invalid voice_input")
		}
		if msg.IsFinal && strings.TrimSpace(msg.Transcript) == "" && strings.TrimSpace(msg.AudioData) == "" {
			return nil, errors.New("final voice_input requires transcript or audio data")
		}
		return msg, nil
	case TypeLeaveCall:
		var msg LeaveCall
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.CallID) == "" {
			return nil, errors.New("invalid leave_call")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// ParseServerEvent decodes one server frame into its typed form. Used by the
// transport client to dispatch each event type to exactly one handler.
func ParseServerEvent(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeJoinedDemoCall:
		var msg JoinedDemoCall
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeVoiceInteractionStatus:
		var msg VoiceInteractionStatus
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeAudioResponse:
		var msg AudioResponse
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeTranscriptEntry:
		var msg TranscriptEntryEvent
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeDemoTranscriptUpdate:
		var msg DemoTranscriptUpdate
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeDemoSentimentUpdate:
		var msg DemoSentimentUpdate
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeDemoCallEnded:
		var msg DemoCallEnded
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeErrorEvent:
		var msg ErrorEvent
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// MessageTypeOf reports the wire type of a typed message, for metrics labels.
func MessageTypeOf(v any) (MessageType, bool) {
	switch m := v.(type) {
	case JoinDemoCall:
		return m.Type, true
	case VoiceInput:
		return m.Type, true
	case LeaveCall:
		return m.Type, true
	case JoinedDemoCall:
		return m.Type, true
	case VoiceInteractionStatus:
		return m.Type, true
	case AudioResponse:
		return m.Type, true
	case TranscriptEntryEvent:
		return m.Type, true
	case DemoTranscriptUpdate:
		return m.Type, true
	case DemoSentimentUpdate:
		return m.Type, true
	case DemoCallEnded:
		return m.Type, true
	case ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
