package callsession

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/voicedesk/voicedesk/internal/protocol"
)

var ErrNotFound = errors.New("call session not found")

// Registry owns every live demo-call session. It is created once at process
// start and passed to all consumers; tests instantiate isolated registries.
type Registry struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewRegistry(inactivityTimeout time.Duration) *Registry {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 5 * time.Minute
	}
	return &Registry{
		sessions:          make(map[string]*Session),
		inactivityTimeout: inactivityTimeout,
	}
}

func (r *Registry) SetExpireHook(hook func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpire = hook
}

// GetOrCreate returns the existing session for callID or allocates a new one
// in idle status. Idempotent on re-join; voice-state fields are not reset.
func (r *Registry) GetOrCreate(callID, ownerID, template string) *Session {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[callID]; ok {
		s.LastActivityAt = now
		return clone(s)
	}
	s := &Session{
		ID:             callID,
		OwnerID:        ownerID,
		Status:         StatusIdle,
		Template:       template,
		StartedAt:      now,
		LastActivityAt: now,
	}
	r.sessions[callID] = s
	return clone(s)
}

func (r *Registry) Get(callID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[callID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (r *Registry) Touch(callID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// Activate moves an idle or connecting session to active.
func (r *Registry) Activate(callID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	if !ok {
		return ErrNotFound
	}
	if s.Status == StatusIdle || s.Status == StatusConnecting {
		s.Status = StatusActive
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// AppendEntries appends transcript entries in order and refreshes the
// aggregate sentiment from the last entry carrying one.
func (r *Registry) AppendEntries(callID string, entries ...TranscriptEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	if !ok {
		return ErrNotFound
	}
	if s.Status == StatusEnded {
		return ErrNotFound
	}
	s.Transcript = append(s.Transcript, entries...)
	for _, e := range entries {
		if e.Sentiment != nil {
			s.Aggregate = *e.Sentiment
		}
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// RecentTranscript returns up to limit trailing entries, oldest first.
func (r *Registry) RecentTranscript(callID string, limit int) ([]TranscriptEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[callID]
	if !ok {
		return nil, ErrNotFound
	}
	arr := s.Transcript
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]TranscriptEntry, limit)
	copy(out, arr[len(arr)-limit:])
	return out, nil
}

func (r *Registry) UpdateAggregate(callID string, agg protocol.Sentiment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	if !ok {
		return ErrNotFound
	}
	s.Aggregate = agg
	return nil
}

// AdvanceMessageIndex bumps the scripted-message cursor and returns the
// previous value.
func (r *Registry) AdvanceMessageIndex(callID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	if !ok {
		return 0, ErrNotFound
	}
	idx := s.MessageIndex
	s.MessageIndex++
	return idx, nil
}

// EnableVoice turns live voice processing on. Any pending simulation timer
// is cancelled first so the scripted and live paths never interleave.
func (r *Registry) EnableVoice(callID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	if !ok {
		return ErrNotFound
	}
	stopTimerLocked(s)
	s.VoiceEnabled = true
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// DisableVoice turns the flag off. It does not resume the simulation;
// rescheduling is a separate explicit action.
func (r *Registry) DisableVoice(callID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	if !ok {
		return ErrNotFound
	}
	s.VoiceEnabled = false
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// VoiceEnabled returns false for unknown sessions rather than failing;
// querying mode on a dead call is a harmless teardown race.
func (r *Registry) VoiceEnabled(callID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[callID]
	if !ok {
		return false
	}
	return s.VoiceEnabled
}

// ScheduleSimulation arms the scripted-turn timer. Any previous timer for
// the session is cancelled first. Scheduling is refused while voice mode is
// on or the session is ended.
func (r *Registry) ScheduleSimulation(callID string, delay time.Duration, fire func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	if !ok {
		return ErrNotFound
	}
	if s.VoiceEnabled || s.Status == StatusEnded {
		return nil
	}
	stopTimerLocked(s)
	s.simTimer = time.AfterFunc(delay, func() {
		r.clearFiredTimer(callID)
		fire()
	})
	return nil
}

// CancelSimulation is idempotent.
func (r *Registry) CancelSimulation(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[callID]; ok {
		stopTimerLocked(s)
	}
}

func (r *Registry) clearFiredTimer(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[callID]; ok {
		s.simTimer = nil
	}
}

// HasPendingSimulation reports whether a scripted turn is currently armed.
func (r *Registry) HasPendingSimulation(callID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[callID]
	if !ok {
		return false
	}
	return s.simTimer != nil
}

// End marks the session ended, releases its timer, and removes it from the
// registry. Late messages for the id are rejected afterwards, not queued.
func (r *Registry) End(callID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	if !ok {
		return nil, ErrNotFound
	}
	stopTimerLocked(s)
	s.Status = StatusEnded
	s.LastActivityAt = time.Now().UTC()
	delete(r.sessions, callID)
	return clone(s), nil
}

// Remove cancels any pending simulation timer, then deletes the entry.
// Idempotent.
func (r *Registry) Remove(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	if !ok {
		return
	}
	stopTimerLocked(s)
	delete(r.sessions, callID)
}

// Cleanup removes all sessions and cancels all timers, leaving the registry
// re-usable from empty state.
func (r *Registry) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		stopTimerLocked(s)
		delete(r.sessions, id)
	}
}

func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, s := range r.sessions {
		if s.Status == StatusActive {
			count++
		}
	}
	return count
}

// StartJanitor expires sessions idle past the inactivity timeout.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.expireInactive()
			}
		}
	}()
}

func (r *Registry) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	r.mu.Lock()
	for id, s := range r.sessions {
		if now.Sub(s.LastActivityAt) < r.inactivityTimeout {
			continue
		}
		stopTimerLocked(s)
		s.Status = StatusEnded
		expired = append(expired, clone(s))
		delete(r.sessions, id)
	}
	hook := r.onExpire
	r.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func stopTimerLocked(s *Session) {
	if s.simTimer != nil {
		s.simTimer.Stop()
		s.simTimer = nil
	}
}

func clone(s *Session) *Session {
	c := *s
	c.simTimer = nil
	c.Transcript = make([]TranscriptEntry, len(s.Transcript))
	copy(c.Transcript, s.Transcript)
	return &c
}
