package recognizer

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/voicedesk/voicedesk/internal/vad"
)

// ErrUnsupported is returned when no speech-to-text engine is available on
// the platform. Callers fall back to manual text input instead of failing
// silently.
var ErrUnsupported = errors.New("speech recognition not supported")

// ErrAlreadyRunning is returned when Start races an in-flight utterance.
var ErrAlreadyRunning = errors.New("recognition already running")

// Hypothesis is one recognition result. Interim hypotheses keep changing;
// only a final hypothesis is terminal for the utterance.
type Hypothesis struct {
	Text       string
	Confidence float64
	Final      bool
}

// Engine is a platform speech-to-text capability. Recognize streams
// hypotheses for one utterance into out and returns when the utterance is
// complete or ctx is cancelled.
type Engine interface {
	Recognize(ctx context.Context, out chan<- Hypothesis) error
}

// Handlers receives recognition results.
type Handlers struct {
	OnInterim func(Hypothesis)
	OnFinal   func(Hypothesis)
	OnError   func(error)
}

// Recognizer wraps an engine and enforces the utterance contract: any number
// of interim results, then exactly one final result. An engine that ends an
// utterance without a final has its last interim promoted.
type Recognizer struct {
	engine   Engine
	handlers Handlers

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

func New(engine Engine, handlers Handlers) *Recognizer {
	return &Recognizer{engine: engine, handlers: handlers}
}

// Supported reports whether an engine is available.
func (r *Recognizer) Supported() bool {
	return r.engine != nil
}

// Start begins recognizing one utterance. Returns ErrUnsupported without an
// engine and ErrAlreadyRunning while an utterance is in flight.
func (r *Recognizer) Start(ctx context.Context) error {
	if r.engine == nil {
		return ErrUnsupported
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	r.running = true
	r.cancel = cancel
	r.mu.Unlock()

	go r.run(ctx)
	return nil
}

// Stop ends the current utterance, if any. Idempotent.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Running reports whether an utterance is in flight.
func (r *Recognizer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Recognizer) run(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		r.running = false
		r.cancel = nil
		r.mu.Unlock()
	}()

	results := make(chan Hypothesis, 16)
	engineDone := make(chan error, 1)
	go func() {
		engineDone <- r.engine.Recognize(ctx, results)
	}()

	var lastInterim *Hypothesis
	finalSent := false

	deliverFinal := func(h Hypothesis) {
		if finalSent {
			return
		}
		finalSent = true
		h.Final = true
		if r.handlers.OnFinal != nil {
			r.handlers.OnFinal(h)
		}
	}

	for {
		select {
		case h := <-results:
			if h.Final {
				deliverFinal(h)
				continue
			}
			copied := h
			lastInterim = &copied
			if r.handlers.OnInterim != nil {
				r.handlers.OnInterim(h)
			}
		case err := <-engineDone:
			// Drain anything the engine emitted before returning.
			for {
				select {
				case h := <-results:
					if h.Final {
						deliverFinal(h)
						continue
					}
					copied := h
					lastInterim = &copied
					if r.handlers.OnInterim != nil {
						r.handlers.OnInterim(h)
					}
				default:
					if err != nil && !errors.Is(err, context.Canceled) {
						if r.handlers.OnError != nil {
							r.handlers.OnError(err)
						}
					}
					if !finalSent && lastInterim != nil && strings.TrimSpace(lastInterim.Text) != "" {
						deliverFinal(*lastInterim)
					}
					return
				}
			}
		}
	}
}

// GateWith ties recognition to voice activity: utterances start on a voice
// edge and stop when the voice goes quiet. The binding lasts until ctx is
// cancelled.
func (r *Recognizer) GateWith(ctx context.Context, d *vad.Detector) {
	d.SetOnTransition(func(active bool) {
		if ctx.Err() != nil {
			return
		}
		if active {
			if err := r.Start(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
				log.Printf("recognizer: start on voice edge: %v", err)
			}
			return
		}
		r.Stop()
	})
}
