package recognizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type scriptedEngine struct {
	hypotheses []Hypothesis
	err        error
}

func (e *scriptedEngine) Recognize(ctx context.Context, out chan<- Hypothesis) error {
	for _, h := range e.hypotheses {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- h:
		}
	}
	return e.err
}

type collector struct {
	mu       sync.Mutex
	interims []Hypothesis
	finals   []Hypothesis
	errs     []error
	done     chan struct{}
}

func newCollector() *collector {
	return &collector{done: make(chan struct{}, 8)}
}

func (c *collector) handlers() Handlers {
	return Handlers{
		OnInterim: func(h Hypothesis) {
			c.mu.Lock()
			c.interims = append(c.interims, h)
			c.mu.Unlock()
		},
		OnFinal: func(h Hypothesis) {
			c.mu.Lock()
			c.finals = append(c.finals, h)
			c.mu.Unlock()
			c.done <- struct{}{}
		},
		OnError: func(err error) {
			c.mu.Lock()
			c.errs = append(c.errs, err)
			c.mu.Unlock()
		},
	}
}

func (c *collector) waitFinal(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("no final result")
	}
}

func waitStopped(t *testing.T, r *Recognizer) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for r.Running() {
		select {
		case <-deadline:
			t.Fatalf("recognizer never stopped")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRecognizerUnsupportedWithoutEngine(t *testing.T) {
	r := New(nil, Handlers{})
	if r.Supported() {
		t.Fatalf("Supported should be false")
	}
	if err := r.Start(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

func TestRecognizerInterimsThenOneFinal(t *testing.T) {
	eng := &scriptedEngine{hypotheses: []Hypothesis{
		{Text: "I", Confidence: 0.4},
		{Text: "I need", Confidence: 0.5},
		{Text: "I need help", Confidence: 0.9, Final: true},
	}}
	c := newCollector()
	r := New(eng, c.handlers())

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.waitFinal(t)
	waitStopped(t, r)

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.interims) != 2 {
		t.Fatalf("interims = %d, want 2", len(c.interims))
	}
	if len(c.finals) != 1 {
		t.Fatalf("finals = %d, want exactly 1", len(c.finals))
	}
	if c.finals[0].Text != "I need help" || !c.finals[0].Final {
		t.Fatalf("final = %+v", c.finals[0])
	}
}

func TestRecognizerDropsSecondFinal(t *testing.T) {
	eng := &scriptedEngine{hypotheses: []Hypothesis{
		{Text: "first", Final: true},
		{Text: "second", Final: true},
	}}
	c := newCollector()
	r := New(eng, c.handlers())

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.waitFinal(t)
	waitStopped(t, r)

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.finals) != 1 || c.finals[0].Text != "first" {
		t.Fatalf("finals = %+v, want only the first", c.finals)
	}
}

func TestRecognizerPromotesLastInterim(t *testing.T) {
	eng := &scriptedEngine{hypotheses: []Hypothesis{
		{Text: "half a", Confidence: 0.3},
		{Text: "half a thought", Confidence: 0.6},
	}}
	c := newCollector()
	r := New(eng, c.handlers())

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.waitFinal(t)
	waitStopped(t, r)

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.finals) != 1 {
		t.Fatalf("finals = %d, want 1", len(c.finals))
	}
	if c.finals[0].Text != "half a thought" || !c.finals[0].Final {
		t.Fatalf("final = %+v, want promoted last interim", c.finals[0])
	}
}

func TestRecognizerRejectsConcurrentStart(t *testing.T) {
	block := make(chan struct{})
	eng := &blockingEngine{release: block}
	r := New(eng, Handlers{})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("err = %v, want ErrAlreadyRunning", err)
	}
	close(block)
	r.Stop()
	waitStopped(t, r)

	// Stop is idempotent and the recognizer is reusable.
	r.Stop()
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	r.Stop()
	waitStopped(t, r)
}

type blockingEngine struct {
	release chan struct{}
}

func (e *blockingEngine) Recognize(ctx context.Context, _ chan<- Hypothesis) error {
	select {
	case <-e.release:
	case <-ctx.Done():
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRecognizerReportsEngineError(t *testing.T) {
	eng := &scriptedEngine{err: errors.New("capture device lost")}
	c := newCollector()
	r := New(eng, c.handlers())

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitStopped(t, r)

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errs) != 1 {
		t.Fatalf("errs = %v, want one", c.errs)
	}
	if len(c.finals) != 0 {
		t.Fatalf("no final expected without any interim")
	}
}
