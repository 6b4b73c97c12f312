package vad

import (
	"context"
	"sync"
	"time"
)

// LevelSource yields the current audio level in [0, 1]. The capture layer
// provides it; tests use a scripted source.
type LevelSource func() float64

// Config tunes the detector.
type Config struct {
	// Threshold is the level above which a sample counts as voice.
	Threshold float64
	// SampleInterval is how often the source is polled.
	SampleInterval time.Duration
	// MinActiveDuration is how long the level must stay above threshold
	// before activity is reported. Suppresses single-sample spikes.
	MinActiveDuration time.Duration
	// SilenceDuration is how long the level must stay below threshold
	// before activity is cleared.
	SilenceDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		Threshold:         0.12,
		SampleInterval:    50 * time.Millisecond,
		MinActiveDuration: 150 * time.Millisecond,
		SilenceDuration:   900 * time.Millisecond,
	}
}

// Snapshot is a point-in-time view of the detector.
type Snapshot struct {
	Active    bool
	Level     float64
	Threshold float64
}

// Detector reports whether the microphone currently carries speech. It polls
// a level source on a fixed interval and debounces both edges: activation
// needs a minimum sustained duration above threshold, deactivation a
// sustained silence below it.
type Detector struct {
	source LevelSource

	mu           sync.Mutex
	cfg          Config
	active       bool
	level        float64
	aboveSince   time.Time
	belowSince   time.Time
	onTransition func(active bool)
}

func NewDetector(source LevelSource, cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = def.SampleInterval
	}
	if cfg.MinActiveDuration <= 0 {
		cfg.MinActiveDuration = def.MinActiveDuration
	}
	if cfg.SilenceDuration <= 0 {
		cfg.SilenceDuration = def.SilenceDuration
	}
	return &Detector{source: source, cfg: cfg}
}

// SetOnTransition registers a callback fired on every activity edge. The
// callback runs on the sampling goroutine.
func (d *Detector) SetOnTransition(fn func(active bool)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onTransition = fn
}

// Run polls the level source until the context is cancelled.
func (d *Detector) Run(ctx context.Context) {
	d.mu.Lock()
	interval := d.cfg.SampleInterval
	d.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.Sample(now)
		}
	}
}

// Sample feeds one observation at the given instant. Exposed so tests can
// drive the state machine with synthetic clocks.
func (d *Detector) Sample(now time.Time) {
	level := d.source()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.level = level
	above := level >= d.cfg.Threshold

	if above {
		d.belowSince = time.Time{}
		if d.aboveSince.IsZero() {
			d.aboveSince = now
		}
		if !d.active && now.Sub(d.aboveSince) >= d.cfg.MinActiveDuration {
			d.setActiveLocked(true)
		}
		return
	}

	d.aboveSince = time.Time{}
	if !d.active {
		return
	}
	if d.belowSince.IsZero() {
		d.belowSince = now
		return
	}
	if now.Sub(d.belowSince) >= d.cfg.SilenceDuration {
		d.setActiveLocked(false)
	}
}

func (d *Detector) setActiveLocked(active bool) {
	d.active = active
	if d.onTransition != nil {
		d.onTransition(active)
	}
}

// Snapshot reports the current activity and level on demand.
func (d *Detector) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{Active: d.active, Level: d.level, Threshold: d.cfg.Threshold}
}

// IsVoiceActive reports whether speech is currently detected.
func (d *Detector) IsVoiceActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// SetThreshold reconfigures the activation threshold without restarting
// capture. Non-positive values are ignored.
func (d *Detector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg.Threshold = threshold
}

// Config returns the current tuning.
func (d *Detector) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}
