package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// Meter tracks the loudness of a PCM16LE stream. Its Level method satisfies
// the signature a voice activity detector polls, so a meter fed from the
// capture path doubles as the detector's level source.
type Meter struct {
	mu    sync.Mutex
	level float64
	decay float64
}

// NewMeter returns a meter whose level decays toward silence between frames.
// decay is the fraction of the previous level retained when a quieter frame
// arrives; 0 means the level tracks each frame exactly.
func NewMeter(decay float64) *Meter {
	if decay < 0 || decay >= 1 {
		decay = 0
	}
	return &Meter{decay: decay}
}

// PushFrame folds one frame of PCM16LE mono samples into the level. Trailing
// odd bytes are ignored.
func (m *Meter) PushFrame(pcm []byte) {
	rms := RMS(pcm)

	m.mu.Lock()
	defer m.mu.Unlock()
	if rms >= m.level {
		m.level = rms
		return
	}
	m.level = m.level*m.decay + rms*(1-m.decay)
}

// Level reports the current loudness in [0, 1].
func (m *Meter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Reset drops the level back to silence.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = 0
}

// RMS computes the root mean square of PCM16LE samples, normalized to [0, 1].
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n*2; i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i : i+2])))
		sum += s * s
	}
	return math.Sqrt(sum/float64(n)) / 32768
}
