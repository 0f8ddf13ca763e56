package synthesis

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// AmplitudeSource draws the breathing amplitude of a new cycle.
type AmplitudeSource interface {
	Draw() float64
}

// UniformAmplitude draws amplitudes uniformly from [1, 2).
type UniformAmplitude struct {
	mu   sync.Mutex
	dist distuv.Uniform
}

// NewUniformAmplitude seeds the source; seed 0 uses the clock.
func NewUniformAmplitude(seed uint64) *UniformAmplitude {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &UniformAmplitude{
		dist: distuv.Uniform{Min: 1.0, Max: 2.0, Src: rand.NewSource(seed)},
	}
}

// Draw returns the next amplitude.
func (u *UniformAmplitude) Draw() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.dist.Rand()
}

// ConstantAmplitude always draws the same value
type ConstantAmplitude float64

// Draw returns c.
func (c ConstantAmplitude) Draw() float64 { return float64(c) }
