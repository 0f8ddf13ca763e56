// Package synthesis drives the frame loop of the cine MR simulation: it
// steps the simulated clock through the breathing cycle, picks the phase path
// and amplitude of every frame, and warps the reference image (and any masks)
// through the composed deformation.
package synthesis

import (
	"fmt"
	"math"

	"github.com/josetascon/cinemri-simulation/pkg/phase"
)

// cycleEpsilon snaps positions within this distance of the period back to 0
const cycleEpsilon = 1e-6

// Timeline holds the breathing model and the simulated time axis.
type Timeline struct {
	// Phases is the number of discrete breathing phases.
	Phases int
	// Reference is the phase every path starts from.
	Reference int
	// Period is the duration of one breathing cycle in seconds.
	Period float64
	// FrameRate is the number of frames per simulated second.
	FrameRate float64
	// Duration is the simulated length of the sequence in seconds.
	Duration float64
	// Amplitude scales the displacements when RandomAmplitude is off.
	Amplitude float64
	// RandomAmplitude redraws the amplitude at every new cycle. The first
	// cycle always breathes with amplitude 1.
	RandomAmplitude bool
}

// Validate rejects timelines that cannot produce frames.
func (tl Timeline) Validate() error {
	if tl.FrameRate <= 0 {
		return fmt.Errorf("frame rate must be positive, got %g", tl.FrameRate)
	}
	if tl.Phases < 1 {
		return fmt.Errorf("phase count must be at least 1, got %d", tl.Phases)
	}
	if tl.Period <= 0 {
		return fmt.Errorf("breathing period must be positive, got %g", tl.Period)
	}
	if tl.Reference < 0 || tl.Reference >= tl.Phases {
		return fmt.Errorf("reference phase %d outside [0,%d)", tl.Reference, tl.Phases)
	}
	return nil
}

// FrameCount returns how many timestamps k/FrameRate fall before Duration
func (tl Timeline) FrameCount() int {
	n := 0
	for tl.Time(n) < tl.Duration {
		n++
	}
	return n
}

// Time returns the timestamp of frame k.
func (tl Timeline) Time(k int) float64 {
	return float64(k) / tl.FrameRate
}

// State is the breathing state carried from one frame to the next.
type State struct {
	Amplitude float64
	LastCycle float64
}

// InitialState returns the state before frame 0.
func (tl Timeline) InitialState() State {
	s := State{Amplitude: tl.Amplitude}
	if tl.RandomAmplitude {
		s.Amplitude = 1.0
	}
	return s
}

// Plan is the per-frame outcome of the timeline: where in the cycle the
// frame sits and which path and weights its transform uses.
type Plan struct {
	Index      int
	Time       float64
	Cycle      float64
	NewCycle   bool
	FloorPhase int
	CeilPhase  int
	Residual   float64
	Proportion float64
	Amplitude  float64
	Path       phase.Path
}

// Identity reports whether the frame is the unwarped reference.
func (p Plan) Identity() bool {
	return len(p.Path) < 2
}

// Step computes the plan of frame k from the state left by frame k-1 and
// returns the state for frame k+1. src is only used when the amplitude is
// random and frame k starts a new cycle.
func (tl Timeline) Step(s State, k int, src AmplitudeSource) (Plan, State, error) {
	t := tl.Time(k)
	cycle := math.Mod(t, tl.Period)
	if math.Abs(cycle-tl.Period) < cycleEpsilon {
		cycle = 0
	}

	newCycle := cycle < s.LastCycle
	if newCycle && tl.RandomAmplitude {
		s.Amplitude = src.Draw()
	}
	s.LastCycle = cycle

	phaseDuration := tl.Period / float64(tl.Phases)
	floorPhase := int(math.Floor(cycle/phaseDuration)) % tl.Phases
	ceilPhase := int(math.Ceil(cycle/phaseDuration)) % tl.Phases
	residual := math.Mod(cycle, phaseDuration)
	proportion := residual / phaseDuration

	path, err := phase.SelectPath(tl.Phases, tl.Reference, floorPhase, ceilPhase)
	if err != nil {
		return Plan{}, s, fmt.Errorf("frame %d: %w", k, err)
	}
	// The weight is measured along the traversal direction
	if !phase.IsAscending(path) {
		proportion = 1 - proportion
	}

	return Plan{
		Index:      k,
		Time:       t,
		Cycle:      cycle,
		NewCycle:   newCycle,
		FloorPhase: floorPhase,
		CeilPhase:  ceilPhase,
		Residual:   residual,
		Proportion: proportion,
		Amplitude:  s.Amplitude,
		Path:       path,
	}, s, nil
}

// Plans replays the timeline from frame 0 and returns the plans of frames
// [0, FrameCount). Amplitude draws happen in frame order, so a seeded source
// yields the same sequence however many frames are later skipped.
func (tl Timeline) Plans(src AmplitudeSource) ([]Plan, error) {
	n := tl.FrameCount()
	plans := make([]Plan, 0, n)
	s := tl.InitialState()
	for k := 0; k < n; k++ {
		var p Plan
		var err error
		p, s, err = tl.Step(s, k, src)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}
