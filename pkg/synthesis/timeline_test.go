package synthesis

import (
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/josetascon/cinemri-simulation/internal/models"
	"github.com/josetascon/cinemri-simulation/pkg/phase"
	"github.com/josetascon/cinemri-simulation/pkg/transform"
)

// countingSource returns 1.5, 1.6, ... and counts the draws
type countingSource struct {
	draws int
}

func (c *countingSource) Draw() float64 {
	c.draws++
	return 1.4 + 0.1*float64(c.draws)
}

func defaultTimeline() Timeline {
	return Timeline{
		Phases:    10,
		Reference: 0,
		Period:    4.5,
		FrameRate: 4,
		Duration:  9,
		Amplitude: 1,
	}
}

func TestFrameCount(t *testing.T) {
	tests := []struct {
		rate, duration float64
		want           int
	}{
		{4, 9, 36},
		{4, 20, 80},
		{3, 1, 3},
		{4, 0, 0},
		{2.5, 1, 3},
	}
	for _, tt := range tests {
		tl := defaultTimeline()
		tl.FrameRate, tl.Duration = tt.rate, tt.duration
		if got := tl.FrameCount(); got != tt.want {
			t.Errorf("FrameCount(rate=%g, duration=%g): expected %d, got %d", tt.rate, tt.duration, tt.want, got)
		}
	}
}

func TestTimelineValidate(t *testing.T) {
	bad := []func(*Timeline){
		func(tl *Timeline) { tl.FrameRate = 0 },
		func(tl *Timeline) { tl.Phases = 0 },
		func(tl *Timeline) { tl.Period = -1 },
		func(tl *Timeline) { tl.Reference = 10 },
		func(tl *Timeline) { tl.Reference = -1 },
	}
	for i, mutate := range bad {
		tl := defaultTimeline()
		mutate(&tl)
		if err := tl.Validate(); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, tl)
		}
	}
	if err := defaultTimeline().Validate(); err != nil {
		t.Errorf("Expected default timeline to be valid, got %v", err)
	}
}

func TestPlansReferenceFrames(t *testing.T) {
	plans, err := defaultTimeline().Plans(nil)
	if err != nil {
		t.Fatalf("Plans failed: %v", err)
	}
	if len(plans) != 36 {
		t.Fatalf("Expected 36 plans, got %d", len(plans))
	}

	for _, k := range []int{0, 18} {
		p := plans[k]
		if !p.Identity() {
			t.Errorf("Frame %d: expected identity, got path %v", k, p.Path)
		}
		if p.Amplitude != 1 {
			t.Errorf("Frame %d: expected amplitude 1, got %g", k, p.Amplitude)
		}
	}
	if plans[0].NewCycle {
		t.Errorf("Frame 0 must not start a new cycle")
	}
	if !plans[18].NewCycle {
		t.Errorf("Frame 18 (t=4.5) must start a new cycle")
	}

	for _, p := range plans {
		if p.Index == 0 || p.Index == 18 {
			continue
		}
		if p.NewCycle {
			t.Errorf("Unexpected new cycle at frame %d", p.Index)
		}
		if p.Proportion < 0 || p.Proportion > 1 {
			t.Errorf("Frame %d: proportion %g outside [0,1]", p.Index, p.Proportion)
		}
		if p.FloorPhase < 0 || p.FloorPhase >= 10 || p.CeilPhase < 0 || p.CeilPhase >= 10 {
			t.Errorf("Frame %d: phases %d/%d out of range", p.Index, p.FloorPhase, p.CeilPhase)
		}
		if len(p.Path) == 0 || p.Path[0] != 0 {
			t.Errorf("Frame %d: path %v must start at the reference", p.Index, p.Path)
		}
	}
}

func TestCycleBoundaryDrawsOnce(t *testing.T) {
	tl := Timeline{
		Phases:          10,
		Period:          4,
		FrameRate:       4,
		Duration:        8,
		Amplitude:       1,
		RandomAmplitude: true,
	}
	src := &countingSource{}
	plans, err := tl.Plans(src)
	if err != nil {
		t.Fatalf("Plans failed: %v", err)
	}
	if src.draws != 1 {
		t.Fatalf("Expected exactly one amplitude draw, got %d", src.draws)
	}

	boundaries := 0
	for _, p := range plans {
		if p.NewCycle {
			boundaries++
			if p.Index != 16 {
				t.Errorf("Expected the boundary at frame 16, got %d", p.Index)
			}
		}
	}
	if boundaries != 1 {
		t.Errorf("Expected one cycle boundary, got %d", boundaries)
	}

	if plans[15].Amplitude != 1 {
		t.Errorf("First cycle must use amplitude 1, got %g", plans[15].Amplitude)
	}
	if math.Abs(plans[16].Amplitude-1.5) > 1e-12 || math.Abs(plans[31].Amplitude-1.5) > 1e-12 {
		t.Errorf("Second cycle must use the drawn amplitude, got %g and %g", plans[16].Amplitude, plans[31].Amplitude)
	}
}

func TestRegularAmplitudeIgnoresSource(t *testing.T) {
	tl := defaultTimeline()
	tl.Amplitude = 1.3
	src := &countingSource{}
	plans, err := tl.Plans(src)
	if err != nil {
		t.Fatalf("Plans failed: %v", err)
	}
	if src.draws != 0 {
		t.Errorf("Regular mode must not draw, got %d draws", src.draws)
	}
	for _, p := range plans {
		if p.Amplitude != 1.3 {
			t.Fatalf("Frame %d: expected amplitude 1.3, got %g", p.Index, p.Amplitude)
		}
	}
}

func TestDescendingFramePlan(t *testing.T) {
	tl := Timeline{Phases: 10, Period: 10, FrameRate: 4, Duration: 10, Amplitude: 1}
	plans, err := tl.Plans(nil)
	if err != nil {
		t.Fatalf("Plans failed: %v", err)
	}

	p := plans[25]
	if p.Time != 6.25 {
		t.Fatalf("Expected t=6.25, got %g", p.Time)
	}
	if p.FloorPhase != 6 || p.CeilPhase != 7 {
		t.Errorf("Expected floor 6 / ceil 7, got %d / %d", p.FloorPhase, p.CeilPhase)
	}
	if want := (phase.Path{0, 9, 8, 7, 6}); !reflect.DeepEqual(p.Path, want) {
		t.Errorf("Expected path %v, got %v", want, p.Path)
	}
	if math.Abs(p.Proportion-0.75) > 1e-12 {
		t.Errorf("Expected proportion 0.75, got %g", p.Proportion)
	}

	table := transform.NewFieldTable()
	for _, key := range transform.RingKeys(10) {
		table.Add(key, key.Name())
	}
	refs, err := transform.Resolve(p.Path, table)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := refs[0].Key.Name(); got != "06to07_0Warp" {
		t.Errorf("Expected the partial step to use 06to07_0Warp, got %s", got)
	}

	// Unit displacement everywhere: the composed shift is 0.75 + 3
	loader := transform.LoaderFunc(func(string) (*models.DisplacementField, error) {
		g := models.NewGeometry([3]int{20, 20, 20}, [3]float64{1, 1, 1})
		g.Origin = [3]float64{-10, -10, -10}
		f := models.NewDisplacementField(g)
		for i := range f.X {
			f.X[i] = 1
		}
		return f, nil
	})
	chain, err := transform.NewComposer(loader).Compose(refs, p.Amplitude, p.Proportion)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	got := chain.TransformPoint(r3.Vec{})
	if math.Abs(got.X-3.75) > 1e-9 || got.Y != 0 || got.Z != 0 {
		t.Errorf("Expected displacement (3.75,0,0), got %v", got)
	}
}

func TestAscendingProportionUnchanged(t *testing.T) {
	tl := Timeline{Phases: 10, Period: 10, FrameRate: 4, Duration: 10, Amplitude: 1}
	plans, err := tl.Plans(nil)
	if err != nil {
		t.Fatalf("Plans failed: %v", err)
	}
	// t=1.25: floor 1, ceil 2, path 0->1->2
	p := plans[5]
	if want := (phase.Path{0, 1, 2}); !reflect.DeepEqual(p.Path, want) {
		t.Errorf("Expected path %v, got %v", want, p.Path)
	}
	if math.Abs(p.Proportion-0.25) > 1e-12 {
		t.Errorf("Expected proportion 0.25, got %g", p.Proportion)
	}
}

func TestUniformAmplitudeSeeded(t *testing.T) {
	a := NewUniformAmplitude(42)
	b := NewUniformAmplitude(42)
	for i := 0; i < 20; i++ {
		x, y := a.Draw(), b.Draw()
		if x != y {
			t.Fatalf("Draw %d differs between equal seeds: %g vs %g", i, x, y)
		}
		if x < 1 || x >= 2 {
			t.Fatalf("Draw %d = %g outside [1,2)", i, x)
		}
	}
}

func TestConstantAmplitudeAfterFirstCycle(t *testing.T) {
	tl := Timeline{Phases: 10, Period: 2, FrameRate: 4, Duration: 6, Amplitude: 1, RandomAmplitude: true}
	plans, err := tl.Plans(ConstantAmplitude(1.7))
	if err != nil {
		t.Fatalf("Plans failed: %v", err)
	}
	for _, p := range plans {
		want := 1.7
		if p.Time < 2 {
			want = 1
		}
		if p.Amplitude != want {
			t.Errorf("Frame %d (t=%g): expected amplitude %g, got %g", p.Index, p.Time, want, p.Amplitude)
		}
	}
}
