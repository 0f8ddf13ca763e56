package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/josetascon/cinemri-simulation/pkg/synthesis"
	"github.com/josetascon/cinemri-simulation/pkg/transform"
)

// frameTable prints one row per synthesized frame
type frameTable struct {
	mu      sync.Mutex
	w       io.Writer
	showKey bool
	header  bool
	cycle   *color.Color
}

func newFrameTable(w io.Writer, showKeys bool) *frameTable {
	return &frameTable{
		w:       w,
		showKey: showKeys,
		cycle:   color.New(color.FgCyan, color.Bold),
	}
}

func (t *frameTable) row(plan synthesis.Plan, refs []transform.FieldRef) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.header {
		fmt.Fprintf(t.w, "%6s %7s %9s %7s %6s %6s\n", "ts", "cycle", "phase", "res", "%", "amp")
		fmt.Fprintln(t.w, strings.Repeat("─", 46))
		t.header = true
	}

	line := fmt.Sprintf("%6.2f %7.3f %3d->%-4d %7.3f %6.1f %6.3f",
		plan.Time, plan.Cycle, plan.FloorPhase, plan.CeilPhase,
		plan.Residual, 100*plan.Proportion, plan.Amplitude)
	if plan.NewCycle {
		line = t.cycle.Sprint(line)
	}
	fmt.Fprintln(t.w, line)

	if t.showKey && len(refs) > 0 {
		names := make([]string, len(refs))
		for i, r := range refs {
			names[i] = r.Key.Name()
		}
		fmt.Fprintf(t.w, "       path %v: %s\n", plan.Path, strings.Join(names, " "))
	}
}

func statusWord(ok bool) string {
	if ok {
		return color.New(color.FgGreen).Sprint("OK")
	}
	return color.New(color.FgRed, color.Bold).Sprint("MISSING")
}
