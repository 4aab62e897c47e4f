package bridge

import (
	"sync"

	"github.com/safenestapp/safenest/internal/model"
)

// EdgeDetector turns a stream of status snapshots into alert edges. The
// caregiver alert fires only on the specific transition Normal -> emergency
// and clears only on the transition back to Normal; metadata-only refreshes
// (battery, location, heart rate) arrive as snapshots with an unchanged
// condition and produce neither.
type EdgeDetector struct {
	mu   sync.Mutex
	prev model.SeniorCondition
}

// NewEdgeDetector starts from Normal, so a household already in emergency at
// first snapshot raises the alert immediately.
func NewEdgeDetector() *EdgeDetector {
	return &EdgeDetector{prev: model.ConditionNormal}
}

// Observe records the new condition and reports whether to raise or clear
// the alert. At most one of the two is true.
func (d *EdgeDetector) Observe(next model.SeniorCondition) (raise, clear bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	wasNormal := !d.prev.IsEmergency()
	isEmergency := next.IsEmergency()

	switch {
	case wasNormal && isEmergency:
		raise = true
	case !wasNormal && !isEmergency:
		clear = true
	}
	d.prev = next
	return raise, clear
}

// Reset returns the detector to its initial Normal baseline (household
// switch or sign-out)
func (d *EdgeDetector) Reset() {
	d.mu.Lock()
	d.prev = model.ConditionNormal
	d.mu.Unlock()
}
