package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/safenestapp/safenest/internal/model"
)

func TestEdgeRaisesExactlyOnce(t *testing.T) {
	d := NewEdgeDetector()

	raise, clear := d.Observe(model.ConditionFallDetected)
	assert.True(t, raise)
	assert.False(t, clear)

	// Repeated emergency snapshots do not re-raise
	raise, clear = d.Observe(model.ConditionFallDetected)
	assert.False(t, raise)
	assert.False(t, clear)
}

func TestEdgeClearsOnReturnToNormal(t *testing.T) {
	d := NewEdgeDetector()

	d.Observe(model.ConditionSOSActive)
	raise, clear := d.Observe(model.ConditionNormal)
	assert.False(t, raise)
	assert.True(t, clear)

	// And stays quiet while Normal
	raise, clear = d.Observe(model.ConditionNormal)
	assert.False(t, raise)
	assert.False(t, clear)
}

func TestEdgeEmergencyKindChangeIsNotANewEdge(t *testing.T) {
	d := NewEdgeDetector()

	d.Observe(model.ConditionFallDetected)
	raise, clear := d.Observe(model.ConditionSOSActive)
	assert.False(t, raise)
	assert.False(t, clear)
}

func TestEdgeFirstSnapshotAlreadyEmergency(t *testing.T) {
	// A caregiver subscribing to a household mid-incident must still alert
	d := NewEdgeDetector()
	raise, _ := d.Observe(model.ConditionSOSActive)
	assert.True(t, raise)
}

func TestEdgeResetRestoresBaseline(t *testing.T) {
	d := NewEdgeDetector()
	d.Observe(model.ConditionFallDetected)

	d.Reset()

	raise, _ := d.Observe(model.ConditionFallDetected)
	assert.True(t, raise)
}
