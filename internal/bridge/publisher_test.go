package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safenestapp/safenest/internal/emergency"
	"github.com/safenestapp/safenest/internal/model"
	"github.com/safenestapp/safenest/internal/repository"
	"github.com/safenestapp/safenest/internal/store"
	syncengine "github.com/safenestapp/safenest/internal/sync"
)

func newTestPublisher(t *testing.T) (*Publisher, *store.MemoryStore, *repository.SessionRepository) {
	t.Helper()
	db, err := repository.Open(":memory:")
	require.NoError(t, err)
	remote := store.NewMemoryStore()
	engine := syncengine.NewEngine(remote, repository.NewQueueRepository(db), syncengine.NewMonitor(true))
	t.Cleanup(engine.Close)
	session := repository.NewSessionRepository(db)
	return NewPublisher(engine, session, "ABC", "senior-1"), remote, session
}

func remoteStatus(t *testing.T, remote *store.MemoryStore) model.SeniorStatus {
	t.Helper()
	var status model.SeniorStatus
	found, err := remote.GetOnce(context.Background(), store.StatusPath("ABC"), &status)
	require.NoError(t, err)
	require.True(t, found)
	return status
}

func TestWarningStaysPrivateUntilConfirm(t *testing.T) {
	p, remote, _ := newTestPublisher(t)
	machine := emergency.New(emergency.Options{Clock: clockwork.NewFakeClock()})
	p.Attach(machine)

	machine.Trigger(model.CauseFall)

	// The warning pushed an activity entry but the condition is still Normal
	status := remoteStatus(t, remote)
	assert.Equal(t, model.ConditionNormal, status.Condition)
	require.NotEmpty(t, status.RecentActivity)
	assert.Equal(t, "Fall Detected", status.RecentActivity[0].Title)

	machine.Confirm()

	status = remoteStatus(t, remote)
	assert.Equal(t, model.ConditionFallDetected, status.Condition)
	assert.Equal(t, 115, status.HeartRate)
}

func TestSOSConfirmPublishesSOSCondition(t *testing.T) {
	p, remote, _ := newTestPublisher(t)
	machine := emergency.New(emergency.Options{Clock: clockwork.NewFakeClock()})
	p.Attach(machine)

	machine.Trigger(model.CauseSOS)
	machine.Confirm()

	assert.Equal(t, model.ConditionSOSActive, remoteStatus(t, remote).Condition)
}

func TestCancelPublishesNormal(t *testing.T) {
	p, remote, _ := newTestPublisher(t)
	machine := emergency.New(emergency.Options{Clock: clockwork.NewFakeClock()})
	p.Attach(machine)

	machine.Trigger(model.CauseSOS)
	machine.Confirm()
	machine.Cancel()

	assert.Equal(t, model.ConditionNormal, remoteStatus(t, remote).Condition)
}

func TestMetadataRefreshKeepsCondition(t *testing.T) {
	p, remote, _ := newTestPublisher(t)
	machine := emergency.New(emergency.Options{Clock: clockwork.NewFakeClock()})
	p.Attach(machine)

	machine.Trigger(model.CauseFall)
	machine.Confirm()

	p.UpdateBattery(17)

	status := remoteStatus(t, remote)
	assert.Equal(t, 17, status.BatteryLevel)
	assert.Equal(t, model.ConditionFallDetected, status.Condition)
}

func TestMirrorSeedsNextStartWithoutStaleEmergency(t *testing.T) {
	db, err := repository.Open(":memory:")
	require.NoError(t, err)
	remote := store.NewMemoryStore()
	engine := syncengine.NewEngine(remote, repository.NewQueueRepository(db), syncengine.NewMonitor(true))
	t.Cleanup(engine.Close)
	session := repository.NewSessionRepository(db)

	p := NewPublisher(engine, session, "ABC", "senior-1")
	p.UpdateVitals(80, 98, 4200)
	machine := emergency.New(emergency.Options{Clock: clockwork.NewFakeClock()})
	p.Attach(machine)
	machine.Trigger(model.CauseSOS)
	machine.Confirm()

	// "Restart": a new publisher over the same local session
	restarted := NewPublisher(engine, session, "ABC", "senior-1")
	status := restarted.Status()

	assert.Equal(t, model.ConditionNormal, status.Condition)
	assert.Equal(t, 98, status.SpO2)
	assert.Equal(t, 4200, status.Steps)
}

func TestActivityRingCapped(t *testing.T) {
	p, remote, _ := newTestPublisher(t)

	for i := 0; i < model.MaxRecentActivity+5; i++ {
		p.AddActivity(model.ActivityItem{
			ID:        "a",
			Type:      model.ActivityInfo,
			Title:     "Walked",
			Timestamp: time.Now(),
		})
	}

	status := remoteStatus(t, remote)
	assert.Len(t, status.RecentActivity, model.MaxRecentActivity)
}
