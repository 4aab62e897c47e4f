package bridge

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/safenestapp/safenest/internal/emergency"
	"github.com/safenestapp/safenest/internal/model"
	"github.com/safenestapp/safenest/internal/repository"
	"github.com/safenestapp/safenest/internal/store"
	syncengine "github.com/safenestapp/safenest/internal/sync"
)

// Publisher is the senior-device half of the status bridge. It owns the
// SeniorStatus snapshot: state-machine transitions and metadata refreshes
// both mutate it here and every change is pushed to the shared store (and
// mirrored locally for same-device reads). Caregivers only ever receive
// copies through the store.
type Publisher struct {
	engine  *syncengine.Engine
	session *repository.SessionRepository

	mu          sync.Mutex
	householdID string
	status      model.SeniorStatus
}

// NewPublisher seeds the snapshot from the local mirror when one survives a
// restart, otherwise from a fresh initial status.
func NewPublisher(engine *syncengine.Engine, session *repository.SessionRepository, householdID, userID string) *Publisher {
	status := model.NewSeniorStatus(userID)
	if session != nil {
		if mirrored, ok, err := session.StatusMirror(); err == nil && ok {
			status = mirrored
			// Never resurrect a stale emergency condition across restarts
			status.Condition = model.ConditionNormal
		}
	}
	return &Publisher{
		engine:      engine,
		session:     session,
		householdID: householdID,
		status:      status,
	}
}

// Attach wires the publisher to the state machine and replays any trigger
// buffered before startup completed.
func (p *Publisher) Attach(machine *emergency.Machine) {
	machine.Attach(p.handleTransition)
}

// Status returns a copy of the current snapshot
func (p *Publisher) Status() model.SeniorStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// handleTransition maps a state-machine transition onto the shared snapshot.
// Every transition appends one activity item; the externally visible
// condition only changes on confirm and on resolution, so warnings stay
// private to the senior device until the countdown runs out.
func (p *Publisher) handleTransition(t emergency.Transition) {
	p.mu.Lock()
	p.status.PushActivity(t.Activity)

	switch t.To {
	case model.StatusEmergency:
		if t.Kind == model.AlertFall {
			p.status.Condition = model.ConditionFallDetected
		} else {
			p.status.Condition = model.ConditionSOSActive
		}
		// Elevated rate snapshot accompanies the confirmed alert
		p.status.HeartRate = 115
	case model.StatusIdle, model.StatusSafe:
		p.status.Condition = model.ConditionNormal
	}
	p.mu.Unlock()

	p.Publish(context.Background())
}

// UpdateBattery pushes a metadata refresh. The condition is untouched, so
// caregiver-side edge detection will not treat it as a new emergency.
func (p *Publisher) UpdateBattery(level int) {
	p.mu.Lock()
	p.status.BatteryLevel = level
	p.mu.Unlock()
	p.Publish(context.Background())
}

// UpdateLocation pushes the latest position
func (p *Publisher) UpdateLocation(loc model.LocationData) {
	p.mu.Lock()
	p.status.Location = loc
	p.status.IsMoving = true
	p.mu.Unlock()
	p.Publish(context.Background())
}

// UpdateVitals pushes sensor-sourced vitals
func (p *Publisher) UpdateVitals(heartRate, spo2, steps int) {
	p.mu.Lock()
	p.status.HeartRate = heartRate
	p.status.SpO2 = spo2
	p.status.Steps = steps
	p.mu.Unlock()
	p.Publish(context.Background())
}

// SetSensorToggles records the fall-detection and location-sharing switches
func (p *Publisher) SetSensorToggles(fallDetection, locationSharing bool) {
	p.mu.Lock()
	p.status.IsFallDetectionEnabled = fallDetection
	p.status.IsLocationSharingEnabled = locationSharing
	p.mu.Unlock()
	p.Publish(context.Background())
}

// AddActivity appends a non-transition activity entry and pushes
func (p *Publisher) AddActivity(item model.ActivityItem) {
	p.mu.Lock()
	p.status.PushActivity(item)
	p.mu.Unlock()
	p.Publish(context.Background())
}

// Publish writes the snapshot through the engine (direct when online, queued
// when not) and refreshes the same-device mirror.
func (p *Publisher) Publish(ctx context.Context) {
	p.mu.Lock()
	p.status.Schema = model.SchemaVersion
	p.status.LastUpdate = time.Now()
	status := p.status
	householdID := p.householdID
	p.mu.Unlock()

	if householdID == "" {
		return
	}
	if err := p.engine.Write(ctx, store.StatusPath(householdID), status); err != nil {
		log.Printf("[StatusBridge] Failed to push status: %v", err)
	}
	if p.session != nil {
		if err := p.session.SaveStatusMirror(status); err != nil {
			log.Printf("[StatusBridge] Failed to mirror status: %v", err)
		}
	}
}
