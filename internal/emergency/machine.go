package emergency

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/safenestapp/safenest/internal/model"
)

// DefaultCountdown is the warning window during which the senior can cancel
// before the emergency is confirmed and broadcast.
const DefaultCountdown = 30 * time.Second

// Transition describes one state change. Activity is the entry to append to
// the recent-activity ring; every real transition carries one.
type Transition struct {
	From     model.AppStatus
	To       model.AppStatus
	Cause    model.TriggerCause
	Kind     model.AlertKind // set once the emergency is classified
	Activity model.ActivityItem
}

// ChangeFunc observes committed transitions. It is invoked outside the
// machine's lock, in commit order.
type ChangeFunc func(t Transition)

// Options configures a Machine
type Options struct {
	Countdown time.Duration   // warning countdown, DefaultCountdown when zero
	Clock     clockwork.Clock // real clock when nil
}

// Machine owns the device's AppStatus and every transition into and out of
// an emergency. All entry points may be called concurrently (sensor bridge,
// store callbacks, countdown timer); mutation is serialized internally and
// applied in arrival order, so a racing confirm and cancel resolve to
// whichever reaches the lock first and the loser becomes a no-op.
type Machine struct {
	mu        sync.Mutex
	status    model.AppStatus
	kind      model.AlertKind // "" until first confirm, cleared on return to Idle
	clock     clockwork.Clock
	countdown time.Duration

	timer    clockwork.Timer
	timerGen uint64 // invalidates stale countdown fires

	attached bool
	onChange ChangeFunc
	// Single-slot mailbox for a trigger racing startup (e.g. a platform
	// widget press); only the most recent unconsumed trigger survives.
	pending *model.TriggerCause

	// Committed transitions awaiting delivery; appended under mu so the
	// queue order is the commit order, drained by one dispatcher at a time.
	emits       []Transition
	dispatching bool
}

// New returns a Machine in Idle
func New(opts Options) *Machine {
	if opts.Countdown <= 0 {
		opts.Countdown = DefaultCountdown
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Machine{
		status:    model.StatusIdle,
		clock:     opts.Clock,
		countdown: opts.Countdown,
	}
}

// Status returns the current AppStatus
func (m *Machine) Status() model.AppStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Kind returns the recorded fall/SOS classification, "" before confirm
func (m *Machine) Kind() model.AlertKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kind
}

// Attach connects the transition listener and drains the pre-attach mailbox.
// The buffered trigger, if any, is replayed immediately.
func (m *Machine) Attach(onChange ChangeFunc) {
	m.mu.Lock()
	m.attached = true
	m.onChange = onChange
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	if pending != nil {
		log.Printf("[Emergency] Replaying buffered trigger: %s", *pending)
		m.Trigger(*pending)
	}
}

// Detach disconnects the listener and stops any running countdown. Used on
// sign-out so a stale timer cannot fire against a dead session.
func (m *Machine) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attached = false
	m.onChange = nil
	m.emits = nil
	m.stopTimerLocked()
}

// Trigger moves the machine into the warning state for cause. Redundant
// triggers are idempotent: while already in WarningSOS or Emergency the call
// is a no-op, and re-triggering the warning the machine is already in does
// not restart its countdown.
func (m *Machine) Trigger(cause model.TriggerCause) model.AppStatus {
	target, ok := warningFor(cause)
	if !ok {
		// Contract violation: unrecognized cause. Fail safe, never enter a
		// phantom state.
		log.Printf("[Emergency] Ignoring trigger with unknown cause %q", cause)
		return m.Status()
	}

	m.mu.Lock()
	if !m.attached {
		// Buffer exactly one pending trigger until the owner attaches
		m.pending = &cause
		status := m.status
		m.mu.Unlock()
		log.Printf("[Emergency] Buffered trigger before attach: %s", cause)
		return status
	}

	if m.status == model.StatusWarningSOS || m.status == model.StatusEmergency {
		status := m.status
		m.mu.Unlock()
		log.Printf("[Emergency] Ignoring duplicate trigger %s (already %s)", cause, status)
		return status
	}
	if m.status == target {
		status := m.status
		m.mu.Unlock()
		return status
	}

	t := m.transitionLocked(target, cause, model.ActivityItem{
		Type:    model.ActivityEmergency,
		Title:   triggerTitle(cause),
		Details: triggerDetails(cause),
	})
	m.startCountdownLocked()
	m.emits = append(m.emits, t)
	m.mu.Unlock()

	m.dispatch()
	return t.To
}

// Confirm escalates a warning into a confirmed emergency. Calling it from
// any non-warning state is treated as a defect and ignored. The fall/SOS
// classification is recorded on the first confirm of this episode and later
// calls never overwrite it.
func (m *Machine) Confirm() model.AppStatus {
	m.mu.Lock()
	if !m.status.IsWarning() {
		status := m.status
		m.mu.Unlock()
		log.Printf("[Emergency] Confirm ignored from %s", status)
		return status
	}

	if m.kind == "" {
		if m.status == model.StatusWarningFall {
			m.kind = model.AlertFall
		} else {
			m.kind = model.AlertSOS
		}
	}
	m.stopTimerLocked()
	t := m.transitionLocked(model.StatusEmergency, "", model.ActivityItem{
		Type:    model.ActivityEmergency,
		Title:   "Emergency Confirmed",
		Details: "Alert sent to contacts",
	})
	m.emits = append(m.emits, t)
	m.mu.Unlock()

	m.dispatch()
	return t.To
}

// Cancel resolves any warning, emergency, or safe state back to Idle,
// clearing the countdown and the recorded classification.
func (m *Machine) Cancel() model.AppStatus {
	m.mu.Lock()
	if m.status == model.StatusIdle {
		m.mu.Unlock()
		return model.StatusIdle
	}
	m.stopTimerLocked()
	m.kind = ""
	t := m.transitionLocked(model.StatusIdle, "", model.ActivityItem{
		Type:    model.ActivityInfo,
		Title:   "Emergency Cancelled",
		Details: "Marked safe by user",
	})
	m.emits = append(m.emits, t)
	m.mu.Unlock()

	m.dispatch()
	return t.To
}

// MarkSafe moves a confirmed emergency into the post-emergency check-in
// state. Only valid from Emergency.
func (m *Machine) MarkSafe() model.AppStatus {
	m.mu.Lock()
	if m.status != model.StatusEmergency {
		status := m.status
		m.mu.Unlock()
		log.Printf("[Emergency] MarkSafe ignored from %s", status)
		return status
	}
	t := m.transitionLocked(model.StatusSafe, "", model.ActivityItem{
		Type:  model.ActivityInfo,
		Title: "Marked Safe",
	})
	m.emits = append(m.emits, t)
	m.mu.Unlock()

	m.dispatch()
	return t.To
}

// transitionLocked commits a state change and builds its Transition record
func (m *Machine) transitionLocked(to model.AppStatus, cause model.TriggerCause, activity model.ActivityItem) Transition {
	activity.ID = uuid.NewString()
	activity.Timestamp = m.clock.Now()
	t := Transition{
		From:     m.status,
		To:       to,
		Cause:    cause,
		Kind:     m.kind,
		Activity: activity,
	}
	m.status = to
	return t
}

// startCountdownLocked arms the warning countdown. The generation counter
// makes a timer that lost the stop race a no-op instead of corrupting a
// later state.
func (m *Machine) startCountdownLocked() {
	m.stopTimerLocked()
	m.timerGen++
	gen := m.timerGen
	m.timer = m.clock.AfterFunc(m.countdown, func() {
		m.mu.Lock()
		stale := gen != m.timerGen || !m.status.IsWarning()
		m.mu.Unlock()
		if stale {
			return
		}
		log.Println("[Emergency] Countdown expired, confirming emergency")
		m.Confirm()
	})
}

func (m *Machine) stopTimerLocked() {
	m.timerGen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// dispatch delivers queued transitions outside the lock. Whichever caller
// wins becomes the sole dispatcher and drains the queue, so a racing pair of
// transitions (countdown expiry vs a remote cancel) always reaches the
// listener in the order they committed.
func (m *Machine) dispatch() {
	m.mu.Lock()
	if m.dispatching {
		m.mu.Unlock()
		return
	}
	m.dispatching = true
	for len(m.emits) > 0 {
		t := m.emits[0]
		m.emits = m.emits[1:]
		onChange := m.onChange
		m.mu.Unlock()
		if onChange != nil {
			onChange(t)
		}
		m.mu.Lock()
	}
	m.dispatching = false
	m.mu.Unlock()
}

func warningFor(cause model.TriggerCause) (model.AppStatus, bool) {
	switch cause {
	case model.CauseFall, model.CauseVoiceDistress:
		return model.StatusWarningFall, true
	case model.CauseSOS, model.CauseRemoteWidget:
		return model.StatusWarningSOS, true
	default:
		return "", false
	}
}

func triggerTitle(cause model.TriggerCause) string {
	switch cause {
	case model.CauseFall:
		return "Fall Detected"
	case model.CauseVoiceDistress:
		return "Voice Distress"
	default:
		return "SOS Triggered"
	}
}

func triggerDetails(cause model.TriggerCause) string {
	switch cause {
	case model.CauseFall:
		return "Motion sensor"
	case model.CauseVoiceDistress:
		return "Loud sound/shout detected"
	case model.CauseRemoteWidget:
		return "Home screen widget"
	default:
		return "In-app button"
	}
}
