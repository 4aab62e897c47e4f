package bridge

import "log"

// Alerter is the audible tone + vibration surface on the caregiver device.
// Start may be invoked repeatedly while an alert is active; Stop must always
// leave the device silent, even when no alert is playing.
type Alerter interface {
	Start()
	Stop()
}

// Notifier delivers passive notifications that must not steal the foreground
// display (non-active household emergencies, medication events).
type Notifier interface {
	NotifyEmergency(householdID, seniorName string, condition string)
	NotifyMedication(householdID, seniorName, summary string)
}

// LogAlerter is the fallback Alerter when no native sound bridge is wired
type LogAlerter struct{}

func (LogAlerter) Start() { log.Println("🔔 [Alert] Caregiver alert started") }
func (LogAlerter) Stop()  { log.Println("🔕 [Alert] Caregiver alert stopped") }

// LogNotifier is the fallback Notifier when push delivery is not configured
type LogNotifier struct{}

func (LogNotifier) NotifyEmergency(householdID, seniorName, condition string) {
	log.Printf("⚠️  [Notify] %s (%s): %s", seniorName, householdID, condition)
}

func (LogNotifier) NotifyMedication(householdID, seniorName, summary string) {
	log.Printf("💊 [Notify] %s (%s): %s", seniorName, householdID, summary)
}
