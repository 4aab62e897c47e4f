package model

import (
	"time"
)

// SchemaVersion is stamped on every snapshot written to the remote store so
// older clients can detect records they do not understand.
const SchemaVersion = 1

// UserRole defines which side of a household a member is on
type UserRole string

const (
	RoleSenior    UserRole = "SENIOR"
	RoleCaregiver UserRole = "CAREGIVER"
)

// AppStatus is the device-session emergency state. Exactly one value is
// active at a time; it is owned by the emergency state machine and lives only
// for the process session.
type AppStatus string

const (
	StatusIdle        AppStatus = "IDLE"
	StatusWarningFall AppStatus = "WARNING_FALL" // countdown after fall detection
	StatusWarningSOS  AppStatus = "WARNING_SOS"  // countdown after SOS press
	StatusEmergency   AppStatus = "EMERGENCY"    // active emergency
	StatusSafe        AppStatus = "SAFE"         // post-emergency check-in
)

// IsWarning reports whether the status is a pre-confirmation countdown state
func (s AppStatus) IsWarning() bool {
	return s == StatusWarningFall || s == StatusWarningSOS
}

// TriggerCause identifies the source of an emergency trigger
type TriggerCause string

const (
	CauseFall          TriggerCause = "FALL"
	CauseSOS           TriggerCause = "SOS"
	CauseVoiceDistress TriggerCause = "VOICE_DISTRESS"
	CauseRemoteWidget  TriggerCause = "REMOTE_WIDGET"
)

// SeniorCondition is the externally visible condition mirrored to caregivers
type SeniorCondition string

const (
	ConditionNormal       SeniorCondition = "Normal"
	ConditionFallDetected SeniorCondition = "Fall Detected"
	ConditionSOSActive    SeniorCondition = "SOS Active"
)

// IsEmergency reports whether the condition should raise a caregiver alert
func (c SeniorCondition) IsEmergency() bool {
	return c != ConditionNormal && c != ""
}

// ActivityType categorizes entries in the recent-activity ring
type ActivityType string

const (
	ActivityLocation  ActivityType = "LOCATION"
	ActivityBattery   ActivityType = "BATTERY"
	ActivityEmergency ActivityType = "EMERGENCY"
	ActivityInfo      ActivityType = "INFO"
)

// ActivityItem is one entry in the senior's recent-activity log
type ActivityItem struct {
	ID        string       `json:"id"`
	Type      ActivityType `json:"type"`
	Title     string       `json:"title"`
	Details   string       `json:"details,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// MaxRecentActivity caps the recent-activity ring, most-recent-first
const MaxRecentActivity = 10

// LocationData is the senior's last known position
type LocationData struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Address   string    `json:"address"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SeniorStatus is the per-household status snapshot. It is mutated only by
// the senior device and mirrored read-only to caregivers through the store.
type SeniorStatus struct {
	Schema       int             `json:"schema"`
	UserID       string          `json:"userId"`
	Condition    SeniorCondition `json:"status"`
	Location     LocationData    `json:"location"`
	BatteryLevel int             `json:"batteryLevel"`
	HeartRate    int             `json:"heartRate"`
	SpO2         int             `json:"spo2,omitempty"`
	Steps        int             `json:"steps,omitempty"`
	IsMoving     bool            `json:"isMoving"`
	LastUpdate   time.Time       `json:"lastUpdate"`

	IsFallDetectionEnabled   bool `json:"isFallDetectionEnabled"`
	IsLocationSharingEnabled bool `json:"isLocationSharingEnabled"`

	// Most-recent-first, capped at MaxRecentActivity
	RecentActivity []ActivityItem `json:"recentActivity,omitempty"`
}

// NewSeniorStatus returns the initial snapshot for a fresh session
func NewSeniorStatus(userID string) SeniorStatus {
	return SeniorStatus{
		Schema:                   SchemaVersion,
		UserID:                   userID,
		Condition:                ConditionNormal,
		BatteryLevel:             100,
		IsFallDetectionEnabled:   true,
		IsLocationSharingEnabled: true,
	}
}

// PushActivity prepends an activity item and trims the ring to its cap
func (s *SeniorStatus) PushActivity(item ActivityItem) {
	s.RecentActivity = append([]ActivityItem{item}, s.RecentActivity...)
	if len(s.RecentActivity) > MaxRecentActivity {
		s.RecentActivity = s.RecentActivity[:MaxRecentActivity]
	}
}
