package model

import "time"

// QueueActionType identifies what a queued action does on replay
type QueueActionType string

const (
	// ActionDBUpdate replays a remote-store write (or delete when the
	// payload value is null)
	ActionDBUpdate QueueActionType = "dbUpdate"
)

// QueueAction is one pending write persisted while the device is offline.
// Rows are replayed strictly in insertion order and deleted only after the
// remote write succeeds.
type QueueAction struct {
	Seq        int64           `json:"-" gorm:"primaryKey;autoIncrement"`
	ID         string          `json:"id" gorm:"uniqueIndex;size:64;not null"`
	Type       QueueActionType `json:"type" gorm:"size:32;not null"`
	Path       string          `json:"path" gorm:"size:512;not null"`
	Payload    []byte          `json:"payload"` // JSON-encoded value, nil for deletes
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// TableName keeps the legacy table name used by earlier builds
func (QueueAction) TableName() string { return "sync_queue" }

// CacheEntry is a per-(household, category) read cache so domain data can be
// rendered while offline. Value holds the JSON-encoded collection snapshot.
type CacheEntry struct {
	HouseholdID string    `gorm:"primaryKey;size:64"`
	Category    string    `gorm:"primaryKey;size:32"`
	Value       []byte    `gorm:"not null"`
	UpdatedAt   time.Time
}

// TableName maps the cache to its table
func (CacheEntry) TableName() string { return "read_cache" }

// SessionState is the single-row device-local session record: who is signed
// in, which households they follow, and the last senior-status mirror.
type SessionState struct {
	ID                int    `gorm:"primaryKey"` // always 1
	ProfileJSON       []byte
	HouseholdID       string `gorm:"size:64"`
	HouseholdIDsJSON  []byte // ordered caregiver household set
	ActiveHouseholdID string `gorm:"size:64"`
	StatusMirrorJSON  []byte // serialized SeniorStatus for same-device reads
	UpdatedAt         time.Time
}

// TableName maps the session record to its table
func (SessionState) TableName() string { return "session_state" }
