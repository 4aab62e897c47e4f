package model

import "time"

// UserProfile is the local device owner's identity
type UserProfile struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Role   UserRole `json:"role"`
	Avatar string   `json:"avatar,omitempty"`
	Phone  string   `json:"phone,omitempty"`
}

// HouseholdMeta marks a household as valid. Its existence at
// households/{id}/meta is what caregivers check before joining.
type HouseholdMeta struct {
	Schema    int       `json:"schema"`
	CreatedBy string    `json:"createdBy"`
	Role      UserRole  `json:"role"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HouseholdMember is a membership record under households/{id}/members.
// A household has at most one member with RoleSenior.
type HouseholdMember struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Role     UserRole `json:"role"`
	Avatar   string   `json:"avatar,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	JoinedAt string   `json:"joinedAt"`
}

// Contact is an emergency contact for a household
type Contact struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship,omitempty"`
	IsPrimary    bool   `json:"isPrimary,omitempty"`
}

// GeofenceType categorizes a geofence zone
type GeofenceType string

const (
	GeofenceHome       GeofenceType = "home"
	GeofenceSafeZone   GeofenceType = "safe_zone"
	GeofenceRestricted GeofenceType = "restricted"
)

// Geofence is a monitored zone around a point of interest
type Geofence struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Latitude     float64      `json:"latitude"`
	Longitude    float64      `json:"longitude"`
	Radius       float64      `json:"radius"` // meters
	Type         GeofenceType `json:"type"`
	AlertOnExit  bool         `json:"alertOnExit"`
	AlertOnEntry bool         `json:"alertOnEntry,omitempty"`
	Enabled      bool         `json:"enabled"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// AlertKind categorizes a recorded alert
type AlertKind string

const (
	AlertFall AlertKind = "FALL"
	AlertSOS  AlertKind = "SOS"
)

// AlertRecord is the history entry written when an emergency is confirmed
type AlertRecord struct {
	ID         string    `json:"id"`
	Type       AlertKind `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	Resolved   bool      `json:"resolved"`
	ResolvedBy string    `json:"resolvedBy,omitempty"`
}
