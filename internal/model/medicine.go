package model

import "time"

// LogStatus is the lifecycle state of a scheduled dose
type LogStatus string

const (
	LogPending LogStatus = "PENDING"
	LogTaken   LogStatus = "TAKEN"
	LogMissed  LogStatus = "MISSED"
	LogSkipped LogStatus = "SKIPPED"
	LogSnoozed LogStatus = "SNOOZED"
)

// Medicine is a prescription shared within a household
type Medicine struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Dosage       string     `json:"dosage"`       // e.g. "2 tablets"
	Frequency    int        `json:"frequency"`    // times daily
	Times        []string   `json:"times"`        // 24h "HH:MM" slots
	StartDate    time.Time  `json:"startDate"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	IsOngoing    bool       `json:"isOngoing"`
	Instructions string     `json:"instructions,omitempty"`
	DoctorName   string     `json:"doctorName,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	// Refill tracking; zero TotalQuantity disables it
	TotalQuantity        int  `json:"totalQuantity,omitempty"`
	RemainingQuantity    int  `json:"remainingQuantity,omitempty"`
	RefillAlertThreshold int  `json:"refillAlertThreshold,omitempty"`
	IsCritical           bool `json:"isCritical,omitempty"`
}

// MedicineLog is one record in the append-only per-household dose log.
// At most one semantically live log exists per (medicineId, scheduledTime,
// local calendar day); repeated actions on the same key update in place.
type MedicineLog struct {
	ID            string    `json:"id"`
	MedicineID    string    `json:"medicineId"`
	MedicineName  string    `json:"medicineName"`
	Dosage        string    `json:"dosage"`
	ScheduledTime string    `json:"scheduledTime"` // normalized "HH:MM"
	ActualTime    string    `json:"actualTime,omitempty"`
	Status        LogStatus `json:"status"`
	Date          time.Time `json:"date"`
	Notes         string    `json:"notes,omitempty"`
	AutoMarked    bool      `json:"autoMarked,omitempty"` // set by the overdue scanner

	SnoozedUntil string `json:"snoozedUntil,omitempty"`
	SnoozeCount  int    `json:"snoozeCount,omitempty"`
}

// ReminderType categorizes simple scheduled reminders
type ReminderType string

const (
	ReminderMedication  ReminderType = "MEDICATION"
	ReminderHydration   ReminderType = "HYDRATION"
	ReminderAppointment ReminderType = "APPOINTMENT"
)

// Reminder is a standalone scheduled prompt
type Reminder struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Instructions string       `json:"instructions,omitempty"`
	Time         string       `json:"time"` // 24h "HH:MM"
	Type         ReminderType `json:"type"`
	Status       LogStatus    `json:"status"`
	CreatedBy    string       `json:"createdBy,omitempty"`
}

// VitalReading is a single measured or manually entered vital sign
type VitalReading struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // heartRate, bloodPressure, temperature, ...
	Value     float64   `json:"value"`
	Systolic  int       `json:"systolic,omitempty"`
	Diastolic int       `json:"diastolic,omitempty"`
	Unit      string    `json:"unit,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"` // "smartwatch" or "manual"
	EnteredBy string    `json:"enteredBy,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// AppointmentStatus is the lifecycle state of a doctor appointment
type AppointmentStatus string

const (
	AppointmentUpcoming  AppointmentStatus = "UPCOMING"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
	AppointmentMissed    AppointmentStatus = "MISSED"
)

// DoctorAppointment is a scheduled visit shared within a household
type DoctorAppointment struct {
	ID             string            `json:"id"`
	DoctorName     string            `json:"doctorName"`
	Specialty      string            `json:"specialty,omitempty"`
	HospitalName   string            `json:"hospitalName,omitempty"`
	Date           time.Time         `json:"date"`
	Time           string            `json:"time"` // 24h "HH:MM"
	Purpose        string            `json:"purpose,omitempty"`
	ReminderBefore int               `json:"reminderBefore"` // minutes
	Status         AppointmentStatus `json:"status"`
	CreatedAt      time.Time         `json:"createdAt"`
	CreatedBy      string            `json:"createdBy,omitempty"`
}
