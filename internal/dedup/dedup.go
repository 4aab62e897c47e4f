// Package dedup decides whether an incoming medicine action targets an
// already-recorded dose. The dedup key is (medicineId, scheduled slot, local
// calendar day): repeated take/skip/snooze actions on the same key update the
// existing log in place and never create a second one.
package dedup

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safenestapp/safenest/internal/model"
)

// NormalizeTime canonicalizes a 24h slot to zero-padded "HH:MM" so "9:5"
// and "09:05" compare equal. Unparseable input is returned trimmed.
func NormalizeTime(slot string) string {
	if slot == "" {
		return slot
	}
	parts := strings.Split(slot, ":")
	if len(parts) < 2 {
		return strings.TrimSpace(slot)
	}
	h, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	m, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return strings.TrimSpace(slot)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// LocalMidnight returns the local-calendar midnight of t. Day matching uses
// local midnight, not UTC midnight or elapsed-24h windows, so "today" is
// consistent for the user across the whole day in any timezone.
func LocalMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameLocalDay reports whether a and b fall on the same local calendar day
func SameLocalDay(a, b time.Time) bool {
	return LocalMidnight(a).Equal(LocalMidnight(b))
}

// FindExisting returns the live log for (medicineID, slot, day), or nil
func FindExisting(logs []model.MedicineLog, medicineID, slot string, day time.Time) *model.MedicineLog {
	normalized := NormalizeTime(slot)
	for i := range logs {
		l := &logs[i]
		if l.MedicineID == medicineID &&
			SameLocalDay(l.Date, day) &&
			NormalizeTime(l.ScheduledTime) == normalized {
			return l
		}
	}
	return nil
}

// AutoMissedID derives the deterministic id for a machine-generated missed
// record, so replays of the overdue scanner rewrite the same record instead
// of duplicating it.
func AutoMissedID(medicineID string, day time.Time, slot string) string {
	dateKey := day.Format("20060102")
	timeKey := strings.ReplaceAll(NormalizeTime(slot), ":", "")
	return medicineID + "_auto_" + dateKey + "_" + timeKey
}

// Action is a user or notification action against one scheduled dose
type Action struct {
	Status       model.LogStatus // Taken, Skipped or Snoozed
	ActualTime   string
	SnoozedUntil string
	Notes        string
}

// Resolve applies act to the dose identified by (med, slot, day) against the
// current log set. When a live log already exists it is updated in place,
// preserving its id; otherwise a fresh log is created. The boolean reports
// whether an existing record was updated.
func Resolve(logs []model.MedicineLog, med model.Medicine, slot string, day time.Time, act Action) (model.MedicineLog, bool) {
	normalized := NormalizeTime(slot)

	if existing := FindExisting(logs, med.ID, slot, day); existing != nil {
		updated := *existing
		updated.Status = act.Status
		updated.ActualTime = act.ActualTime
		if act.Notes != "" {
			updated.Notes = act.Notes
		}
		if act.Status == model.LogSnoozed {
			updated.SnoozedUntil = act.SnoozedUntil
			updated.SnoozeCount = existing.SnoozeCount + 1
		}
		updated.AutoMarked = false // a user action supersedes an auto-miss
		return updated, true
	}

	entry := model.MedicineLog{
		ID:            uuid.NewString(),
		MedicineID:    med.ID,
		MedicineName:  med.Name,
		Dosage:        med.Dosage,
		ScheduledTime: normalized,
		ActualTime:    act.ActualTime,
		Status:        act.Status,
		Date:          day,
		Notes:         act.Notes,
	}
	if act.Status == model.LogSnoozed {
		entry.SnoozedUntil = act.SnoozedUntil
		entry.SnoozeCount = 1
	}
	return entry, false
}
