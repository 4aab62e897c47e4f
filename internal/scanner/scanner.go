// Package scanner runs the periodic auto-overdue sweep. It is deliberately
// timer-driven rather than event-driven: its job is to observe that nothing
// happened for a scheduled dose, which push-based mechanisms structurally
// cannot report.
package scanner

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/safenestapp/safenest/internal/dedup"
	"github.com/safenestapp/safenest/internal/model"
	"github.com/safenestapp/safenest/internal/store"
	syncengine "github.com/safenestapp/safenest/internal/sync"
)

const (
	// DefaultGrace is how long past the scheduled slot a dose may stay
	// unacknowledged before it is marked missed.
	DefaultGrace = 60 * time.Minute

	sweepInterval = time.Minute
)

// Config wires the scanner to its data sources. The medicine and log
// providers return the senior household's current view; the scanner never
// caches them so a user action between sweeps is always respected.
type Config struct {
	Engine      *syncengine.Engine
	HouseholdID func() string
	Medicines   func() []model.Medicine
	Logs        func() []model.MedicineLog
	// OnMissed applies a synthesized missed log to in-memory state
	OnMissed func(entry model.MedicineLog)
	Grace    time.Duration
	Clock    clockwork.Clock
}

// Scanner converts unacknowledged doses into missed records after the grace
// window. Sweeps are idempotent: the deterministic auto-missed id plus the
// dedup lookup make a re-run (or a crash-replay) rewrite the same record.
type Scanner struct {
	cfg   Config
	sched gocron.Scheduler
}

// New validates the wiring and returns a stopped scanner
func New(cfg Config) *Scanner {
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Scanner{cfg: cfg}
}

// Start schedules the one-minute sweep and runs one immediately. Only the
// senior role starts the scanner; it must be stopped when that session ends.
func (s *Scanner) Start() error {
	sched, err := gocron.NewScheduler(gocron.WithClock(s.cfg.Clock))
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(func() {
			s.Sweep(context.Background())
		}),
	)
	if err != nil {
		return err
	}
	s.sched = sched
	sched.Start()

	s.Sweep(context.Background())
	return nil
}

// Stop halts the periodic sweep
func (s *Scanner) Stop() {
	if s.sched != nil {
		if err := s.sched.Shutdown(); err != nil {
			log.Printf("[AutoMissed] Scheduler shutdown: %v", err)
		}
		s.sched = nil
	}
}

// Sweep runs one pass and returns how many missed records it synthesized.
// Only today's slots are considered: days the process was not running are
// not backfilled.
func (s *Scanner) Sweep(ctx context.Context) int {
	householdID := s.cfg.HouseholdID()
	if householdID == "" {
		return 0
	}

	now := s.cfg.Clock.Now()
	today := dedup.LocalMidnight(now)
	logs := s.cfg.Logs()
	created := 0

	for _, med := range s.cfg.Medicines() {
		if !activeToday(med, now, today) {
			continue
		}
		for _, slot := range med.Times {
			scheduled, ok := slotTime(today, slot)
			if !ok {
				continue
			}

			// A dose cannot have been missed before its medicine existed:
			// skip slots earlier than a same-day creation time
			if !med.CreatedAt.IsZero() && dedup.SameLocalDay(med.CreatedAt, now) && med.CreatedAt.After(scheduled) {
				continue
			}

			if !now.After(scheduled.Add(s.cfg.Grace)) {
				continue
			}
			if dedup.FindExisting(logs, med.ID, slot, now) != nil {
				continue
			}

			entry := model.MedicineLog{
				ID:            dedup.AutoMissedID(med.ID, today, slot),
				MedicineID:    med.ID,
				MedicineName:  med.Name,
				Dosage:        med.Dosage,
				ScheduledTime: dedup.NormalizeTime(slot),
				Status:        model.LogMissed,
				Date:          now,
				AutoMarked:    true,
			}
			log.Printf("[AutoMissed] Marking %s at %s as MISSED", med.Name, entry.ScheduledTime)

			path := store.HouseholdItemPath(householdID, store.CategoryMedicineLogs, entry.ID)
			if err := s.cfg.Engine.Write(ctx, path, entry); err != nil {
				log.Printf("[AutoMissed] Failed to record %s: %v", entry.ID, err)
				continue
			}
			if s.cfg.OnMissed != nil {
				s.cfg.OnMissed(entry)
			}
			logs = append(logs, entry)
			created++
		}
	}
	return created
}

// activeToday reports whether the medicine's date range covers today
func activeToday(med model.Medicine, now, today time.Time) bool {
	if med.StartDate.After(now) {
		return false
	}
	if med.EndDate != nil && med.EndDate.Before(today) {
		return false
	}
	return true
}

// slotTime resolves a "HH:MM" slot against a local midnight
func slotTime(day time.Time, slot string) (time.Time, bool) {
	parts := strings.Split(dedup.NormalizeTime(slot), ":")
	if len(parts) != 2 {
		return time.Time{}, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return time.Time{}, false
	}
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), true
}
