package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safenestapp/safenest/internal/dedup"
	"github.com/safenestapp/safenest/internal/model"
	"github.com/safenestapp/safenest/internal/repository"
	"github.com/safenestapp/safenest/internal/store"
	syncengine "github.com/safenestapp/safenest/internal/sync"
)

type fixture struct {
	scanner *Scanner
	remote  *store.MemoryStore
	clock   *clockwork.FakeClock
	meds    []model.Medicine
	logs    []model.MedicineLog
	missed  []model.MedicineLog
}

func newFixture(t *testing.T, at time.Time) *fixture {
	t.Helper()
	db, err := repository.Open(":memory:")
	require.NoError(t, err)
	remote := store.NewMemoryStore()
	monitor := syncengine.NewMonitor(true)
	engine := syncengine.NewEngine(remote, repository.NewQueueRepository(db), monitor)
	t.Cleanup(engine.Close)

	f := &fixture{remote: remote, clock: clockwork.NewFakeClockAt(at)}
	f.scanner = New(Config{
		Engine:      engine,
		HouseholdID: func() string { return "ABC" },
		Medicines:   func() []model.Medicine { return f.meds },
		Logs:        func() []model.MedicineLog { return f.logs },
		OnMissed: func(entry model.MedicineLog) {
			f.missed = append(f.missed, entry)
			f.logs = append(f.logs, entry)
		},
		Grace: 60 * time.Minute,
		Clock: f.clock,
	})
	return f
}

func med(id string, times ...string) model.Medicine {
	return model.Medicine{
		ID:        id,
		Name:      "Med " + id,
		Dosage:    "10mg",
		Times:     times,
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.Local),
		IsOngoing: true,
	}
}

func TestSweepMarksOverdueDose(t *testing.T) {
	// 09:05 slot, grace 60min, now 10:06
	now := time.Date(2026, 3, 10, 10, 6, 0, 0, time.Local)
	f := newFixture(t, now)
	f.meds = []model.Medicine{med("med-1", "9:5")}

	created := f.scanner.Sweep(context.Background())

	assert.Equal(t, 1, created)
	require.Len(t, f.missed, 1)
	entry := f.missed[0]
	assert.Equal(t, "med-1_auto_20260310_0905", entry.ID)
	assert.Equal(t, model.LogMissed, entry.Status)
	assert.True(t, entry.AutoMarked)
	assert.Equal(t, "09:05", entry.ScheduledTime)

	// The record was written remotely under its deterministic id
	var got model.MedicineLog
	found, err := f.remote.GetOnce(context.Background(),
		store.HouseholdItemPath("ABC", store.CategoryMedicineLogs, entry.ID), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, entry.ID, got.ID)
}

func TestSweepIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 6, 0, 0, time.Local)
	f := newFixture(t, now)
	f.meds = []model.Medicine{med("med-1", "09:05")}

	assert.Equal(t, 1, f.scanner.Sweep(context.Background()))
	assert.Equal(t, 0, f.scanner.Sweep(context.Background()))
}

func TestSweepWithinGraceDoesNothing(t *testing.T) {
	// 10:04 is 59 minutes past the slot, still inside the window
	now := time.Date(2026, 3, 10, 10, 4, 0, 0, time.Local)
	f := newFixture(t, now)
	f.meds = []model.Medicine{med("med-1", "09:05")}

	assert.Zero(t, f.scanner.Sweep(context.Background()))

	// Exactly at the boundary the dose is still not missed
	f2 := newFixture(t, time.Date(2026, 3, 10, 10, 5, 0, 0, time.Local))
	f2.meds = []model.Medicine{med("med-1", "09:05")}
	assert.Zero(t, f2.scanner.Sweep(context.Background()))
}

func TestSweepSkipsAcknowledgedDose(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 6, 0, 0, time.Local)
	f := newFixture(t, now)
	f.meds = []model.Medicine{med("med-1", "09:05")}
	f.logs = []model.MedicineLog{{
		ID:            "user-log",
		MedicineID:    "med-1",
		ScheduledTime: "9:5", // unnormalized form must still match
		Status:        model.LogTaken,
		Date:          now,
	}}

	assert.Zero(t, f.scanner.Sweep(context.Background()))
}

func TestSweepSkipsSlotBeforeSameDayCreation(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)
	f := newFixture(t, now)
	m := med("med-1", "09:00", "12:00")
	// Added at 10:30 today: the 09:00 dose predates the medicine
	m.CreatedAt = time.Date(2026, 3, 10, 10, 30, 0, 0, time.Local)
	f.meds = []model.Medicine{m}

	created := f.scanner.Sweep(context.Background())

	require.Equal(t, 1, created)
	assert.Equal(t, "12:00", f.missed[0].ScheduledTime)
}

func TestSweepNoBackfillForPastDays(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 30, 0, 0, time.Local)
	f := newFixture(t, now)
	// Yesterday's 20:00 dose was never acknowledged; it stays unrecorded
	f.meds = []model.Medicine{med("med-1", "20:00")}

	assert.Zero(t, f.scanner.Sweep(context.Background()))
}

func TestSweepRespectsMedicineDateRange(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 6, 0, 0, time.Local)
	f := newFixture(t, now)

	future := med("med-2", "09:05")
	future.StartDate = now.AddDate(0, 0, 1)

	ended := med("med-3", "09:05")
	end := now.AddDate(0, 0, -2)
	ended.EndDate = &end
	ended.IsOngoing = false

	f.meds = []model.Medicine{future, ended}
	assert.Zero(t, f.scanner.Sweep(context.Background()))
}

func TestSweepWithoutHouseholdDoesNothing(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 6, 0, 0, time.Local)
	f := newFixture(t, now)
	f.meds = []model.Medicine{med("med-1", "09:05")}
	f.scanner.cfg.HouseholdID = func() string { return "" }

	assert.Zero(t, f.scanner.Sweep(context.Background()))
}

func TestAutoMissedIDMatchesDedupKey(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 6, 0, 0, time.Local)
	f := newFixture(t, now)
	f.meds = []model.Medicine{med("med-1", "09:05")}
	f.scanner.Sweep(context.Background())

	// A later user take resolves onto the same record
	entry, updated := dedup.Resolve(f.logs, f.meds[0], "09:05", now, dedup.Action{
		Status:     model.LogTaken,
		ActualTime: "10:30",
	})
	assert.True(t, updated)
	assert.Equal(t, f.missed[0].ID, entry.ID)
	assert.False(t, entry.AutoMarked)
}
