// Package medicine applies user and notification dose actions. Every action
// goes through the dedup lookup first, so a second take/skip/snooze on the
// same (medicine, slot, day) key updates the live log instead of creating a
// duplicate.
package medicine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/safenestapp/safenest/internal/dedup"
	"github.com/safenestapp/safenest/internal/model"
	"github.com/safenestapp/safenest/internal/store"
	syncengine "github.com/safenestapp/safenest/internal/sync"
)

// ErrUnknownMedicine is returned when an action references a medicine that
// is not in the household
var ErrUnknownMedicine = errors.New("medicine not found")

// Config wires the service to its household view. Providers return the
// current target household's data so the service works identically for a
// senior (own household) and a caregiver (active household).
type Config struct {
	Engine      *syncengine.Engine
	HouseholdID func() string
	Medicines   func() []model.Medicine
	Logs        func() []model.MedicineLog
	// OnApplied reflects a written log into in-memory state; updated says
	// whether it replaced an existing record
	OnApplied func(entry model.MedicineLog, updated bool)
	// OnMedicineChanged reflects a medicine mutation (refill decrement)
	OnMedicineChanged func(med model.Medicine)
	Clock             clockwork.Clock
}

// Service records dose actions and manages the medicine collection
type Service struct {
	cfg Config
}

func NewService(cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Service{cfg: cfg}
}

// MarkTaken records a dose as taken, decrementing refill quantity when the
// medicine tracks it
func (s *Service) MarkTaken(ctx context.Context, medicineID, slot string) (model.MedicineLog, error) {
	now := s.cfg.Clock.Now()
	entry, updated, err := s.apply(ctx, medicineID, slot, dedup.Action{
		Status:     model.LogTaken,
		ActualTime: now.Format("15:04"),
	})
	if err != nil {
		return model.MedicineLog{}, err
	}

	// Decrement the pack only when this take created a new record; editing
	// an already-taken dose must not double-count
	if !updated {
		s.decrementRefill(ctx, medicineID)
	}
	return entry, nil
}

// Skip records a dose as intentionally skipped
func (s *Service) Skip(ctx context.Context, medicineID, slot, notes string) (model.MedicineLog, error) {
	entry, _, err := s.apply(ctx, medicineID, slot, dedup.Action{
		Status: model.LogSkipped,
		Notes:  notes,
	})
	return entry, err
}

// Snooze postpones a dose, counting the snoozes on the same record
func (s *Service) Snooze(ctx context.Context, medicineID, slot string, delay time.Duration) (model.MedicineLog, error) {
	until := s.cfg.Clock.Now().Add(delay).Format("15:04")
	entry, _, err := s.apply(ctx, medicineID, slot, dedup.Action{
		Status:       model.LogSnoozed,
		SnoozedUntil: until,
	})
	return entry, err
}

// Add stores a new medicine in the household collection
func (s *Service) Add(ctx context.Context, med model.Medicine) (model.Medicine, error) {
	householdID := s.cfg.HouseholdID()
	if householdID == "" {
		return model.Medicine{}, errors.New("no target household")
	}
	if med.ID == "" {
		med.ID = uuid.NewString()
	}
	now := s.cfg.Clock.Now()
	med.CreatedAt = now
	med.UpdatedAt = now
	med.IsOngoing = med.EndDate == nil

	path := store.HouseholdItemPath(householdID, store.CategoryMedicines, med.ID)
	if err := s.cfg.Engine.Write(ctx, path, med); err != nil {
		return model.Medicine{}, err
	}
	return med, nil
}

// Update overwrites a medicine record
func (s *Service) Update(ctx context.Context, med model.Medicine) error {
	householdID := s.cfg.HouseholdID()
	if householdID == "" {
		return errors.New("no target household")
	}
	med.UpdatedAt = s.cfg.Clock.Now()
	path := store.HouseholdItemPath(householdID, store.CategoryMedicines, med.ID)
	return s.cfg.Engine.Write(ctx, path, med)
}

// Delete removes a medicine record
func (s *Service) Delete(ctx context.Context, medicineID string) error {
	householdID := s.cfg.HouseholdID()
	if householdID == "" {
		return errors.New("no target household")
	}
	path := store.HouseholdItemPath(householdID, store.CategoryMedicines, medicineID)
	return s.cfg.Engine.Write(ctx, path, nil)
}

func (s *Service) apply(ctx context.Context, medicineID, slot string, act dedup.Action) (model.MedicineLog, bool, error) {
	householdID := s.cfg.HouseholdID()
	if householdID == "" {
		return model.MedicineLog{}, false, errors.New("no target household")
	}

	var med *model.Medicine
	for _, m := range s.cfg.Medicines() {
		if m.ID == medicineID {
			found := m
			med = &found
			break
		}
	}
	if med == nil {
		return model.MedicineLog{}, false, fmt.Errorf("%w: %s", ErrUnknownMedicine, medicineID)
	}

	now := s.cfg.Clock.Now()
	entry, updated := dedup.Resolve(s.cfg.Logs(), *med, slot, now, act)
	if updated {
		log.Printf("[Medicine] Log already exists, updating in place: %s", entry.ID)
	}

	path := store.HouseholdItemPath(householdID, store.CategoryMedicineLogs, entry.ID)
	if err := s.cfg.Engine.Write(ctx, path, entry); err != nil {
		return model.MedicineLog{}, false, err
	}
	if s.cfg.OnApplied != nil {
		s.cfg.OnApplied(entry, updated)
	}
	return entry, updated, nil
}

func (s *Service) decrementRefill(ctx context.Context, medicineID string) {
	for _, m := range s.cfg.Medicines() {
		if m.ID != medicineID {
			continue
		}
		if m.TotalQuantity == 0 {
			return
		}
		if m.RemainingQuantity > 0 {
			m.RemainingQuantity--
		}
		if err := s.Update(ctx, m); err != nil {
			log.Printf("[Medicine] Failed to update remaining quantity: %v", err)
			return
		}
		if m.RefillAlertThreshold > 0 && m.RemainingQuantity <= m.RefillAlertThreshold {
			log.Printf("[Medicine] %s is low: %d left", m.Name, m.RemainingQuantity)
		}
		if s.cfg.OnMedicineChanged != nil {
			s.cfg.OnMedicineChanged(m)
		}
		return
	}
}
