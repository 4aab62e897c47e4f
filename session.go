package safenest

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/safenestapp/safenest/internal/bridge"
	"github.com/safenestapp/safenest/internal/emergency"
	"github.com/safenestapp/safenest/internal/household"
	"github.com/safenestapp/safenest/internal/medicine"
	"github.com/safenestapp/safenest/internal/model"
	"github.com/safenestapp/safenest/internal/scanner"
	"github.com/safenestapp/safenest/internal/store"
)

// SeniorSession runs the senior-side pipeline: the escalation machine, the
// status publisher and the overdue scanner, over a live view of the senior's
// own household collections.
type SeniorSession struct {
	app         *App
	householdID string
	profile     model.UserProfile

	Machine   *emergency.Machine
	Publisher *bridge.Publisher
	Scanner   *scanner.Scanner
	Medicines *medicine.Service

	mu       sync.RWMutex
	meds     []model.Medicine
	logs     []model.MedicineLog
	cancels  []store.CancelFunc
	onChange func()
}

// StartSeniorSession resumes or begins the senior's session for a linked
// household. The caller attaches the machine once its alert UI is ready.
func (a *App) StartSeniorSession(ctx context.Context, profile model.UserProfile, householdID string) (*SeniorSession, error) {
	s := &SeniorSession{
		app:         a,
		householdID: householdID,
		profile:     profile,
	}

	s.Machine = emergency.New(emergency.Options{Countdown: a.cfg.Emergency.Countdown})
	s.Publisher = bridge.NewPublisher(a.Engine, a.Session, householdID, profile.ID)
	s.Publisher.Attach(s.Machine)

	s.Medicines = medicine.NewService(medicine.Config{
		Engine:            a.Engine,
		HouseholdID:       func() string { return householdID },
		Medicines:         s.MedicineList,
		Logs:              s.LogList,
		OnApplied:         func(entry model.MedicineLog, _ bool) { s.upsertLog(entry) },
		OnMedicineChanged: func(med model.Medicine) { s.upsertMedicine(med) },
	})

	s.Scanner = scanner.New(scanner.Config{
		Engine:      a.Engine,
		HouseholdID: func() string { return householdID },
		Medicines:   s.MedicineList,
		Logs:        s.LogList,
		OnMissed:    s.upsertLog,
		Grace:       a.cfg.Scanner.Grace,
	})

	s.subscribe(ctx)
	if err := s.Scanner.Start(); err != nil {
		return nil, err
	}

	if err := a.Session.SaveProfile(profile); err != nil {
		log.Printf("[Session] Failed to persist profile: %v", err)
	}
	log.Printf("[Session] Senior session started for household %s", householdID)
	return s, nil
}

// SetOnChange registers a callback invoked after any collection update
func (s *SeniorSession) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// MedicineList returns the current medicines snapshot
func (s *SeniorSession) MedicineList() []model.Medicine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Medicine, len(s.meds))
	copy(out, s.meds)
	return out
}

// LogList returns the current medicine logs snapshot
func (s *SeniorSession) LogList() []model.MedicineLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.MedicineLog, len(s.logs))
	copy(out, s.logs)
	return out
}

// SignOut ends the session and wipes the device's local state, releasing
// the senior's household binding so the device can be rebound.
func (s *SeniorSession) SignOut() error {
	s.Close()
	return s.app.SignOut()
}

// Close stops the scanner and the collection watches
func (s *SeniorSession) Close() {
	s.Scanner.Stop()
	s.Machine.Detach()
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

func (s *SeniorSession) subscribe(ctx context.Context) {
	for _, category := range store.FanOutCategories {
		category := category
		prefix := store.HouseholdPath(s.householdID, category)
		cancel := s.app.Remote().Watch(prefix, func(string, store.Snapshot) {
			s.reload(context.Background(), category)
		})
		s.mu.Lock()
		s.cancels = append(s.cancels, cancel)
		s.mu.Unlock()
		s.reload(ctx, category)
	}
}

func (s *SeniorSession) reload(ctx context.Context, category string) {
	prefix := store.HouseholdPath(s.householdID, category)
	snaps, err := s.app.Remote().List(ctx, prefix)
	if err != nil {
		// Offline: keep serving the last cached copy
		s.loadCached(category)
		return
	}

	switch category {
	case store.CategoryMedicines:
		meds := make([]model.Medicine, 0, len(snaps))
		for _, snap := range snaps {
			var med model.Medicine
			if err := snap.Decode(&med); err == nil {
				meds = append(meds, med)
			}
		}
		sort.Slice(meds, func(i, j int) bool { return meds[i].Name < meds[j].Name })
		s.mu.Lock()
		s.meds = meds
		s.mu.Unlock()
	case store.CategoryMedicineLogs:
		logs := make([]model.MedicineLog, 0, len(snaps))
		for _, snap := range snaps {
			var entry model.MedicineLog
			if err := snap.Decode(&entry); err == nil {
				logs = append(logs, entry)
			}
		}
		sort.Slice(logs, func(i, j int) bool { return logs[i].Date.After(logs[j].Date) })
		s.mu.Lock()
		s.logs = logs
		s.mu.Unlock()
	}

	if err := s.app.Cache.Set(s.householdID, category, snaps); err != nil {
		log.Printf("[Session] Cache write failed for %s: %v", category, err)
	}
	s.notify()
}

func (s *SeniorSession) loadCached(category string) {
	var snaps map[string]store.Snapshot
	found, err := s.app.Cache.Get(s.householdID, category, &snaps)
	if err != nil || !found {
		return
	}
	switch category {
	case store.CategoryMedicines:
		meds := make([]model.Medicine, 0, len(snaps))
		for _, snap := range snaps {
			var med model.Medicine
			if err := snap.Decode(&med); err == nil {
				meds = append(meds, med)
			}
		}
		s.mu.Lock()
		s.meds = meds
		s.mu.Unlock()
	case store.CategoryMedicineLogs:
		logs := make([]model.MedicineLog, 0, len(snaps))
		for _, snap := range snaps {
			var entry model.MedicineLog
			if err := snap.Decode(&entry); err == nil {
				logs = append(logs, entry)
			}
		}
		s.mu.Lock()
		s.logs = logs
		s.mu.Unlock()
	}
	s.notify()
}

func (s *SeniorSession) upsertLog(entry model.MedicineLog) {
	s.mu.Lock()
	replaced := false
	for i, existing := range s.logs {
		if existing.ID == entry.ID {
			s.logs[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		s.logs = append([]model.MedicineLog{entry}, s.logs...)
	}
	s.mu.Unlock()
	s.notify()
}

func (s *SeniorSession) upsertMedicine(med model.Medicine) {
	s.mu.Lock()
	for i, existing := range s.meds {
		if existing.ID == med.ID {
			s.meds[i] = med
			break
		}
	}
	s.mu.Unlock()
	s.notify()
}

func (s *SeniorSession) notify() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// CaregiverSession runs the caregiver-side pipeline: the multi-household
// coordinator plus a medicine service bound to whichever household is active.
type CaregiverSession struct {
	app     *App
	profile model.UserProfile

	Coordinator *household.Coordinator
	Medicines   *medicine.Service
}

// StartCaregiverSession restores the caregiver's linked households and
// subscribes to all of them.
func (a *App) StartCaregiverSession(ctx context.Context, profile model.UserProfile) (*CaregiverSession, error) {
	coord := household.NewCoordinator(a.Remote(), a.Cache, a.Session, a.alerter, a.notifier)

	s := &CaregiverSession{
		app:         a,
		profile:     profile,
		Coordinator: coord,
	}
	s.Medicines = medicine.NewService(medicine.Config{
		Engine:      a.Engine,
		HouseholdID: coord.ActiveID,
		Medicines:   coord.Medicines,
		Logs:        coord.MedicineLogs,
	})

	// Revalidate restored links before listening; a deleted household must
	// not keep a watch alive
	for _, id := range coord.HouseholdIDs() {
		if ok, err := coord.Validate(ctx, id); err == nil && !ok {
			log.Printf("[Session] Dropped stale household %s", id)
		}
	}
	coord.SubscribeAll(ctx)

	if err := a.Session.SaveProfile(profile); err != nil {
		log.Printf("[Session] Failed to persist profile: %v", err)
	}
	log.Printf("[Session] Caregiver session started with %d household(s)", len(coord.HouseholdIDs()))
	return s, nil
}

// LinkByInvite accepts a share token and joins the caregiver to its household
func (s *CaregiverSession) LinkByInvite(ctx context.Context, token string) (string, error) {
	code, err := s.app.Households.AcceptInvite(token)
	if err != nil {
		return "", err
	}
	if err := s.app.Households.JoinAsCaregiver(ctx, code, s.profile, s.Coordinator); err != nil {
		return "", err
	}
	return code, nil
}

// SignOut ends the session and wipes the device's local state, including
// the persisted household set. The remote caregiver index keeps the links,
// so signing back in restores them.
func (s *CaregiverSession) SignOut() error {
	s.Coordinator.Close()
	return s.app.SignOut()
}

// Close detaches every household watch
func (s *CaregiverSession) Close() {
	s.Coordinator.Close()
}
