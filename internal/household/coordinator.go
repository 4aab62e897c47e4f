package household

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/safenestapp/safenest/internal/bridge"
	"github.com/safenestapp/safenest/internal/model"
	"github.com/safenestapp/safenest/internal/repository"
	"github.com/safenestapp/safenest/internal/store"
)

// Coordinator manages a caregiver's concurrent household subscriptions: an
// ordered household set plus the distinguished active id used for read/write
// targeting. It guarantees exactly one watch per (household, category) pair,
// and keeps the active household's foreground state strictly separate from
// the passive awareness of every other household, so a background emergency
// can never steal the foreground display.
type Coordinator struct {
	rs       store.RemoteStore
	cache    *repository.CacheRepository
	session  *repository.SessionRepository
	alerter  bridge.Alerter
	notifier bridge.Notifier

	mu           sync.Mutex
	householdIDs []string
	activeID     string

	// one cancel per (household, category); presence = live watch
	watches map[string]map[string]store.CancelFunc

	// per-household alert edge memory and senior identity
	detectors map[string]*bridge.EdgeDetector
	seniors   map[string]model.HouseholdMember

	// passive medication notifications: suppress the initial snapshot
	logsSeen  map[string]bool
	logsCount map[string]int

	// active-household caregiver-facing state
	status    model.SeniorStatus
	members   []model.HouseholdMember
	medicines []model.Medicine
	logs      []model.MedicineLog

	onActiveUpdate func()
}

// NewCoordinator restores the persisted household set and selection
func NewCoordinator(rs store.RemoteStore, cache *repository.CacheRepository, session *repository.SessionRepository, alerter bridge.Alerter, notifier bridge.Notifier) *Coordinator {
	if alerter == nil {
		alerter = bridge.LogAlerter{}
	}
	if notifier == nil {
		notifier = bridge.LogNotifier{}
	}
	c := &Coordinator{
		rs:        rs,
		cache:     cache,
		session:   session,
		alerter:   alerter,
		notifier:  notifier,
		watches:   make(map[string]map[string]store.CancelFunc),
		detectors: make(map[string]*bridge.EdgeDetector),
		seniors:   make(map[string]model.HouseholdMember),
		logsSeen:  make(map[string]bool),
		logsCount: make(map[string]int),
	}
	if session != nil {
		if ids, active, err := session.CaregiverHouseholds(); err == nil {
			c.householdIDs = ids
			c.activeID = active
		}
	}
	return c
}

// SetOnActiveUpdate registers the hook invoked after the active household's
// caregiver-facing state changed
func (c *Coordinator) SetOnActiveUpdate(fn func()) {
	c.mu.Lock()
	c.onActiveUpdate = fn
	c.mu.Unlock()
}

// HouseholdIDs returns the ordered household set
func (c *Coordinator) HouseholdIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.householdIDs))
	copy(out, c.householdIDs)
	return out
}

// ActiveID returns the current read/write target: the active household id,
// falling back to the first id in the set when unset.
func (c *Coordinator) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeIDLocked()
}

func (c *Coordinator) activeIDLocked() string {
	if c.activeID != "" {
		return c.activeID
	}
	if len(c.householdIDs) > 0 {
		return c.householdIDs[0]
	}
	return ""
}

// AddHousehold appends a household to the set (no-op when present), makes it
// active when none is, persists the selection, and subscribes.
func (c *Coordinator) AddHousehold(ctx context.Context, householdID string) error {
	c.mu.Lock()
	if !contains(c.householdIDs, householdID) {
		c.householdIDs = append(c.householdIDs, householdID)
	}
	if c.activeID == "" {
		c.activeID = householdID
	}
	c.mu.Unlock()

	c.persist()
	return c.Subscribe(ctx, householdID)
}

// Subscribe opens the watches for one household. Re-subscribing to an id
// that is already subscribed is a no-op: duplicate listeners would mean
// duplicate alert sounds and duplicate counts.
func (c *Coordinator) Subscribe(ctx context.Context, householdID string) error {
	c.mu.Lock()
	if _, ok := c.watches[householdID]; ok {
		c.mu.Unlock()
		return nil
	}
	// Reserve the slot first so a concurrent Subscribe is a no-op
	c.watches[householdID] = map[string]store.CancelFunc{}
	if _, ok := c.detectors[householdID]; !ok {
		c.detectors[householdID] = bridge.NewEdgeDetector()
	}
	c.mu.Unlock()

	hid := householdID
	cancels := make(map[string]store.CancelFunc)
	cancels[store.CategoryStatus] = c.rs.Watch(store.StatusPath(hid), func(_ string, snap store.Snapshot) {
		c.handleStatusEvent(hid, snap)
	})
	cancels[store.CategoryMembers] = c.rs.Watch(store.MembersPath(hid), func(_ string, _ store.Snapshot) {
		c.reloadMembers(context.Background(), hid)
	})
	for _, category := range store.FanOutCategories {
		cat := category
		cancels[cat] = c.rs.Watch(store.HouseholdPath(hid, cat), func(_ string, _ store.Snapshot) {
			c.reloadCollection(context.Background(), hid, cat)
		})
	}

	c.mu.Lock()
	c.watches[householdID] = cancels
	c.mu.Unlock()

	log.Printf("[FanOut] Subscribed household %s", hid)

	// Prime the per-household state so passive awareness does not wait for
	// the first change event
	c.reloadMembers(ctx, hid)
	c.reloadCollection(ctx, hid, store.CategoryMedicines)
	c.reloadCollection(ctx, hid, store.CategoryMedicineLogs)
	c.primeStatus(ctx, hid)
	return nil
}

// SubscribeAll opens watches for every household in the set
func (c *Coordinator) SubscribeAll(ctx context.Context) {
	for _, id := range c.HouseholdIDs() {
		if err := c.Subscribe(ctx, id); err != nil {
			log.Printf("[FanOut] Subscribe %s failed: %v", id, err)
		}
	}
}

// SwitchActive changes the active household. All household-scoped caches are
// reset to empty before the new household's data is loaded, so no stale data
// from the previous household is observable during the switch window. The
// audible alert belongs to the active context and is stopped.
func (c *Coordinator) SwitchActive(ctx context.Context, householdID string) error {
	c.mu.Lock()
	if !contains(c.householdIDs, householdID) {
		c.mu.Unlock()
		return fmt.Errorf("household %s is not linked", householdID)
	}
	c.activeID = householdID
	c.status = model.SeniorStatus{}
	c.members = nil
	c.medicines = nil
	c.logs = nil
	c.mu.Unlock()

	log.Printf("[FanOut] Switched active household to %s", householdID)
	c.alerter.Stop()
	c.persist()

	if err := c.Subscribe(ctx, householdID); err != nil {
		return err
	}
	// Re-prime from the now-active household
	c.reloadMembers(ctx, householdID)
	c.reloadCollection(ctx, householdID, store.CategoryMedicines)
	c.reloadCollection(ctx, householdID, store.CategoryMedicineLogs)
	c.primeStatus(ctx, householdID)
	return nil
}

// Validate checks that a household's meta record still exists. A vanished
// household is removed from the set and unsubscribed; when it was the active
// one, the active id fails over to the next member of the set (or empty).
// The removal is self-healing, surfaced as a notice rather than a failure.
func (c *Coordinator) Validate(ctx context.Context, householdID string) (bool, error) {
	var meta model.HouseholdMeta
	found, err := c.rs.GetOnce(ctx, store.MetaPath(householdID), &meta)
	if err != nil {
		return false, fmt.Errorf("validate household: %w", err)
	}
	if found {
		return true, nil
	}

	log.Printf("[FanOut] Household %s no longer exists, removing", householdID)
	c.Remove(householdID)
	return false, nil
}

// Remove drops a household from the set, cancels its watches and clears its
// caches, failing the active id over when needed.
func (c *Coordinator) Remove(householdID string) {
	c.mu.Lock()
	c.householdIDs = without(c.householdIDs, householdID)
	if cancels, ok := c.watches[householdID]; ok {
		for _, cancel := range cancels {
			cancel()
		}
		delete(c.watches, householdID)
	}
	delete(c.detectors, householdID)
	delete(c.seniors, householdID)
	delete(c.logsSeen, householdID)
	delete(c.logsCount, householdID)

	wasActive := c.activeID == householdID
	if wasActive {
		if len(c.householdIDs) > 0 {
			c.activeID = c.householdIDs[0]
		} else {
			c.activeID = ""
		}
		c.status = model.SeniorStatus{}
		c.members = nil
		c.medicines = nil
		c.logs = nil
	}
	newActive := c.activeID
	c.mu.Unlock()

	if wasActive {
		c.alerter.Stop()
		if newActive != "" {
			if err := c.SwitchActive(context.Background(), newActive); err != nil {
				log.Printf("[FanOut] Failover to %s failed: %v", newActive, err)
			}
		}
	}
	c.persist()
	if c.cache != nil {
		if err := c.cache.ClearHousehold(householdID); err != nil {
			log.Printf("[FanOut] Failed to clear cache for %s: %v", householdID, err)
		}
	}
}

// Close cancels every live watch (sign-out)
func (c *Coordinator) Close() {
	c.mu.Lock()
	watches := c.watches
	c.watches = make(map[string]map[string]store.CancelFunc)
	c.mu.Unlock()

	for _, cancels := range watches {
		for _, cancel := range cancels {
			cancel()
		}
	}
	c.alerter.Stop()
}

// ===== caregiver-facing accessors (active household only) =====

// SeniorStatus returns the active household's latest status snapshot
func (c *Coordinator) SeniorStatus() model.SeniorStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Members returns the active household's membership
func (c *Coordinator) Members() []model.HouseholdMember {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.HouseholdMember(nil), c.members...)
}

// Medicines returns the active household's medicines
func (c *Coordinator) Medicines() []model.Medicine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Medicine(nil), c.medicines...)
}

// MedicineLogs returns the active household's dose logs
func (c *Coordinator) MedicineLogs() []model.MedicineLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.MedicineLog(nil), c.logs...)
}

// SeniorFor returns the senior member of any linked household, for passive
// notification display
func (c *Coordinator) SeniorFor(householdID string) (model.HouseholdMember, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	senior, ok := c.seniors[householdID]
	return senior, ok
}

// ===== event handling =====

// handleStatusEvent routes a status change. The active household drives the
// foreground state and the audible alert; every other household only ever
// produces a passive notification. The two paths share no state.
func (c *Coordinator) handleStatusEvent(householdID string, snap store.Snapshot) {
	if !snap.Exists() {
		return
	}
	var status model.SeniorStatus
	if err := snap.Decode(&status); err != nil {
		log.Printf("[FanOut] Bad status snapshot for %s: %v", householdID, err)
		return
	}

	c.mu.Lock()
	isActive := householdID == c.activeIDLocked()
	detector := c.detectors[householdID]
	c.mu.Unlock()
	if detector == nil {
		return
	}

	if isActive {
		c.handleActiveStatus(householdID, status, detector)
	} else {
		c.handlePassiveStatus(householdID, status, detector)
	}
}

func (c *Coordinator) handleActiveStatus(householdID string, status model.SeniorStatus, detector *bridge.EdgeDetector) {
	c.mu.Lock()
	c.status = status
	onUpdate := c.onActiveUpdate
	c.mu.Unlock()

	raise, clear := detector.Observe(status.Condition)
	switch {
	case raise:
		log.Printf("[Alert] Emergency in active household %s: %s", householdID, status.Condition)
		c.alerter.Start()
	case clear:
		c.alerter.Stop()
	}
	if onUpdate != nil {
		onUpdate()
	}
}

func (c *Coordinator) handlePassiveStatus(householdID string, status model.SeniorStatus, detector *bridge.EdgeDetector) {
	raise, _ := detector.Observe(status.Condition)
	if !raise {
		return
	}
	name := "Senior"
	if senior, ok := c.SeniorFor(householdID); ok {
		name = senior.Name
	}
	log.Printf("[Alert] Emergency in background household %s", householdID)
	c.notifier.NotifyEmergency(householdID, name, string(status.Condition))
}

// primeStatus loads the current status once so the caregiver view does not
// wait for the first push
func (c *Coordinator) primeStatus(ctx context.Context, householdID string) {
	var status model.SeniorStatus
	found, err := c.rs.GetOnce(ctx, store.StatusPath(householdID), &status)
	if err != nil {
		log.Printf("[FanOut] Failed to read status for %s: %v", householdID, err)
		return
	}
	if !found {
		return
	}
	c.handleStatusEvent(householdID, mustSnapshot(status))
}

// reloadMembers refreshes a household's membership view
func (c *Coordinator) reloadMembers(ctx context.Context, householdID string) {
	items, err := c.rs.List(ctx, store.MembersPath(householdID))
	if err != nil {
		log.Printf("[FanOut] Failed to list members for %s: %v", householdID, err)
		return
	}
	members := make([]model.HouseholdMember, 0, len(items))
	for _, snap := range items {
		var m model.HouseholdMember
		if err := snap.Decode(&m); err != nil {
			continue
		}
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].JoinedAt < members[j].JoinedAt })

	c.mu.Lock()
	for _, m := range members {
		if m.Role == model.RoleSenior {
			c.seniors[householdID] = m
			break
		}
	}
	isActive := householdID == c.activeIDLocked()
	if isActive {
		c.members = members
	}
	onUpdate := c.onActiveUpdate
	c.mu.Unlock()

	if isActive && onUpdate != nil {
		onUpdate()
	}
}

// reloadCollection refreshes one fanned-out collection. Active-household
// data feeds the foreground state and the offline cache; non-active
// medicine-log growth surfaces only as a passive notification.
func (c *Coordinator) reloadCollection(ctx context.Context, householdID, category string) {
	items, err := c.rs.List(ctx, store.HouseholdPath(householdID, category))
	if err != nil {
		log.Printf("[FanOut] Failed to list %s for %s: %v", category, householdID, err)
		return
	}

	switch category {
	case store.CategoryMedicines:
		meds := make([]model.Medicine, 0, len(items))
		for _, snap := range items {
			var m model.Medicine
			if err := snap.Decode(&m); err == nil {
				meds = append(meds, m)
			}
		}
		sort.Slice(meds, func(i, j int) bool { return meds[i].CreatedAt.Before(meds[j].CreatedAt) })
		c.storeActiveCollection(householdID, category, func() { c.medicines = meds }, meds)

	case store.CategoryMedicineLogs:
		logs := make([]model.MedicineLog, 0, len(items))
		for _, snap := range items {
			var l model.MedicineLog
			if err := snap.Decode(&l); err == nil {
				logs = append(logs, l)
			}
		}
		sort.Slice(logs, func(i, j int) bool { return logs[i].Date.Before(logs[j].Date) })
		c.storeActiveCollection(householdID, category, func() { c.logs = logs }, logs)
		c.notifyPassiveLogs(householdID, logs)
	}
}

// storeActiveCollection applies a decoded collection to the foreground state
// when it belongs to the active household, and caches it for offline reads.
func (c *Coordinator) storeActiveCollection(householdID, category string, apply func(), value interface{}) {
	c.mu.Lock()
	isActive := householdID == c.activeIDLocked()
	if isActive {
		apply()
	}
	onUpdate := c.onActiveUpdate
	c.mu.Unlock()

	if c.cache != nil {
		if err := c.cache.Set(householdID, category, value); err != nil {
			log.Printf("[FanOut] Failed to cache %s/%s: %v", householdID, category, err)
		}
	}
	if isActive && onUpdate != nil {
		onUpdate()
	}
}

// notifyPassiveLogs raises a passive notification when a non-active
// household gains a new dose log. The initial snapshot only seeds the count.
func (c *Coordinator) notifyPassiveLogs(householdID string, logs []model.MedicineLog) {
	c.mu.Lock()
	isActive := householdID == c.activeIDLocked()
	seen := c.logsSeen[householdID]
	prev := c.logsCount[householdID]
	c.logsSeen[householdID] = true
	c.logsCount[householdID] = len(logs)
	c.mu.Unlock()

	if isActive || !seen || len(logs) <= prev {
		return
	}
	latest := logs[len(logs)-1]
	name := "Senior"
	if senior, ok := c.SeniorFor(householdID); ok {
		name = senior.Name
	}
	at := latest.ActualTime
	if at == "" {
		at = latest.ScheduledTime
	}
	c.notifier.NotifyMedication(householdID, name,
		fmt.Sprintf("%s %s at %s", latest.MedicineName, lower(latest.Status), at))
}

func (c *Coordinator) persist() {
	if c.session == nil {
		return
	}
	c.mu.Lock()
	ids := append([]string(nil), c.householdIDs...)
	active := c.activeID
	c.mu.Unlock()
	if err := c.session.SaveCaregiverHouseholds(ids, active); err != nil {
		log.Printf("[FanOut] Failed to persist household set: %v", err)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func lower(s model.LogStatus) string {
	b := []byte(string(s))
	for i, ch := range b {
		if ch >= 'A' && ch <= 'Z' {
			b[i] = ch + 32
		}
	}
	return string(b)
}

func mustSnapshot(v interface{}) store.Snapshot {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return store.Snapshot(data)
}
