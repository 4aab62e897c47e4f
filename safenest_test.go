package safenest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safenestapp/safenest/internal/config"
	"github.com/safenestapp/safenest/internal/model"
)

type countingAlerter struct {
	mu     sync.Mutex
	starts int
}

func (a *countingAlerter) Start() { a.mu.Lock(); a.starts++; a.mu.Unlock() }
func (a *countingAlerter) Stop()  {}

func (a *countingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.starts
}

func testConfig() *config.Config {
	return &config.Config{
		Store:     config.StoreConfig{Backend: config.BackendMemory},
		LocalDB:   config.LocalDBConfig{Path: ":memory:"},
		Emergency: config.EmergencyConfig{Countdown: 30 * time.Second},
		Scanner:   config.ScannerConfig{Grace: 60 * time.Minute},
		Invite:    config.InviteConfig{Secret: "test-secret", Expiry: time.Hour},
	}
}

func TestSeniorEmergencyReachesCaregiver(t *testing.T) {
	ctx := context.Background()
	alerter := &countingAlerter{}

	app, err := Open(ctx, testConfig(), Options{Online: true, Alerter: alerter})
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	senior := model.UserProfile{ID: "u1", Name: "Martha", Role: model.RoleSenior, Phone: "5550000001"}
	require.NoError(t, app.Households.JoinAsSenior(ctx, "ABC", senior))

	seniorSession, err := app.StartSeniorSession(ctx, senior, "ABC")
	require.NoError(t, err)
	t.Cleanup(seniorSession.Close)

	caregiver := model.UserProfile{ID: "c1", Name: "Alex", Role: model.RoleCaregiver, Phone: "5550000002"}
	caregiverSession, err := app.StartCaregiverSession(ctx, caregiver)
	require.NoError(t, err)
	t.Cleanup(caregiverSession.Close)
	require.NoError(t, app.Households.JoinAsCaregiver(ctx, "ABC", caregiver, caregiverSession.Coordinator))

	// Fall, confirmed by the senior
	seniorSession.Machine.Trigger(model.CauseFall)
	seniorSession.Machine.Confirm()

	require.Eventually(t, func() bool {
		return caregiverSession.Coordinator.SeniorStatus().Condition == model.ConditionFallDetected
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, alerter.count())

	// Resolution clears the caregiver view
	seniorSession.Machine.Cancel()
	require.Eventually(t, func() bool {
		return caregiverSession.Coordinator.SeniorStatus().Condition == model.ConditionNormal
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMedicineActionVisibleToCaregiver(t *testing.T) {
	ctx := context.Background()

	app, err := Open(ctx, testConfig(), Options{Online: true})
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	senior := model.UserProfile{ID: "u1", Name: "Martha", Role: model.RoleSenior, Phone: "5550000001"}
	require.NoError(t, app.Households.JoinAsSenior(ctx, "ABC", senior))

	seniorSession, err := app.StartSeniorSession(ctx, senior, "ABC")
	require.NoError(t, err)
	t.Cleanup(seniorSession.Close)

	caregiver := model.UserProfile{ID: "c1", Name: "Alex", Role: model.RoleCaregiver, Phone: "5550000002"}
	caregiverSession, err := app.StartCaregiverSession(ctx, caregiver)
	require.NoError(t, err)
	t.Cleanup(caregiverSession.Close)
	require.NoError(t, app.Households.JoinAsCaregiver(ctx, "ABC", caregiver, caregiverSession.Coordinator))

	med, err := seniorSession.Medicines.Add(ctx, model.Medicine{Name: "Metformin", Dosage: "500mg", Times: []string{"12:00"}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(caregiverSession.Coordinator.Medicines()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = seniorSession.Medicines.MarkTaken(ctx, med.ID, "12:00")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		logs := caregiverSession.Coordinator.MedicineLogs()
		return len(logs) == 1 && logs[0].Status == model.LogTaken
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSignOutReleasesSeniorBinding(t *testing.T) {
	ctx := context.Background()

	app, err := Open(ctx, testConfig(), Options{Online: true})
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	senior := model.UserProfile{ID: "u1", Name: "Martha", Role: model.RoleSenior, Phone: "5550000001"}
	require.NoError(t, app.Households.JoinAsSenior(ctx, "ABC", senior))

	session, err := app.StartSeniorSession(ctx, senior, "ABC")
	require.NoError(t, err)

	// The binding is a lifetime one while signed in
	err = app.Households.JoinAsSenior(ctx, "XYZ", senior)
	require.Error(t, err)

	require.NoError(t, session.SignOut())

	// Local state is gone
	_, found, err := app.Session.Profile()
	require.NoError(t, err)
	assert.False(t, found)
	pending, err := app.Queue.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	// The same device can now bind to a fresh household
	other := model.UserProfile{ID: "u2", Name: "George", Role: model.RoleSenior, Phone: "5550000003"}
	assert.NoError(t, app.Households.JoinAsSenior(ctx, "XYZ", other))
}

func TestInviteLinksCaregiver(t *testing.T) {
	ctx := context.Background()

	app, err := Open(ctx, testConfig(), Options{Online: true})
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	senior := model.UserProfile{ID: "u1", Name: "Martha", Role: model.RoleSenior}
	require.NoError(t, app.Households.JoinAsSenior(ctx, "ABC", senior))

	token, err := app.Households.CreateInvite("ABC")
	require.NoError(t, err)

	caregiver := model.UserProfile{ID: "c1", Name: "Alex", Role: model.RoleCaregiver}
	caregiverSession, err := app.StartCaregiverSession(ctx, caregiver)
	require.NoError(t, err)
	t.Cleanup(caregiverSession.Close)

	code, err := caregiverSession.LinkByInvite(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ABC", code)
	assert.Contains(t, caregiverSession.Coordinator.HouseholdIDs(), "ABC")
}
