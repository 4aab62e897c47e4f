package household

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safenestapp/safenest/internal/model"
	"github.com/safenestapp/safenest/internal/repository"
	"github.com/safenestapp/safenest/internal/store"
	syncengine "github.com/safenestapp/safenest/internal/sync"
	"github.com/safenestapp/safenest/pkg/auth"
)

type serviceFixture struct {
	svc     *Service
	remote  *store.MemoryStore
	session *repository.SessionRepository
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db, err := repository.Open(":memory:")
	require.NoError(t, err)
	remote := store.NewMemoryStore()
	engine := syncengine.NewEngine(remote, repository.NewQueueRepository(db), syncengine.NewMonitor(true))
	t.Cleanup(engine.Close)
	session := repository.NewSessionRepository(db)
	invites := auth.NewInviteManager("test-secret", time.Hour)
	return &serviceFixture{
		svc:     NewService(remote, engine, session, invites),
		remote:  remote,
		session: session,
	}
}

func TestCleanCode(t *testing.T) {
	code, err := CleanCode("  abc123 ")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", code)

	_, err = CleanCode("ab")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "5551234567", NormalizePhone("(555) 123-4567"))
	assert.Equal(t, "", NormalizePhone("none"))
}

func TestJoinAsSeniorCreatesHousehold(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	profile := model.UserProfile{ID: "u1", Name: "Martha", Role: model.RoleSenior, Phone: "(555) 000-0001"}

	require.NoError(t, f.svc.JoinAsSenior(ctx, "abc", profile))

	// Meta written: the code is now joinable
	found, err := f.svc.ValidateCode(ctx, "ABC")
	require.NoError(t, err)
	assert.True(t, found)

	// Membership and phone index in place
	var member model.HouseholdMember
	found, err = f.remote.GetOnce(ctx, store.MemberPath("ABC", "u1"), &member)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.RoleSenior, member.Role)

	registered, err := f.svc.IsPhoneRegistered(ctx, "5550000001")
	require.NoError(t, err)
	assert.True(t, registered)

	// Session now binds this device to the household
	householdID, err := f.session.SeniorHousehold()
	require.NoError(t, err)
	assert.Equal(t, "ABC", householdID)
}

func TestCaregiverLinksDoNotBlockSeniorJoin(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	// A caregiver used this device first; the coordinator persisted its set
	require.NoError(t, f.remote.Put(ctx, store.MetaPath("XYZ"), model.HouseholdMeta{
		Schema: model.SchemaVersion, CreatedBy: "George", Role: model.RoleSenior,
	}))
	coord := NewCoordinator(f.remote, nil, f.session, nil, nil)
	t.Cleanup(coord.Close)
	require.NoError(t, coord.AddHousehold(ctx, "XYZ"))

	// A senior signing in afterwards is not already linked
	err := f.svc.JoinAsSenior(ctx, "ABC", model.UserProfile{ID: "u1", Name: "Martha"})
	assert.NoError(t, err)
}

func TestJoinAsSeniorRejectsSecondSenior(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.JoinAsSenior(ctx, "ABC", model.UserProfile{ID: "u1", Name: "Martha", Phone: "5550000001"}))

	db, err := repository.Open(":memory:")
	require.NoError(t, err)
	engine := syncengine.NewEngine(f.remote, repository.NewQueueRepository(db), syncengine.NewMonitor(true))
	t.Cleanup(engine.Close)
	otherDevice := NewService(f.remote, engine, repository.NewSessionRepository(db), nil)

	err = otherDevice.JoinAsSenior(ctx, "ABC", model.UserProfile{ID: "u2", Name: "George", Phone: "5550000009"})
	assert.ErrorIs(t, err, ErrSeniorExists)

	// The same senior re-joining (reinstall) is fine
	err = otherDevice.JoinAsSenior(ctx, "ABC", model.UserProfile{ID: "u1", Name: "Martha", Phone: "5550000001"})
	assert.NoError(t, err)
}

func TestJoinAsSeniorSingleHousehold(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.JoinAsSenior(ctx, "ABC", model.UserProfile{ID: "u1", Name: "Martha"}))

	err := f.svc.JoinAsSenior(ctx, "XYZ", model.UserProfile{ID: "u1", Name: "Martha"})
	assert.ErrorIs(t, err, ErrAlreadyLinked)
}

func TestJoinAsCaregiverRequiresExistingHousehold(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	err := f.svc.JoinAsCaregiver(ctx, "ABC", model.UserProfile{ID: "c1", Name: "Alex"}, nil)
	assert.ErrorIs(t, err, ErrHouseholdNotFound)
}

func TestJoinAsCaregiverLinksAndIndexes(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.JoinAsSenior(ctx, "ABC", model.UserProfile{ID: "u1", Name: "Martha"}))

	caregiver := model.UserProfile{ID: "c1", Name: "Alex", Phone: "555-000-0002"}
	require.NoError(t, f.svc.JoinAsCaregiver(ctx, "abc", caregiver, nil))

	var member model.HouseholdMember
	found, err := f.remote.GetOnce(ctx, store.MemberPath("ABC", "c1"), &member)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.RoleCaregiver, member.Role)

	codes, err := f.svc.LoadCaregiverHouseholds(ctx, "5550000002")
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC"}, codes)
}

func TestFindExistingMember(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.JoinAsSenior(ctx, "ABC", model.UserProfile{ID: "u1", Name: "Martha", Phone: "5550000001"}))
	require.NoError(t, f.svc.JoinAsCaregiver(ctx, "ABC", model.UserProfile{ID: "c1", Name: "Alex", Phone: "5550000002"}, nil))

	// Phone lookup finds the caregiver
	got, err := f.svc.FindExistingMember(ctx, "ABC", "(555) 000-0002")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "c1", got.ID)

	// Empty phone resolves the household's senior (auto-login)
	got, err = f.svc.FindExistingMember(ctx, "ABC", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID)

	// Unknown phone is a clean miss, not an error
	got, err = f.svc.FindExistingMember(ctx, "ABC", "5559999999")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInviteRoundTrip(t *testing.T) {
	f := newServiceFixture(t)

	token, err := f.svc.CreateInvite("abc")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	code, err := f.svc.AcceptInvite(token)
	require.NoError(t, err)
	assert.Equal(t, "ABC", code)

	_, err = f.svc.AcceptInvite(token + "tampered")
	assert.Error(t, err)
}

func TestInviteExpiry(t *testing.T) {
	remote := store.NewMemoryStore()
	db, err := repository.Open(":memory:")
	require.NoError(t, err)
	engine := syncengine.NewEngine(remote, repository.NewQueueRepository(db), syncengine.NewMonitor(true))
	t.Cleanup(engine.Close)
	svc := NewService(remote, engine, nil, auth.NewInviteManager("test-secret", -time.Minute))

	token, err := svc.CreateInvite("ABC")
	require.NoError(t, err)

	_, err = svc.AcceptInvite(token)
	assert.Error(t, err)
}
