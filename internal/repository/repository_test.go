package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/safenestapp/safenest/internal/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	return db
}

func TestQueueFIFOOrder(t *testing.T) {
	repo := NewQueueRepository(openTestDB(t))

	a1, err := repo.Enqueue("households/ABC/status", map[string]string{"status": "Normal"})
	require.NoError(t, err)
	a2, err := repo.Enqueue("households/ABC/medicines/m1", map[string]string{"name": "x"})
	require.NoError(t, err)
	a3, err := repo.Enqueue("households/ABC/medicines/m1", nil)
	require.NoError(t, err)

	pending, err := repo.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, a1.ID, pending[0].ID)
	assert.Equal(t, a2.ID, pending[1].ID)
	assert.Equal(t, a3.ID, pending[2].ID)

	// Delete markers carry no payload
	assert.Nil(t, pending[2].Payload)
	assert.NotNil(t, pending[1].Payload)
	assert.Equal(t, model.ActionDBUpdate, pending[0].Type)
}

func TestQueueRemoveKeepsOrder(t *testing.T) {
	repo := NewQueueRepository(openTestDB(t))

	first, err := repo.Enqueue("p/1", 1)
	require.NoError(t, err)
	_, err = repo.Enqueue("p/2", 2)
	require.NoError(t, err)

	require.NoError(t, repo.Remove(first.ID))

	pending, err := repo.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "p/2", pending[0].Path)

	n, err := repo.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, repo.Clear())
	n, err = repo.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCacheUpsertAndGet(t *testing.T) {
	repo := NewCacheRepository(openTestDB(t))

	require.NoError(t, repo.Set("ABC", "medicines", []string{"a"}))
	require.NoError(t, repo.Set("ABC", "medicines", []string{"a", "b"}))
	require.NoError(t, repo.Set("XYZ", "medicines", []string{"c"}))

	var got []string
	found, err := repo.Get("ABC", "medicines", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"a", "b"}, got)

	found, err = repo.Get("ABC", "vitals", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.ClearHousehold("ABC"))
	found, err = repo.Get("ABC", "medicines", &got)
	require.NoError(t, err)
	assert.False(t, found)

	// Other households untouched
	found, err = repo.Get("XYZ", "medicines", &got)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSessionRoundTrip(t *testing.T) {
	repo := NewSessionRepository(openTestDB(t))

	_, found, err := repo.Profile()
	require.NoError(t, err)
	assert.False(t, found)

	profile := model.UserProfile{ID: "u1", Name: "Martha", Role: model.RoleSenior, Phone: "5550000001"}
	require.NoError(t, repo.SaveProfile(profile))
	require.NoError(t, repo.SaveSeniorHousehold("ABC"))
	require.NoError(t, repo.SaveCaregiverHouseholds([]string{"ABC", "XYZ"}, "XYZ"))

	got, found, err := repo.Profile()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, profile, got)

	senior, err := repo.SeniorHousehold()
	require.NoError(t, err)
	assert.Equal(t, "ABC", senior)

	ids, activeID, err := repo.CaregiverHouseholds()
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC", "XYZ"}, ids)
	assert.Equal(t, "XYZ", activeID)

	status := model.NewSeniorStatus("u1")
	status.BatteryLevel = 42
	require.NoError(t, repo.SaveStatusMirror(status))
	mirror, found, err := repo.StatusMirror()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 42, mirror.BatteryLevel)

	require.NoError(t, repo.Reset())
	_, found, err = repo.Profile()
	require.NoError(t, err)
	assert.False(t, found)
}
