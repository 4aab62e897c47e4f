package repository

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/safenestapp/safenest/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const sessionRowID = 1

// SessionRepository persists the single-row device session: the signed-in
// profile, the linked household set and active selection, and the
// senior-status mirror used for same-device consistency.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) load() (*model.SessionState, error) {
	var state model.SessionState
	err := r.db.Where("id = ?", sessionRowID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.SessionState{ID: sessionRowID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *SessionRepository) save(state *model.SessionState) error {
	state.ID = sessionRowID
	state.UpdatedAt = time.Now()
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(state).Error
}

// SaveProfile stores the signed-in user profile
func (r *SessionRepository) SaveProfile(p model.UserProfile) error {
	state, err := r.load()
	if err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	state.ProfileJSON = data
	return r.save(state)
}

// Profile loads the stored profile, reporting whether one exists
func (r *SessionRepository) Profile() (model.UserProfile, bool, error) {
	state, err := r.load()
	if err != nil || len(state.ProfileJSON) == 0 {
		return model.UserProfile{}, false, err
	}
	var p model.UserProfile
	if err := json.Unmarshal(state.ProfileJSON, &p); err != nil {
		return model.UserProfile{}, false, err
	}
	return p, true, nil
}

// SaveSeniorHousehold stores the senior's lifetime household binding. Only
// the senior join path writes this field; the caregiver selection lives in
// its own columns so the two roles cannot clobber each other on a shared
// device.
func (r *SessionRepository) SaveSeniorHousehold(householdID string) error {
	state, err := r.load()
	if err != nil {
		return err
	}
	state.HouseholdID = householdID
	return r.save(state)
}

// SeniorHousehold loads the senior binding, empty when the device is unbound
func (r *SessionRepository) SeniorHousehold() (string, error) {
	state, err := r.load()
	if err != nil {
		return "", err
	}
	return state.HouseholdID, nil
}

// SaveCaregiverHouseholds stores the caregiver's ordered household set and
// the active selection
func (r *SessionRepository) SaveCaregiverHouseholds(ids []string, activeID string) error {
	state, err := r.load()
	if err != nil {
		return err
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	state.HouseholdIDsJSON = data
	state.ActiveHouseholdID = activeID
	return r.save(state)
}

// CaregiverHouseholds loads the caregiver's stored household selection
func (r *SessionRepository) CaregiverHouseholds() (ids []string, activeID string, err error) {
	state, err := r.load()
	if err != nil {
		return nil, "", err
	}
	if len(state.HouseholdIDsJSON) > 0 {
		if err := json.Unmarshal(state.HouseholdIDsJSON, &ids); err != nil {
			return nil, "", err
		}
	}
	return ids, state.ActiveHouseholdID, nil
}

// SaveStatusMirror stores the latest senior status for same-device reads
func (r *SessionRepository) SaveStatusMirror(status model.SeniorStatus) error {
	state, err := r.load()
	if err != nil {
		return err
	}
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	state.StatusMirrorJSON = data
	return r.save(state)
}

// StatusMirror loads the stored senior status, reporting whether one exists
func (r *SessionRepository) StatusMirror() (model.SeniorStatus, bool, error) {
	state, err := r.load()
	if err != nil || len(state.StatusMirrorJSON) == 0 {
		return model.SeniorStatus{}, false, err
	}
	var status model.SeniorStatus
	if err := json.Unmarshal(state.StatusMirrorJSON, &status); err != nil {
		return model.SeniorStatus{}, false, err
	}
	return status, true, nil
}

// Reset clears the session record (sign-out)
func (r *SessionRepository) Reset() error {
	return r.db.Where("id = ?", sessionRowID).Delete(&model.SessionState{}).Error
}
