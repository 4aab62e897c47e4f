package repository

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/safenestapp/safenest/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CacheRepository holds per-(household, category) read caches so domain data
// can still be rendered while offline.
type CacheRepository struct {
	db *gorm.DB
}

func NewCacheRepository(db *gorm.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// Set stores the JSON-encoded snapshot of one household category
func (r *CacheRepository) Set(householdID, category string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry := model.CacheEntry{
		HouseholdID: householdID,
		Category:    category,
		Value:       data,
		UpdatedAt:   time.Now(),
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "household_id"}, {Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

// Get loads one cached category into dest, reporting whether it existed
func (r *CacheRepository) Get(householdID, category string, dest interface{}) (bool, error) {
	var entry model.CacheEntry
	err := r.db.Where("household_id = ? AND category = ?", householdID, category).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(entry.Value, dest)
}

// ClearHousehold drops every cached category for one household
func (r *CacheRepository) ClearHousehold(householdID string) error {
	return r.db.Where("household_id = ?", householdID).Delete(&model.CacheEntry{}).Error
}

// ClearAll drops the entire cache (sign-out reset)
func (r *CacheRepository) ClearAll() error {
	return r.db.Where("1 = 1").Delete(&model.CacheEntry{}).Error
}
