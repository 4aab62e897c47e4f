package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/safenestapp/safenest/internal/model"
	"gorm.io/gorm"
)

// QueueRepository persists the offline write queue. Rows are strictly FIFO
// by their autoincrement sequence and survive process restarts.
type QueueRepository struct {
	db *gorm.DB
}

func NewQueueRepository(db *gorm.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Enqueue appends a pending write. The value is JSON-encoded here so replay
// does not depend on in-memory state; a nil value records a delete.
func (r *QueueRepository) Enqueue(path string, value interface{}) (*model.QueueAction, error) {
	var payload []byte
	if value != nil {
		data, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		payload = data
	}

	action := &model.QueueAction{
		ID:         uuid.NewString(),
		Type:       model.ActionDBUpdate,
		Path:       path,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}
	if err := r.db.Create(action).Error; err != nil {
		return nil, err
	}
	return action, nil
}

// Pending returns all queued actions in FIFO order
func (r *QueueRepository) Pending() ([]model.QueueAction, error) {
	var actions []model.QueueAction
	err := r.db.Order("seq asc").Find(&actions).Error
	return actions, err
}

// Remove deletes one action after its remote write succeeded
func (r *QueueRepository) Remove(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.QueueAction{}).Error
}

// Count returns the number of pending actions
func (r *QueueRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&model.QueueAction{}).Count(&n).Error
	return n, err
}

// Clear drops the whole queue (sign-out reset)
func (r *QueueRepository) Clear() error {
	return r.db.Where("1 = 1").Delete(&model.QueueAction{}).Error
}
