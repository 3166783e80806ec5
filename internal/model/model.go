package model

import "time"

type (
	// A Model is a record persisted in database.
	Model interface {
		GetID() string
		SetID(id string)
		SetCreatedAt(t time.Time)
		SetUpdatedAt(t time.Time)
	}

	// Base contains common fields for all models.
	Base struct {
		ID        string    `json:"id"         storm:"id"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}
)

// GetID returns the model's ID.
func (m *Base) GetID() string {
	return m.ID
}

// SetID sets the model's ID.
func (m *Base) SetID(id string) {
	m.ID = id
}

// SetCreatedAt sets the model's creation time.
func (m *Base) SetCreatedAt(t time.Time) {
	m.CreatedAt = t
}

// SetUpdatedAt sets the model's last update time.
func (m *Base) SetUpdatedAt(t time.Time) {
	m.UpdatedAt = t
}
