package models

import (
	"time"

	"moneyminder/internal/uuid"

	"gorm.io/gorm"
)

// Base is embedded by the user-owned tables that can be edited and
// soft-deleted. IDs are UUIDv7, so they sort by creation time.
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *Base) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}

// assignID leaves caller-supplied ids alone so fixtures can pin them.
func assignID(id *string) {
	if *id == "" {
		*id = uuid.New()
	}
}
