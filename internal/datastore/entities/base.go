package entities

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UUIDModel provides a string UUID primary key assigned on create.
type UUIDModel struct {
	ID string `gorm:"primaryKey;type:varchar(36)"`
}

// BeforeCreate assigns a new UUID when the caller left ID empty.
func (m *UUIDModel) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
