package model

import "time"

// Dormitory represents a residence building.
type Dormitory struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;size:128;not null"`
	Address   string    `gorm:"size:256"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Rooms []Room `gorm:"foreignKey:DormitoryID"`
}
