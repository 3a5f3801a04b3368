package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoomType carries the capacity and the rates every room of that type is billed at.
type RoomType struct {
	ID           int64           `gorm:"primaryKey"`
	Name         string          `gorm:"uniqueIndex;size:128;not null"`
	Capacity     int             `gorm:"not null"`
	DailyRate    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	SemesterRate decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Room belongs to a dormitory. Quota caps how many of its beds may be assigned.
type Room struct {
	ID           int64  `gorm:"primaryKey"`
	DormitoryID  int64  `gorm:"not null;index;uniqueIndex:idx_room_dormitory_number,priority:1"`
	RoomTypeID   int64  `gorm:"not null;index"`
	Number       string `gorm:"size:32;not null;uniqueIndex:idx_room_dormitory_number,priority:2"`
	Floor        int
	OccupantType Role  `gorm:"size:16;not null;index"`
	Quota        int   `gorm:"not null"`
	Version      int64 `gorm:"not null;default:0"` // bumped to take the row lock during assignment
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Associations
	Dormitory Dormitory `gorm:"constraint:OnDelete:CASCADE"`
	RoomType  RoomType
	Beds      []Bed `gorm:"foreignKey:RoomID"`
}

// Bed owns the occupant assignment. IsOccupied must always equal OccupantID != nil.
type Bed struct {
	ID               int64  `gorm:"primaryKey"`
	RoomID           int64  `gorm:"not null;index;uniqueIndex:idx_bed_room_number,priority:1"`
	BedNumber        int    `gorm:"not null;uniqueIndex:idx_bed_room_number,priority:2"`
	OccupantID       *int64 `gorm:"uniqueIndex"`
	IsOccupied       bool   `gorm:"not null;default:false;index"`
	ReservedForStaff bool   `gorm:"not null;default:false"`
	UpdatedAt        time.Time

	// Associations
	Room Room `gorm:"constraint:OnDelete:CASCADE"`
}
