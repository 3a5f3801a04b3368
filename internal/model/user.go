package model

import "time"

// Role is the actor's role. Only students and guests can occupy beds.
type Role string

const (
	RoleStudent Role = "student"
	RoleGuest   Role = "guest"
	RoleAdmin   Role = "admin"
	RoleSudo    Role = "sudo"
	RoleVisitor Role = "visitor"
)

// IsOccupant reports whether the role may hold a bed and be billed.
func (r Role) IsOccupant() bool {
	return r == RoleStudent || r == RoleGuest
}

// IsApprover reports whether the role may approve payments and access.
func (r Role) IsApprover() bool {
	return r == RoleAdmin || r == RoleSudo
}

// AccountStatus gates login and physical access.
type AccountStatus string

const (
	AccountPending  AccountStatus = "pending"
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
)

// User is any actor of the residence; students and guests are occupants.
type User struct {
	ID            int64         `gorm:"primaryKey"`
	Username      string        `gorm:"uniqueIndex;size:128;not null"`
	FullName      string        `gorm:"size:256"`
	Role          Role          `gorm:"size:16;not null;index"`
	AccountStatus AccountStatus `gorm:"size:16;not null;default:pending;index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Associations
	StudentProfile *StudentProfile `gorm:"foreignKey:UserID"`
	GuestProfile   *GuestProfile   `gorm:"foreignKey:UserID"`
}

// StudentProfile carries enrollment metadata.
type StudentProfile struct {
	ID            int64     `gorm:"primaryKey"`
	UserID        int64     `gorm:"uniqueIndex;not null"`
	StudentNumber string    `gorm:"size:64"`
	Faculty       string    `gorm:"size:128"`
	RegisteredOn  time.Time `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// GuestProfile carries the visit window. VisitEndDate is the checkout day.
type GuestProfile struct {
	ID             int64     `gorm:"primaryKey"`
	UserID         int64     `gorm:"uniqueIndex;not null"`
	VisitStartDate time.Time `gorm:"not null"`
	VisitEndDate   time.Time `gorm:"not null"`
	IsApproved     bool      `gorm:"not null;default:false"`
	Purpose        string    `gorm:"size:256"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
