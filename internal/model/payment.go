package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType is the stored form of a payment-type definition. It is turned
// into a validated billing definition before the engine uses it.
type PaymentType struct {
	ID                int64           `gorm:"primaryKey"`
	Name              string          `gorm:"uniqueIndex;size:128;not null"`
	Frequency         string          `gorm:"size:16;not null"`
	CalculationMethod string          `gorm:"size:32;not null"`
	FixedAmount       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	TargetRole        Role            `gorm:"size:16;not null;index:idx_payment_type_trigger,priority:2"`
	TriggerEvent      string          `gorm:"size:32;not null;index:idx_payment_type_trigger,priority:1"`
	Disabled          bool            `gorm:"not null;default:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PaymentStatus is the lifecycle state of a charge.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
)

// Payment is a charge for one occupant, one payment type and one billing
// period [DateFrom, DateTo). The composite unique index is the storage-level
// guarantee that a period is billed at most once.
type Payment struct {
	ID              int64           `gorm:"primaryKey"`
	UserID          int64           `gorm:"not null;uniqueIndex:idx_payment_period,priority:1"`
	PaymentTypeID   int64           `gorm:"not null;index;uniqueIndex:idx_payment_period,priority:2"`
	DateFrom        time.Time       `gorm:"not null;uniqueIndex:idx_payment_period,priority:3"`
	DateTo          time.Time       `gorm:"not null;uniqueIndex:idx_payment_period,priority:4"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Status          PaymentStatus   `gorm:"size:16;not null;default:pending;index"`
	ProofRef        string          `gorm:"size:512"`
	ProofUploadedAt *time.Time
	ProcessedBy     *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Associations
	User        User        `gorm:"constraint:OnDelete:CASCADE"`
	PaymentType PaymentType `gorm:"constraint:OnDelete:RESTRICT"`
}
