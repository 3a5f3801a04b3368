package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalStatus is the state of one approval track.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// SemesterPayment is the per-semester access record with its two approval
// tracks. At most one exists per (user, semester).
type SemesterPayment struct {
	ID                  int64           `gorm:"primaryKey"`
	UserID              int64           `gorm:"not null;uniqueIndex:idx_semester_user,priority:1"`
	Semester            string          `gorm:"size:16;not null;uniqueIndex:idx_semester_user,priority:2"`
	Amount              decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	DueDate             time.Time       `gorm:"not null"`
	PaidDate            *time.Time
	PaymentStatus       ApprovalStatus `gorm:"size:16;not null;default:pending"`
	DormitoryStatus     ApprovalStatus `gorm:"size:16;not null;default:pending"`
	PaymentApprovedBy   *int64
	DormitoryApprovedBy *int64
	PaymentNote         string `gorm:"size:512"`
	DormitoryNote       string `gorm:"size:512"`
	CreatedAt           time.Time
	UpdatedAt           time.Time

	// Associations
	User User `gorm:"constraint:OnDelete:CASCADE"`
}

// ApprovalTrack names one of the two approvals on a semester record.
type ApprovalTrack string

const (
	TrackPayment   ApprovalTrack = "payment"
	TrackDormitory ApprovalTrack = "dormitory"
)

func (t ApprovalTrack) Valid() bool {
	return t == TrackPayment || t == TrackDormitory
}
