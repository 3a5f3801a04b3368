package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"residence-billing-backend/internal/apperr"
	"residence-billing-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB
	// Transaction runs fn against a Store bound to a single database transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	CreateDormitory(ctx context.Context, dorm *model.Dormitory) error
	ListDormitories(ctx context.Context) ([]DormitorySummary, error)
	CreateRoom(ctx context.Context, room *model.Room, quota *int) error
	SetRoomQuota(ctx context.Context, roomID int64, quota int) error
	AssignBed(ctx context.Context, occupantID, bedID int64) (*Assignment, error)
	ReleaseBed(ctx context.Context, occupantID int64) (*model.Bed, error)
	CurrentBed(ctx context.Context, occupantID int64) (*model.Bed, error)
	ListAvailableBeds(ctx context.Context, dormitoryID int64, occupantType model.Role, filter BedFilter) ([]model.Room, error)

	GetUser(ctx context.Context, id int64) (*model.User, error)
	ListHousedOccupantIDs(ctx context.Context, role model.Role) ([]int64, error)
	ListActiveOccupantIDs(ctx context.Context) ([]int64, error)
	SetAccountStatus(ctx context.Context, userID int64, from, to model.AccountStatus) (bool, error)

	CreatePaymentType(ctx context.Context, pt *model.PaymentType) error
	ListPaymentTypes(ctx context.Context, trigger string, role model.Role) ([]model.PaymentType, error)

	ChargeExists(ctx context.Context, key ChargeKey) (bool, error)
	CreateChargeIfAbsent(ctx context.Context, charge *model.Payment) (bool, error)
	GetCharge(ctx context.Context, id int64) (*model.Payment, error)
	UpdateChargeStatus(ctx context.Context, id int64, from, to model.PaymentStatus, processedBy *int64) (bool, error)
	SaveProof(ctx context.Context, id int64, ref string, at time.Time) error
	ListPendingCharges(ctx context.Context, userID int64) ([]model.Payment, error)

	EnsureSemesterRecord(ctx context.Context, rec *model.SemesterPayment) (bool, error)
	GetSemesterRecord(ctx context.Context, id int64) (*model.SemesterPayment, error)
	FindSemesterRecord(ctx context.Context, userID int64, semester string) (*model.SemesterPayment, error)
	UpdateApproval(ctx context.Context, id int64, update ApprovalUpdate) (bool, error)

	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string, userID int64) error
	ListSubscriptions(ctx context.Context, userID int64) ([]model.PushSubscription, error)
	DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func wrapNotFound(err error, kind string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(kind, id)
	}
	return fmt.Errorf("failed to load %s %v: %w", kind, id, err)
}
