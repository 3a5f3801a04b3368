package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"residence-billing-backend/internal/apperr"
	"residence-billing-backend/internal/model"
)

// ChargeKey is the idempotence key of a charge: one occupant, one payment type, one period.
type ChargeKey struct {
	UserID        int64
	PaymentTypeID int64
	DateFrom      time.Time
	DateTo        time.Time
}

// KeyOf returns the idempotence key of an existing or prospective charge.
func KeyOf(p *model.Payment) ChargeKey {
	return ChargeKey{UserID: p.UserID, PaymentTypeID: p.PaymentTypeID, DateFrom: p.DateFrom, DateTo: p.DateTo}
}

func (s *gormStore) ChargeExists(ctx context.Context, key ChargeKey) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("user_id = ? AND payment_type_id = ? AND date_from = ? AND date_to = ?",
			key.UserID, key.PaymentTypeID, key.DateFrom, key.DateTo).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to look up charge %+v: %w", key, err)
	}
	return count > 0, nil
}

// CreateChargeIfAbsent inserts the charge unless one already exists for its
// key. The precondition check covers the common case; the unique index with
// ON CONFLICT DO NOTHING covers concurrent inserts. It reports whether a row
// was written.
func (s *gormStore) CreateChargeIfAbsent(ctx context.Context, charge *model.Payment) (bool, error) {
	exists, err := s.ChargeExists(ctx, KeyOf(charge))
	if err != nil || exists {
		return false, err
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(charge)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, apperr.ErrDuplicateCharge
		}
		return false, fmt.Errorf("failed to create charge %+v: %w", KeyOf(charge), res.Error)
	}
	return res.RowsAffected > 0, nil
}

// GetCharge loads a charge with its payment type and occupant.
func (s *gormStore) GetCharge(ctx context.Context, id int64) (*model.Payment, error) {
	var charge model.Payment
	err := s.db.WithContext(ctx).
		Preload("PaymentType").
		Preload("User").
		Take(&charge, id).Error
	if err != nil {
		return nil, wrapNotFound(err, "charge", id)
	}
	return &charge, nil
}

// UpdateChargeStatus writes the new status only if the charge is still in
// the status the caller read. It reports false when another writer got there first.
func (s *gormStore) UpdateChargeStatus(ctx context.Context, id int64, from, to model.PaymentStatus, processedBy *int64) (bool, error) {
	updates := map[string]any{"status": to}
	if processedBy != nil {
		updates["processed_by"] = *processedBy
	}
	res := s.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update status of charge %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *gormStore) SaveProof(ctx context.Context, id int64, ref string, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ?", id).
		Updates(map[string]any{"proof_ref": ref, "proof_uploaded_at": at})
	if res.Error != nil {
		return fmt.Errorf("failed to store proof for charge %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("charge", id)
	}
	return nil
}

// ListPendingCharges returns the occupant's pending charges, oldest period first.
func (s *gormStore) ListPendingCharges(ctx context.Context, userID int64) ([]model.Payment, error) {
	var charges []model.Payment
	err := s.db.WithContext(ctx).
		Preload("PaymentType").
		Where("user_id = ? AND status = ?", userID, model.PaymentPending).
		Order("date_from, id").
		Find(&charges).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending charges of user %d: %w", userID, err)
	}
	return charges, nil
}
