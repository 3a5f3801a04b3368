package store

import (
	"context"
	"fmt"

	"residence-billing-backend/internal/model"
)

// GetUser loads a user with both optional profiles.
func (s *gormStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Preload("StudentProfile").
		Preload("GuestProfile").
		Take(&user, id).Error
	if err != nil {
		return nil, wrapNotFound(err, "user", id)
	}
	return &user, nil
}

// ListHousedOccupantIDs returns the users of the given role that currently hold a bed.
func (s *gormStore) ListHousedOccupantIDs(ctx context.Context, role model.Role) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&model.User{}).
		Joins("JOIN beds ON beds.occupant_id = users.id").
		Where("users.role = ?", role).
		Order("users.id").
		Pluck("users.id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list housed %s occupants: %w", role, err)
	}
	return ids, nil
}

// ListActiveOccupantIDs returns every active student or guest.
func (s *gormStore) ListActiveOccupantIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("role IN ? AND account_status = ?", []model.Role{model.RoleStudent, model.RoleGuest}, model.AccountActive).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active occupants: %w", err)
	}
	return ids, nil
}

// SetAccountStatus moves the account from one status to another. It reports
// false, without error, when the account was not in the expected status.
func (s *gormStore) SetAccountStatus(ctx context.Context, userID int64, from, to model.AccountStatus) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND account_status = ?", userID, from).
		Update("account_status", to)
	if res.Error != nil {
		return false, fmt.Errorf("failed to set account status of user %d: %w", userID, res.Error)
	}
	return res.RowsAffected > 0, nil
}
