package store

import (
	"context"
	"fmt"

	"residence-billing-backend/internal/model"
)

func (s *gormStore) CreatePaymentType(ctx context.Context, pt *model.PaymentType) error {
	if err := s.db.WithContext(ctx).Create(pt).Error; err != nil {
		return fmt.Errorf("failed to create payment type %q: %w", pt.Name, err)
	}
	return nil
}

// ListPaymentTypes returns the enabled definitions for a trigger event. An
// empty role matches every target role.
func (s *gormStore) ListPaymentTypes(ctx context.Context, trigger string, role model.Role) ([]model.PaymentType, error) {
	q := s.db.WithContext(ctx).Where("trigger_event = ? AND disabled = ?", trigger, false)
	if role != "" {
		q = q.Where("target_role = ?", role)
	}
	var types []model.PaymentType
	if err := q.Order("id").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("failed to list payment types for %s: %w", trigger, err)
	}
	return types, nil
}
