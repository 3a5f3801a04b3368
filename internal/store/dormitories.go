package store

import (
	"context"
	"fmt"

	"residence-billing-backend/internal/apperr"
	"residence-billing-backend/internal/model"
)

// DormitorySummary is a dormitory with its bed counts.
type DormitorySummary struct {
	model.Dormitory
	Rooms     int64
	TotalBeds int64
	FreeBeds  int64
	MaxFloor  int
}

func (s *gormStore) CreateDormitory(ctx context.Context, dorm *model.Dormitory) error {
	var existing int64
	if err := s.db.WithContext(ctx).Model(&model.Dormitory{}).Where("name = ?", dorm.Name).Count(&existing).Error; err != nil {
		return fmt.Errorf("failed to check dormitory %s: %w", dorm.Name, err)
	}
	if existing > 0 {
		return fmt.Errorf("%w: dormitory %q already exists", apperr.ErrInvalidInput, dorm.Name)
	}
	if err := s.db.WithContext(ctx).Create(dorm).Error; err != nil {
		return fmt.Errorf("failed to create dormitory %s: %w", dorm.Name, err)
	}
	return nil
}

// ListDormitories returns every dormitory with bed counts aggregated in a
// single grouped query.
func (s *gormStore) ListDormitories(ctx context.Context) ([]DormitorySummary, error) {
	db := s.db.WithContext(ctx)

	var dorms []model.Dormitory
	if err := db.Order("name").Find(&dorms).Error; err != nil {
		return nil, fmt.Errorf("failed to list dormitories: %w", err)
	}

	type aggRow struct {
		DormitoryID int64
		Rooms       int64
		TotalBeds   int64
		FreeBeds    int64
		MaxFloor    int
	}
	var aggs []aggRow
	if err := db.Table("rooms").
		Select(`rooms.dormitory_id AS dormitory_id,
			COUNT(DISTINCT rooms.id) AS rooms,
			COUNT(beds.id) AS total_beds,
			COUNT(CASE WHEN beds.is_occupied = ? AND beds.reserved_for_staff = ? THEN 1 END) AS free_beds,
			COALESCE(MAX(rooms.floor), 0) AS max_floor`, false, false).
		Joins("LEFT JOIN beds ON beds.room_id = rooms.id").
		Group("rooms.dormitory_id").
		Scan(&aggs).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate beds: %w", err)
	}

	aggMap := make(map[int64]aggRow, len(aggs))
	for _, a := range aggs {
		aggMap[a.DormitoryID] = a
	}

	summaries := make([]DormitorySummary, 0, len(dorms))
	for _, d := range dorms {
		a := aggMap[d.ID] // zero counts for a dormitory without rooms
		summaries = append(summaries, DormitorySummary{
			Dormitory: d,
			Rooms:     a.Rooms, TotalBeds: a.TotalBeds, FreeBeds: a.FreeBeds, MaxFloor: a.MaxFloor,
		})
	}
	return summaries, nil
}
