package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"residence-billing-backend/internal/apperr"
	"residence-billing-backend/internal/model"
)

// Assignment is the outcome of AssignBed. Previous is the bed the occupant
// held before, if any, loaded with its room and room type.
type Assignment struct {
	Bed      model.Bed
	Previous *model.Bed
	// Unchanged is set when the occupant already held the requested bed.
	Unchanged bool
}

// BedFilter narrows ListAvailableBeds. Zero values mean "any".
type BedFilter struct {
	RoomTypeID int64
	Floor      *int
}

// CreateRoom inserts the room and one bed per unit of its room type's capacity.
// A nil quota means the full capacity; zero closes the room to assignments.
func (s *gormStore) CreateRoom(ctx context.Context, room *model.Room, quota *int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var roomType model.RoomType
		if err := tx.Take(&roomType, room.RoomTypeID).Error; err != nil {
			return wrapNotFound(err, "room type", room.RoomTypeID)
		}

		room.Quota = roomType.Capacity
		if quota != nil {
			room.Quota = *quota
		}
		if room.Quota < 0 || room.Quota > roomType.Capacity {
			return fmt.Errorf("quota %d outside [0, %d] for room %s: %w", room.Quota, roomType.Capacity, room.Number, apperr.ErrQuotaExceeded)
		}

		if err := tx.Omit(clause.Associations).Create(room).Error; err != nil {
			return fmt.Errorf("failed to create room %s: %w", room.Number, err)
		}

		beds := make([]model.Bed, roomType.Capacity)
		for i := range beds {
			beds[i] = model.Bed{RoomID: room.ID, BedNumber: i + 1}
		}
		if len(beds) > 0 {
			if err := tx.Omit(clause.Associations).Create(&beds).Error; err != nil {
				return fmt.Errorf("failed to create beds for room %s: %w", room.Number, err)
			}
		}
		room.RoomType = roomType
		room.Beds = beds
		return nil
	})
}

// SetRoomQuota changes how many beds of a room may be assigned. Beds are never
// deleted; lowering the quota below the current occupancy only blocks new
// assignments.
func (s *gormStore) SetRoomQuota(ctx context.Context, roomID int64, quota int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room model.Room
		if err := tx.Preload("RoomType").Take(&room, roomID).Error; err != nil {
			return wrapNotFound(err, "room", roomID)
		}
		if quota < 0 || quota > room.RoomType.Capacity {
			return fmt.Errorf("quota %d outside [0, %d] for room %d: %w", quota, room.RoomType.Capacity, roomID, apperr.ErrQuotaExceeded)
		}
		return tx.Model(&model.Room{}).Where("id = ?", roomID).Update("quota", quota).Error
	})
}

// AssignBed gives the bed to the occupant, releasing any bed the occupant held
// before. Everything happens in one transaction, so no occupant can end up
// with two beds and no bed with two occupants.
func (s *gormStore) AssignBed(ctx context.Context, occupantID, bedID int64) (*Assignment, error) {
	var result Assignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var occupant model.User
		if err := tx.Take(&occupant, occupantID).Error; err != nil {
			return wrapNotFound(err, "occupant", occupantID)
		}
		if !occupant.Role.IsOccupant() {
			return fmt.Errorf("role %q cannot hold a bed: %w", occupant.Role, apperr.ErrBedUnavailable)
		}

		var bed model.Bed
		if err := tx.Preload("Room.RoomType").Take(&bed, bedID).Error; err != nil {
			return wrapNotFound(err, "bed", bedID)
		}
		if bed.OccupantID != nil && *bed.OccupantID == occupantID {
			result.Bed = bed
			result.Unchanged = true
			return nil
		}
		if bed.IsOccupied || bed.ReservedForStaff {
			return fmt.Errorf("bed %d: %w", bedID, apperr.ErrBedUnavailable)
		}
		if bed.Room.OccupantType != occupant.Role {
			return fmt.Errorf("bed %d is for %s occupants: %w", bedID, bed.Room.OccupantType, apperr.ErrBedUnavailable)
		}

		// Bumping the version takes the room's row lock, so concurrent
		// assignments into the same room see each other's quota usage.
		if err := tx.Model(&model.Room{}).Where("id = ?", bed.RoomID).
			UpdateColumn("version", gorm.Expr("version + ?", 1)).Error; err != nil {
			return fmt.Errorf("failed to lock room %d: %w", bed.RoomID, err)
		}

		var occupied int64
		if err := tx.Model(&model.Bed{}).
			Where("room_id = ? AND is_occupied = ? AND occupant_id <> ?", bed.RoomID, true, occupantID).
			Count(&occupied).Error; err != nil {
			return fmt.Errorf("failed to count occupied beds in room %d: %w", bed.RoomID, err)
		}
		if occupied >= int64(bed.Room.Quota) {
			return fmt.Errorf("room %s has %d of %d beds taken: %w", bed.Room.Number, occupied, bed.Room.Quota, apperr.ErrQuotaExceeded)
		}

		previous, err := currentBed(tx, occupantID)
		if err != nil {
			return err
		}
		if previous != nil {
			if err := releaseBed(tx, previous.ID, occupantID); err != nil {
				return err
			}
			result.Previous = previous
		}

		res := tx.Model(&model.Bed{}).
			Where("id = ? AND is_occupied = ? AND reserved_for_staff = ?", bedID, false, false).
			Updates(map[string]any{"occupant_id": occupantID, "is_occupied": true})
		if res.Error != nil {
			return fmt.Errorf("failed to claim bed %d: %w", bedID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("bed %d was taken concurrently: %w", bedID, apperr.ErrBedUnavailable)
		}

		bed.OccupantID = &occupantID
		bed.IsOccupied = true
		result.Bed = bed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ReleaseBed frees the occupant's bed. It returns nil when the occupant held none.
func (s *gormStore) ReleaseBed(ctx context.Context, occupantID int64) (*model.Bed, error) {
	var released *model.Bed
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bed, err := currentBed(tx, occupantID)
		if err != nil || bed == nil {
			return err
		}
		if err := releaseBed(tx, bed.ID, occupantID); err != nil {
			return err
		}
		bed.OccupantID = nil
		bed.IsOccupied = false
		released = bed
		return nil
	})
	return released, err
}

// CurrentBed returns the occupant's bed with its room and room type, or nil.
func (s *gormStore) CurrentBed(ctx context.Context, occupantID int64) (*model.Bed, error) {
	return currentBed(s.db.WithContext(ctx), occupantID)
}

// ListAvailableBeds returns the rooms of a dormitory reserved for the given
// occupant type that have at least one free, non-staff bed. Each room carries
// only those beds.
func (s *gormStore) ListAvailableBeds(ctx context.Context, dormitoryID int64, occupantType model.Role, filter BedFilter) ([]model.Room, error) {
	q := s.db.WithContext(ctx).
		Preload("RoomType").
		Preload("Beds", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_occupied = ? AND reserved_for_staff = ?", false, false).Order("bed_number")
		}).
		Where("dormitory_id = ? AND occupant_type = ?", dormitoryID, occupantType)
	if filter.RoomTypeID != 0 {
		q = q.Where("room_type_id = ?", filter.RoomTypeID)
	}
	if filter.Floor != nil {
		q = q.Where("floor = ?", *filter.Floor)
	}

	var rooms []model.Room
	if err := q.Order("number").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms of dormitory %d: %w", dormitoryID, err)
	}

	available := make([]model.Room, 0, len(rooms))
	for _, room := range rooms {
		if len(room.Beds) > 0 {
			available = append(available, room)
		}
	}
	return available, nil
}

func currentBed(tx *gorm.DB, occupantID int64) (*model.Bed, error) {
	var bed model.Bed
	err := tx.Preload("Room.RoomType").Where("occupant_id = ?", occupantID).Take(&bed).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bed of occupant %d: %w", occupantID, err)
	}
	return &bed, nil
}

func releaseBed(tx *gorm.DB, bedID, occupantID int64) error {
	res := tx.Model(&model.Bed{}).
		Where("id = ? AND occupant_id = ?", bedID, occupantID).
		Updates(map[string]any{"occupant_id": nil, "is_occupied": false})
	if res.Error != nil {
		return fmt.Errorf("failed to release bed %d: %w", bedID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("bed %d no longer held by occupant %d: %w", bedID, occupantID, apperr.ErrStaleState)
	}
	return nil
}
