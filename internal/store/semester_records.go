package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"residence-billing-backend/internal/model"
)

// ApprovalUpdate moves one track of a semester record from From to To.
// A nil Note leaves the stored note untouched.
type ApprovalUpdate struct {
	Track   model.ApprovalTrack
	From    model.ApprovalStatus
	To      model.ApprovalStatus
	ActorID *int64
	Note    *string
	At      time.Time
}

// EnsureSemesterRecord creates the (user, semester) record, or adds the
// record's amount to the existing one. It reports whether a row was created.
func (s *gormStore) EnsureSemesterRecord(ctx context.Context, rec *model.SemesterPayment) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(rec)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create semester record for user %d, %s: %w", rec.UserID, rec.Semester, res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	err := s.db.WithContext(ctx).
		Model(&model.SemesterPayment{}).
		Where("user_id = ? AND semester = ?", rec.UserID, rec.Semester).
		UpdateColumn("amount", gorm.Expr("amount + ?", rec.Amount)).Error
	if err != nil {
		return false, fmt.Errorf("failed to add to semester record for user %d, %s: %w", rec.UserID, rec.Semester, err)
	}
	return false, nil
}

func (s *gormStore) GetSemesterRecord(ctx context.Context, id int64) (*model.SemesterPayment, error) {
	var rec model.SemesterPayment
	if err := s.db.WithContext(ctx).Take(&rec, id).Error; err != nil {
		return nil, wrapNotFound(err, "semester record", id)
	}
	return &rec, nil
}

func (s *gormStore) FindSemesterRecord(ctx context.Context, userID int64, semester string) (*model.SemesterPayment, error) {
	var rec model.SemesterPayment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND semester = ?", userID, semester).
		Take(&rec).Error
	if err != nil {
		return nil, wrapNotFound(err, "semester record", fmt.Sprintf("%d/%s", userID, semester))
	}
	return &rec, nil
}

// UpdateApproval applies the update only if the track still holds From.
func (s *gormStore) UpdateApproval(ctx context.Context, id int64, update ApprovalUpdate) (bool, error) {
	statusCol, actorCol, noteCol := trackColumns(update.Track)

	updates := map[string]any{statusCol: update.To, actorCol: update.ActorID}
	if update.Note != nil {
		updates[noteCol] = *update.Note
	}
	if update.Track == model.TrackPayment {
		if update.To == model.ApprovalApproved {
			updates["paid_date"] = update.At
		} else {
			updates["paid_date"] = nil
		}
	}

	res := s.db.WithContext(ctx).
		Model(&model.SemesterPayment{}).
		Where("id = ? AND "+statusCol+" = ?", id, update.From).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update %s approval of semester record %d: %w", update.Track, id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func trackColumns(track model.ApprovalTrack) (status, actor, note string) {
	if track == model.TrackDormitory {
		return "dormitory_status", "dormitory_approved_by", "dormitory_note"
	}
	return "payment_status", "payment_approved_by", "payment_note"
}
