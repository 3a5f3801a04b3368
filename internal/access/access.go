// Package access decides whether an occupant may enter the residence.
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"residence-billing-backend/internal/apperr"
	"residence-billing-backend/internal/calendar"
	"residence-billing-backend/internal/model"
	"residence-billing-backend/internal/store"
)

// Service runs the dual approval of semester access records.
type Service struct {
	store    store.Store
	calendar *calendar.Provider
	log      logrus.FieldLogger
}

func NewService(s store.Store, cal *calendar.Provider, log logrus.FieldLogger) *Service {
	return &Service{store: s, calendar: cal, log: log.WithField("component", "access")}
}

// SetApproval decides one track of a semester record. Only approved and
// rejected are valid targets; repeating the current decision changes nothing.
// An empty note leaves the stored note as it is.
func (s *Service) SetApproval(ctx context.Context, recordID int64, track model.ApprovalTrack, status model.ApprovalStatus, actorID int64, note string) (*model.SemesterPayment, error) {
	if !track.Valid() {
		return nil, fmt.Errorf("unknown approval track %q: %w", track, apperr.ErrInvalidInput)
	}
	switch status {
	case model.ApprovalApproved, model.ApprovalRejected, model.ApprovalPending:
	default:
		return nil, fmt.Errorf("unknown approval status %q: %w", status, apperr.ErrInvalidInput)
	}

	actor, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsApprover() {
		return nil, fmt.Errorf("user %d (%s) cannot approve: %w", actorID, actor.Role, apperr.ErrForbidden)
	}

	var rec *model.SemesterPayment
	var changed bool
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		rec, err = tx.GetSemesterRecord(ctx, recordID)
		if err != nil {
			return err
		}

		current := trackStatus(rec, track)
		if status == model.ApprovalPending {
			return apperr.NewTransitionError(string(track)+" approval", string(current), string(status))
		}
		if current == status {
			return nil
		}

		update := store.ApprovalUpdate{Track: track, From: current, To: status, ActorID: &actorID, At: s.calendar.Now()}
		if note != "" {
			update.Note = &note
		}
		moved, err := tx.UpdateApproval(ctx, recordID, update)
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("semester record %d %s track left %s: %w", recordID, track, current, apperr.ErrStaleState)
		}

		rec, err = tx.GetSemesterRecord(ctx, recordID)
		changed = true
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.log.WithFields(logrus.Fields{
			"record_id": recordID,
			"track":     track,
			"status":    status,
			"actor_id":  actorID,
		}).Info("Approval recorded")
	}
	return rec, nil
}

// CanAccess reports whether the record opens the residence in the given
// semester: both tracks approved and the record is for that semester.
func CanAccess(rec *model.SemesterPayment, current calendar.Semester) bool {
	return rec != nil &&
		rec.Semester == current.String() &&
		rec.PaymentStatus == model.ApprovalApproved &&
		rec.DormitoryStatus == model.ApprovalApproved
}

// CanAccessDormitory answers for one user. Staff and visitors always pass;
// guests need an approved profile and today inside the visit window; students
// need a fully approved record for the current semester.
func (s *Service) CanAccessDormitory(ctx context.Context, userID int64) (bool, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}

	switch user.Role {
	case model.RoleAdmin, model.RoleSudo, model.RoleVisitor:
		return true, nil
	case model.RoleGuest:
		return guestWithinVisit(user.GuestProfile, s.calendar.Today()), nil
	case model.RoleStudent:
		current := s.calendar.CurrentSemester()
		rec, err := s.store.FindSemesterRecord(ctx, userID, current.String())
		if errors.Is(err, apperr.ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return CanAccess(rec, current), nil
	default:
		return false, nil
	}
}

// guestWithinVisit treats both ends of the visit window as inclusive.
func guestWithinVisit(profile *model.GuestProfile, today time.Time) bool {
	if profile == nil || !profile.IsApproved {
		return false
	}
	start := calendar.Date(profile.VisitStartDate)
	end := calendar.Date(profile.VisitEndDate)
	return !today.Before(start) && !today.After(end)
}

func trackStatus(rec *model.SemesterPayment, track model.ApprovalTrack) model.ApprovalStatus {
	if track == model.TrackDormitory {
		return rec.DormitoryStatus
	}
	return rec.PaymentStatus
}
