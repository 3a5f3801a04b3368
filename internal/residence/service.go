// Package residence is the entry point the request layer and the scheduler
// call into. Lifecycle billing is triggered here, explicitly, after the
// state change that causes it.
package residence

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"residence-billing-backend/config"
	"residence-billing-backend/internal/access"
	"residence-billing-backend/internal/billing"
	"residence-billing-backend/internal/calendar"
	"residence-billing-backend/internal/model"
	"residence-billing-backend/internal/notification"
	"residence-billing-backend/internal/payment"
	"residence-billing-backend/internal/store"
	"residence-billing-backend/internal/sweeper"
)

type Service struct {
	store    store.Store
	billing  *billing.Engine
	payments *payment.Machine
	access   *access.Service
	sweeper  *sweeper.Sweeper
	log      logrus.FieldLogger
}

func NewService(s store.Store, cal *calendar.Provider, dispatcher notification.Dispatcher, cfg config.BillingConfig, log logrus.FieldLogger) *Service {
	deadline := cfg.PaymentDeadline()
	return &Service{
		store:    s,
		billing:  billing.NewEngine(s, cal, deadline, log),
		payments: payment.NewMachine(s, dispatcher, cal, log),
		access:   access.NewService(s, cal, log),
		sweeper:  sweeper.New(s, cal, deadline, log),
		log:      log.WithField("component", "residence"),
	}
}

// BedAssignment is the result of AssignBed. Billing is nil when the
// assignment did not trigger any lifecycle event.
type BedAssignment struct {
	*store.Assignment
	Trigger billing.Trigger `json:"trigger,omitempty"`
	Billing *billing.Report `json:"billing,omitempty"`
}

// AssignBed assigns the bed and then bills the move: a first bed is a
// registration (students) or a new booking (guests); a move to another room
// type is a room type change; a move within the same room type bills nothing.
func (s *Service) AssignBed(ctx context.Context, occupantID, bedID int64) (*BedAssignment, error) {
	assignment, err := s.store.AssignBed(ctx, occupantID, bedID)
	if err != nil {
		return nil, err
	}
	result := &BedAssignment{Assignment: assignment}
	if assignment.Unchanged {
		return result, nil
	}

	occupant, err := s.store.GetUser(ctx, occupantID)
	if err != nil {
		return result, err
	}
	result.Trigger = triggerFor(occupant.Role, assignment)
	if result.Trigger == "" {
		return result, nil
	}

	report, err := s.billing.TriggerLifecycleEvent(ctx, occupantID, result.Trigger)
	if err != nil {
		return result, fmt.Errorf("bed %d assigned but %s billing failed: %w", bedID, result.Trigger, err)
	}
	result.Billing = report
	return result, nil
}

func triggerFor(role model.Role, a *store.Assignment) billing.Trigger {
	switch {
	case a.Previous == nil && role == model.RoleGuest:
		return billing.TriggerNewBooking
	case a.Previous == nil:
		return billing.TriggerRegistration
	case a.Previous.Room.RoomTypeID != a.Bed.Room.RoomTypeID:
		return billing.TriggerRoomTypeChange
	default:
		return ""
	}
}

func (s *Service) ReleaseBed(ctx context.Context, occupantID int64) (*model.Bed, error) {
	return s.store.ReleaseBed(ctx, occupantID)
}

func (s *Service) ListAvailableBeds(ctx context.Context, dormitoryID int64, occupantType model.Role, filter store.BedFilter) ([]model.Room, error) {
	return s.store.ListAvailableBeds(ctx, dormitoryID, occupantType, filter)
}

func (s *Service) CreateDormitory(ctx context.Context, dorm *model.Dormitory) error {
	return s.store.CreateDormitory(ctx, dorm)
}

func (s *Service) ListDormitories(ctx context.Context) ([]store.DormitorySummary, error) {
	return s.store.ListDormitories(ctx)
}

func (s *Service) CreateRoom(ctx context.Context, room *model.Room, quota *int) error {
	return s.store.CreateRoom(ctx, room, quota)
}

func (s *Service) SetRoomQuota(ctx context.Context, roomID int64, quota int) error {
	return s.store.SetRoomQuota(ctx, roomID, quota)
}

// DefinePaymentType validates and stores a new payment type.
func (s *Service) DefinePaymentType(ctx context.Context, pt *model.PaymentType) error {
	if _, err := billing.NewDefinition(*pt); err != nil {
		return err
	}
	return s.store.CreatePaymentType(ctx, pt)
}

func (s *Service) TriggerLifecycleEvent(ctx context.Context, occupantID int64, trigger billing.Trigger) (*billing.Report, error) {
	return s.billing.TriggerLifecycleEvent(ctx, occupantID, trigger)
}

func (s *Service) RunCalendarTrigger(ctx context.Context, trigger billing.Trigger) (*billing.Report, error) {
	return s.billing.RunCalendarTrigger(ctx, trigger)
}

func (s *Service) UploadProofOfPayment(ctx context.Context, chargeID int64, fileRef string) (*model.Payment, error) {
	return s.payments.UploadProofOfPayment(ctx, chargeID, fileRef)
}

func (s *Service) SetPaymentStatus(ctx context.Context, chargeID int64, status model.PaymentStatus, actorID int64) (*model.Payment, error) {
	return s.payments.SetPaymentStatus(ctx, chargeID, status, actorID)
}

func (s *Service) SetApproval(ctx context.Context, recordID int64, track model.ApprovalTrack, status model.ApprovalStatus, actorID int64, note string) (*model.SemesterPayment, error) {
	return s.access.SetApproval(ctx, recordID, track, status, actorID, note)
}

func (s *Service) CanAccessDormitory(ctx context.Context, occupantID int64) (bool, error) {
	return s.access.CanAccessDormitory(ctx, occupantID)
}

func (s *Service) RunOverdueSweep(ctx context.Context) (*sweeper.Report, error) {
	return s.sweeper.Run(ctx)
}

// Store exposes the persistence layer for reads the engine does not wrap.
func (s *Service) Store() store.Store {
	return s.store
}
