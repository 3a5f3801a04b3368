// Package payment drives the lifecycle of a charge and its effects on the
// occupant's account and semester access record.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"residence-billing-backend/internal/apperr"
	"residence-billing-backend/internal/billing"
	"residence-billing-backend/internal/calendar"
	"residence-billing-backend/internal/model"
	"residence-billing-backend/internal/notification"
	"residence-billing-backend/internal/store"
)

var transitions = map[model.PaymentStatus][]model.PaymentStatus{
	model.PaymentPending:    {model.PaymentProcessing, model.PaymentCompleted, model.PaymentFailed},
	model.PaymentProcessing: {model.PaymentPending, model.PaymentCompleted, model.PaymentFailed},
	model.PaymentCompleted:  {model.PaymentPending, model.PaymentProcessing},
	model.PaymentFailed:     {model.PaymentPending, model.PaymentProcessing},
}

// CanTransition reports whether an administrator may move a charge from one status to another.
func CanTransition(from, to model.PaymentStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Machine applies charge transitions. Every transition runs in one
// transaction; the notification is sent only after it commits.
type Machine struct {
	store      store.Store
	dispatcher notification.Dispatcher
	calendar   *calendar.Provider
	log        logrus.FieldLogger
}

func NewMachine(s store.Store, dispatcher notification.Dispatcher, cal *calendar.Provider, log logrus.FieldLogger) *Machine {
	return &Machine{store: s, dispatcher: dispatcher, calendar: cal, log: log.WithField("component", "payment")}
}

type transition struct {
	charge *model.Payment
	from   model.PaymentStatus
	to     model.PaymentStatus
	actor  *int64
}

// UploadProofOfPayment stores the proof reference. A pending charge moves to
// processing; in any other status the proof is kept and nothing else changes.
func (m *Machine) UploadProofOfPayment(ctx context.Context, chargeID int64, fileRef string) (*model.Payment, error) {
	if fileRef == "" {
		return nil, fmt.Errorf("charge %d: empty proof reference: %w", chargeID, apperr.ErrInvalidInput)
	}

	var done *transition
	var charge *model.Payment
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		charge, err = tx.GetCharge(ctx, chargeID)
		if err != nil {
			return err
		}

		now := m.calendar.Now()
		if err := tx.SaveProof(ctx, chargeID, fileRef, now); err != nil {
			return err
		}
		charge.ProofRef = fileRef
		charge.ProofUploadedAt = &now

		if charge.Status != model.PaymentPending {
			return nil
		}
		moved, err := tx.UpdateChargeStatus(ctx, chargeID, model.PaymentPending, model.PaymentProcessing, nil)
		if err != nil || !moved {
			return err
		}

		t := &transition{charge: charge, from: model.PaymentPending, to: model.PaymentProcessing}
		if err := m.applySideEffects(ctx, tx, t); err != nil {
			return err
		}
		charge.Status = model.PaymentProcessing
		done = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if done != nil {
		m.notify(done)
	}
	return charge, nil
}

// SetPaymentStatus is the administrator's transition. The status is re-checked
// in the UPDATE so a concurrent writer causes ErrStaleState instead of a lost update.
func (m *Machine) SetPaymentStatus(ctx context.Context, chargeID int64, status model.PaymentStatus, actorID int64) (*model.Payment, error) {
	actor, err := m.store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsApprover() {
		return nil, fmt.Errorf("user %d (%s) cannot set payment status: %w", actorID, actor.Role, apperr.ErrForbidden)
	}

	var done *transition
	var charge *model.Payment
	err = m.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		charge, err = tx.GetCharge(ctx, chargeID)
		if err != nil {
			return err
		}

		from := charge.Status
		if !CanTransition(from, status) {
			return apperr.NewTransitionError("payment", string(from), string(status))
		}

		moved, err := tx.UpdateChargeStatus(ctx, chargeID, from, status, &actorID)
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("charge %d left %s: %w", chargeID, from, apperr.ErrStaleState)
		}

		t := &transition{charge: charge, from: from, to: status, actor: &actorID}
		if err := m.applySideEffects(ctx, tx, t); err != nil {
			return err
		}
		charge.Status = status
		charge.ProcessedBy = &actorID
		done = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.notify(done)
	return charge, nil
}

func isSemesterCharge(charge *model.Payment) bool {
	return charge.PaymentType.Frequency == string(billing.Semesterly)
}

func (m *Machine) applySideEffects(ctx context.Context, tx store.Store, t *transition) error {
	userID := t.charge.UserID

	switch {
	case t.to == model.PaymentCompleted:
		// Any settled charge unblocks the occupant, undoing the demotion from proof upload.
		if _, err := tx.SetAccountStatus(ctx, userID, model.AccountPending, model.AccountActive); err != nil {
			return err
		}
		if isSemesterCharge(t.charge) {
			return m.moveSemesterTrack(ctx, tx, t, model.ApprovalApproved)
		}

	case t.from == model.PaymentCompleted:
		if _, err := tx.SetAccountStatus(ctx, userID, model.AccountActive, model.AccountPending); err != nil {
			return err
		}
		if isSemesterCharge(t.charge) {
			return m.moveSemesterTrack(ctx, tx, t, model.ApprovalPending)
		}

	case t.from == model.PaymentPending && t.to == model.PaymentProcessing:
		if _, err := tx.SetAccountStatus(ctx, userID, model.AccountActive, model.AccountPending); err != nil {
			return err
		}

	case t.to == model.PaymentFailed:
		if isSemesterCharge(t.charge) {
			return m.moveSemesterTrack(ctx, tx, t, model.ApprovalRejected)
		}
	}
	return nil
}

// moveSemesterTrack mirrors a semester charge onto the payment track of the
// access record for the semester the charge covers.
func (m *Machine) moveSemesterTrack(ctx context.Context, tx store.Store, t *transition, to model.ApprovalStatus) error {
	semester := calendar.SemesterOf(t.charge.DateFrom).String()
	rec, err := tx.FindSemesterRecord(ctx, t.charge.UserID, semester)
	if errors.Is(err, apperr.ErrRecordNotFound) {
		m.log.WithFields(logrus.Fields{"charge_id": t.charge.ID, "semester": semester}).Warn("Semester charge has no access record")
		return nil
	}
	if err != nil {
		return err
	}
	if rec.PaymentStatus == to {
		return nil
	}

	moved, err := tx.UpdateApproval(ctx, rec.ID, store.ApprovalUpdate{
		Track:   model.TrackPayment,
		From:    rec.PaymentStatus,
		To:      to,
		ActorID: t.actor,
		At:      m.calendar.Now(),
	})
	if err != nil {
		return err
	}
	if !moved {
		return fmt.Errorf("semester record %d changed concurrently: %w", rec.ID, apperr.ErrStaleState)
	}
	return nil
}

func (m *Machine) notify(t *transition) {
	ev := notification.NewEvent(notification.EventPaymentStatusChanged, t.charge.UserID, notification.PaymentStatusChanged{
		ChargeID:    t.charge.ID,
		PaymentType: t.charge.PaymentType.Name,
		From:        t.from,
		To:          t.to,
		ActorID:     t.actor,
	}, m.calendar.Now())
	m.dispatcher.Dispatch(ev)

	m.log.WithFields(logrus.Fields{
		"charge_id": t.charge.ID,
		"from":      t.from,
		"to":        t.to,
		"event_id":  ev.ID,
	}).Info("Payment status changed")
}
