// Package sweeper demotes occupants whose charges stay unpaid past the deadline.
package sweeper

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"residence-billing-backend/internal/calendar"
	"residence-billing-backend/internal/model"
	"residence-billing-backend/internal/store"
)

// Demotion names the occupant that was moved back to pending and the first
// overdue charge that caused it.
type Demotion struct {
	OccupantID  int64     `json:"occupant_id"`
	ChargeID    int64     `json:"charge_id"`
	PaymentType string    `json:"payment_type"`
	DateFrom    time.Time `json:"date_from"`
}

// Report summarizes one sweep.
type Report struct {
	Scanned int        `json:"scanned"`
	Demoted []Demotion `json:"demoted"`
	Failed  int        `json:"failed"`
}

type Sweeper struct {
	store    store.Store
	calendar *calendar.Provider
	deadline time.Duration
	log      logrus.FieldLogger
}

func New(s store.Store, cal *calendar.Provider, deadline time.Duration, log logrus.FieldLogger) *Sweeper {
	return &Sweeper{store: s, calendar: cal, deadline: deadline, log: log.WithField("component", "sweeper")}
}

// Run checks every active student and guest. A charge is overdue once
// date_from plus the deadline lies in the past. Failures are counted and the
// sweep moves on; cancelling ctx stops it between occupants.
func (s *Sweeper) Run(ctx context.Context) (*Report, error) {
	report := &Report{}
	occupantIDs, err := s.store.ListActiveOccupantIDs(ctx)
	if err != nil {
		return report, err
	}

	now := s.calendar.Now()
	for _, occupantID := range occupantIDs {
		if err := ctx.Err(); err != nil {
			s.log.WithField("scanned", report.Scanned).Warn("Overdue sweep interrupted")
			return report, err
		}
		report.Scanned++

		demotion, err := s.sweepOccupant(ctx, occupantID, now)
		if err != nil {
			report.Failed++
			s.log.WithError(err).WithField("occupant_id", occupantID).Error("Failed to sweep occupant")
			continue
		}
		if demotion != nil {
			report.Demoted = append(report.Demoted, *demotion)
			s.log.WithFields(logrus.Fields{
				"occupant_id":  occupantID,
				"charge_id":    demotion.ChargeID,
				"payment_type": demotion.PaymentType,
			}).Info("Occupant demoted for overdue charge")
		}
	}

	s.log.WithFields(logrus.Fields{
		"scanned": report.Scanned,
		"demoted": len(report.Demoted),
		"failed":  report.Failed,
	}).Info("Overdue sweep finished")
	return report, nil
}

func (s *Sweeper) sweepOccupant(ctx context.Context, occupantID int64, now time.Time) (*Demotion, error) {
	var demotion *Demotion
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		charges, err := tx.ListPendingCharges(ctx, occupantID)
		if err != nil {
			return err
		}

		overdue := firstOverdue(charges, s.deadline, now)
		if overdue == nil {
			return nil
		}

		moved, err := tx.SetAccountStatus(ctx, occupantID, model.AccountActive, model.AccountPending)
		if err != nil || !moved {
			return err
		}
		demotion = &Demotion{
			OccupantID:  occupantID,
			ChargeID:    overdue.ID,
			PaymentType: overdue.PaymentType.Name,
			DateFrom:    overdue.DateFrom,
		}
		return nil
	})
	return demotion, err
}

func firstOverdue(charges []model.Payment, deadline time.Duration, now time.Time) *model.Payment {
	for i := range charges {
		if charges[i].DateFrom.Add(deadline).Before(now) {
			return &charges[i]
		}
	}
	return nil
}
