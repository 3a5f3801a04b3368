// Package billing materializes charges when lifecycle or calendar events fire.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"residence-billing-backend/internal/apperr"
	"residence-billing-backend/internal/calendar"
	"residence-billing-backend/internal/model"
	"residence-billing-backend/internal/rate"
	"residence-billing-backend/internal/store"
)

// Engine creates at most one charge per occupant, payment type and period.
type Engine struct {
	store    store.Store
	calendar *calendar.Provider
	deadline time.Duration
	log      logrus.FieldLogger
}

// NewEngine creates a new billing engine. deadline is added to a semester's
// first day to get the due date of its access record.
func NewEngine(s store.Store, cal *calendar.Provider, deadline time.Duration, log logrus.FieldLogger) *Engine {
	return &Engine{store: s, calendar: cal, deadline: deadline, log: log.WithField("component", "billing")}
}

// TriggerLifecycleEvent bills one occupant for the definitions that target
// the occupant's role and listen to the trigger.
func (e *Engine) TriggerLifecycleEvent(ctx context.Context, occupantID int64, trigger Trigger) (*Report, error) {
	if !trigger.valid() || trigger.IsCalendar() {
		return nil, fmt.Errorf("%q is not a lifecycle event: %w", trigger, apperr.ErrInvalidTrigger)
	}

	occupant, err := e.store.GetUser(ctx, occupantID)
	if err != nil {
		return nil, err
	}

	report := &Report{Trigger: trigger}
	defs, err := e.definitions(ctx, trigger, occupant.Role, report)
	if err != nil {
		return nil, err
	}
	if len(defs) > 0 {
		e.billOccupant(ctx, occupantID, trigger, defs, report)
	}

	e.log.WithFields(report.Fields()).WithField("occupant_id", occupantID).Info("Lifecycle billing finished")
	return report, nil
}

// RunCalendarTrigger bills every housed occupant for the definitions that
// listen to a calendar trigger. Each occupant is billed in its own
// transaction; cancelling ctx stops the run between occupants and returns
// the partial report together with the context error.
func (e *Engine) RunCalendarTrigger(ctx context.Context, trigger Trigger) (*Report, error) {
	if !trigger.IsCalendar() {
		return nil, fmt.Errorf("%q is not a calendar event: %w", trigger, apperr.ErrInvalidTrigger)
	}

	report := &Report{Trigger: trigger}
	defs, err := e.definitions(ctx, trigger, "", report)
	if err != nil {
		return report, err
	}

	byRole := make(map[model.Role][]Definition)
	var roles []model.Role
	for _, def := range defs {
		if _, ok := byRole[def.TargetRole]; !ok {
			roles = append(roles, def.TargetRole)
		}
		byRole[def.TargetRole] = append(byRole[def.TargetRole], def)
	}

	for _, role := range roles {
		occupantIDs, err := e.store.ListHousedOccupantIDs(ctx, role)
		if err != nil {
			return report, err
		}
		for _, occupantID := range occupantIDs {
			if err := ctx.Err(); err != nil {
				e.log.WithFields(report.Fields()).Warn("Calendar billing interrupted")
				return report, err
			}
			e.billOccupant(ctx, occupantID, trigger, byRole[role], report)
		}
	}

	e.log.WithFields(report.Fields()).Info("Calendar billing finished")
	return report, nil
}

// definitions loads and validates the payment types listening to trigger.
// Invalid ones are reported and left out.
func (e *Engine) definitions(ctx context.Context, trigger Trigger, role model.Role, report *Report) ([]Definition, error) {
	types, err := e.store.ListPaymentTypes(ctx, string(trigger), role)
	if err != nil {
		return nil, err
	}
	defs := make([]Definition, 0, len(types))
	for _, pt := range types {
		def, err := NewDefinition(pt)
		if err != nil {
			e.log.WithError(err).WithField("payment_type", pt.Name).Warn("Skipping invalid payment type")
			report.fail(0, pt.Name, err)
			continue
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// billOccupant applies defs to one occupant inside one transaction. A
// definition that cannot be priced is reported and does not stop the others;
// a storage error rolls the occupant back and is reported once.
func (e *Engine) billOccupant(ctx context.Context, occupantID int64, trigger Trigger, defs []Definition, report *Report) {
	local := &Report{Trigger: trigger}
	err := e.store.Transaction(ctx, func(tx store.Store) error {
		occupant, err := tx.GetUser(ctx, occupantID)
		if err != nil {
			return err
		}
		bed, err := tx.CurrentBed(ctx, occupantID)
		if err != nil {
			return err
		}

		for _, def := range defs {
			if err := e.billDefinition(ctx, tx, occupant, bed, trigger, def, local); err != nil {
				if isPricingError(err) {
					e.log.WithError(err).WithFields(logrus.Fields{
						"occupant_id":  occupantID,
						"payment_type": def.Name,
					}).Warn("Charge not created")
					local.fail(occupantID, def.Name, err)
					continue
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.log.WithError(err).WithField("occupant_id", occupantID).Error("Billing occupant failed")
		report.fail(occupantID, "", err)
		return
	}
	report.merge(local)
}

func (e *Engine) billDefinition(ctx context.Context, tx store.Store, occupant *model.User, bed *model.Bed, trigger Trigger, def Definition, report *Report) error {
	period, err := e.period(def, trigger, occupant)
	if err != nil {
		return err
	}

	key := store.ChargeKey{UserID: occupant.ID, PaymentTypeID: def.ID, DateFrom: period.From, DateTo: period.To}
	exists, err := tx.ChargeExists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		report.Skipped++
		return nil
	}

	rateCtx := rate.Context{Stay: period}
	if bed != nil {
		rateCtx.RoomType = &bed.Room.RoomType
	}
	amount, err := rate.Resolve(def.Calculation, rateCtx)
	if err != nil {
		return err
	}

	charge := model.Payment{
		UserID:        occupant.ID,
		PaymentTypeID: def.ID,
		DateFrom:      period.From,
		DateTo:        period.To,
		Amount:        amount.Round(2),
		Status:        model.PaymentPending,
	}
	created, err := tx.CreateChargeIfAbsent(ctx, &charge)
	if errors.Is(err, apperr.ErrDuplicateCharge) {
		report.Skipped++
		return nil
	}
	if err != nil {
		return err
	}
	if !created {
		report.Skipped++
		return nil
	}

	if def.Frequency == Semesterly {
		sem := calendar.SemesterOf(period.From)
		if _, err := tx.EnsureSemesterRecord(ctx, &model.SemesterPayment{
			UserID:          occupant.ID,
			Semester:        sem.String(),
			Amount:          charge.Amount,
			DueDate:         period.From.Add(e.deadline),
			PaymentStatus:   model.ApprovalPending,
			DormitoryStatus: model.ApprovalPending,
		}); err != nil {
			return err
		}
	}

	report.Created = append(report.Created, charge)
	return nil
}

// period picks the billing period of a charge. One-off charges cover a
// guest's stay; for students they cover the registration day, or the day of
// the room change.
func (e *Engine) period(def Definition, trigger Trigger, occupant *model.User) (calendar.Period, error) {
	switch def.Frequency {
	case Monthly:
		return e.calendar.CurrentMonth(), nil
	case Semesterly:
		return e.calendar.CurrentSemester().Period(), nil
	}

	if occupant.Role == model.RoleGuest {
		if occupant.GuestProfile == nil {
			return calendar.Period{}, fmt.Errorf("guest %d has no stay window: %w", occupant.ID, apperr.ErrInvalidDateRange)
		}
		stay := calendar.Period{
			From: calendar.Date(occupant.GuestProfile.VisitStartDate),
			To:   calendar.Date(occupant.GuestProfile.VisitEndDate),
		}
		if !stay.To.After(stay.From) {
			return calendar.Period{}, fmt.Errorf("guest %d stay %s: %w", occupant.ID, stay, apperr.ErrInvalidDateRange)
		}
		return stay, nil
	}

	if trigger == TriggerRegistration && occupant.StudentProfile != nil {
		return calendar.DayOf(occupant.StudentProfile.RegisteredOn), nil
	}
	return calendar.DayOf(e.calendar.Now()), nil
}

func isPricingError(err error) bool {
	return errors.Is(err, apperr.ErrNoRoomContext) ||
		errors.Is(err, apperr.ErrInvalidDateRange) ||
		errors.Is(err, apperr.ErrInvalidDefinition)
}
