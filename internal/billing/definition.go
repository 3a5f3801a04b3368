package billing

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"residence-billing-backend/internal/apperr"
	"residence-billing-backend/internal/model"
	"residence-billing-backend/internal/rate"
)

// Trigger is an event that makes the engine evaluate payment types.
type Trigger string

const (
	TriggerRegistration   Trigger = "registration"
	TriggerNewBooking     Trigger = "new_booking"
	TriggerRoomTypeChange Trigger = "room_type_change"
	TriggerNewMonth       Trigger = "new_month"
	TriggerNewSemester    Trigger = "new_semester"
)

// IsCalendar reports whether the trigger is fired by the scheduler rather
// than by something happening to one occupant.
func (t Trigger) IsCalendar() bool {
	return t == TriggerNewMonth || t == TriggerNewSemester
}

func (t Trigger) valid() bool {
	switch t {
	case TriggerRegistration, TriggerNewBooking, TriggerRoomTypeChange, TriggerNewMonth, TriggerNewSemester:
		return true
	}
	return false
}

// ParseTrigger validates a trigger name.
func ParseTrigger(s string) (Trigger, error) {
	t := Trigger(s)
	if !t.valid() {
		return "", fmt.Errorf("%q: %w", s, apperr.ErrInvalidTrigger)
	}
	return t, nil
}

// Frequency decides which billing period a charge covers.
type Frequency string

const (
	Once       Frequency = "once"
	Monthly    Frequency = "monthly"
	Semesterly Frequency = "semesterly"
)

// Definition is a validated payment type.
type Definition struct {
	ID          int64
	Name        string
	Frequency   Frequency
	Calculation rate.Calculation
	TargetRole  model.Role
	Trigger     Trigger
}

type definitionFields struct {
	Name       string `validate:"required,max=128"`
	Frequency  string `validate:"oneof=once monthly semesterly"`
	Method     string `validate:"oneof=fixed room_daily_rate room_semester_rate"`
	TargetRole string `validate:"oneof=student guest"`
	Trigger    string `validate:"oneof=registration new_booking room_type_change new_month new_semester"`
}

var validate = validator.New()

// NewDefinition checks a stored payment type and converts it. Calendar
// triggers must carry the frequency they roll over: new_month is monthly
// and new_semester is semesterly.
func NewDefinition(pt model.PaymentType) (Definition, error) {
	fields := definitionFields{
		Name:       pt.Name,
		Frequency:  pt.Frequency,
		Method:     pt.CalculationMethod,
		TargetRole: string(pt.TargetRole),
		Trigger:    pt.TriggerEvent,
	}
	if err := validate.Struct(fields); err != nil {
		return Definition{}, fmt.Errorf("payment type %q: %v: %w", pt.Name, err, apperr.ErrInvalidDefinition)
	}
	if pt.CalculationMethod == rate.MethodFixed && pt.FixedAmount.IsNegative() {
		return Definition{}, fmt.Errorf("payment type %q: negative fixed amount: %w", pt.Name, apperr.ErrInvalidDefinition)
	}

	trigger, frequency := Trigger(pt.TriggerEvent), Frequency(pt.Frequency)
	if (trigger == TriggerNewMonth && frequency != Monthly) || (trigger == TriggerNewSemester && frequency != Semesterly) {
		return Definition{}, fmt.Errorf("payment type %q: %s cannot bill %s: %w", pt.Name, trigger, frequency, apperr.ErrInvalidDefinition)
	}

	calc, err := rate.CalculationFor(pt.CalculationMethod, pt.FixedAmount)
	if err != nil {
		return Definition{}, err
	}
	return Definition{
		ID:          pt.ID,
		Name:        pt.Name,
		Frequency:   frequency,
		Calculation: calc,
		TargetRole:  pt.TargetRole,
		Trigger:     trigger,
	}, nil
}
