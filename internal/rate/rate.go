// Package rate turns a charge's calculation method into an amount.
package rate

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"residence-billing-backend/internal/apperr"
	"residence-billing-backend/internal/calendar"
	"residence-billing-backend/internal/model"
)

// Method names as stored on payment types.
const (
	MethodFixed            = "fixed"
	MethodRoomDailyRate    = "room_daily_rate"
	MethodRoomSemesterRate = "room_semester_rate"
)

// Calculation is one of Fixed, RoomDailyRate or RoomSemesterRate.
type Calculation interface {
	Method() string
	isCalculation()
}

// Fixed charges the same amount regardless of room or stay.
type Fixed struct {
	Amount decimal.Decimal
}

// RoomDailyRate charges the room type's daily rate for every started day of the stay.
type RoomDailyRate struct{}

// RoomSemesterRate charges the room type's semester rate.
type RoomSemesterRate struct{}

func (Fixed) Method() string            { return MethodFixed }
func (RoomDailyRate) Method() string    { return MethodRoomDailyRate }
func (RoomSemesterRate) Method() string { return MethodRoomSemesterRate }

func (Fixed) isCalculation()            {}
func (RoomDailyRate) isCalculation()    {}
func (RoomSemesterRate) isCalculation() {}

// CalculationFor maps a stored method name to its variant.
func CalculationFor(method string, fixed decimal.Decimal) (Calculation, error) {
	switch method {
	case MethodFixed:
		return Fixed{Amount: fixed}, nil
	case MethodRoomDailyRate:
		return RoomDailyRate{}, nil
	case MethodRoomSemesterRate:
		return RoomSemesterRate{}, nil
	default:
		return nil, fmt.Errorf("unknown calculation method %q: %w", method, apperr.ErrInvalidDefinition)
	}
}

// Context is what a calculation may look at. RoomType is nil for an
// occupant without a bed.
type Context struct {
	RoomType *model.RoomType
	Stay     calendar.Period
}

// Resolve computes the amount owed. It reads current rates every time.
func Resolve(calc Calculation, ctx Context) (decimal.Decimal, error) {
	switch c := calc.(type) {
	case Fixed:
		return c.Amount, nil
	case RoomSemesterRate:
		if ctx.RoomType == nil {
			return decimal.Zero, apperr.ErrNoRoomContext
		}
		return ctx.RoomType.SemesterRate, nil
	case RoomDailyRate:
		if ctx.RoomType == nil {
			return decimal.Zero, apperr.ErrNoRoomContext
		}
		days, err := NumberOfDays(ctx.Stay)
		if err != nil {
			return decimal.Zero, err
		}
		return ctx.RoomType.DailyRate.Mul(decimal.NewFromInt(days)), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported calculation %T: %w", calc, apperr.ErrInvalidDefinition)
	}
}

// NumberOfDays counts the days of a stay, rounding a partial day up.
func NumberOfDays(stay calendar.Period) (int64, error) {
	if !stay.To.After(stay.From) {
		return 0, fmt.Errorf("stay %s: %w", stay, apperr.ErrInvalidDateRange)
	}
	hours := stay.To.Sub(stay.From).Hours()
	return int64(math.Ceil(hours / 24)), nil
}
