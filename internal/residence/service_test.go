package residence

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"residence-billing-backend/config"
	"residence-billing-backend/internal/apperr"
	"residence-billing-backend/internal/billing"
	"residence-billing-backend/internal/calendar"
	"residence-billing-backend/internal/dbtest"
	"residence-billing-backend/internal/model"
	"residence-billing-backend/internal/notification"
	"residence-billing-backend/internal/store"
)

type discard struct{}

func (discard) Dispatch(notification.Event) {}

type serviceFixture struct {
	db      *gorm.DB
	service *Service
	double  model.RoomType
	single  model.RoomType
	roomA   model.Room
	roomB   model.Room
	roomC   model.Room
	guests  model.Room
}

func newServiceFixture(t *testing.T) *serviceFixture {
	gdb := dbtest.Open(t)
	cal, err := calendar.NewProvider(calendar.FixedClock(time.Date(2025, 9, 3, 9, 0, 0, 0, time.UTC)), "")
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()

	f := &serviceFixture{db: gdb}
	f.service = NewService(store.NewGormStore(gdb), cal, discard{}, config.BillingConfig{PaymentDeadlineDays: 10}, logger)

	dorm := dbtest.Dormitory(t, gdb, "North Hall")
	f.double = dbtest.RoomType(t, gdb, "double", 2, "50.00", "5000.00")
	f.single = dbtest.RoomType(t, gdb, "single", 1, "80.00", "7000.00")
	f.roomA = dbtest.Room(t, gdb, dorm, f.double, "101", model.RoleStudent, 0)
	f.roomB = dbtest.Room(t, gdb, dorm, f.double, "102", model.RoleStudent, 0)
	f.roomC = dbtest.Room(t, gdb, dorm, f.single, "103", model.RoleStudent, 0)
	f.guests = dbtest.Room(t, gdb, dorm, f.double, "G1", model.RoleGuest, 0)

	dbtest.PaymentType(t, gdb, model.PaymentType{
		Name: "housing", Frequency: "semesterly", CalculationMethod: "room_semester_rate",
		TargetRole: model.RoleStudent, TriggerEvent: "registration",
	})
	dbtest.PaymentType(t, gdb, model.PaymentType{
		Name: "room upgrade", Frequency: "once", CalculationMethod: "fixed", FixedAmount: dbtest.Money("40"),
		TargetRole: model.RoleStudent, TriggerEvent: "room_type_change",
	})
	dbtest.PaymentType(t, gdb, model.PaymentType{
		Name: "guest stay", Frequency: "once", CalculationMethod: "room_daily_rate",
		TargetRole: model.RoleGuest, TriggerEvent: "new_booking",
	})
	return f
}

func TestAssignBedTriggersBilling(t *testing.T) {
	ctx := context.Background()

	t.Run("First bed registers a student", func(t *testing.T) {
		f := newServiceFixture(t)
		alice := dbtest.Student(t, f.db, "alice", model.AccountPending, dbtest.Day(2025, 9, 2))

		got, err := f.service.AssignBed(ctx, alice.ID, f.roomA.Beds[0].ID)
		require.NoError(t, err)
		assert.Equal(t, billing.TriggerRegistration, got.Trigger)
		require.NotNil(t, got.Billing)
		require.Len(t, got.Billing.Created, 1)
		assert.True(t, dbtest.Money("5000").Equal(got.Billing.Created[0].Amount))

		// Re-assigning the same bed bills nothing.
		again, err := f.service.AssignBed(ctx, alice.ID, f.roomA.Beds[0].ID)
		require.NoError(t, err)
		assert.True(t, again.Unchanged)
		assert.Nil(t, again.Billing)
	})

	t.Run("First bed books a guest", func(t *testing.T) {
		f := newServiceFixture(t)
		guest := dbtest.Guest(t, f.db, "visitor", model.AccountPending, dbtest.Day(2025, 9, 3), dbtest.Day(2025, 9, 6), true)

		got, err := f.service.AssignBed(ctx, guest.ID, f.guests.Beds[0].ID)
		require.NoError(t, err)
		assert.Equal(t, billing.TriggerNewBooking, got.Trigger)
		require.Len(t, got.Billing.Created, 1)
		assert.True(t, dbtest.Money("150").Equal(got.Billing.Created[0].Amount))
	})

	t.Run("Moving within the same room type bills nothing", func(t *testing.T) {
		f := newServiceFixture(t)
		alice := dbtest.Student(t, f.db, "alice", model.AccountActive, dbtest.Day(2025, 9, 2))
		dbtest.Occupy(t, f.db, f.roomA.Beds[0], alice.ID)

		got, err := f.service.AssignBed(ctx, alice.ID, f.roomB.Beds[0].ID)
		require.NoError(t, err)
		assert.Empty(t, got.Trigger)
		assert.Nil(t, got.Billing)
	})

	t.Run("Moving to another room type is a room type change", func(t *testing.T) {
		f := newServiceFixture(t)
		alice := dbtest.Student(t, f.db, "alice", model.AccountActive, dbtest.Day(2025, 9, 2))
		dbtest.Occupy(t, f.db, f.roomA.Beds[0], alice.ID)

		got, err := f.service.AssignBed(ctx, alice.ID, f.roomC.Beds[0].ID)
		require.NoError(t, err)
		assert.Equal(t, billing.TriggerRoomTypeChange, got.Trigger)
		require.Len(t, got.Billing.Created, 1)
		assert.True(t, dbtest.Money("40").Equal(got.Billing.Created[0].Amount))
		assert.Equal(t, dbtest.Day(2025, 9, 3), got.Billing.Created[0].DateFrom)
	})

	t.Run("Unavailable bed surfaces immediately", func(t *testing.T) {
		f := newServiceFixture(t)
		alice := dbtest.Student(t, f.db, "alice", model.AccountActive, dbtest.Day(2025, 9, 2))
		bob := dbtest.Student(t, f.db, "bob", model.AccountActive, dbtest.Day(2025, 9, 2))
		dbtest.Occupy(t, f.db, f.roomA.Beds[0], alice.ID)

		_, err := f.service.AssignBed(ctx, bob.ID, f.roomA.Beds[0].ID)
		assert.ErrorIs(t, err, apperr.ErrBedUnavailable)
	})
}

func TestDefinePaymentType(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	ok := &model.PaymentType{
		Name: "catering", Frequency: "monthly", CalculationMethod: "fixed", FixedAmount: dbtest.Money("120"),
		TargetRole: model.RoleStudent, TriggerEvent: "new_month",
	}
	require.NoError(t, f.service.DefinePaymentType(ctx, ok))
	assert.NotZero(t, ok.ID)

	bad := &model.PaymentType{
		Name: "broken", Frequency: "once", CalculationMethod: "fixed",
		TargetRole: model.RoleStudent, TriggerEvent: "new_month",
	}
	assert.ErrorIs(t, f.service.DefinePaymentType(ctx, bad), apperr.ErrInvalidDefinition)
}
