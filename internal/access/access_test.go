package access

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"residence-billing-backend/internal/apperr"
	"residence-billing-backend/internal/calendar"
	"residence-billing-backend/internal/dbtest"
	"residence-billing-backend/internal/model"
	"residence-billing-backend/internal/store"
)

func TestCanAccess(t *testing.T) {
	fall2025 := calendar.Semester{Year: 2025, Term: calendar.Fall}

	testCases := []struct {
		name     string
		rec      *model.SemesterPayment
		expected bool
	}{
		{name: "No record", rec: nil, expected: false},
		{
			name:     "Payment approved, dormitory pending",
			rec:      &model.SemesterPayment{Semester: "2025-fall", PaymentStatus: model.ApprovalApproved, DormitoryStatus: model.ApprovalPending},
			expected: false,
		},
		{
			name:     "Both approved for a past semester",
			rec:      &model.SemesterPayment{Semester: "2023-fall", PaymentStatus: model.ApprovalApproved, DormitoryStatus: model.ApprovalApproved},
			expected: false,
		},
		{
			name:     "Dormitory rejected",
			rec:      &model.SemesterPayment{Semester: "2025-fall", PaymentStatus: model.ApprovalApproved, DormitoryStatus: model.ApprovalRejected},
			expected: false,
		},
		{
			name:     "Both approved for the current semester",
			rec:      &model.SemesterPayment{Semester: "2025-fall", PaymentStatus: model.ApprovalApproved, DormitoryStatus: model.ApprovalApproved},
			expected: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CanAccess(tc.rec, fall2025))
		})
	}
}

type accessFixture struct {
	db      *gorm.DB
	service *Service
	admin   model.User
}

func newAccessFixture(t *testing.T, now time.Time, override string) *accessFixture {
	gdb := dbtest.Open(t)
	cal, err := calendar.NewProvider(calendar.FixedClock(now), override)
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	return &accessFixture{
		db:      gdb,
		service: NewService(store.NewGormStore(gdb), cal, logger),
		admin:   dbtest.Staff(t, gdb, "warden", model.RoleAdmin),
	}
}

func TestCanAccessDormitory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 10, 15, 8, 0, 0, 0, time.UTC)

	t.Run("Staff and visitors bypass approvals", func(t *testing.T) {
		f := newAccessFixture(t, now, "")
		visitor := dbtest.Staff(t, f.db, "inspector", model.RoleVisitor)
		for _, id := range []int64{f.admin.ID, visitor.ID} {
			ok, err := f.service.CanAccessDormitory(ctx, id)
			require.NoError(t, err)
			assert.True(t, ok)
		}
	})

	t.Run("Student needs both approvals for the current semester", func(t *testing.T) {
		f := newAccessFixture(t, now, "")
		alice := dbtest.Student(t, f.db, "alice", model.AccountActive, dbtest.Day(2023, 9, 1))
		dbtest.SemesterRecord(t, f.db, model.SemesterPayment{
			UserID: alice.ID, Semester: "2023-fall", DueDate: dbtest.Day(2023, 9, 11),
			PaymentStatus: model.ApprovalApproved, DormitoryStatus: model.ApprovalApproved,
		})

		ok, err := f.service.CanAccessDormitory(ctx, alice.ID)
		require.NoError(t, err)
		assert.False(t, ok, "approvals from 2023-fall do not carry over")

		current := dbtest.SemesterRecord(t, f.db, model.SemesterPayment{
			UserID: alice.ID, Semester: "2025-fall", DueDate: dbtest.Day(2025, 9, 11),
			PaymentStatus: model.ApprovalApproved,
		})
		ok, err = f.service.CanAccessDormitory(ctx, alice.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = f.service.SetApproval(ctx, current.ID, model.TrackDormitory, model.ApprovalApproved, f.admin.ID, "room inspected")
		require.NoError(t, err)
		ok, err = f.service.CanAccessDormitory(ctx, alice.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Semester override pins the current semester", func(t *testing.T) {
		f := newAccessFixture(t, now, "2026-spring")
		alice := dbtest.Student(t, f.db, "alice", model.AccountActive, dbtest.Day(2025, 9, 1))
		dbtest.SemesterRecord(t, f.db, model.SemesterPayment{
			UserID: alice.ID, Semester: "2025-fall", DueDate: dbtest.Day(2025, 9, 11),
			PaymentStatus: model.ApprovalApproved, DormitoryStatus: model.ApprovalApproved,
		})

		ok, err := f.service.CanAccessDormitory(ctx, alice.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Guest needs approval and a current visit", func(t *testing.T) {
		f := newAccessFixture(t, now, "")
		current := dbtest.Guest(t, f.db, "g-current", model.AccountActive, dbtest.Day(2025, 10, 10), dbtest.Day(2025, 10, 15), true)
		unapproved := dbtest.Guest(t, f.db, "g-unapproved", model.AccountActive, dbtest.Day(2025, 10, 10), dbtest.Day(2025, 10, 20), false)
		past := dbtest.Guest(t, f.db, "g-past", model.AccountActive, dbtest.Day(2025, 10, 1), dbtest.Day(2025, 10, 14), true)

		expected := map[int64]bool{current.ID: true, unapproved.ID: false, past.ID: false}
		for id, want := range expected {
			ok, err := f.service.CanAccessDormitory(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, want, ok, "guest %d", id)
		}
	})

	t.Run("Unknown user", func(t *testing.T) {
		f := newAccessFixture(t, now, "")
		_, err := f.service.CanAccessDormitory(ctx, 404)
		assert.ErrorIs(t, err, apperr.ErrRecordNotFound)
	})
}

func TestSetApproval(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 10, 15, 8, 0, 0, 0, time.UTC)

	setup := func(t *testing.T) (*accessFixture, model.User, model.SemesterPayment) {
		f := newAccessFixture(t, now, "")
		alice := dbtest.Student(t, f.db, "alice", model.AccountActive, dbtest.Day(2025, 9, 1))
		rec := dbtest.SemesterRecord(t, f.db, model.SemesterPayment{
			UserID: alice.ID, Semester: "2025-fall", DueDate: dbtest.Day(2025, 9, 11),
		})
		return f, alice, rec
	}

	t.Run("Approver decides a track with a note", func(t *testing.T) {
		f, _, rec := setup(t)
		got, err := f.service.SetApproval(ctx, rec.ID, model.TrackDormitory, model.ApprovalRejected, f.admin.ID, "missing documents")
		require.NoError(t, err)
		assert.Equal(t, model.ApprovalRejected, got.DormitoryStatus)
		assert.Equal(t, "missing documents", got.DormitoryNote)
		require.NotNil(t, got.DormitoryApprovedBy)
		assert.Equal(t, f.admin.ID, *got.DormitoryApprovedBy)
		assert.Equal(t, model.ApprovalPending, got.PaymentStatus)

		got, err = f.service.SetApproval(ctx, rec.ID, model.TrackDormitory, model.ApprovalApproved, f.admin.ID, "")
		require.NoError(t, err)
		assert.Equal(t, model.ApprovalApproved, got.DormitoryStatus)
		assert.Equal(t, "missing documents", got.DormitoryNote)
	})

	t.Run("Repeating the decision is a no-op", func(t *testing.T) {
		f, _, rec := setup(t)
		_, err := f.service.SetApproval(ctx, rec.ID, model.TrackPayment, model.ApprovalApproved, f.admin.ID, "")
		require.NoError(t, err)
		got, err := f.service.SetApproval(ctx, rec.ID, model.TrackPayment, model.ApprovalApproved, f.admin.ID, "")
		require.NoError(t, err)
		assert.Equal(t, model.ApprovalApproved, got.PaymentStatus)
	})

	t.Run("Pending is not a decision", func(t *testing.T) {
		f, _, rec := setup(t)
		_, err := f.service.SetApproval(ctx, rec.ID, model.TrackPayment, model.ApprovalPending, f.admin.ID, "")
		assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	})

	t.Run("Occupants cannot approve", func(t *testing.T) {
		f, alice, rec := setup(t)
		_, err := f.service.SetApproval(ctx, rec.ID, model.TrackPayment, model.ApprovalApproved, alice.ID, "")
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("Unknown track", func(t *testing.T) {
		f, _, rec := setup(t)
		_, err := f.service.SetApproval(ctx, rec.ID, "kitchen", model.ApprovalApproved, f.admin.ID, "")
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	})
}
