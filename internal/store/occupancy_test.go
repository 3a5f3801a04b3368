package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"residence-billing-backend/internal/apperr"
	"residence-billing-backend/internal/dbtest"
	"residence-billing-backend/internal/model"
)

type occupancyFixture struct {
	store  Store
	dorm   model.Dormitory
	double model.RoomType
	single model.RoomType
	roomA  model.Room
	roomB  model.Room
	guests model.Room
}

func newOccupancyFixture(t *testing.T) *occupancyFixture {
	gdb := dbtest.Open(t)
	f := &occupancyFixture{store: NewGormStore(gdb)}
	f.dorm = dbtest.Dormitory(t, gdb, "North Hall")
	f.double = dbtest.RoomType(t, gdb, "double", 2, "50.00", "5000.00")
	f.single = dbtest.RoomType(t, gdb, "single", 1, "80.00", "7000.00")
	f.roomA = dbtest.Room(t, gdb, f.dorm, f.double, "101", model.RoleStudent, 0)
	f.roomB = dbtest.Room(t, gdb, f.dorm, f.single, "102", model.RoleStudent, 0)
	f.guests = dbtest.Room(t, gdb, f.dorm, f.single, "G1", model.RoleGuest, 0)
	return f
}

func TestAssignBed(t *testing.T) {
	ctx := context.Background()

	t.Run("First assignment claims the bed", func(t *testing.T) {
		f := newOccupancyFixture(t)
		gdb := f.store.DB()
		alice := dbtest.Student(t, gdb, "alice", model.AccountPending, dbtest.Day(2025, 9, 1))

		got, err := f.store.AssignBed(ctx, alice.ID, f.roomA.Beds[0].ID)
		require.NoError(t, err)
		assert.Nil(t, got.Previous)
		assert.False(t, got.Unchanged)
		assert.True(t, got.Bed.IsOccupied)
		assert.Equal(t, f.double.ID, got.Bed.Room.RoomType.ID)

		current, err := f.store.CurrentBed(ctx, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, current)
		assert.Equal(t, f.roomA.Beds[0].ID, current.ID)
	})

	t.Run("Occupied bed is unavailable", func(t *testing.T) {
		f := newOccupancyFixture(t)
		gdb := f.store.DB()
		alice := dbtest.Student(t, gdb, "alice", model.AccountActive, dbtest.Day(2025, 9, 1))
		bob := dbtest.Student(t, gdb, "bob", model.AccountActive, dbtest.Day(2025, 9, 1))
		dbtest.Occupy(t, gdb, f.roomA.Beds[0], alice.ID)

		_, err := f.store.AssignBed(ctx, bob.ID, f.roomA.Beds[0].ID)
		assert.ErrorIs(t, err, apperr.ErrBedUnavailable)
	})

	t.Run("Reassigning the held bed is a no-op", func(t *testing.T) {
		f := newOccupancyFixture(t)
		gdb := f.store.DB()
		alice := dbtest.Student(t, gdb, "alice", model.AccountActive, dbtest.Day(2025, 9, 1))
		dbtest.Occupy(t, gdb, f.roomA.Beds[0], alice.ID)

		got, err := f.store.AssignBed(ctx, alice.ID, f.roomA.Beds[0].ID)
		require.NoError(t, err)
		assert.True(t, got.Unchanged)
	})

	t.Run("Staff bed is unavailable", func(t *testing.T) {
		f := newOccupancyFixture(t)
		gdb := f.store.DB()
		alice := dbtest.Student(t, gdb, "alice", model.AccountActive, dbtest.Day(2025, 9, 1))
		require.NoError(t, gdb.Model(&model.Bed{}).Where("id = ?", f.roomA.Beds[1].ID).Update("reserved_for_staff", true).Error)

		_, err := f.store.AssignBed(ctx, alice.ID, f.roomA.Beds[1].ID)
		assert.ErrorIs(t, err, apperr.ErrBedUnavailable)
	})

	t.Run("Room for another occupant type is unavailable", func(t *testing.T) {
		f := newOccupancyFixture(t)
		gdb := f.store.DB()
		alice := dbtest.Student(t, gdb, "alice", model.AccountActive, dbtest.Day(2025, 9, 1))

		_, err := f.store.AssignBed(ctx, alice.ID, f.guests.Beds[0].ID)
		assert.ErrorIs(t, err, apperr.ErrBedUnavailable)
	})

	t.Run("Staff accounts cannot hold beds", func(t *testing.T) {
		f := newOccupancyFixture(t)
		admin := dbtest.Staff(t, f.store.DB(), "root", model.RoleAdmin)

		_, err := f.store.AssignBed(ctx, admin.ID, f.roomA.Beds[0].ID)
		assert.ErrorIs(t, err, apperr.ErrBedUnavailable)
	})

	t.Run("Quota caps assignments", func(t *testing.T) {
		f := newOccupancyFixture(t)
		gdb := f.store.DB()
		require.NoError(t, f.store.SetRoomQuota(ctx, f.roomA.ID, 1))
		alice := dbtest.Student(t, gdb, "alice", model.AccountActive, dbtest.Day(2025, 9, 1))
		bob := dbtest.Student(t, gdb, "bob", model.AccountActive, dbtest.Day(2025, 9, 1))
		dbtest.Occupy(t, gdb, f.roomA.Beds[0], alice.ID)

		_, err := f.store.AssignBed(ctx, bob.ID, f.roomA.Beds[1].ID)
		assert.ErrorIs(t, err, apperr.ErrQuotaExceeded)
	})

	t.Run("Moving releases the previous bed", func(t *testing.T) {
		f := newOccupancyFixture(t)
		gdb := f.store.DB()
		alice := dbtest.Student(t, gdb, "alice", model.AccountActive, dbtest.Day(2025, 9, 1))
		dbtest.Occupy(t, gdb, f.roomA.Beds[0], alice.ID)

		got, err := f.store.AssignBed(ctx, alice.ID, f.roomB.Beds[0].ID)
		require.NoError(t, err)
		require.NotNil(t, got.Previous)
		assert.Equal(t, f.roomA.Beds[0].ID, got.Previous.ID)
		assert.Equal(t, f.double.ID, got.Previous.Room.RoomTypeID)

		var old model.Bed
		require.NoError(t, gdb.Take(&old, f.roomA.Beds[0].ID).Error)
		assert.False(t, old.IsOccupied)
		assert.Nil(t, old.OccupantID)

		var held int64
		require.NoError(t, gdb.Model(&model.Bed{}).Where("occupant_id = ?", alice.ID).Count(&held).Error)
		assert.Equal(t, int64(1), held)
	})
}

func TestReleaseBed(t *testing.T) {
	ctx := context.Background()
	f := newOccupancyFixture(t)
	gdb := f.store.DB()
	alice := dbtest.Student(t, gdb, "alice", model.AccountActive, dbtest.Day(2025, 9, 1))
	dbtest.Occupy(t, gdb, f.roomA.Beds[1], alice.ID)

	released, err := f.store.ReleaseBed(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, released)
	assert.Equal(t, f.roomA.Beds[1].ID, released.ID)
	assert.False(t, released.IsOccupied)

	again, err := f.store.ReleaseBed(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestListAvailableBeds(t *testing.T) {
	ctx := context.Background()
	f := newOccupancyFixture(t)
	gdb := f.store.DB()
	alice := dbtest.Student(t, gdb, "alice", model.AccountActive, dbtest.Day(2025, 9, 1))
	dbtest.Occupy(t, gdb, f.roomB.Beds[0], alice.ID)
	require.NoError(t, gdb.Model(&model.Bed{}).Where("id = ?", f.roomA.Beds[1].ID).Update("reserved_for_staff", true).Error)

	rooms, err := f.store.ListAvailableBeds(ctx, f.dorm.ID, model.RoleStudent, BedFilter{})
	require.NoError(t, err)
	require.Len(t, rooms, 1, "full room 102 must be omitted")
	assert.Equal(t, "101", rooms[0].Number)
	require.Len(t, rooms[0].Beds, 1)
	assert.Equal(t, f.roomA.Beds[0].ID, rooms[0].Beds[0].ID)
	assert.Equal(t, "double", rooms[0].RoomType.Name)

	rooms, err = f.store.ListAvailableBeds(ctx, f.dorm.ID, model.RoleStudent, BedFilter{RoomTypeID: f.single.ID})
	require.NoError(t, err)
	assert.Empty(t, rooms)

	rooms, err = f.store.ListAvailableBeds(ctx, f.dorm.ID, model.RoleGuest, BedFilter{})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "G1", rooms[0].Number)
}

func TestCreateRoomMaterializesBeds(t *testing.T) {
	ctx := context.Background()
	f := newOccupancyFixture(t)

	room := &model.Room{DormitoryID: f.dorm.ID, RoomTypeID: f.double.ID, Number: "201", Floor: 2, OccupantType: model.RoleStudent}
	require.NoError(t, f.store.CreateRoom(ctx, room, nil))
	assert.Equal(t, 2, room.Quota)
	require.Len(t, room.Beds, 2)
	assert.Equal(t, 1, room.Beds[0].BedNumber)
	assert.Equal(t, 2, room.Beds[1].BedNumber)

	closed := &model.Room{DormitoryID: f.dorm.ID, RoomTypeID: f.double.ID, Number: "203", OccupantType: model.RoleStudent}
	zero := 0
	require.NoError(t, f.store.CreateRoom(ctx, closed, &zero))
	assert.Equal(t, 0, closed.Quota)
	require.Len(t, closed.Beds, 2)

	alice := dbtest.Student(t, f.store.DB(), "alice", model.AccountPending, dbtest.Day(2025, 9, 1))
	_, err := f.store.AssignBed(ctx, alice.ID, closed.Beds[0].ID)
	assert.ErrorIs(t, err, apperr.ErrQuotaExceeded)

	tooMany := &model.Room{DormitoryID: f.dorm.ID, RoomTypeID: f.double.ID, Number: "202", OccupantType: model.RoleStudent}
	three := 3
	assert.ErrorIs(t, f.store.CreateRoom(ctx, tooMany, &three), apperr.ErrQuotaExceeded)

	assert.ErrorIs(t, f.store.SetRoomQuota(ctx, room.ID, 5), apperr.ErrQuotaExceeded)
	assert.ErrorIs(t, f.store.SetRoomQuota(ctx, 9999, 1), apperr.ErrRecordNotFound)
}

func TestAssignBedConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	f := newOccupancyFixture(t)
	gdb := f.store.DB()
	bed := f.roomA.Beds[0]

	const contenders = 8
	students := make([]model.User, contenders)
	for i := range students {
		students[i] = dbtest.Student(t, gdb, fmt.Sprintf("student-%d", i), model.AccountPending, dbtest.Day(2025, 9, 1))
	}

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i, s := range students {
		wg.Add(1)
		go func(i int, occupantID int64) {
			defer wg.Done()
			_, errs[i] = f.store.AssignBed(ctx, occupantID, bed.ID)
		}(i, s.ID)
	}
	wg.Wait()

	winners, unavailable := 0, 0
	var winner int64
	for i, err := range errs {
		switch {
		case err == nil:
			winners++
			winner = students[i].ID
		case errors.Is(err, apperr.ErrBedUnavailable):
			unavailable++
		default:
			t.Fatalf("unexpected error for %s: %v", students[i].Username, err)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, contenders-1, unavailable)

	var stored model.Bed
	require.NoError(t, gdb.Take(&stored, bed.ID).Error)
	require.NotNil(t, stored.OccupantID)
	assert.Equal(t, winner, *stored.OccupantID)
}
