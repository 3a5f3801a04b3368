// Package dbtest opens throwaway SQLite databases and seeds them for tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"residence-billing-backend/internal/db"
	"residence-billing-backend/internal/model"
)

var seq atomic.Int64

// Open returns a migrated in-memory database private to the test. The pool
// is limited to one connection, so code under test must run every statement
// of a transaction on the transaction handle.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:residence_test_%d?mode=memory&cache=shared", seq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// Money parses a decimal literal and panics on malformed input.
func Money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Day returns midnight UTC of the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func Dormitory(t *testing.T, gdb *gorm.DB, name string) model.Dormitory {
	t.Helper()
	dorm := model.Dormitory{Name: name}
	require.NoError(t, gdb.Create(&dorm).Error)
	return dorm
}

func RoomType(t *testing.T, gdb *gorm.DB, name string, capacity int, daily, semester string) model.RoomType {
	t.Helper()
	rt := model.RoomType{Name: name, Capacity: capacity, DailyRate: Money(daily), SemesterRate: Money(semester)}
	require.NoError(t, gdb.Create(&rt).Error)
	return rt
}

// Room creates a room with all of its beds. A zero quota means full capacity.
func Room(t *testing.T, gdb *gorm.DB, dorm model.Dormitory, rt model.RoomType, number string, occupantType model.Role, quota int) model.Room {
	t.Helper()
	if quota == 0 {
		quota = rt.Capacity
	}
	room := model.Room{DormitoryID: dorm.ID, RoomTypeID: rt.ID, Number: number, OccupantType: occupantType, Quota: quota}
	require.NoError(t, gdb.Omit(clause.Associations).Create(&room).Error)

	room.Beds = make([]model.Bed, rt.Capacity)
	for i := range room.Beds {
		room.Beds[i] = model.Bed{RoomID: room.ID, BedNumber: i + 1}
	}
	require.NoError(t, gdb.Omit(clause.Associations).Create(&room.Beds).Error)
	room.RoomType = rt
	return room
}

func Student(t *testing.T, gdb *gorm.DB, username string, status model.AccountStatus, registeredOn time.Time) model.User {
	t.Helper()
	user := model.User{
		Username:       username,
		Role:           model.RoleStudent,
		AccountStatus:  status,
		StudentProfile: &model.StudentProfile{StudentNumber: username, RegisteredOn: registeredOn},
	}
	require.NoError(t, gdb.Create(&user).Error)
	return user
}

func Guest(t *testing.T, gdb *gorm.DB, username string, status model.AccountStatus, start, end time.Time, approved bool) model.User {
	t.Helper()
	user := model.User{
		Username:      username,
		Role:          model.RoleGuest,
		AccountStatus: status,
		GuestProfile:  &model.GuestProfile{VisitStartDate: start, VisitEndDate: end},
	}
	require.NoError(t, gdb.Create(&user).Error)
	if approved {
		// default:false would swallow a false on create, so flip it afterwards.
		require.NoError(t, gdb.Model(&model.GuestProfile{}).Where("user_id = ?", user.ID).Update("is_approved", true).Error)
		user.GuestProfile.IsApproved = true
	}
	return user
}

func Staff(t *testing.T, gdb *gorm.DB, username string, role model.Role) model.User {
	t.Helper()
	user := model.User{Username: username, Role: role, AccountStatus: model.AccountActive}
	require.NoError(t, gdb.Create(&user).Error)
	return user
}

func PaymentType(t *testing.T, gdb *gorm.DB, pt model.PaymentType) model.PaymentType {
	t.Helper()
	require.NoError(t, gdb.Create(&pt).Error)
	return pt
}

// Occupy puts the user in the bed without going through the store.
func Occupy(t *testing.T, gdb *gorm.DB, bed model.Bed, userID int64) {
	t.Helper()
	require.NoError(t, gdb.Model(&model.Bed{}).Where("id = ?", bed.ID).
		Updates(map[string]any{"occupant_id": userID, "is_occupied": true}).Error)
}

func Charge(t *testing.T, gdb *gorm.DB, p model.Payment) model.Payment {
	t.Helper()
	if p.Status == "" {
		p.Status = model.PaymentPending
	}
	require.NoError(t, gdb.Omit(clause.Associations).Create(&p).Error)
	return p
}

func SemesterRecord(t *testing.T, gdb *gorm.DB, rec model.SemesterPayment) model.SemesterPayment {
	t.Helper()
	if rec.PaymentStatus == "" {
		rec.PaymentStatus = model.ApprovalPending
	}
	if rec.DormitoryStatus == "" {
		rec.DormitoryStatus = model.ApprovalPending
	}
	require.NoError(t, gdb.Omit(clause.Associations).Create(&rec).Error)
	return rec
}

// AccountStatus re-reads the stored account status of a user.
func AccountStatus(t *testing.T, gdb *gorm.DB, userID int64) model.AccountStatus {
	t.Helper()
	var user model.User
	require.NoError(t, gdb.Take(&user, userID).Error)
	return user.AccountStatus
}
