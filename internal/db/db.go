package db

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"residence-billing-backend/config"
	"residence-billing-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig, log logrus.FieldLogger) (*gorm.DB, error) {
	log = log.WithField("component", "db")
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		dialector = postgres.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Info("Running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.EnforceConstraints && cfg.Driver == "postgres" {
		log.Info("Applying PostgreSQL check constraints...")
		if err := applyPostgresConstraints(db); err != nil {
			log.WithError(err).Warn("Failed to apply some constraints; continuing without them")
		}
	}

	log.WithField("driver", cfg.Driver).Info("Database initialization complete")
	return db, nil
}

// Migrate creates or updates every table the engine uses.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Dormitory{},
		&model.RoomType{},
		&model.Room{},
		&model.User{},
		&model.StudentProfile{},
		&model.GuestProfile{},
		&model.Bed{},
		&model.PaymentType{},
		&model.Payment{},
		&model.SemesterPayment{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func applyPostgresConstraints(db *gorm.DB) error {
	ddls := []string{
		// Occupancy flag and occupant reference must always agree.
		addConstraint("beds", "beds_occupancy_consistent", "CHECK (is_occupied = (occupant_id IS NOT NULL))"),
		addConstraint("rooms", "rooms_quota_non_negative", "CHECK (quota >= 0)"),
		addConstraint("payments", "payments_period_valid", "CHECK (date_from < date_to)"),
		addConstraint("payments", "payments_status_valid",
			"CHECK (status IN ('pending', 'processing', 'completed', 'failed'))"),
		addConstraint("semester_payments", "semester_payments_tracks_valid",
			"CHECK (payment_status IN ('pending', 'approved', 'rejected') AND dormitory_status IN ('pending', 'approved', 'rejected'))"),
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}

func addConstraint(table, name, check string) string {
	return fmt.Sprintf(
		"DO $$ BEGIN ALTER TABLE %s ADD CONSTRAINT %s %s; EXCEPTION WHEN duplicate_object THEN NULL; END $$;",
		table, name, check,
	)
}
