package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: "host=localhost dbname=residence"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Billing.PaymentDeadlineDays)
	assert.Equal(t, 10*24*time.Hour, cfg.Billing.PaymentDeadline())
	assert.Equal(t, "0 0 1 * *", cfg.Scheduler.NewMonthSchedule)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, 500*time.Millisecond, cfg.WorkerPool.RetryBackoff())
	assert.Equal(t, "residence_events", cfg.AMQP.Exchange)
	assert.False(t, cfg.Push.Enabled())
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  driver: sqlite
  dsn: "file:residence.db"
billing:
  payment_deadline_days: 14
  semester_override: "2025-fall"
worker_pool:
  size: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 14, cfg.Billing.PaymentDeadlineDays)
	assert.Equal(t, "2025-fall", cfg.Billing.SemesterOverride)
	assert.Equal(t, 4, cfg.WorkerPool.Size)
}

func TestLoadHonorsZeroPaymentDeadline(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: x
billing:
  payment_deadline_days: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Billing.PaymentDeadlineDays)
	assert.Zero(t, cfg.Billing.PaymentDeadline())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "Missing DSN", body: "server:\n  port: 8080\n"},
		{name: "Unknown driver", body: "database:\n  driver: mysql\n  dsn: x\n"},
		{name: "Port out of range", body: "server:\n  port: 70000\ndatabase:\n  dsn: x\n"},
		{name: "Negative payment deadline", body: "database:\n  dsn: x\nbilling:\n  payment_deadline_days: -3\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
