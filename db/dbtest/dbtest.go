// Package dbtest opens a migrated SQLite database per test and seeds rows.
package dbtest

import (
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/db"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const Password = "secret123"

func New(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on&_busy_timeout=5000"
	cfg := db.Config()
	cfg.Logger = logger.Default.LogMode(logger.Silent)

	gdb, err := gorm.Open(sqlite.Open(dsn), cfg)
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func User(t *testing.T, gdb *gorm.DB, handle string, role models.Role) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)

	u := &models.User{Name: handle, Handle: handle, PasswordHash: string(hash), Role: role}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

// Lawyer creates a lawyer with an approved application charging hourly and
// half the hourly rate.
func Lawyer(t *testing.T, gdb *gorm.DB, handle string, hourly float64) (*models.User, *models.LawyerApplication) {
	t.Helper()
	u := User(t, gdb, handle, models.RoleLawyer)
	app := &models.LawyerApplication{
		UserID:             u.ID,
		BarNumber:          "BAR-" + handle,
		YearsOfExperience:  5,
		Specialization:     models.SpecCivil,
		CertificationImage: "/uploads/certifications/" + handle + ".png",
		PersonalImage:      "/uploads/images/" + handle + ".png",
		HourlyRate:         hourly,
		HalfHourlyRate:     hourly / 2,
		Status:             models.ApplicationApproved,
	}
	require.NoError(t, gdb.Create(app).Error)
	return u, app
}

var slots atomic.Int64

// Appointment books a fresh slot so fixtures never collide on the slot index.
func Appointment(t *testing.T, gdb *gorm.DB, clientID, lawyerID uint, status models.AppointmentStatus) *models.Appointment {
	t.Helper()
	n := slots.Add(1)
	a := &models.Appointment{
		ClientID:        clientID,
		LawyerID:        lawyerID,
		Date:            time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(n)).Format(models.DateLayout),
		Time:            "10:00",
		DurationMinutes: 60,
		Status:          status,
		VideoCallStatus: models.CallNotStarted,
	}
	require.NoError(t, gdb.Create(a).Error)
	return a
}
