//go:build integration

package db_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/KAsare1/Lexconsult-server/db"
	"github.com/KAsare1/Lexconsult-server/service/appointment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("lexconsult"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	gdb, err := db.NewPSQLStorage(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(gdb) })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func TestConcurrentBookingOnPostgres(t *testing.T) {
	gdb := startPostgres(t)

	lawyer := models.User{Name: "Adjoa", Handle: "adjoa", PasswordHash: "x", Role: models.RoleLawyer}
	require.NoError(t, gdb.Create(&lawyer).Error)
	require.NoError(t, gdb.Create(&models.LawyerApplication{
		UserID: lawyer.ID, BarNumber: "B1", YearsOfExperience: 3, Specialization: models.SpecTax,
		CertificationImage: "c", PersonalImage: "p", HourlyRate: 100, HalfHourlyRate: 60,
		Status: models.ApplicationApproved,
	}).Error)

	const n = 16
	clients := make([]models.User, n)
	for i := range clients {
		clients[i] = models.User{Name: "Client", Handle: fmt.Sprintf("client%d", i), PasswordHash: "x", Role: models.RoleUser}
		require.NoError(t, gdb.Create(&clients[i]).Error)
	}

	booking := appointment.Booking{LawyerID: lawyer.ID, Date: "2032-02-02", Time: "11:00", DurationMinutes: 60}

	start := make(chan struct{})
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = appointment.Create(context.Background(), gdb, clients[i].ID, booking)
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, utils.IsKind(err, utils.KindConflict), "got %v", err)
	}
	assert.Equal(t, 1, wins)

	var active int64
	require.NoError(t, gdb.Model(&models.Appointment{}).
		Where("lawyer_id = ? AND status IN ?", lawyer.ID, []models.AppointmentStatus{models.AppointmentPending, models.AppointmentConfirmed}).
		Count(&active).Error)
	assert.EqualValues(t, 1, active)
}
