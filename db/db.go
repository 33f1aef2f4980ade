package db

import (
	"fmt"
	"log"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// slotIndex keeps a lawyer's active bookings unique per date and time.
const slotIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_active_slot
	ON appointments (lawyer_id, appointment_date, appointment_time)
	WHERE status IN ('pending', 'confirmed') AND deleted_at IS NULL`

func NewPSQLStorage(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DB_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), Config())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)

	return db, nil
}

// Config is shared by every dialect the service opens.
func Config() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}

// Models lists every table in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.PasswordResetToken{},
		&models.LawyerApplication{},
		&models.Appointment{},
		&models.Payment{},
		&models.Review{},
		&models.Blog{},
		&models.BlogComment{},
		&models.Device{},
		&models.NotificationHistory{},
	}
}

func Migrate(db *gorm.DB) error {
	log.Println("Starting database migrations...")
	for _, model := range Models() {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("error migrating %T: %w", model, err)
		}
	}
	if err := db.Exec(slotIndex).Error; err != nil {
		return fmt.Errorf("error creating slot index: %w", err)
	}
	log.Println("Migrations completed successfully")
	return nil
}

// Drop removes every table, children first.
func Drop(db *gorm.DB) error {
	tables := Models()
	for i := len(tables) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(tables[i]); err != nil {
			return fmt.Errorf("error dropping %T: %w", tables[i], err)
		}
		log.Printf("Table %T dropped", tables[i])
	}
	return nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	sqlDB.Close()
	log.Println("Database connection closed")
}
