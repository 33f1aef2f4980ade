package models

import (
	"time"

	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment is the ledger row for one appointment.
type Payment struct {
	gorm.Model
	AppointmentID uint          `gorm:"column:appointment_id;not null;uniqueIndex" json:"appointment_id"`
	ClientID      uint          `gorm:"column:client_id;not null;index" json:"client_id"`
	LawyerID      uint          `gorm:"column:lawyer_id;not null;index" json:"lawyer_id"`
	Amount        float64       `gorm:"column:amount;not null" json:"amount"`
	PaymentMethod string        `gorm:"column:payment_method;size:50" json:"payment_method,omitempty"`
	Status        PaymentStatus `gorm:"column:status;size:20;not null;default:pending;index" json:"status"`
	PaidAt        *time.Time    `gorm:"column:paid_at" json:"paid_at,omitempty"`

	Appointment *Appointment `gorm:"foreignKey:AppointmentID" json:"appointment,omitempty"`
}
