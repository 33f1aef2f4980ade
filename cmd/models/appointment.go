package models

import (
	"time"

	"gorm.io/gorm"
)

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentPending, AppointmentConfirmed, AppointmentCompleted, AppointmentCancelled:
		return true
	}
	return false
}

// Active statuses hold the slot.
func (s AppointmentStatus) Active() bool {
	return s == AppointmentPending || s == AppointmentConfirmed
}

type VideoCallStatus string

const (
	CallNotStarted VideoCallStatus = "not_started"
	CallInProgress VideoCallStatus = "in_progress"
	CallEnded      VideoCallStatus = "ended"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Appointment struct {
	gorm.Model
	ClientID           uint              `gorm:"column:client_id;not null;index" json:"client_id"`
	LawyerID           uint              `gorm:"column:lawyer_id;not null;index" json:"lawyer_id"`
	Date               string            `gorm:"column:appointment_date;size:10;not null" json:"date"`
	Time               string            `gorm:"column:appointment_time;size:5;not null" json:"time"`
	DurationMinutes    int               `gorm:"column:duration_minutes;not null" json:"duration_minutes"`
	Status             AppointmentStatus `gorm:"column:status;size:20;not null;default:pending;index" json:"status"`
	VideoCallStatus    VideoCallStatus   `gorm:"column:video_call_status;size:20;not null;default:not_started" json:"video_call_status"`
	VideoCallStartTime *time.Time        `gorm:"column:video_call_start_time" json:"video_call_start_time,omitempty"`
	VideoCallEndTime   *time.Time        `gorm:"column:video_call_end_time" json:"video_call_end_time,omitempty"`
	Notes              string            `gorm:"column:notes;type:text" json:"notes,omitempty"`

	Client *User `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Lawyer *User `gorm:"foreignKey:LawyerID" json:"lawyer,omitempty"`
}

// HasParticipant reports whether userID is the client or the lawyer.
func (a *Appointment) HasParticipant(userID uint) bool {
	return a.ClientID == userID || a.LawyerID == userID
}
