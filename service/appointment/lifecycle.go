package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/KAsare1/Lexconsult-server/service/application"
	"gorm.io/gorm"
)

// Booking is a client's request for a lawyer's slot.
type Booking struct {
	LawyerID        uint   `json:"lawyerId"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"durationMinutes"`
	Notes           string `json:"notes"`
}

func (b *Booking) normalize(clientID uint, now time.Time) error {
	day, err := time.Parse(models.DateLayout, b.Date)
	if err != nil {
		return utils.Validation("date must be formatted YYYY-MM-DD")
	}
	at, err := time.Parse(models.TimeLayout, b.Time)
	if err != nil {
		return utils.Validation("time must be formatted HH:MM")
	}
	if b.DurationMinutes != 30 && b.DurationMinutes != 60 {
		return utils.Validation("durationMinutes must be 30 or 60")
	}
	if b.LawyerID == 0 {
		return utils.Validation("lawyerId is required")
	}
	if b.LawyerID == clientID {
		return utils.Validation("you cannot book an appointment with yourself")
	}
	today := now.UTC().Truncate(24 * time.Hour)
	if day.Before(today) {
		return utils.Validation("date is in the past")
	}

	b.Date = day.Format(models.DateLayout)
	b.Time = at.Format(models.TimeLayout)
	return nil
}

// Create books a pending appointment. The pre-check reports a taken slot;
// the unique slot index settles concurrent bookings.
func Create(ctx context.Context, db *gorm.DB, clientID uint, b Booking) (*models.Appointment, error) {
	if err := b.normalize(clientID, time.Now()); err != nil {
		return nil, err
	}

	appt := &models.Appointment{
		ClientID:        clientID,
		LawyerID:        b.LawyerID,
		Date:            b.Date,
		Time:            b.Time,
		DurationMinutes: b.DurationMinutes,
		Status:          models.AppointmentPending,
		VideoCallStatus: models.CallNotStarted,
		Notes:           b.Notes,
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := application.ApprovedFor(tx, b.LawyerID); err != nil {
			return err
		}

		var taken int64
		if err := tx.Model(&models.Appointment{}).
			Where("lawyer_id = ? AND appointment_date = ? AND appointment_time = ? AND status IN ?",
				b.LawyerID, b.Date, b.Time, activeStatuses).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return utils.Conflict("slot is already booked")
		}

		return tx.Create(appt).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, utils.Conflict("slot is already booked")
	}
	if err != nil {
		return nil, utils.StoreError(err, "appointment")
	}
	return appt, nil
}

var activeStatuses = []models.AppointmentStatus{models.AppointmentPending, models.AppointmentConfirmed}

// transitions is the adjacency graph for status updates. Completion only
// happens through payment.
var transitions = map[models.AppointmentStatus][]models.AppointmentStatus{
	models.AppointmentPending:   {models.AppointmentConfirmed, models.AppointmentCancelled},
	models.AppointmentConfirmed: {models.AppointmentCancelled},
}

func canTransition(from, to models.AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UpdateStatus moves an appointment along the status graph on behalf of
// its lawyer or an admin. Confirming creates the pending payment and
// cancelling a confirmed appointment fails it, in the same transaction.
func UpdateStatus(ctx context.Context, db *gorm.DB, id uint, status models.AppointmentStatus, actor utils.Actor) (*models.Appointment, error) {
	if !status.Valid() {
		return nil, utils.Validation("invalid status %q", status)
	}

	var appt models.Appointment
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&appt, id).Error; err != nil {
			return utils.StoreError(err, "appointment")
		}
		if !utils.ActsFor(actor, appt.LawyerID) {
			return utils.Forbidden("only the lawyer or an admin can change the status")
		}
		if !canTransition(appt.Status, status) {
			return utils.InvalidState("cannot move appointment from %s to %s", appt.Status, status)
		}

		from := appt.Status
		res := tx.Model(&appt).Where("status = ?", from).Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.Conflict("appointment was modified concurrently")
		}
		appt.Status = status

		switch {
		case from == models.AppointmentPending && status == models.AppointmentConfirmed:
			rate, err := application.ApprovedFor(tx, appt.LawyerID)
			if err != nil {
				return err
			}
			return tx.Create(&models.Payment{
				AppointmentID: appt.ID,
				ClientID:      appt.ClientID,
				LawyerID:      appt.LawyerID,
				Amount:        rate.RateFor(appt.DurationMinutes),
				Status:        models.PaymentPending,
			}).Error
		case from == models.AppointmentConfirmed && status == models.AppointmentCancelled:
			return tx.Model(&models.Payment{}).
				Where("appointment_id = ? AND status = ?", appt.ID, models.PaymentPending).
				Update("status", models.PaymentFailed).Error
		}
		return nil
	})
	if err != nil {
		return nil, utils.StoreError(err, "appointment")
	}
	return &appt, nil
}

func loadForParticipant(tx *gorm.DB, id uint, actor utils.Actor) (*models.Appointment, error) {
	var appt models.Appointment
	if err := tx.First(&appt, id).Error; err != nil {
		return nil, utils.StoreError(err, "appointment")
	}
	if !appt.HasParticipant(actor.ID) {
		return nil, utils.Forbidden("only the client or the lawyer can join this call")
	}
	return &appt, nil
}

// StartCall marks the video call in progress. Calling it again while the
// call runs returns the appointment unchanged.
func StartCall(ctx context.Context, db *gorm.DB, id uint, actor utils.Actor) (*models.Appointment, error) {
	appt, _, err := startCall(ctx, db, id, actor)
	return appt, err
}

// startCall also reports whether this call actually started it.
func startCall(ctx context.Context, db *gorm.DB, id uint, actor utils.Actor) (*models.Appointment, bool, error) {
	var appt *models.Appointment
	changed := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if appt, err = loadForParticipant(tx, id, actor); err != nil {
			return err
		}
		if appt.Status != models.AppointmentCompleted {
			return utils.InvalidState("the call opens once the appointment is paid")
		}
		switch appt.VideoCallStatus {
		case models.CallInProgress:
			return nil
		case models.CallEnded:
			return utils.InvalidState("the call has already ended")
		}

		now := time.Now().UTC()
		res := tx.Model(appt).Where("video_call_status = ?", appt.VideoCallStatus).Updates(map[string]interface{}{
			"video_call_status":     models.CallInProgress,
			"video_call_start_time": now,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// the other participant got there first
			return tx.First(appt, id).Error
		}
		appt.VideoCallStatus = models.CallInProgress
		appt.VideoCallStartTime = &now
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, utils.StoreError(err, "appointment")
	}
	return appt, changed, nil
}

func EndCall(ctx context.Context, db *gorm.DB, id uint, actor utils.Actor) (*models.Appointment, error) {
	var appt *models.Appointment
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if appt, err = loadForParticipant(tx, id, actor); err != nil {
			return err
		}
		if appt.VideoCallStatus != models.CallInProgress {
			return utils.InvalidState("no call is in progress")
		}

		now := time.Now().UTC()
		appt.VideoCallStatus = models.CallEnded
		appt.VideoCallEndTime = &now
		return tx.Model(appt).Updates(map[string]interface{}{
			"video_call_status":   models.CallEnded,
			"video_call_end_time": now,
		}).Error
	})
	if err != nil {
		return nil, utils.StoreError(err, "appointment")
	}
	return appt, nil
}

func ListForLawyer(ctx context.Context, db *gorm.DB, lawyerID uint, actor utils.Actor) ([]models.Appointment, error) {
	if !utils.ActsFor(actor, lawyerID) {
		return nil, utils.Forbidden("you can only view your own appointments")
	}
	var appts []models.Appointment
	err := db.WithContext(ctx).Preload("Client").
		Where("lawyer_id = ?", lawyerID).
		Order("appointment_date ASC, appointment_time ASC").
		Find(&appts).Error
	if err != nil {
		return nil, utils.Internal(err, "error retrieving appointments")
	}
	return appts, nil
}

// RateCard is the lawyer's current pricing, shown next to each booking.
type RateCard struct {
	HourlyRate     float64               `json:"hourly_rate"`
	HalfHourlyRate float64               `json:"half_hourly_rate"`
	Specialization models.Specialization `json:"specialization"`
}

type ClientAppointment struct {
	models.Appointment
	RateCard *RateCard `json:"rate_card,omitempty"`
}

func ListForClient(ctx context.Context, db *gorm.DB, clientID uint, actor utils.Actor) ([]ClientAppointment, error) {
	if !utils.ActsFor(actor, clientID) {
		return nil, utils.Forbidden("you can only view your own appointments")
	}

	db = db.WithContext(ctx)
	var appts []models.Appointment
	err := db.Preload("Lawyer").
		Where("client_id = ?", clientID).
		Order("appointment_date ASC, appointment_time ASC").
		Find(&appts).Error
	if err != nil {
		return nil, utils.Internal(err, "error retrieving appointments")
	}

	lawyerIDs := make([]uint, 0, len(appts))
	for _, a := range appts {
		lawyerIDs = append(lawyerIDs, a.LawyerID)
	}
	var apps []models.LawyerApplication
	if len(lawyerIDs) > 0 {
		if err := db.Where("user_id IN ? AND status = ?", lawyerIDs, models.ApplicationApproved).
			Find(&apps).Error; err != nil {
			return nil, utils.Internal(err, "error retrieving rate cards")
		}
	}
	cards := make(map[uint]*RateCard, len(apps))
	for _, app := range apps {
		cards[app.UserID] = &RateCard{
			HourlyRate:     app.HourlyRate,
			HalfHourlyRate: app.HalfHourlyRate,
			Specialization: app.Specialization,
		}
	}

	out := make([]ClientAppointment, len(appts))
	for i, a := range appts {
		out[i] = ClientAppointment{Appointment: a, RateCard: cards[a.LawyerID]}
	}
	return out, nil
}

// Get returns an appointment visible to its participants and admins.
func Get(ctx context.Context, db *gorm.DB, id uint, actor utils.Actor) (*models.Appointment, error) {
	var appt models.Appointment
	if err := db.WithContext(ctx).Preload("Client").Preload("Lawyer").First(&appt, id).Error; err != nil {
		return nil, utils.StoreError(err, "appointment")
	}
	if !utils.ActsFor(actor, appt.ClientID, appt.LawyerID) {
		return nil, utils.Forbidden("you are not part of this appointment")
	}
	return &appt, nil
}

// UpdateNotes lets the client edit notes while the booking is pending.
func UpdateNotes(ctx context.Context, db *gorm.DB, id uint, notes string, actor utils.Actor) (*models.Appointment, error) {
	var appt models.Appointment
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&appt, id).Error; err != nil {
			return utils.StoreError(err, "appointment")
		}
		if appt.ClientID != actor.ID {
			return utils.Forbidden("only the client can edit notes")
		}
		if appt.Status != models.AppointmentPending {
			return utils.InvalidState("notes can only change while the appointment is pending")
		}
		appt.Notes = notes
		return tx.Model(&appt).Update("notes", notes).Error
	})
	if err != nil {
		return nil, utils.StoreError(err, "appointment")
	}
	return &appt, nil
}

// BookedTimes lists the start times a lawyer already holds on a date.
func BookedTimes(ctx context.Context, db *gorm.DB, lawyerID uint, date string) ([]string, error) {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, utils.Validation("date must be formatted YYYY-MM-DD")
	}
	times := []string{}
	err := db.WithContext(ctx).Model(&models.Appointment{}).
		Where("lawyer_id = ? AND appointment_date = ? AND status IN ?", lawyerID, date, activeStatuses).
		Order("appointment_time ASC").
		Pluck("appointment_time", &times).Error
	if err != nil {
		return nil, utils.Internal(err, "error retrieving availability")
	}
	return times, nil
}
