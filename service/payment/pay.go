package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/KAsare1/Lexconsult-server/service/application"
	"gorm.io/gorm"
)

// Pay settles a confirmed appointment for its client. The payment row and
// the appointment move to completed together or not at all.
func Pay(ctx context.Context, db *gorm.DB, appointmentID uint, actor utils.Actor, method string) (*models.Payment, *models.Appointment, error) {
	method = strings.TrimSpace(method)

	var appt models.Appointment
	var payment models.Payment
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&appt, appointmentID).Error; err != nil {
			return utils.StoreError(err, "appointment")
		}
		if appt.ClientID != actor.ID {
			return utils.Forbidden("only the client can pay for this appointment")
		}

		err := tx.Where("appointment_id = ?", appt.ID).First(&payment).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if found && payment.Status == models.PaymentCompleted {
			return utils.Conflict("appointment is already paid")
		}
		if appt.Status != models.AppointmentConfirmed {
			return utils.InvalidState("only confirmed appointments can be paid")
		}
		if method == "" {
			return utils.Validation("paymentMethod is required")
		}

		if !found {
			rate, err := application.ApprovedFor(tx, appt.LawyerID)
			if err != nil {
				return err
			}
			payment = models.Payment{
				AppointmentID: appt.ID,
				ClientID:      appt.ClientID,
				LawyerID:      appt.LawyerID,
				Amount:        rate.RateFor(appt.DurationMinutes),
				Status:        models.PaymentPending,
			}
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		res := tx.Model(&payment).Where("status <> ?", models.PaymentCompleted).Updates(map[string]interface{}{
			"status":         models.PaymentCompleted,
			"payment_method": method,
			"paid_at":        now,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.Conflict("appointment is already paid")
		}
		payment.Status = models.PaymentCompleted
		payment.PaymentMethod = method
		payment.PaidAt = &now

		res = tx.Model(&appt).Where("status = ?", models.AppointmentConfirmed).Update("status", models.AppointmentCompleted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.InvalidState("only confirmed appointments can be paid")
		}
		appt.Status = models.AppointmentCompleted
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, utils.Conflict("appointment is already paid")
		}
		return nil, nil, utils.StoreError(err, "payment")
	}
	return &payment, &appt, nil
}
