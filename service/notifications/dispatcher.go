package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/service/mail"
	"github.com/KAsare1/Lexconsult-server/service/ws"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"gorm.io/gorm"
)

const (
	EventAppointmentBooked  = "appointment.booked"
	EventAppointmentUpdated = "appointment.status_changed"
	EventPaymentCompleted   = "payment.completed"
	EventCallStarted        = "call.started"
	EventCallEnded          = "call.ended"
)

// Event is something that happened to an appointment, addressed to users.
type Event struct {
	Type    string
	UserIDs []uint
	Title   string
	Body    string
	Data    map[string]string
}

// Publisher accepts events after the change that caused them is committed.
type Publisher interface {
	Publish(ev Event)
}

type PushSender interface {
	Publish(message *expo.PushMessage) (expo.PushResponse, error)
}

// Dispatcher fans events out to the websocket hub, Expo push and e-mail, and
// records one history row per recipient. Failures are logged only.
type Dispatcher struct {
	db   *gorm.DB
	hub  *ws.Hub
	push PushSender
	mail mail.Mailer
	wg   sync.WaitGroup
}

func NewDispatcher(db *gorm.DB, hub *ws.Hub, push PushSender, mailer mail.Mailer) *Dispatcher {
	if push == nil {
		push = expo.NewPushClient(nil)
	}
	return &Dispatcher{db: db, hub: hub, push: push, mail: mailer}
}

func (d *Dispatcher) Publish(ev Event) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		d.Deliver(ctx, ev)
	}()
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) Deliver(ctx context.Context, ev Event) {
	data := make(map[string]string, len(ev.Data)+1)
	for k, v := range ev.Data {
		data[k] = v
	}
	data["type"] = ev.Type

	for _, userID := range ev.UserIDs {
		if d.hub != nil {
			if err := d.hub.SendToUser(userID, ws.Message{Type: ev.Type, Data: data}); err != nil {
				log.Printf("error sending websocket event to user %d: %v", userID, err)
			}
		}

		status := d.pushToUser(ctx, userID, ev.Title, ev.Body, data)
		d.mailUser(ctx, userID, ev.Title, ev.Body)

		dataJSON, _ := json.Marshal(data)
		history := models.NotificationHistory{
			UserID: userID,
			Title:  ev.Title,
			Body:   ev.Body,
			Data:   string(dataJSON),
			Status: status,
			SentAt: time.Now(),
		}
		if err := d.db.WithContext(ctx).Create(&history).Error; err != nil {
			log.Printf("Error creating notification history: %v", err)
		}
	}
}

func (d *Dispatcher) pushToUser(ctx context.Context, userID uint, title, body string, data map[string]string) string {
	var devices []models.Device
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		log.Printf("Error retrieving devices for user %d: %v", userID, err)
		return "failed"
	}
	if len(devices) == 0 {
		return "skipped"
	}

	var tokens []expo.ExponentPushToken
	var invalid []string
	for _, device := range devices {
		token, err := expo.NewExponentPushToken(device.Token)
		if err != nil {
			invalid = append(invalid, device.Token)
			continue
		}
		tokens = append(tokens, token)
	}
	d.cleanupInvalidTokens(ctx, invalid)
	if len(tokens) == 0 {
		return "skipped"
	}

	response, err := d.push.Publish(&expo.PushMessage{
		To:       tokens,
		Body:     body,
		Title:    title,
		Sound:    "default",
		Priority: expo.DefaultPriority,
		Data:     data,
	})
	if err != nil {
		log.Printf("failed to publish notification: %v", err)
		return "failed"
	}
	if err := response.ValidateResponse(); err != nil {
		log.Printf("Push notification validation error: %v", err)
		return "failed"
	}
	return "sent"
}

func (d *Dispatcher) mailUser(ctx context.Context, userID uint, title, body string) {
	if d.mail == nil {
		return
	}
	var user models.User
	if err := d.db.WithContext(ctx).Select("id", "email").First(&user, userID).Error; err != nil || user.Email == "" {
		return
	}
	if err := d.mail.Send(user.Email, title, body); err != nil {
		log.Printf("error mailing user %d: %v", userID, err)
	}
}

func (d *Dispatcher) cleanupInvalidTokens(ctx context.Context, tokens []string) {
	for _, token := range tokens {
		if err := d.db.WithContext(ctx).Unscoped().Where("token = ?", token).Delete(&models.Device{}).Error; err != nil {
			log.Printf("Error cleaning up invalid token %s: %v", token, err)
		}
	}
}

// AppointmentEvent addresses ev to both participants of an appointment.
func AppointmentEvent(kind string, a *models.Appointment, title, body string) Event {
	return Event{
		Type:    kind,
		UserIDs: []uint{a.ClientID, a.LawyerID},
		Title:   title,
		Body:    body,
		Data: map[string]string{
			"appointmentId": fmt.Sprint(a.ID),
			"status":        string(a.Status),
		},
	}
}
