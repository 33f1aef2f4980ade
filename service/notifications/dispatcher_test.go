package notifications_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/db/dbtest"
	"github.com/KAsare1/Lexconsult-server/service/apitest"
	"github.com/KAsare1/Lexconsult-server/service/notifications"
	"github.com/KAsare1/Lexconsult-server/service/ws"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePush struct {
	mu       sync.Mutex
	messages []*expo.PushMessage
}

func (f *fakePush) Publish(msg *expo.PushMessage) (expo.PushResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return expo.PushResponse{Status: "ok"}, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeMailer) Send(to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to+": "+subject)
	return nil
}

func TestDeliverFansOut(t *testing.T) {
	gdb := dbtest.New(t)
	push := &fakePush{}
	mailer := &fakeMailer{}
	d := notifications.NewDispatcher(gdb, ws.NewHub(), push, mailer)

	client := dbtest.User(t, gdb, "kofi", models.RoleUser)
	require.NoError(t, gdb.Model(client).Update("email", "kofi@example.com").Error)
	lawyer, _ := dbtest.Lawyer(t, gdb, "adjoa", 100)
	require.NoError(t, gdb.Create(&models.Device{UserID: client.ID, Token: "ExponentPushToken[abc123]"}).Error)
	require.NoError(t, gdb.Create(&models.Device{UserID: client.ID, Token: "not-a-token"}).Error)

	appt := dbtest.Appointment(t, gdb, client.ID, lawyer.ID, models.AppointmentConfirmed)
	d.Deliver(context.Background(), notifications.AppointmentEvent(notifications.EventAppointmentUpdated, appt, "Appointment confirmed", "See you soon."))

	require.Len(t, push.messages, 1)
	msg := push.messages[0]
	assert.Equal(t, []expo.ExponentPushToken{"ExponentPushToken[abc123]"}, msg.To)
	assert.Equal(t, fmt.Sprint(appt.ID), msg.Data["appointmentId"])
	assert.Equal(t, notifications.EventAppointmentUpdated, msg.Data["type"])

	assert.Equal(t, []string{"kofi@example.com: Appointment confirmed"}, mailer.sent)

	var devices int64
	require.NoError(t, gdb.Model(&models.Device{}).Where("user_id = ?", client.ID).Count(&devices).Error)
	assert.EqualValues(t, 1, devices, "malformed token is removed")

	statuses := map[uint]string{}
	var history []models.NotificationHistory
	require.NoError(t, gdb.Find(&history).Error)
	for _, h := range history {
		statuses[h.UserID] = h.Status
	}
	assert.Equal(t, map[uint]string{client.ID: "sent", lawyer.ID: "skipped"}, statuses)
}

func TestPublishIsAsync(t *testing.T) {
	gdb := dbtest.New(t)
	d := notifications.NewDispatcher(gdb, nil, &fakePush{}, nil)
	u := dbtest.User(t, gdb, "kofi", models.RoleUser)

	for i := 0; i < 3; i++ {
		d.Publish(notifications.Event{Type: "test", UserIDs: []uint{u.ID}, Title: "hi"})
	}
	d.Wait()

	var n int64
	require.NoError(t, gdb.Model(&models.NotificationHistory{}).Where("user_id = ?", u.ID).Count(&n).Error)
	assert.EqualValues(t, 3, n)
}

func TestDeviceRoutes(t *testing.T) {
	env := apitest.New(t)
	notifications.NewNotificationHandler(env.DB, env.Auth).RegisterRoutes(env.Router)
	owner := dbtest.User(t, env.DB, "kofi", models.RoleUser)
	other := dbtest.User(t, env.DB, "esi", models.RoleUser)

	rec := env.Do(http.MethodPost, "/devices", map[string]string{"token": "garbage"}, owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := map[string]string{"token": "ExponentPushToken[xyz]", "deviceName": "phone"}
	rec = env.Do(http.MethodPost, "/devices", body, owner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body["deviceName"] = "renamed"
	rec = env.Do(http.MethodPost, "/devices", body, owner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.Do(http.MethodGet, "/devices", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	var devices []models.Device
	apitest.Decode(t, rec, &devices)
	require.Len(t, devices, 1)
	assert.Equal(t, "renamed", devices[0].DeviceName)

	path := fmt.Sprintf("/devices/%d", devices[0].ID)
	rec = env.Do(http.MethodDelete, path, nil, other)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.Do(http.MethodDelete, path, nil, owner)
	assert.Equal(t, http.StatusOK, rec.Code)
}
