package ws_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/db/dbtest"
	"github.com/KAsare1/Lexconsult-server/service/apitest"
	"github.com/KAsare1/Lexconsult-server/service/ws"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToUser(t *testing.T) {
	env := apitest.New(t)
	hub := ws.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	ws.NewHandler(hub, env.Auth, nil).RegisterRoutes(env.Router)

	srv := httptest.NewServer(env.Router)
	t.Cleanup(srv.Close)

	u := dbtest.User(t, env.DB, "kofi", models.RoleUser)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?token=" + env.Token(u)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connected(u.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.SendToUser(u.ID, ws.Message{Type: "appointment.booked", Data: map[string]string{"appointmentId": "7"}}))

	var msg ws.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "appointment.booked", msg.Type)
	assert.Equal(t, "7", msg.Data["appointmentId"])
}

func TestHandshakeNeedsToken(t *testing.T) {
	env := apitest.New(t)
	hub := ws.NewHub()
	ws.NewHandler(hub, env.Auth, nil).RegisterRoutes(env.Router)

	srv := httptest.NewServer(env.Router)
	t.Cleanup(srv.Close)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStoppedHubClosesConnections(t *testing.T) {
	env := apitest.New(t)
	hub := ws.NewHub()
	go hub.Run()
	ws.NewHandler(hub, env.Auth, nil).RegisterRoutes(env.Router)

	srv := httptest.NewServer(env.Router)
	t.Cleanup(srv.Close)

	u := dbtest.User(t, env.DB, "kofi", models.RoleUser)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?token=" + env.Token(u)

	live, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer live.Close()
	require.Eventually(t, func() bool { return hub.Connected(u.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Stop()
	require.Eventually(t, func() bool { return hub.Connected(u.ID) == 0 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, live.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = live.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure), "got %v", err)

	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
