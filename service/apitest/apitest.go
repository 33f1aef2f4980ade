// Package apitest wires handlers onto a router backed by a throwaway database.
package apitest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/KAsare1/Lexconsult-server/db/dbtest"
	"github.com/KAsare1/Lexconsult-server/service/notifications"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const Secret = "test-secret"

type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Auth     *utils.Authenticator
	Uploader *utils.Uploader
	Events   *Recorder
	Router   *mux.Router
}

func New(t *testing.T) *Env {
	t.Helper()
	gdb := dbtest.New(t)
	auth := utils.NewAuthenticator(utils.NewTokenIssuer(Secret, time.Hour), gdb, utils.Responder{Verbose: true})
	router := mux.NewRouter().PathPrefix("/api/v1").Subrouter()
	return &Env{
		T:        t,
		DB:       gdb,
		Auth:     auth,
		Uploader: utils.NewUploader(t.TempDir()),
		Events:   &Recorder{},
		Router:   router,
	}
}

func (e *Env) Token(u *models.User) string {
	e.T.Helper()
	token, _, err := e.Auth.Tokens().Issue(u.ID, u.Role)
	require.NoError(e.T, err)
	return token
}

// Do sends a JSON request as user (nil for anonymous).
func (e *Env) Do(method, path string, body any, user *models.User) *httptest.ResponseRecorder {
	e.T.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+e.Token(user))
	}
	return e.Serve(req)
}

func (e *Env) Serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.Router.ServeHTTP(rec, req)
	return rec
}

// Decode unmarshals a response body into v.
func Decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// ErrorCode extracts error.code from an error response.
func ErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	Decode(t, rec, &body)
	return body.Error.Code
}

// Recorder collects published events.
type Recorder struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *Recorder) Publish(ev notifications.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, ev := range r.events {
		types[i] = ev.Type
	}
	return types
}
