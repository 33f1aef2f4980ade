package user_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/KAsare1/Lexconsult-server/db/dbtest"
	"github.com/KAsare1/Lexconsult-server/service/apitest"
	"github.com/KAsare1/Lexconsult-server/service/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func setup(t *testing.T, rps float64, burst int) (*apitest.Env, *fakeMailer) {
	env := apitest.New(t)
	mailer := &fakeMailer{}
	limiter := utils.NewRateLimiter(rps, burst, env.Auth.Responder)
	user.NewHandler(env.DB, env.Auth, limiter, mailer, env.Uploader).RegisterRoutes(env.Router)
	return env, mailer
}

type session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func TestSignupAndLogin(t *testing.T) {
	env, _ := setup(t, 1000, 1000)

	rec := env.Do("POST", "/auth/signup", map[string]string{
		"name": "Ama", "handle": "ama", "password": "secret123",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var signup session
	apitest.Decode(t, rec, &signup)
	assert.NotEmpty(t, signup.Token)
	assert.Equal(t, models.RoleUser, signup.User.Role)

	claims, err := env.Auth.Tokens().Parse(signup.Token)
	require.NoError(t, err)
	assert.Equal(t, signup.User.ID, claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)

	rec = env.Do("POST", "/auth/login", map[string]string{"handle": "ama", "password": "secret123"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.Do("POST", "/auth/login", map[string]string{"handle": "ama", "password": "wrong-pass"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", apitest.ErrorCode(t, rec))
}

func TestSignupValidation(t *testing.T) {
	env, _ := setup(t, 1000, 1000)
	dbtest.User(t, env.DB, "taken", models.RoleUser)

	tests := []struct {
		name   string
		body   map[string]string
		status int
		code   string
	}{
		{"missing handle", map[string]string{"name": "A", "password": "secret123"}, http.StatusBadRequest, "validation_error"},
		{"short password", map[string]string{"name": "A", "handle": "a", "password": "123"}, http.StatusBadRequest, "validation_error"},
		{"duplicate handle", map[string]string{"name": "A", "handle": "taken", "password": "secret123"}, http.StatusConflict, "conflict"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.Do("POST", "/auth/signup", tt.body, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, apitest.ErrorCode(t, rec))
		})
	}
}

func TestProfileRequiresLiveUser(t *testing.T) {
	env, _ := setup(t, 1000, 1000)
	u := dbtest.User(t, env.DB, "kofi", models.RoleUser)

	rec := env.Do("GET", "/profile", nil, u)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.Do("PUT", "/profile", map[string]string{"name": "Kofi Mensah", "email": "kofi@example.com"}, u)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.User
	apitest.Decode(t, rec, &updated)
	assert.Equal(t, "Kofi Mensah", updated.Name)

	token := env.Token(u)
	require.NoError(t, env.DB.Unscoped().Delete(&models.User{}, u.ID).Error)

	req := httptest.NewRequest("GET", "/api/v1/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = env.Serve(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.Do("GET", "/profile", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordReset(t *testing.T) {
	env, mailer := setup(t, 1000, 1000)
	u := dbtest.User(t, env.DB, "esi", models.RoleUser)
	require.NoError(t, env.DB.Model(u).Update("email", "esi@example.com").Error)

	rec := env.Do("POST", "/auth/reset-password", map[string]string{"handle": "esi"}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.Do("POST", "/auth/reset-password", map[string]string{"handle": "nobody"}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "esi@example.com", mailer.sent[0].to)
	raw := extractCode(mailer.sent[0].body)
	require.NotEmpty(t, raw)

	rec = env.Do("POST", "/auth/reset-password/confirm", map[string]string{"token": raw, "password": "newpass1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.Do("POST", "/auth/reset-password/confirm", map[string]string{"token": raw, "password": "newpass2"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.Do("POST", "/auth/login", map[string]string{"handle": "esi", "password": "newpass1"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginIsRateLimited(t *testing.T) {
	env, _ := setup(t, 0.001, 2)
	body := map[string]string{"handle": "ghost", "password": "whatever"}

	assert.Equal(t, http.StatusUnauthorized, env.Do("POST", "/auth/login", body, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.Do("POST", "/auth/login", body, nil).Code)

	rec := env.Do("POST", "/auth/login", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", apitest.ErrorCode(t, rec))
}

func extractCode(body string) string {
	const marker = "code is: "
	i := strings.Index(body, marker)
	if i < 0 {
		return ""
	}
	rest := body[i+len(marker):]
	return strings.TrimSuffix(strings.Fields(rest)[0], ".")
}
