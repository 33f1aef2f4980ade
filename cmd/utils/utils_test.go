package utils

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	token, expires, err := issuer.Issue(42, models.RoleLawyer)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.Equal(t, models.RoleLawyer, claims.Role)

	_, err = NewTokenIssuer("other", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsExpiredAndForeignAlgorithms(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := issuer.Issue(1, models.RoleUser)
	require.NoError(t, err)
	_, err = NewTokenIssuer("secret", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1, Role: models.RoleAdmin}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCapabilities(t *testing.T) {
	for _, c := range []Capability{ManageUsers, ReviewApplications, ManageBlogs, ModerateContent, ViewAllAppointments, ViewAllPayments} {
		assert.True(t, Can(models.RoleAdmin, c))
		assert.False(t, Can(models.RoleLawyer, c))
		assert.False(t, Can(models.RoleUser, c))
	}

	admin := Actor{ID: 1, Role: models.RoleAdmin}
	user := Actor{ID: 2, Role: models.RoleUser}
	assert.True(t, ActsFor(admin, 99))
	assert.True(t, ActsFor(user, 5, 2))
	assert.False(t, ActsFor(user, 5))
	assert.False(t, ActsFor(Actor{}, 0))
}

func TestErrorKinds(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(gorm.ErrRecordNotFound))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindForbidden, KindOf(fmt.Errorf("wrapped: %w", Forbidden("no"))))

	err := StoreError(gorm.ErrRecordNotFound, "blog")
	assert.True(t, IsKind(err, KindNotFound))
	assert.Equal(t, "blog not found", err.(*AppError).Message)

	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(KindInvalidState))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(KindRateLimited))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus("unknown"))
}

func TestResponderHidesDetailWhenQuiet(t *testing.T) {
	cause := errors.New("connection refused")

	rec := httptest.NewRecorder()
	Responder{}.Error(rec, Internal(cause, "error loading user"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"internal_error","message":"error loading user"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	Responder{Verbose: true}.Error(rec, Internal(cause, "error loading user"))
	assert.Contains(t, rec.Body.String(), `"detail":"connection refused"`)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2, Responder{})
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"), "limits are per client")
}

func TestRateLimiterIgnoresForwardedForFromClients(t *testing.T) {
	rl := NewRateLimiter(0.001, 1, Responder{})
	handler := rl.Limit(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		handler(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{204, 429, 429, 429, 429}, codes)
}

func TestRateLimiterBehindTrustedProxy(t *testing.T) {
	rl := NewRateLimiter(0.001, 1, Responder{})
	require.NoError(t, rl.TrustProxies([]string{"10.0.0.0/8", "192.0.2.1"}))
	assert.Error(t, rl.TrustProxies([]string{"not-an-ip"}))
	require.NoError(t, rl.TrustProxies([]string{"10.0.0.0/8", "192.0.2.1"}))

	handler := rl.Limit(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	send := func(fwd string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.1.2.3:4000"
		req.Header.Set("X-Forwarded-For", fwd)
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, send("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("1.1.1.1"))
	// a spoofed left-most hop does not change the client the proxy saw
	assert.Equal(t, http.StatusTooManyRequests, send("9.9.9.9, 1.1.1.1, 192.0.2.1"))
	assert.Equal(t, http.StatusNoContent, send("3.3.3.3"))
}
