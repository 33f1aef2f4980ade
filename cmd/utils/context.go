package utils

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"gorm.io/gorm"
)

type contextKey string

const actorKey contextKey = "actor"

// Actor is the authenticated caller of a request.
type Actor struct {
	ID   uint
	Role models.Role
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}

// Authenticator turns a bearer token into an Actor. The role comes from the
// user row, so a stale token never carries a revoked role.
type Authenticator struct {
	Responder
	tokens *TokenIssuer
	db     *gorm.DB
}

func NewAuthenticator(tokens *TokenIssuer, db *gorm.DB, rs Responder) *Authenticator {
	return &Authenticator{Responder: rs, tokens: tokens, db: db}
}

func (a *Authenticator) Tokens() *TokenIssuer { return a.tokens }

// Resolve validates a raw token and loads its user.
func (a *Authenticator) Resolve(ctx context.Context, tokenString string) (Actor, error) {
	claims, err := a.tokens.Parse(tokenString)
	if err != nil {
		return Actor{}, Unauthorized("invalid token")
	}

	var user models.User
	if err := a.db.WithContext(ctx).Select("id", "role").First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Actor{}, Unauthorized("user no longer exists")
		}
		return Actor{}, Internal(err, "error loading user")
	}
	return Actor{ID: user.ID, Role: user.Role}, nil
}

func (a *Authenticator) Required(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			a.Error(w, Unauthorized("authorization header required"))
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		actor, err := a.Resolve(r.Context(), tokenString)
		if err != nil {
			a.Error(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	}
}

// Admin requires a session whose role grants c.
func (a *Authenticator) Admin(c Capability, next http.HandlerFunc) http.HandlerFunc {
	return a.Required(RequireCapability(a.Responder, c, next))
}
