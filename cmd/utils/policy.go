package utils

import (
	"net/http"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
)

type Capability int

const (
	ManageUsers Capability = iota + 1
	ReviewApplications
	ManageBlogs
	ModerateContent
	ViewAllAppointments
	ViewAllPayments
)

var capabilities = map[models.Role]map[Capability]bool{
	models.RoleAdmin: {
		ManageUsers:         true,
		ReviewApplications:  true,
		ManageBlogs:         true,
		ModerateContent:     true,
		ViewAllAppointments: true,
		ViewAllPayments:     true,
	},
}

func Can(role models.Role, c Capability) bool {
	return capabilities[role][c]
}

// ActsFor is true when the actor is an admin or is one of ids.
func ActsFor(actor Actor, ids ...uint) bool {
	if actor.IsAdmin() {
		return true
	}
	for _, id := range ids {
		if id != 0 && actor.ID == id {
			return true
		}
	}
	return false
}

// RequireCapability must run behind Authenticator.Required.
func RequireCapability(rs Responder, c Capability, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			rs.Error(w, Unauthorized("authentication required"))
			return
		}
		if !Can(actor.Role, c) {
			rs.Error(w, Forbidden("insufficient permissions"))
			return
		}
		next.ServeHTTP(w, r)
	}
}
