package video

import (
	"net/http"

	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type Handler struct {
	utils.Responder
	db     *gorm.DB
	auth   *utils.Authenticator
	issuer *Issuer
}

func NewHandler(db *gorm.DB, auth *utils.Authenticator, issuer *Issuer) *Handler {
	return &Handler{Responder: auth.Responder, db: db, auth: auth, issuer: issuer}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/video/token/{appointmentId:[0-9]+}", h.auth.Required(h.GetToken)).Methods("GET")
}

func (h *Handler) GetToken(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())
	id, err := utils.PathID(r, "appointmentId")
	if err != nil {
		h.Error(w, err)
		return
	}

	cred, err := h.issuer.Issue(r.Context(), h.db, id, actor)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, cred)
}
