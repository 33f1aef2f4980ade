package admin

import (
	"log"
	"net/http"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type AdminHandler struct {
	utils.Responder
	db       *gorm.DB
	auth     *utils.Authenticator
	uploader *utils.Uploader
}

func NewAdminHandler(db *gorm.DB, auth *utils.Authenticator, uploader *utils.Uploader) *AdminHandler {
	return &AdminHandler{Responder: auth.Responder, db: db, auth: auth, uploader: uploader}
}

// RegisterRoutes registers the admin routes. Every route needs ManageUsers.
func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	r := router.PathPrefix("/admin").Subrouter()
	r.HandleFunc("/users", h.auth.Admin(utils.ManageUsers, h.GetUsers)).Methods("GET")
	r.HandleFunc("/users/{id:[0-9]+}", h.auth.Admin(utils.ManageUsers, h.DeleteUser)).Methods("DELETE")
	r.HandleFunc("/users/{id:[0-9]+}/role", h.auth.Admin(utils.ManageUsers, h.UpdateRole)).Methods("PUT")
	r.HandleFunc("/stats", h.auth.Admin(utils.ManageUsers, h.GetStats)).Methods("GET")
}

func (h *AdminHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	page := utils.PageFromQuery(r)
	users, total, err := ListUsers(r.Context(), h.db, models.Role(r.URL.Query().Get("role")), page)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, page.Body("users", users, total))
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		h.Error(w, err)
		return
	}

	files, err := DeleteUser(r.Context(), h.db, id)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.uploader.Cleanup(files...)
	log.Printf("User %d deleted by admin %d", id, actor.ID)

	h.JSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathID(r, "id")
	if err != nil {
		h.Error(w, err)
		return
	}
	var req struct {
		Role models.Role `json:"role"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.Error(w, err)
		return
	}

	user, err := SetRole(r.Context(), h.db, id, req.Role)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, user)
}

func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := CollectStats(r.Context(), h.db)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, stats)
}
