package review

import (
	"net/http"

	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type ReviewHandler struct {
	utils.Responder
	db   *gorm.DB
	auth *utils.Authenticator
}

func NewReviewHandler(db *gorm.DB, auth *utils.Authenticator) *ReviewHandler {
	return &ReviewHandler{Responder: auth.Responder, db: db, auth: auth}
}

func (h *ReviewHandler) RegisterRoutes(router *mux.Router) {
	r := router.PathPrefix("/reviews").Subrouter()
	r.HandleFunc("", h.auth.Required(h.CreateReview)).Methods("POST")
	r.HandleFunc("/lawyer/{lawyerId:[0-9]+}", h.GetLawyerReviews).Methods("GET")
	r.HandleFunc("/{id:[0-9]+}", h.auth.Required(h.UpdateReview)).Methods("PUT")
	r.HandleFunc("/{id:[0-9]+}", h.auth.Required(h.DeleteReview)).Methods("DELETE")
}

func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())
	var in Input
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.Error(w, err)
		return
	}

	review, err := Create(r.Context(), h.db, actor.ID, in)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusCreated, review)
}

func (h *ReviewHandler) GetLawyerReviews(w http.ResponseWriter, r *http.Request) {
	lawyerID, err := utils.PathID(r, "lawyerId")
	if err != nil {
		h.Error(w, err)
		return
	}

	reviews, avg, err := ForLawyer(r.Context(), h.db, lawyerID)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{
		"reviews":       reviews,
		"averageRating": avg,
		"count":         len(reviews),
	})
}

func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		h.Error(w, err)
		return
	}
	var in Update
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.Error(w, err)
		return
	}

	review, err := Edit(r.Context(), h.db, id, actor, in)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, review)
}

func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		h.Error(w, err)
		return
	}

	if err := Remove(r.Context(), h.db, id, actor); err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"message": "Review deleted successfully"})
}
