package application

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type Handler struct {
	utils.Responder
	db       *gorm.DB
	auth     *utils.Authenticator
	uploader *utils.Uploader
}

func NewHandler(db *gorm.DB, auth *utils.Authenticator, uploader *utils.Uploader) *Handler {
	return &Handler{Responder: auth.Responder, db: db, auth: auth, uploader: uploader}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	r := router.PathPrefix("/lawyer-applications").Subrouter()
	r.HandleFunc("/submit", h.auth.Required(h.Submit)).Methods("POST")
	r.HandleFunc("/approved", h.GetApproved).Methods("GET")
	r.HandleFunc("/mine", h.auth.Required(h.GetMine)).Methods("GET")
	r.HandleFunc("/lawyer/{userId:[0-9]+}", h.GetLawyerProfile).Methods("GET")
	r.HandleFunc("", h.auth.Admin(utils.ReviewApplications, h.List)).Methods("GET")
	r.HandleFunc("/{id:[0-9]+}/status", h.auth.Admin(utils.ReviewApplications, h.SetStatus)).Methods("PUT")
	r.HandleFunc("/{id:[0-9]+}", h.auth.Admin(utils.ReviewApplications, h.Delete)).Methods("DELETE")
}

// Submit takes a multipart form with the credentials and both images.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())

	if err := r.ParseMultipartForm(2 * utils.MaxImageSize); err != nil {
		h.Error(w, utils.Validation("invalid multipart form"))
		return
	}

	sub, err := submissionFromForm(r)
	if err != nil {
		h.Error(w, err)
		return
	}

	var written []string
	fail := func(err error) {
		h.uploader.Cleanup(written...)
		h.Error(w, err)
	}

	if sub.CertificationImage, err = h.uploader.SaveFormImage(r, "certificationImage", "certifications"); err != nil {
		fail(err)
		return
	}
	written = append(written, sub.CertificationImage)
	if sub.PersonalImage, err = h.uploader.SaveFormImage(r, "personalImage", "images"); err != nil {
		fail(err)
		return
	}
	written = append(written, sub.PersonalImage)

	app, err := Submit(r.Context(), h.db, actor.ID, sub)
	if err != nil {
		fail(err)
		return
	}
	log.Printf("Lawyer application %d submitted by user %d", app.ID, actor.ID)

	h.JSON(w, http.StatusCreated, app)
}

func submissionFromForm(r *http.Request) (Submission, error) {
	years, err := strconv.Atoi(r.FormValue("yearsOfExperience"))
	if err != nil {
		return Submission{}, utils.Validation("yearsOfExperience must be a whole number")
	}
	hourly, err := strconv.ParseFloat(r.FormValue("hourlyRate"), 64)
	if err != nil {
		return Submission{}, utils.Validation("hourlyRate must be a number")
	}
	halfHourly, err := strconv.ParseFloat(r.FormValue("halfHourlyRate"), 64)
	if err != nil {
		return Submission{}, utils.Validation("halfHourlyRate must be a number")
	}
	return Submission{
		BarNumber:         strings.TrimSpace(r.FormValue("barNumber")),
		YearsOfExperience: years,
		Specialization:    models.Specialization(r.FormValue("specialization")),
		Bio:               r.FormValue("bio"),
		HourlyRate:        hourly,
		HalfHourlyRate:    halfHourly,
	}, nil
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathID(r, "id")
	if err != nil {
		h.Error(w, err)
		return
	}
	var req struct {
		Status models.ApplicationStatus `json:"status"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.Error(w, err)
		return
	}

	app, err := SetStatus(r.Context(), h.db, id, req.Status)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, app)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := utils.PathID(r, "id")
	if err != nil {
		h.Error(w, err)
		return
	}

	app, err := Delete(r.Context(), h.db, id)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.uploader.Cleanup(app.CertificationImage, app.PersonalImage)

	h.JSON(w, http.StatusOK, map[string]string{"message": "Application deleted successfully"})
}

func (h *Handler) GetApproved(w http.ResponseWriter, r *http.Request) {
	profiles, err := Approved(r.Context(), h.db, 0)
	if err != nil {
		h.Error(w, utils.Internal(err, "error retrieving lawyers"))
		return
	}
	h.JSON(w, http.StatusOK, profiles)
}

func (h *Handler) GetLawyerProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.PathID(r, "userId")
	if err != nil {
		h.Error(w, err)
		return
	}
	profiles, err := Approved(r.Context(), h.db, userID)
	if err != nil {
		h.Error(w, utils.Internal(err, "error retrieving lawyer"))
		return
	}
	if len(profiles) == 0 {
		h.Error(w, utils.NotFound("lawyer not found"))
		return
	}
	h.JSON(w, http.StatusOK, profiles[0])
}

func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())

	var apps []models.LawyerApplication
	if err := h.db.WithContext(r.Context()).Where("user_id = ?", actor.ID).Order("created_at DESC").Find(&apps).Error; err != nil {
		h.Error(w, utils.Internal(err, "error retrieving applications"))
		return
	}
	h.JSON(w, http.StatusOK, apps)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := utils.PageFromQuery(r)

	query := h.db.WithContext(r.Context()).Model(&models.LawyerApplication{})
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.Error(w, utils.Internal(err, "error counting applications"))
		return
	}

	var apps []models.LawyerApplication
	if err := page.Scope(query).Preload("User").Order("created_at DESC").Find(&apps).Error; err != nil {
		h.Error(w, utils.Internal(err, "error retrieving applications"))
		return
	}
	h.JSON(w, http.StatusOK, page.Body("applications", apps, total))
}
