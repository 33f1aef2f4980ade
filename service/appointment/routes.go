package appointment

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/KAsare1/Lexconsult-server/service/notifications"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type AppointmentHandler struct {
	utils.Responder
	db     *gorm.DB
	auth   *utils.Authenticator
	events notifications.Publisher
}

func NewAppointmentHandler(db *gorm.DB, auth *utils.Authenticator, events notifications.Publisher) *AppointmentHandler {
	return &AppointmentHandler{Responder: auth.Responder, db: db, auth: auth, events: events}
}

func (h *AppointmentHandler) RegisterRoutes(router *mux.Router) {
	r := router.PathPrefix("/appointments").Subrouter()
	r.HandleFunc("", h.auth.Required(h.BookAppointment)).Methods("POST")
	r.HandleFunc("", h.auth.Admin(utils.ViewAllAppointments, h.GetAllAppointments)).Methods("GET")
	r.HandleFunc("/availability", h.GetAvailability).Methods("GET")
	r.HandleFunc("/lawyer/{lawyerId:[0-9]+}", h.auth.Required(h.GetLawyerAppointments)).Methods("GET")
	r.HandleFunc("/client/{clientId:[0-9]+}", h.auth.Required(h.GetClientAppointments)).Methods("GET")
	r.HandleFunc("/{id:[0-9]+}", h.auth.Required(h.GetAppointment)).Methods("GET")
	r.HandleFunc("/{id:[0-9]+}/status", h.auth.Required(h.UpdateStatus)).Methods("PUT")
	r.HandleFunc("/{id:[0-9]+}/notes", h.auth.Required(h.UpdateNotes)).Methods("PUT")
	r.HandleFunc("/{id:[0-9]+}/start-call", h.auth.Required(h.StartCall)).Methods("POST")
	r.HandleFunc("/{id:[0-9]+}/end-call", h.auth.Required(h.EndCall)).Methods("POST")
}

func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())

	var booking Booking
	if err := utils.DecodeJSON(r, &booking); err != nil {
		h.Error(w, err)
		return
	}

	appt, err := Create(r.Context(), h.db, actor.ID, booking)
	if err != nil {
		h.Error(w, err)
		return
	}
	log.Printf("Appointment %d booked with lawyer %d for %s %s", appt.ID, appt.LawyerID, appt.Date, appt.Time)

	h.events.Publish(notifications.AppointmentEvent(notifications.EventAppointmentBooked, appt,
		"New appointment request",
		fmt.Sprintf("A consultation was requested for %s at %s.", appt.Date, appt.Time)))

	h.JSON(w, http.StatusCreated, appt)
}

func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		h.Error(w, err)
		return
	}
	var req struct {
		Status models.AppointmentStatus `json:"status"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.Error(w, err)
		return
	}

	appt, err := UpdateStatus(r.Context(), h.db, id, req.Status, actor)
	if err != nil {
		h.Error(w, err)
		return
	}

	h.events.Publish(notifications.AppointmentEvent(notifications.EventAppointmentUpdated, appt,
		"Appointment "+string(appt.Status),
		fmt.Sprintf("Your consultation on %s at %s is now %s.", appt.Date, appt.Time, appt.Status)))

	h.JSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) StartCall(w http.ResponseWriter, r *http.Request) {
	h.callTransition(w, r, startCall, notifications.EventCallStarted, "Call started")
}

func (h *AppointmentHandler) EndCall(w http.ResponseWriter, r *http.Request) {
	h.callTransition(w, r, func(ctx context.Context, db *gorm.DB, id uint, actor utils.Actor) (*models.Appointment, bool, error) {
		appt, err := EndCall(ctx, db, id, actor)
		return appt, err == nil, err
	}, notifications.EventCallEnded, "Call ended")
}

// callFunc reports whether the call state changed; only changes are announced.
type callFunc func(ctx context.Context, db *gorm.DB, id uint, actor utils.Actor) (*models.Appointment, bool, error)

func (h *AppointmentHandler) callTransition(w http.ResponseWriter, r *http.Request, fn callFunc, event, title string) {
	actor, _ := utils.ActorFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		h.Error(w, err)
		return
	}

	appt, changed, err := fn(r.Context(), h.db, id, actor)
	if err != nil {
		h.Error(w, err)
		return
	}

	if changed {
		h.events.Publish(notifications.AppointmentEvent(event, appt, title,
			fmt.Sprintf("Consultation %d: %s.", appt.ID, appt.VideoCallStatus)))
	}

	h.JSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		h.Error(w, err)
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.Error(w, err)
		return
	}

	appt, err := UpdateNotes(r.Context(), h.db, id, req.Notes, actor)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		h.Error(w, err)
		return
	}

	appt, err := Get(r.Context(), h.db, id, actor)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) GetLawyerAppointments(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())
	lawyerID, err := utils.PathID(r, "lawyerId")
	if err != nil {
		h.Error(w, err)
		return
	}

	appts, err := ListForLawyer(r.Context(), h.db, lawyerID, actor)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, appts)
}

func (h *AppointmentHandler) GetClientAppointments(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())
	clientID, err := utils.PathID(r, "clientId")
	if err != nil {
		h.Error(w, err)
		return
	}

	appts, err := ListForClient(r.Context(), h.db, clientID, actor)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, appts)
}

func (h *AppointmentHandler) GetAllAppointments(w http.ResponseWriter, r *http.Request) {
	page := utils.PageFromQuery(r)

	query := h.db.WithContext(r.Context()).Model(&models.Appointment{})
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.Error(w, utils.Internal(err, "error counting appointments"))
		return
	}

	var appointments []models.Appointment
	if err := page.Scope(query).Preload("Client").Preload("Lawyer").
		Order("appointment_date DESC, appointment_time DESC").
		Find(&appointments).Error; err != nil {
		h.Error(w, utils.Internal(err, "error retrieving appointments"))
		return
	}

	h.JSON(w, http.StatusOK, page.Body("appointments", appointments, total))
}

// GetAvailability answers ?lawyerId=&date= with the times already taken.
func (h *AppointmentHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	lawyerID, err := strconv.ParseUint(r.URL.Query().Get("lawyerId"), 10, 64)
	if err != nil || lawyerID == 0 {
		h.Error(w, utils.Validation("lawyerId is required"))
		return
	}
	date := r.URL.Query().Get("date")

	times, err := BookedTimes(r.Context(), h.db, uint(lawyerID), date)
	if err != nil {
		h.Error(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]interface{}{
		"lawyerId":    lawyerID,
		"date":        date,
		"bookedTimes": times,
	})
}
