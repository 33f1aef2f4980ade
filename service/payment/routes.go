package payment

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/KAsare1/Lexconsult-server/service/notifications"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// PaymentFilter holds the optional filters of the admin listing.
type PaymentFilter struct {
	Status    models.PaymentStatus
	Method    string
	MinAmount float64
	MaxAmount float64
	StartDate time.Time
	EndDate   time.Time
}

func filterFromQuery(r *http.Request) (PaymentFilter, error) {
	q := r.URL.Query()
	f := PaymentFilter{
		Status: models.PaymentStatus(q.Get("status")),
		Method: q.Get("method"),
	}
	var err error
	if v := q.Get("min_amount"); v != "" {
		if f.MinAmount, err = strconv.ParseFloat(v, 64); err != nil {
			return f, utils.Validation("invalid min_amount")
		}
	}
	if v := q.Get("max_amount"); v != "" {
		if f.MaxAmount, err = strconv.ParseFloat(v, 64); err != nil {
			return f, utils.Validation("invalid max_amount")
		}
	}
	if v := q.Get("start_date"); v != "" {
		if f.StartDate, err = time.Parse(models.DateLayout, v); err != nil {
			return f, utils.Validation("invalid start_date")
		}
	}
	if v := q.Get("end_date"); v != "" {
		if f.EndDate, err = time.Parse(models.DateLayout, v); err != nil {
			return f, utils.Validation("invalid end_date")
		}
	}
	return f, nil
}

func (f PaymentFilter) apply(query *gorm.DB) *gorm.DB {
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Method != "" {
		query = query.Where("payment_method = ?", f.Method)
	}
	if f.MinAmount > 0 {
		query = query.Where("amount >= ?", f.MinAmount)
	}
	if f.MaxAmount > 0 {
		query = query.Where("amount <= ?", f.MaxAmount)
	}
	if !f.StartDate.IsZero() {
		query = query.Where("created_at >= ?", f.StartDate)
	}
	if !f.EndDate.IsZero() {
		query = query.Where("created_at < ?", f.EndDate.AddDate(0, 0, 1))
	}
	return query
}

type PaymentHandler struct {
	utils.Responder
	db     *gorm.DB
	auth   *utils.Authenticator
	events notifications.Publisher
}

func NewPaymentHandler(db *gorm.DB, auth *utils.Authenticator, events notifications.Publisher) *PaymentHandler {
	return &PaymentHandler{Responder: auth.Responder, db: db, auth: auth, events: events}
}

func (h *PaymentHandler) RegisterRoutes(router *mux.Router) {
	r := router.PathPrefix("/payments").Subrouter()
	r.HandleFunc("", h.auth.Required(h.Pay)).Methods("POST")
	r.HandleFunc("", h.auth.Admin(utils.ViewAllPayments, h.GetAllPayments)).Methods("GET")
	r.HandleFunc("/mine", h.auth.Required(h.GetMyPayments)).Methods("GET")
	r.HandleFunc("/lawyer/{lawyerId:[0-9]+}", h.auth.Required(h.GetLawyerPayments)).Methods("GET")
}

func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())

	var req struct {
		AppointmentID uint   `json:"appointmentId"`
		PaymentMethod string `json:"paymentMethod"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.Error(w, err)
		return
	}
	if req.AppointmentID == 0 {
		h.Error(w, utils.Validation("appointmentId is required"))
		return
	}

	payment, appt, err := Pay(r.Context(), h.db, req.AppointmentID, actor, req.PaymentMethod)
	if err != nil {
		h.Error(w, err)
		return
	}

	h.events.Publish(notifications.AppointmentEvent(notifications.EventPaymentCompleted, appt,
		"Payment received",
		fmt.Sprintf("Payment of %.2f for the consultation on %s at %s is complete.", payment.Amount, appt.Date, appt.Time)))

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"payment":     payment,
		"appointment": appt,
	})
}

func (h *PaymentHandler) GetMyPayments(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())

	var payments []models.Payment
	if err := h.db.WithContext(r.Context()).Preload("Appointment").Where("client_id = ?", actor.ID).
		Order("created_at DESC").Find(&payments).Error; err != nil {
		h.Error(w, utils.Internal(err, "error retrieving payments"))
		return
	}
	h.JSON(w, http.StatusOK, payments)
}

// GetLawyerPayments lists a lawyer's payments with the total earned.
func (h *PaymentHandler) GetLawyerPayments(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())
	lawyerID, err := utils.PathID(r, "lawyerId")
	if err != nil {
		h.Error(w, err)
		return
	}
	if !utils.ActsFor(actor, lawyerID) {
		h.Error(w, utils.Forbidden("you can only view your own payments"))
		return
	}

	var payments []models.Payment
	if err := h.db.WithContext(r.Context()).Preload("Appointment").Where("lawyer_id = ?", lawyerID).
		Order("created_at DESC").Find(&payments).Error; err != nil {
		h.Error(w, utils.Internal(err, "error retrieving payments"))
		return
	}

	var earned float64
	for _, p := range payments {
		if p.Status == models.PaymentCompleted {
			earned += p.Amount
		}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"payments":     payments,
		"total_earned": earned,
	})
}

func (h *PaymentHandler) GetAllPayments(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		h.Error(w, err)
		return
	}
	page := utils.PageFromQuery(r)
	query := filter.apply(h.db.WithContext(r.Context()).Model(&models.Payment{})).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.Error(w, utils.Internal(err, "error counting payments"))
		return
	}

	var payments []models.Payment
	if err := page.Scope(query).Order("created_at DESC").Find(&payments).Error; err != nil {
		h.Error(w, utils.Internal(err, "error retrieving payments"))
		return
	}
	h.JSON(w, http.StatusOK, page.Body("payments", payments, total))
}
