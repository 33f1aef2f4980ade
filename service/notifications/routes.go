package notifications

import (
	"net/http"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/gorilla/mux"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationHandler struct {
	utils.Responder
	db   *gorm.DB
	auth *utils.Authenticator
}

func NewNotificationHandler(db *gorm.DB, auth *utils.Authenticator) *NotificationHandler {
	return &NotificationHandler{Responder: auth.Responder, db: db, auth: auth}
}

func (h *NotificationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/devices", h.auth.Required(h.RegisterDevice)).Methods("POST")
	router.HandleFunc("/devices", h.auth.Required(h.GetDevices)).Methods("GET")
	router.HandleFunc("/devices/{id}", h.auth.Required(h.DeleteDevice)).Methods("DELETE")
	router.HandleFunc("/notifications", h.auth.Required(h.GetHistory)).Methods("GET")
}

// RegisterDevice stores an Expo push token for the caller, updating the
// device details when the token is already known.
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())

	var req struct {
		Token      string `json:"token"`
		DeviceType string `json:"deviceType"`
		DeviceName string `json:"deviceName"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.Error(w, err)
		return
	}
	if req.Token == "" {
		h.Error(w, utils.Validation("token is required"))
		return
	}
	if _, err := expo.NewExponentPushToken(req.Token); err != nil {
		h.Error(w, utils.Validation("invalid Expo push token format"))
		return
	}

	device := models.Device{
		Token:      req.Token,
		UserID:     actor.ID,
		DeviceType: req.DeviceType,
		DeviceName: req.DeviceName,
	}
	err := h.db.WithContext(r.Context()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"device_type", "device_name", "updated_at"}),
	}).Create(&device).Error
	if err != nil {
		h.Error(w, utils.StoreError(err, "device"))
		return
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"message": "Device registered successfully",
		"device":  device,
	})
}

func (h *NotificationHandler) GetDevices(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())

	var devices []models.Device
	if err := h.db.WithContext(r.Context()).Where("user_id = ?", actor.ID).Find(&devices).Error; err != nil {
		h.Error(w, utils.Internal(err, "error retrieving devices"))
		return
	}
	h.JSON(w, http.StatusOK, devices)
}

func (h *NotificationHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())
	id, err := utils.PathID(r, "id")
	if err != nil {
		h.Error(w, err)
		return
	}

	var device models.Device
	if err := h.db.WithContext(r.Context()).First(&device, id).Error; err != nil {
		h.Error(w, utils.StoreError(err, "device"))
		return
	}
	if !utils.ActsFor(actor, device.UserID) {
		h.Error(w, utils.Forbidden("device belongs to another user"))
		return
	}
	if err := h.db.WithContext(r.Context()).Unscoped().Delete(&device).Error; err != nil {
		h.Error(w, utils.Internal(err, "error deleting device"))
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"message": "Device deleted successfully"})
}

func (h *NotificationHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())
	page := utils.PageFromQuery(r)

	query := h.db.WithContext(r.Context()).Model(&models.NotificationHistory{}).Where("user_id = ?", actor.ID).Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.Error(w, utils.Internal(err, "error counting notifications"))
		return
	}

	var history []models.NotificationHistory
	if err := page.Scope(query).Order("sent_at DESC").Find(&history).Error; err != nil {
		h.Error(w, utils.Internal(err, "error retrieving notification history"))
		return
	}

	h.JSON(w, http.StatusOK, page.Body("history", history, total))
}
