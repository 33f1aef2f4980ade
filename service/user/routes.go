package user

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/KAsare1/Lexconsult-server/service/mail"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minPasswordLength = 6
	resetTokenTTL     = time.Hour
)

type Handler struct {
	utils.Responder
	db       *gorm.DB
	auth     *utils.Authenticator
	limiter  *utils.RateLimiter
	mailer   mail.Mailer
	uploader *utils.Uploader
}

func NewHandler(db *gorm.DB, auth *utils.Authenticator, limiter *utils.RateLimiter, mailer mail.Mailer, uploader *utils.Uploader) *Handler {
	return &Handler{
		Responder: auth.Responder,
		db:        db,
		auth:      auth,
		limiter:   limiter,
		mailer:    mailer,
		uploader:  uploader,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/signup", h.limiter.Limit(h.handleSignup)).Methods("POST")
	router.HandleFunc("/auth/login", h.limiter.Limit(h.handleLogin)).Methods("POST")
	router.HandleFunc("/auth/reset-password", h.limiter.Limit(h.handlePasswordResetRequest)).Methods("POST")
	router.HandleFunc("/auth/reset-password/confirm", h.limiter.Limit(h.handlePasswordReset)).Methods("POST")
	router.HandleFunc("/profile", h.auth.Required(h.GetProfile)).Methods("GET")
	router.HandleFunc("/profile", h.auth.Required(h.UpdateProfile)).Methods("PUT")
	router.HandleFunc("/profile/image", h.auth.Required(h.UploadProfileImage)).Methods("POST")
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Handle   string `json:"handle"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.Error(w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Handle = strings.TrimSpace(req.Handle)
	req.Email = strings.TrimSpace(req.Email)

	if req.Name == "" || req.Handle == "" || req.Password == "" {
		h.Error(w, utils.Validation("name, handle and password are required"))
		return
	}
	if len(req.Password) < minPasswordLength {
		h.Error(w, utils.Validation("password must be at least %d characters long", minPasswordLength))
		return
	}

	var existing int64
	if err := h.db.WithContext(r.Context()).Model(&models.User{}).Where("handle = ?", req.Handle).Count(&existing).Error; err != nil {
		h.Error(w, utils.Internal(err, "error checking handle"))
		return
	}
	if existing > 0 {
		h.Error(w, utils.Conflict("handle is already in use"))
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Error(w, utils.Internal(err, "error hashing password"))
		return
	}

	user := models.User{
		Name:         req.Name,
		Handle:       req.Handle,
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		Role:         models.RoleUser,
	}
	if err := h.db.WithContext(r.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			h.Error(w, utils.Conflict("handle is already in use"))
			return
		}
		h.Error(w, utils.Internal(err, "error registering user"))
		return
	}
	log.Printf("User %d registered", user.ID)

	h.writeSession(w, http.StatusCreated, &user)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle   string `json:"handle"`
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.Error(w, err)
		return
	}
	if req.Handle == "" || req.Password == "" {
		h.Error(w, utils.Validation("handle and password are required"))
		return
	}

	var user models.User
	if err := h.db.WithContext(r.Context()).Where("handle = ?", strings.TrimSpace(req.Handle)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.Error(w, utils.Unauthorized("invalid credentials"))
			return
		}
		h.Error(w, utils.Internal(err, "error loading user"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.Error(w, utils.Unauthorized("invalid credentials"))
		return
	}

	h.writeSession(w, http.StatusOK, &user)
}

func (h *Handler) writeSession(w http.ResponseWriter, status int, user *models.User) {
	token, expiresAt, err := h.auth.Tokens().Issue(user.ID, user.Role)
	if err != nil {
		h.Error(w, utils.Internal(err, "error generating access token"))
		return
	}
	h.JSON(w, status, sessionResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())

	var user models.User
	if err := h.db.WithContext(r.Context()).First(&user, actor.ID).Error; err != nil {
		h.Error(w, utils.StoreError(err, "user"))
		return
	}
	h.JSON(w, http.StatusOK, user)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())

	var req struct {
		Name     *string `json:"name"`
		Email    *string `json:"email"`
		Password *string `json:"password"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.Error(w, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			h.Error(w, utils.Validation("name cannot be empty"))
			return
		}
		updates["name"] = name
	}
	if req.Email != nil {
		updates["email"] = strings.TrimSpace(*req.Email)
	}
	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			h.Error(w, utils.Validation("password must be at least %d characters long", minPasswordLength))
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.Error(w, utils.Internal(err, "error hashing password"))
			return
		}
		updates["password_hash"] = string(hash)
	}

	var user models.User
	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, actor.ID).Error; err != nil {
			return utils.StoreError(err, "user")
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&user, actor.ID).Error
	})
	if err != nil {
		h.Error(w, utils.StoreError(err, "user"))
		return
	}
	h.JSON(w, http.StatusOK, user)
}

func (h *Handler) UploadProfileImage(w http.ResponseWriter, r *http.Request) {
	actor, _ := utils.ActorFromContext(r.Context())

	if err := r.ParseMultipartForm(utils.MaxImageSize); err != nil {
		h.Error(w, utils.Validation("invalid multipart form"))
		return
	}
	path, err := h.uploader.SaveFormImage(r, "image", "profiles")
	if err != nil {
		h.Error(w, err)
		return
	}
	if path == "" {
		h.Error(w, utils.Validation("image is required"))
		return
	}

	var user models.User
	var previous string
	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, actor.ID).Error; err != nil {
			return err
		}
		previous = user.ProfileImagePath
		user.ProfileImagePath = path
		return tx.Model(&user).Update("profile_image_path", path).Error
	})
	if err != nil {
		h.uploader.Cleanup(path)
		h.Error(w, utils.StoreError(err, "user"))
		return
	}
	h.uploader.Cleanup(previous)

	h.JSON(w, http.StatusOK, user)
}

func hashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// handlePasswordResetRequest always answers 202 so handles cannot be probed.
func (h *Handler) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle string `json:"handle"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.Error(w, err)
		return
	}
	if req.Handle == "" {
		h.Error(w, utils.Validation("handle is required"))
		return
	}

	accepted := map[string]string{
		"message": "If the account has an e-mail address, a reset code has been sent to it",
	}

	var user models.User
	if err := h.db.WithContext(r.Context()).Where("handle = ?", strings.TrimSpace(req.Handle)).First(&user).Error; err != nil || user.Email == "" {
		h.JSON(w, http.StatusAccepted, accepted)
		return
	}

	raw := uuid.New().String()
	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("user_id = ?", user.ID).Delete(&models.PasswordResetToken{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.PasswordResetToken{
			UserID:    user.ID,
			TokenHash: hashResetToken(raw),
			ExpiresAt: time.Now().Add(resetTokenTTL),
		}).Error
	})
	if err != nil {
		h.Error(w, utils.Internal(err, "error processing reset request"))
		return
	}

	body := fmt.Sprintf("Your password reset code is: %s. It expires in one hour. Ignore this email if you did not request a reset.", raw)
	if err := h.mailer.Send(user.Email, "Password reset", body); err != nil {
		log.Printf("Error sending reset email to user %d: %v", user.ID, err)
	}

	h.JSON(w, http.StatusAccepted, accepted)
}

func (h *Handler) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.Error(w, err)
		return
	}
	if req.Token == "" {
		h.Error(w, utils.Validation("token is required"))
		return
	}
	if len(req.Password) < minPasswordLength {
		h.Error(w, utils.Validation("password must be at least %d characters long", minPasswordLength))
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Error(w, utils.Internal(err, "error hashing password"))
		return
	}

	now := time.Now()
	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		var reset models.PasswordResetToken
		err := tx.Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", hashResetToken(req.Token), now).
			First(&reset).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Validation("invalid or expired reset token")
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&reset).Update("used_at", now).Error; err != nil {
			return err
		}
		res := tx.Model(&models.User{}).Where("id = ?", reset.UserID).Update("password_hash", string(passwordHash))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.NotFound("user not found")
		}
		return nil
	})
	if err != nil {
		h.Error(w, utils.StoreError(err, "reset token"))
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"message": "Password reset successful"})
}
