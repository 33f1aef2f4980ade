package application

import (
	"context"
	"errors"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"gorm.io/gorm"
)

// Submission is a validated lawyer application with its stored images.
type Submission struct {
	BarNumber          string
	YearsOfExperience  int
	Specialization     models.Specialization
	Bio                string
	HourlyRate         float64
	HalfHourlyRate     float64
	CertificationImage string
	PersonalImage      string
}

func (s Submission) validate() error {
	switch {
	case s.BarNumber == "":
		return utils.Validation("barNumber is required")
	case s.YearsOfExperience < 0:
		return utils.Validation("yearsOfExperience must not be negative")
	case !s.Specialization.Valid():
		return utils.Validation("invalid specialization %q", s.Specialization)
	case s.HourlyRate <= 0 || s.HalfHourlyRate <= 0:
		return utils.Validation("rates must be positive")
	case s.CertificationImage == "" || s.PersonalImage == "":
		return utils.Validation("certificationImage and personalImage are required")
	}
	return nil
}

// Submit creates a pending application. A user may hold at most one pending
// application and cannot apply again once approved.
func Submit(ctx context.Context, db *gorm.DB, userID uint, s Submission) (*models.LawyerApplication, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	app := &models.LawyerApplication{
		UserID:             userID,
		BarNumber:          s.BarNumber,
		YearsOfExperience:  s.YearsOfExperience,
		Specialization:     s.Specialization,
		Bio:                s.Bio,
		CertificationImage: s.CertificationImage,
		PersonalImage:      s.PersonalImage,
		HourlyRate:         s.HourlyRate,
		HalfHourlyRate:     s.HalfHourlyRate,
		Status:             models.ApplicationPending,
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			return utils.StoreError(err, "user")
		}

		var open []models.LawyerApplication
		if err := tx.Where("user_id = ? AND status IN ?", userID,
			[]models.ApplicationStatus{models.ApplicationPending, models.ApplicationApproved}).
			Find(&open).Error; err != nil {
			return err
		}
		for _, existing := range open {
			if existing.Status == models.ApplicationPending {
				return utils.Conflict("a pending application already exists")
			}
			return utils.Conflict("user is already an approved lawyer")
		}

		return tx.Create(app).Error
	})
	if err != nil {
		return nil, utils.StoreError(err, "application")
	}
	return app, nil
}

// SetStatus decides a pending application. Approval promotes the owner to
// lawyer in the same transaction; decided applications are final.
func SetStatus(ctx context.Context, db *gorm.DB, id uint, status models.ApplicationStatus) (*models.LawyerApplication, error) {
	if status != models.ApplicationApproved && status != models.ApplicationRejected {
		return nil, utils.Validation("status must be approved or rejected")
	}

	var app models.LawyerApplication
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("User").First(&app, id).Error; err != nil {
			return utils.StoreError(err, "application")
		}
		if app.Status != models.ApplicationPending {
			return utils.InvalidState("application is already %s", app.Status)
		}

		if err := tx.Model(&app).Update("status", status).Error; err != nil {
			return err
		}
		if status == models.ApplicationApproved && app.User != nil && app.User.Role == models.RoleUser {
			if err := tx.Model(app.User).Update("role", models.RoleLawyer).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, utils.StoreError(err, "application")
	}
	return &app, nil
}

// Delete removes an application. Deleting an approved one also removes the
// lawyer's appointments, their payments and reviews, and demotes the owner.
// It returns the application so the caller can remove its images.
func Delete(ctx context.Context, db *gorm.DB, id uint) (*models.LawyerApplication, error) {
	var app models.LawyerApplication
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&app, id).Error; err != nil {
			return utils.StoreError(err, "application")
		}

		if app.Status == models.ApplicationApproved {
			if err := PurgeLawyerRecords(tx, app.UserID); err != nil {
				return err
			}
			if err := tx.Model(&models.User{}).
				Where("id = ? AND role = ?", app.UserID, models.RoleLawyer).
				Update("role", models.RoleUser).Error; err != nil {
				return err
			}
		}

		return tx.Unscoped().Delete(&app).Error
	})
	if err != nil {
		return nil, utils.StoreError(err, "application")
	}
	return &app, nil
}

// PurgeLawyerRecords hard-deletes everything that references lawyerID as
// the lawyer. Run it inside a transaction.
func PurgeLawyerRecords(tx *gorm.DB, lawyerID uint) error {
	appointments := tx.Model(&models.Appointment{}).Unscoped().Select("id").Where("lawyer_id = ?", lawyerID)
	if err := tx.Unscoped().Where("appointment_id IN (?)", appointments).Delete(&models.Payment{}).Error; err != nil {
		return err
	}
	if err := tx.Unscoped().Where("lawyer_id = ?", lawyerID).Delete(&models.Appointment{}).Error; err != nil {
		return err
	}
	return tx.Unscoped().Where("lawyer_id = ?", lawyerID).Delete(&models.Review{}).Error
}

// ApprovedFor returns the approved application (rate card) of a lawyer.
func ApprovedFor(tx *gorm.DB, lawyerID uint) (*models.LawyerApplication, error) {
	var app models.LawyerApplication
	err := tx.Where("user_id = ? AND status = ?", lawyerID, models.ApplicationApproved).
		Order("id DESC").First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFound("no approved lawyer with id %d", lawyerID)
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// Profile is an approved application joined with its owner and ratings.
type Profile struct {
	models.LawyerApplication
	Name          string  `json:"name"`
	Handle        string  `json:"handle"`
	ProfileImage  string  `json:"profile_image,omitempty"`
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int64   `json:"review_count"`
}

// Approved lists approved lawyers, most experienced first. lawyerID narrows
// the listing to one lawyer when non-zero.
func Approved(ctx context.Context, db *gorm.DB, lawyerID uint) ([]Profile, error) {
	ratings := db.Model(&models.Review{}).
		Select("lawyer_id, AVG(rating) AS average_rating, COUNT(*) AS review_count").
		Group("lawyer_id")

	query := db.WithContext(ctx).Model(&models.LawyerApplication{}).
		Select("lawyer_applications.*, users.name, users.handle, users.profile_image_path AS profile_image, "+
			"COALESCE(r.average_rating, 0) AS average_rating, COALESCE(r.review_count, 0) AS review_count").
		Joins("JOIN users ON users.id = lawyer_applications.user_id AND users.deleted_at IS NULL").
		Joins("LEFT JOIN (?) AS r ON r.lawyer_id = lawyer_applications.user_id", ratings).
		Where("lawyer_applications.status = ?", models.ApplicationApproved)
	if lawyerID != 0 {
		query = query.Where("lawyer_applications.user_id = ?", lawyerID)
	}

	var profiles []Profile
	err := query.Order("lawyer_applications.years_of_experience DESC, lawyer_applications.id ASC").
		Scan(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}
