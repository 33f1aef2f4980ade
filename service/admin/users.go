package admin

import (
	"context"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/KAsare1/Lexconsult-server/service/application"
	"gorm.io/gorm"
)

var errLastAdmin = utils.Conflict("cannot remove the last admin")

// guardLastAdmin fails when user is the only remaining admin.
func guardLastAdmin(tx *gorm.DB, user *models.User) error {
	if user.Role != models.RoleAdmin {
		return nil
	}
	var admins int64
	if err := tx.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error; err != nil {
		return err
	}
	if admins <= 1 {
		return errLastAdmin
	}
	return nil
}

func ListUsers(ctx context.Context, db *gorm.DB, role models.Role, page utils.Page) ([]models.User, int64, error) {
	query := db.WithContext(ctx).Model(&models.User{})
	if role != "" {
		query = query.Where("role = ?", role)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, utils.Internal(err, "error counting users")
	}
	var users []models.User
	if err := page.Scope(query).Order("id ASC").Find(&users).Error; err != nil {
		return nil, 0, utils.Internal(err, "error retrieving users")
	}
	return users, total, nil
}

// SetRole changes a user's role. Demoting the last admin fails.
func SetRole(ctx context.Context, db *gorm.DB, id uint, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, utils.Validation("invalid role %q", role)
	}

	var user models.User
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			return err
		}
		if user.Role == role {
			return nil
		}
		if err := guardLastAdmin(tx, &user); err != nil {
			return err
		}
		if err := tx.Model(&user).Update("role", role).Error; err != nil {
			return err
		}
		user.Role = role
		return nil
	})
	if err != nil {
		return nil, utils.StoreError(err, "user")
	}
	return &user, nil
}

// DeleteUser removes a user and every record they own or take part in, in
// one transaction. It returns the upload paths that belonged to them.
func DeleteUser(ctx context.Context, db *gorm.DB, id uint) ([]string, error) {
	var files []string
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			return err
		}
		if err := guardLastAdmin(tx, &user); err != nil {
			return err
		}
		files = append(files, user.ProfileImagePath)

		var apps []models.LawyerApplication
		if err := tx.Where("user_id = ?", id).Find(&apps).Error; err != nil {
			return err
		}
		for _, app := range apps {
			files = append(files, app.CertificationImage, app.PersonalImage)
		}
		if err := tx.Unscoped().Where("user_id = ?", id).Delete(&models.LawyerApplication{}).Error; err != nil {
			return err
		}

		// As lawyer, then as client.
		if err := application.PurgeLawyerRecords(tx, id); err != nil {
			return err
		}
		booked := tx.Model(&models.Appointment{}).Unscoped().Select("id").Where("client_id = ?", id)
		if err := tx.Unscoped().Where("appointment_id IN (?) OR client_id = ?", booked, id).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("client_id = ?", id).Delete(&models.Appointment{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("author_id = ?", id).Delete(&models.Review{}).Error; err != nil {
			return err
		}

		var blogs []models.Blog
		if err := tx.Where("author_id = ?", id).Find(&blogs).Error; err != nil {
			return err
		}
		blogIDs := make([]uint, 0, len(blogs))
		for _, b := range blogs {
			blogIDs = append(blogIDs, b.ID)
			files = append(files, b.ImagePath)
		}
		comments := tx.Unscoped().Where("author_id = ?", id)
		if len(blogIDs) > 0 {
			comments = tx.Unscoped().Where("author_id = ? OR blog_id IN ?", id, blogIDs)
		}
		if err := comments.Delete(&models.BlogComment{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("author_id = ?", id).Delete(&models.Blog{}).Error; err != nil {
			return err
		}

		for _, owned := range []interface{}{&models.Device{}, &models.NotificationHistory{}, &models.PasswordResetToken{}} {
			if err := tx.Unscoped().Where("user_id = ?", id).Delete(owned).Error; err != nil {
				return err
			}
		}
		return tx.Unscoped().Delete(&user).Error
	})
	if err != nil {
		return nil, utils.StoreError(err, "user")
	}
	return files, nil
}

type Stats struct {
	UsersByRole         map[models.Role]int64              `json:"users_by_role"`
	PendingApplications int64                              `json:"pending_applications"`
	Appointments        map[models.AppointmentStatus]int64 `json:"appointments_by_status"`
	Revenue             float64                            `json:"revenue"`
}

func CollectStats(ctx context.Context, db *gorm.DB) (*Stats, error) {
	db = db.WithContext(ctx)
	stats := &Stats{
		UsersByRole:  map[models.Role]int64{},
		Appointments: map[models.AppointmentStatus]int64{},
	}

	var roles []struct {
		Role  models.Role
		Count int64
	}
	if err := db.Model(&models.User{}).Select("role, COUNT(*) AS count").Group("role").Scan(&roles).Error; err != nil {
		return nil, utils.Internal(err, "error counting users")
	}
	for _, r := range roles {
		stats.UsersByRole[r.Role] = r.Count
	}

	if err := db.Model(&models.LawyerApplication{}).Where("status = ?", models.ApplicationPending).
		Count(&stats.PendingApplications).Error; err != nil {
		return nil, utils.Internal(err, "error counting applications")
	}

	var statuses []struct {
		Status models.AppointmentStatus
		Count  int64
	}
	if err := db.Model(&models.Appointment{}).Select("status, COUNT(*) AS count").Group("status").Scan(&statuses).Error; err != nil {
		return nil, utils.Internal(err, "error counting appointments")
	}
	for _, s := range statuses {
		stats.Appointments[s.Status] = s.Count
	}

	if err := db.Model(&models.Payment{}).Where("status = ?", models.PaymentCompleted).
		Select("COALESCE(SUM(amount), 0)").Scan(&stats.Revenue).Error; err != nil {
		return nil, utils.Internal(err, "error summing revenue")
	}
	return stats, nil
}
