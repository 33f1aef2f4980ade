package review

import (
	"context"
	"strings"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/KAsare1/Lexconsult-server/service/application"
	"gorm.io/gorm"
)

type Input struct {
	LawyerID uint   `json:"lawyerId"`
	Rating   int    `json:"rating"`
	Text     string `json:"text"`
}

func validRating(r int) bool { return r >= 1 && r <= 5 }

// Create records authorID's review of an approved lawyer.
func Create(ctx context.Context, db *gorm.DB, authorID uint, in Input) (*models.Review, error) {
	if in.LawyerID == 0 {
		return nil, utils.Validation("lawyerId is required")
	}
	if !validRating(in.Rating) {
		return nil, utils.Validation("rating must be between 1 and 5")
	}
	if in.LawyerID == authorID {
		return nil, utils.Validation("you cannot review yourself")
	}
	if _, err := application.ApprovedFor(db.WithContext(ctx), in.LawyerID); err != nil {
		return nil, err
	}

	review := models.Review{
		AuthorID: authorID,
		LawyerID: in.LawyerID,
		Rating:   in.Rating,
		Text:     strings.TrimSpace(in.Text),
	}
	if err := db.WithContext(ctx).Create(&review).Error; err != nil {
		return nil, utils.StoreError(err, "review")
	}
	return &review, nil
}

// ForLawyer returns a lawyer's reviews, newest first, and their mean rating.
func ForLawyer(ctx context.Context, db *gorm.DB, lawyerID uint) ([]models.Review, float64, error) {
	var reviews []models.Review
	if err := db.WithContext(ctx).Preload("Author").Where("lawyer_id = ?", lawyerID).
		Order("created_at DESC").Find(&reviews).Error; err != nil {
		return nil, 0, utils.Internal(err, "error retrieving reviews")
	}
	return reviews, Average(reviews), nil
}

// Average is 0 for no reviews.
func Average(reviews []models.Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews))
}

type Update struct {
	Rating *int    `json:"rating"`
	Text   *string `json:"text"`
}

func Edit(ctx context.Context, db *gorm.DB, id uint, actor utils.Actor, in Update) (*models.Review, error) {
	var review models.Review
	if err := db.WithContext(ctx).First(&review, id).Error; err != nil {
		return nil, utils.StoreError(err, "review")
	}
	if review.AuthorID != actor.ID {
		return nil, utils.Forbidden("you can only edit your own reviews")
	}

	updates := map[string]interface{}{}
	if in.Rating != nil {
		if !validRating(*in.Rating) {
			return nil, utils.Validation("rating must be between 1 and 5")
		}
		updates["rating"] = *in.Rating
		review.Rating = *in.Rating
	}
	if in.Text != nil {
		review.Text = strings.TrimSpace(*in.Text)
		updates["text"] = review.Text
	}
	if len(updates) == 0 {
		return &review, nil
	}
	if err := db.WithContext(ctx).Model(&review).Updates(updates).Error; err != nil {
		return nil, utils.StoreError(err, "review")
	}
	return &review, nil
}

// Remove deletes a review for its author, the reviewed lawyer or an admin.
func Remove(ctx context.Context, db *gorm.DB, id uint, actor utils.Actor) error {
	var review models.Review
	if err := db.WithContext(ctx).First(&review, id).Error; err != nil {
		return utils.StoreError(err, "review")
	}
	if !utils.ActsFor(actor, review.AuthorID, review.LawyerID) {
		return utils.Forbidden("you cannot delete this review")
	}
	if err := db.WithContext(ctx).Unscoped().Delete(&review).Error; err != nil {
		return utils.StoreError(err, "review")
	}
	return nil
}
