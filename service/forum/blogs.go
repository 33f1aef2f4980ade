package forum

import (
	"context"
	"strings"

	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"gorm.io/gorm"
)

type BlogInput struct {
	Title     *string
	Content   *string
	ImagePath string
}

func CreateBlog(ctx context.Context, db *gorm.DB, authorID uint, in BlogInput) (*models.Blog, error) {
	blog := models.Blog{AuthorID: authorID, ImagePath: in.ImagePath}
	if in.Title != nil {
		blog.Title = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		blog.Content = strings.TrimSpace(*in.Content)
	}
	if blog.Title == "" || blog.Content == "" {
		return nil, utils.Validation("title and content are required")
	}
	if err := db.WithContext(ctx).Create(&blog).Error; err != nil {
		return nil, utils.StoreError(err, "blog")
	}
	return &blog, nil
}

// UpdateBlog applies the set fields. It returns the image the blog pointed
// at before, when a new one replaced it.
func UpdateBlog(ctx context.Context, db *gorm.DB, id uint, in BlogInput) (*models.Blog, string, error) {
	var blog models.Blog
	if err := db.WithContext(ctx).First(&blog, id).Error; err != nil {
		return nil, "", utils.StoreError(err, "blog")
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, "", utils.Validation("title cannot be empty")
		}
		updates["title"], blog.Title = title, title
	}
	if in.Content != nil {
		content := strings.TrimSpace(*in.Content)
		if content == "" {
			return nil, "", utils.Validation("content cannot be empty")
		}
		updates["content"], blog.Content = content, content
	}
	var replaced string
	if in.ImagePath != "" {
		replaced = blog.ImagePath
		updates["image_path"], blog.ImagePath = in.ImagePath, in.ImagePath
	}
	if len(updates) == 0 {
		return &blog, "", nil
	}

	if err := db.WithContext(ctx).Model(&blog).Updates(updates).Error; err != nil {
		return nil, "", utils.StoreError(err, "blog")
	}
	return &blog, replaced, nil
}

// DeleteBlog removes the blog with its comments and returns it so the caller
// can drop its image.
func DeleteBlog(ctx context.Context, db *gorm.DB, id uint) (*models.Blog, error) {
	var blog models.Blog
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&blog, id).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("blog_id = ?", blog.ID).Delete(&models.BlogComment{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&blog).Error
	})
	if err != nil {
		return nil, utils.StoreError(err, "blog")
	}
	return &blog, nil
}

// withCommentCounts fills CommentCount on each blog with one grouped query.
func withCommentCounts(db *gorm.DB, blogs []models.Blog) error {
	if len(blogs) == 0 {
		return nil
	}
	ids := make([]uint, len(blogs))
	for i, b := range blogs {
		ids[i] = b.ID
	}

	var rows []struct {
		BlogID uint
		Count  int64
	}
	if err := db.Model(&models.BlogComment{}).
		Select("blog_id, COUNT(*) AS count").
		Where("blog_id IN ?", ids).
		Group("blog_id").
		Scan(&rows).Error; err != nil {
		return err
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.BlogID] = row.Count
	}
	for i := range blogs {
		blogs[i].CommentCount = counts[blogs[i].ID]
	}
	return nil
}

func ListBlogs(ctx context.Context, db *gorm.DB, page utils.Page) ([]models.Blog, int64, error) {
	query := db.WithContext(ctx).Model(&models.Blog{}).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, utils.Internal(err, "error counting blogs")
	}

	var blogs []models.Blog
	if err := page.Scope(query).Preload("Author").Order("created_at DESC").Find(&blogs).Error; err != nil {
		return nil, 0, utils.Internal(err, "error retrieving blogs")
	}
	if err := withCommentCounts(db.WithContext(ctx), blogs); err != nil {
		return nil, 0, utils.Internal(err, "error counting comments")
	}
	return blogs, total, nil
}

func GetBlog(ctx context.Context, db *gorm.DB, id uint) (*models.Blog, error) {
	var blog models.Blog
	if err := db.WithContext(ctx).Preload("Author").First(&blog, id).Error; err != nil {
		return nil, utils.StoreError(err, "blog")
	}
	blogs := []models.Blog{blog}
	if err := withCommentCounts(db.WithContext(ctx), blogs); err != nil {
		return nil, utils.Internal(err, "error counting comments")
	}
	return &blogs[0], nil
}

func AddComment(ctx context.Context, db *gorm.DB, authorID, blogID uint, text string) (*models.BlogComment, error) {
	text = strings.TrimSpace(text)
	if blogID == 0 || text == "" {
		return nil, utils.Validation("blogId and text are required")
	}
	var blog models.Blog
	if err := db.WithContext(ctx).Select("id").First(&blog, blogID).Error; err != nil {
		return nil, utils.StoreError(err, "blog")
	}

	comment := models.BlogComment{AuthorID: authorID, BlogID: blogID, Text: text}
	if err := db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, utils.StoreError(err, "comment")
	}
	return &comment, nil
}

func Comments(ctx context.Context, db *gorm.DB, blogID uint) ([]models.BlogComment, error) {
	var comments []models.BlogComment
	if err := db.WithContext(ctx).Preload("Author").Where("blog_id = ?", blogID).
		Order("created_at ASC").Find(&comments).Error; err != nil {
		return nil, utils.Internal(err, "error retrieving comments")
	}
	return comments, nil
}

func EditComment(ctx context.Context, db *gorm.DB, id uint, actor utils.Actor, text string) (*models.BlogComment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, utils.Validation("text is required")
	}
	var comment models.BlogComment
	if err := db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, utils.StoreError(err, "comment")
	}
	if comment.AuthorID != actor.ID {
		return nil, utils.Forbidden("you can only edit your own comments")
	}
	if err := db.WithContext(ctx).Model(&comment).Update("text", text).Error; err != nil {
		return nil, utils.StoreError(err, "comment")
	}
	comment.Text = text
	return &comment, nil
}

// RemoveComment lets the author or a moderator delete a comment.
func RemoveComment(ctx context.Context, db *gorm.DB, id uint, actor utils.Actor) error {
	var comment models.BlogComment
	if err := db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return utils.StoreError(err, "comment")
	}
	if comment.AuthorID != actor.ID && !utils.Can(actor.Role, utils.ModerateContent) {
		return utils.Forbidden("you cannot delete this comment")
	}
	if err := db.WithContext(ctx).Unscoped().Delete(&comment).Error; err != nil {
		return utils.StoreError(err, "comment")
	}
	return nil
}
