package models

import "gorm.io/gorm"

type Blog struct {
	gorm.Model
	AuthorID  uint   `gorm:"column:author_id;not null;index" json:"author_id"`
	Title     string `gorm:"column:title;size:255;not null" json:"title"`
	Content   string `gorm:"column:content;type:text;not null" json:"content"`
	ImagePath string `gorm:"column:image_path;size:500" json:"image_path,omitempty"`

	Author   *User         `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Comments []BlogComment `gorm:"foreignKey:BlogID" json:"comments,omitempty"`

	CommentCount int64 `gorm:"-" json:"comment_count"`
}

type BlogComment struct {
	gorm.Model
	AuthorID uint   `gorm:"column:author_id;not null;index" json:"author_id"`
	BlogID   uint   `gorm:"column:blog_id;not null;index" json:"blog_id"`
	Text     string `gorm:"column:text;type:text;not null" json:"text"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// Review is a client's rating of a lawyer.
type Review struct {
	gorm.Model
	AuthorID uint   `gorm:"column:author_id;not null;index" json:"author_id"`
	LawyerID uint   `gorm:"column:lawyer_id;not null;index" json:"lawyer_id"`
	Rating   int    `gorm:"column:rating;not null" json:"rating"`
	Text     string `gorm:"column:text;type:text" json:"text"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}
