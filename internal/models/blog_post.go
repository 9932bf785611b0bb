package models

import (
	"time"

	"gorm.io/datatypes"
)

// BlogPost is a markdown-authored article. The source markdown, the
// sanitised HTML render and a stripped text body for search are all kept,
// along with arbitrary front-matter metadata.
type BlogPost struct {
	BaseModel

	// Slug is unique case-insensitively; it is stored lowercased.
	Slug  string `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	Title string `gorm:"size:300;not null" json:"title"`

	BodyMD   string `json:"body_md,omitempty"`
	BodyHTML string `gorm:"not null" json:"body_html"`
	BodyText string `gorm:"not null" json:"-"`

	Meta datatypes.JSON `json:"meta,omitempty"`

	IsPublished bool       `gorm:"default:false;index:idx_blog_posts_published" json:"is_published"`
	PublishedAt *time.Time `gorm:"index:idx_blog_posts_published" json:"published_at"`

	AuthorID *string `gorm:"type:uuid" json:"author_id"`
	Author   *User   `gorm:"foreignKey:AuthorID;constraint:OnDelete:SET NULL" json:"author,omitempty"`
}
