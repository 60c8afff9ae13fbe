package models

import (
	"strings"
	"time"
)

// RecentWindow is how long an article counts as newly published.
const RecentWindow = 60 * time.Second

// Article is a blog post written in Markdown.
type Article struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AuthorID   uint      `gorm:"not null;index" json:"author_id"`
	Author     User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	Avatar     string    `json:"avatar,omitempty"`
	ColumnID   *uint     `gorm:"index" json:"column_id,omitempty"`
	Column     *Column   `gorm:"foreignKey:ColumnID;constraint:OnDelete:SET NULL" json:"column,omitempty"`
	Tags       []Tag     `gorm:"many2many:article_tags;constraint:OnDelete:CASCADE" json:"tags"`
	Title      string    `gorm:"size:100;not null" json:"title"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	TotalViews uint      `gorm:"not null;default:0" json:"total_views"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// WasCreatedRecently reports whether the article was created within RecentWindow of now.
func (a *Article) WasCreatedRecently(now time.Time) bool {
	age := now.Sub(a.CreatedAt)
	return age >= 0 && age < RecentWindow
}

// TagNames returns the article's tag names in stored order.
func (a *Article) TagNames() []string {
	names := make([]string, 0, len(a.Tags))
	for _, t := range a.Tags {
		names = append(names, t.Name)
	}
	return names
}

// TagList joins the tag names the way the edit form expects them.
func (a *Article) TagList() string {
	return strings.Join(a.TagNames(), ",")
}

// Comment is a reader's reply on an article.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ArticleID uint      `gorm:"not null;index" json:"article_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
