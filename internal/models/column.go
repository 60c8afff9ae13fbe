package models

import "time"

// Column groups articles under a named category.
type Column struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:100;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps columns out of the reserved-word namespace.
func (Column) TableName() string { return "article_columns" }

// Tag is a free-form label attached to articles.
type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;uniqueIndex;not null" json:"name"`
}
