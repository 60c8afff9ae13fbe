package repository

import (
	"context"

	"gorm.io/gorm"
)

// TagCount is a tag name with the number of articles carrying it.
type TagCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// TagRepository reads tag statistics.
type TagRepository interface {
	Popular(ctx context.Context, limit int) ([]TagCount, error)
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) Popular(ctx context.Context, limit int) ([]TagCount, error) {
	var out []TagCount
	err := r.db.WithContext(ctx).
		Table("tags").
		Select("tags.name AS name, COUNT(article_tags.article_id) AS count").
		Joins("JOIN article_tags ON article_tags.tag_id = tags.id").
		Group("tags.name").
		Order("count DESC").
		Order("tags.name ASC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}
