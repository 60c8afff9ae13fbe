// Package repository provides the data access layer for articles, columns,
// tags, comments and users.
package repository

import (
	"context"
	"errors"
	"strings"

	"myblog/internal/models"
	"myblog/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArticleFilter narrows an article listing. Zero values mean no filter.
type ArticleFilter struct {
	Search       string
	ColumnID     *uint
	Tag          string
	OrderByViews bool
}

// ArticleRepository defines persistence operations for articles.
type ArticleRepository interface {
	Count(ctx context.Context, f ArticleFilter) (int64, error)
	List(ctx context.Context, f ArticleFilter, limit, offset int) ([]*models.Article, error)
	GetByID(ctx context.Context, id uint) (*models.Article, error)
	ListByAuthor(ctx context.Context, authorID uint) ([]*models.Article, error)
	Create(ctx context.Context, article *models.Article, tags []string) error
	Update(ctx context.Context, article *models.Article, tags []string) error
	Delete(ctx context.Context, id uint) error
	IncrementViews(ctx context.Context, id uint) error
}

type articleRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{db: db, log: observability.NewRepoLogger("articles")}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns user input into a LIKE pattern that matches it as a
// literal, case-folded substring.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

func applyFilter(db *gorm.DB, f ArticleFilter) *gorm.DB {
	if f.Search != "" {
		pattern := containsPattern(f.Search)
		db = db.Where(`(LOWER(articles.title) LIKE ? ESCAPE '\' OR LOWER(articles.body) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if f.ColumnID != nil {
		db = db.Where("articles.column_id = ?", *f.ColumnID)
	}
	if f.Tag != "" {
		db = db.Where("articles.id IN (?)",
			db.Session(&gorm.Session{NewDB: true}).
				Table("article_tags").
				Select("article_tags.article_id").
				Joins("JOIN tags ON tags.id = article_tags.tag_id").
				Where("tags.name = ?", f.Tag),
		)
	}
	return db
}

func applyOrder(db *gorm.DB, f ArticleFilter) *gorm.DB {
	if f.OrderByViews {
		return db.Order("articles.total_views DESC").Order("articles.created_at DESC").Order("articles.id DESC")
	}
	return db.Order("articles.created_at DESC").Order("articles.id DESC")
}

func preloadDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Column").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name ASC") })
}

func (r *articleRepository) Count(ctx context.Context, f ArticleFilter) (int64, error) {
	var n int64
	err := applyFilter(r.db.WithContext(ctx).Model(&models.Article{}), f).Count(&n).Error
	return n, err
}

func (r *articleRepository) List(ctx context.Context, f ArticleFilter, limit, offset int) ([]*models.Article, error) {
	var articles []*models.Article
	q := applyOrder(applyFilter(r.db.WithContext(ctx).Model(&models.Article{}), f), f)
	err := preloadDetails(q).Limit(limit).Offset(offset).Find(&articles).Error
	return articles, err
}

func (r *articleRepository) GetByID(ctx context.Context, id uint) (*models.Article, error) {
	var article models.Article
	if err := preloadDetails(r.db.WithContext(ctx)).First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Article", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &article, nil
}

func (r *articleRepository) ListByAuthor(ctx context.Context, authorID uint) ([]*models.Article, error) {
	var articles []*models.Article
	err := r.db.WithContext(ctx).Where("author_id = ?", authorID).Order("id ASC").Find(&articles).Error
	return articles, err
}

// Create stores the article first so it has an id, then attaches its tags.
func (r *articleRepository) Create(ctx context.Context, article *models.Article, tags []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		article.Tags = nil
		if err := tx.Omit(clause.Associations).Create(article).Error; err != nil {
			return err
		}
		return replaceTags(tx, article, tags)
	})
	if err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.log.LogCreate(ctx, map[string]interface{}{"article_id": article.ID, "author_id": article.AuthorID})
	return nil
}

// Update writes the editable columns and replaces the tag set.
func (r *articleRepository) Update(ctx context.Context, article *models.Article, tags []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(article).
			Select("title", "body", "column_id", "avatar", "updated_at").
			Updates(article)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return replaceTags(tx, article, tags)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Article", article.ID)
		}
		r.log.LogError(ctx, err, "update")
		return err
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"article_id": article.ID})
	return nil
}

// replaceTags makes names the complete tag set of article, creating missing tags.
func replaceTags(tx *gorm.DB, article *models.Article, names []string) error {
	tags := []models.Tag{}
	if len(names) > 0 {
		rows := make([]models.Tag, 0, len(names))
		for _, n := range names {
			rows = append(rows, models.Tag{Name: n})
		}
		if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
			Create(&rows).Error; err != nil {
			return err
		}
		if err := tx.Where("name IN ?", names).Order("name ASC").Find(&tags).Error; err != nil {
			return err
		}
	}
	if err := tx.Model(article).Association("Tags").Replace(tags); err != nil {
		return err
	}
	article.Tags = tags
	return nil
}

// Delete removes the article together with its comments and tag links.
func (r *articleRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteArticles(tx, []uint{id})
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Article", id)
		}
		r.log.LogError(ctx, err, "delete")
		return err
	}
	r.log.LogDelete(ctx, map[string]interface{}{"article_id": id})
	return nil
}

func deleteArticles(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("article_id IN ?", ids).Delete(&models.Comment{}).Error; err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM article_tags WHERE article_id IN ?", ids).Error; err != nil {
		return err
	}
	res := tx.Where("id IN ?", ids).Delete(&models.Article{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementViews bumps total_views by one in a single statement without
// touching updated_at.
func (r *articleRepository) IncrementViews(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Article{}).
		Where("id = ?", id).
		UpdateColumn("total_views", gorm.Expr("total_views + ?", 1))
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Article", id)
	}
	return nil
}
