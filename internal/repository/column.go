package repository

import (
	"context"
	"errors"

	"myblog/internal/models"
	"myblog/internal/observability"

	"gorm.io/gorm"
)

// ColumnRepository defines persistence operations for article columns.
type ColumnRepository interface {
	Create(ctx context.Context, column *models.Column) error
	GetByID(ctx context.Context, id uint) (*models.Column, error)
	List(ctx context.Context) ([]models.Column, error)
	// Delete removes a column. With cascade the column's articles are
	// deleted too and returned with only id and avatar set; otherwise the
	// articles are detached from the column.
	Delete(ctx context.Context, id uint, cascade bool) (removed []models.Article, err error)
}

type columnRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewColumnRepository creates a new column repository
func NewColumnRepository(db *gorm.DB) ColumnRepository {
	return &columnRepository{db: db, log: observability.NewRepoLogger("article_columns")}
}

func (r *columnRepository) Create(ctx context.Context, column *models.Column) error {
	if err := r.db.WithContext(ctx).Create(column).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.log.LogCreate(ctx, map[string]interface{}{"column_id": column.ID})
	return nil
}

func (r *columnRepository) GetByID(ctx context.Context, id uint) (*models.Column, error) {
	var column models.Column
	if err := r.db.WithContext(ctx).First(&column, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Column", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &column, nil
}

func (r *columnRepository) List(ctx context.Context) ([]models.Column, error) {
	var columns []models.Column
	err := r.db.WithContext(ctx).Order("id ASC").Find(&columns).Error
	return columns, err
}

func (r *columnRepository) Delete(ctx context.Context, id uint, cascade bool) ([]models.Article, error) {
	var doomed []models.Article
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cascade {
			if err := tx.Select("id", "avatar").Where("column_id = ?", id).Order("id ASC").Find(&doomed).Error; err != nil {
				return err
			}
			ids := make([]uint, 0, len(doomed))
			for _, a := range doomed {
				ids = append(ids, a.ID)
			}
			if err := deleteArticles(tx, ids); err != nil {
				return err
			}
		} else if err := tx.Model(&models.Article{}).Where("column_id = ?", id).
			UpdateColumn("column_id", nil).Error; err != nil {
			return err
		}

		res := tx.Delete(&models.Column{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Column", id)
		}
		r.log.LogError(ctx, err, "delete")
		return nil, err
	}
	r.log.LogDelete(ctx, map[string]interface{}{"column_id": id, "cascade": cascade, "articles_removed": len(doomed)})
	return doomed, nil
}
