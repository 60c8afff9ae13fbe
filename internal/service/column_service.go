package service

import (
	"context"
	"strings"

	"myblog/internal/cache"
	"myblog/internal/config"
	"myblog/internal/models"
	"myblog/internal/repository"
	"myblog/internal/validation"

	ozzo "github.com/go-ozzo/ozzo-validation/v4"
)

// ColumnService administers article columns.
type ColumnService struct {
	repo   repository.ColumnRepository
	images *ImageService
	policy string
}

type CreateColumnInput struct {
	Title string `json:"title"`
}

func (in CreateColumnInput) Validate() error {
	return ozzo.ValidateStruct(&in,
		ozzo.Field(&in.Title, ozzo.Required, ozzo.RuneLength(1, 100)),
	)
}

// DeleteColumnResult reports what a column delete removed.
type DeleteColumnResult struct {
	Policy          string `json:"policy"`
	ArticlesRemoved int    `json:"articles_removed"`
}

func NewColumnService(repo repository.ColumnRepository, images *ImageService, policy string) *ColumnService {
	if policy == "" {
		policy = config.ColumnDeleteCascade
	}
	return &ColumnService{repo: repo, images: images, policy: policy}
}

// Policy is the configured column delete policy.
func (s *ColumnService) Policy() string { return s.policy }

// List returns every column, served from Redis when possible.
func (s *ColumnService) List(ctx context.Context) ([]models.Column, error) {
	var columns []models.Column
	err := cache.Aside(ctx, "columns", cache.ColumnsKey, &columns, cache.ColumnsTTL, func() error {
		var err error
		columns, err = s.repo.List(ctx)
		return err
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return columns, nil
}

func (s *ColumnService) Get(ctx context.Context, id uint) (*models.Column, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ColumnService) Create(ctx context.Context, in CreateColumnInput) (*models.Column, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return nil, models.NewValidationError(validation.Message(err))
	}

	column := &models.Column{Title: in.Title}
	if err := s.repo.Create(ctx, column); err != nil {
		return nil, models.NewInternalError(err)
	}
	cache.InvalidateColumns(ctx)
	return column, nil
}

// Delete removes a column according to the configured policy. Under the
// cascade policy the avatars of removed articles are deleted from disk.
func (s *ColumnService) Delete(ctx context.Context, id uint) (*DeleteColumnResult, error) {
	cascade := s.policy == config.ColumnDeleteCascade
	removed, err := s.repo.Delete(ctx, id, cascade)
	if err != nil {
		return nil, appError(err)
	}
	cache.InvalidateColumns(ctx)
	if s.images != nil {
		for _, a := range removed {
			s.images.Remove(a.Avatar)
		}
	}
	return &DeleteColumnResult{Policy: s.policy, ArticlesRemoved: len(removed)}, nil
}
