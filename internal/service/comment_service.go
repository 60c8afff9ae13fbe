package service

import (
	"context"
	"strings"

	"myblog/internal/models"
	"myblog/internal/repository"
	"myblog/internal/validation"

	ozzo "github.com/go-ozzo/ozzo-validation/v4"
)

// CommentPublisher fans a stored comment out to live subscribers.
type CommentPublisher interface {
	PublishComment(ctx context.Context, comment *models.Comment) error
}

type CommentService struct {
	comments  repository.CommentRepository
	articles  repository.ArticleRepository
	publisher CommentPublisher
}

type CreateCommentInput struct {
	UserID    uint   `json:"-"`
	ArticleID uint   `json:"-"`
	Body      string `json:"body"`
}

func (in CreateCommentInput) Validate() error {
	return ozzo.ValidateStruct(&in,
		ozzo.Field(&in.Body, ozzo.Required, ozzo.RuneLength(1, 5000)),
	)
}

func NewCommentService(comments repository.CommentRepository, articles repository.ArticleRepository, publisher CommentPublisher) *CommentService {
	return &CommentService{comments: comments, articles: articles, publisher: publisher}
}

func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Login required")
	}
	in.Body = strings.TrimSpace(in.Body)
	if err := in.Validate(); err != nil {
		return nil, models.NewValidationError(validation.Message(err))
	}
	if _, err := s.articles.GetByID(ctx, in.ArticleID); err != nil {
		return nil, err
	}

	comment := &models.Comment{ArticleID: in.ArticleID, UserID: in.UserID, Body: in.Body}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, models.NewInternalError(err)
	}

	if s.publisher != nil {
		// Live delivery is best effort; the comment is already stored.
		_ = s.publisher.PublishComment(ctx, comment)
	}
	return comment, nil
}

func (s *CommentService) ListByArticle(ctx context.Context, articleID uint) ([]*models.Comment, error) {
	comments, err := s.comments.ListByArticle(ctx, articleID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}
