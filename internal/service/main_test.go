package service

import (
	"context"
	"testing"

	"myblog/internal/config"
	"myblog/internal/featureflags"
	"myblog/internal/markdown"
	"myblog/internal/models"
	"myblog/internal/repository"
	"myblog/internal/testutil"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	cfg      *config.Config
	images   *ImageService
	columns  *ColumnService
	articles *ArticleService
	comments *CommentService
	users    *UserService
	articleR repository.ArticleRepository
	author   *models.User
	reader   *models.User
}

type recordingPublisher struct {
	published []*models.Comment
}

func (p *recordingPublisher) PublishComment(_ context.Context, c *models.Comment) error {
	p.published = append(p.published, c)
	return nil
}

func newFixture(t *testing.T, flags string) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	cfg := &config.Config{
		UploadDir:          t.TempDir(),
		MaxUploadSizeMB:    1,
		AvatarSize:         200,
		ArticlesPerPage:    3,
		ColumnDeletePolicy: config.ColumnDeleteCascade,
	}

	articleRepo := repository.NewArticleRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	images := NewImageService(cfg)
	columns := NewColumnService(repository.NewColumnRepository(db), images, cfg.ColumnDeletePolicy)
	users := NewUserService(repository.NewUserRepository(db), images)
	users.hashCost = bcrypt.MinCost

	return &fixture{
		db:       db,
		cfg:      cfg,
		images:   images,
		columns:  columns,
		articles: NewArticleService(articleRepo, commentRepo, columns, images, markdown.New(), featureflags.NewManager(flags), cfg),
		comments: NewCommentService(commentRepo, articleRepo, nil),
		users:    users,
		articleR: articleRepo,
		author:   testutil.CreateUser(t, db, "author"),
		reader:   testutil.CreateUser(t, db, "reader"),
	}
}
