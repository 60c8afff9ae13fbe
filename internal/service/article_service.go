package service

import (
	"context"
	"strings"
	"time"

	"myblog/internal/cache"
	"myblog/internal/config"
	"myblog/internal/featureflags"
	"myblog/internal/markdown"
	"myblog/internal/middleware"
	"myblog/internal/models"
	"myblog/internal/observability"
	"myblog/internal/repository"
	"myblog/internal/validation"

	ozzo "github.com/go-ozzo/ozzo-validation/v4"
	"go.opentelemetry.io/otel/attribute"
)

// ColumnNone is the form value meaning "no column".
const ColumnNone = "none"

const defaultArticlesPerPage = 3

type ArticleService struct {
	articles  repository.ArticleRepository
	comments  repository.CommentRepository
	columns   *ColumnService
	images    *ImageService
	renderer  *markdown.Renderer
	flags     *featureflags.Manager
	perPage   int
	renderTTL time.Duration
}

// ArticleForm is the submitted create/update form. It is the only source of
// the fields copied onto an article.
type ArticleForm struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Column string `json:"column"`
	Tags   string `json:"tags"`
}

func (f ArticleForm) Validate() error {
	return ozzo.ValidateStruct(&f,
		ozzo.Field(&f.Title, ozzo.Required, ozzo.RuneLength(1, 100)),
		ozzo.Field(&f.Body, ozzo.Required),
		ozzo.Field(&f.Column, ozzo.By(func(value interface{}) error {
			s, _ := value.(string)
			if s == "" || s == ColumnNone {
				return nil
			}
			if _, ok := parseColumnID(s); !ok {
				return ozzo.NewError("validation_column_invalid", "must be a column id or \"none\"")
			}
			return nil
		})),
	)
}

// TagNames splits the comma separated tag field, trimming blanks and
// dropping duplicates while keeping first-seen order.
func (f ArticleForm) TagNames() []string {
	var names []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(f.Tags, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

type CreateArticleInput struct {
	UserID uint
	Form   ArticleForm
	Avatar *UploadImageInput
}

type UpdateArticleInput struct {
	UserID    uint
	ArticleID uint
	Form      ArticleForm
	Avatar    *UploadImageInput
}

type DeleteArticleInput struct {
	UserID    uint
	ArticleID uint
	// Method is the HTTP method of the request; safe delete requires POST.
	Method string
}

// ArticleView is everything the detail page shows.
type ArticleView struct {
	Article  *models.Article   `json:"article"`
	HTML     string            `json:"html"`
	TOC      string            `json:"toc"`
	Comments []*models.Comment `json:"comments"`
	IsNew    bool              `json:"is_new"`
}

// ArticleEditForm backs the update page.
type ArticleEditForm struct {
	Article *models.Article `json:"article"`
	Columns []models.Column `json:"columns"`
	TagList string          `json:"tags"`
}

func NewArticleService(
	articles repository.ArticleRepository,
	comments repository.CommentRepository,
	columns *ColumnService,
	images *ImageService,
	renderer *markdown.Renderer,
	flags *featureflags.Manager,
	cfg *config.Config,
) *ArticleService {
	s := &ArticleService{
		articles:  articles,
		comments:  comments,
		columns:   columns,
		images:    images,
		renderer:  renderer,
		flags:     flags,
		perPage:   defaultArticlesPerPage,
		renderTTL: cache.RenderTTL,
	}
	if cfg != nil {
		if cfg.ArticlesPerPage > 0 {
			s.perPage = cfg.ArticlesPerPage
		}
		if cfg.RenderCacheTTLMin > 0 {
			s.renderTTL = time.Duration(cfg.RenderCacheTTLMin) * time.Minute
		}
	}
	return s
}

// List returns one page of articles matching the listing parameters.
func (s *ArticleService) List(ctx context.Context, in ListArticlesInput) (*ArticlePage, error) {
	filter := BuildFilter(in)

	total, err := s.articles.Count(ctx, filter)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	page := newArticlePage(in, total, s.perPage)
	articles, err := s.articles.List(ctx, filter, s.perPage, page.offset())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	page.Articles = articles
	return page, nil
}

// View counts a view and returns the article with rendered body and comments.
func (s *ArticleService) View(ctx context.Context, id uint, viewerID uint) (view *ArticleView, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ArticleService", "View", attribute.Int64("article.id", int64(id)))
	defer func() { observability.EndSpan(span, err) }()

	if err := s.articles.IncrementViews(ctx, id); err != nil {
		return nil, err
	}
	observability.ArticleViewsTotal.Inc()

	article, err := s.articles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rendered, err := s.render(ctx, article, viewerID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	comments, err := s.comments.ListByArticle(ctx, id)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	return &ArticleView{
		Article:  article,
		HTML:     rendered.HTML,
		TOC:      rendered.TOC,
		Comments: comments,
		IsNew:    article.WasCreatedRecently(time.Now()),
	}, nil
}

func (s *ArticleService) render(ctx context.Context, article *models.Article, viewerID uint) (markdown.Result, error) {
	if s.flags == nil || !s.flags.Enabled(featureflags.RenderCache, viewerID) {
		return s.renderer.Render(article.Body)
	}
	var out markdown.Result
	err := cache.Aside(ctx, "render", cache.RenderKey(article.ID, article.UpdatedAt), &out, s.renderTTL, func() error {
		var err error
		out, err = s.renderer.Render(article.Body)
		return err
	})
	return out, err
}

// Columns lists the columns offered on the create form.
func (s *ArticleService) Columns(ctx context.Context) ([]models.Column, error) {
	return s.columns.List(ctx)
}

// EditForm loads the update page for the article's author.
func (s *ArticleService) EditForm(ctx context.Context, userID, articleID uint) (*ArticleEditForm, error) {
	article, err := s.ownedArticle(ctx, userID, articleID)
	if err != nil {
		return nil, err
	}
	columns, err := s.columns.List(ctx)
	if err != nil {
		return nil, err
	}
	return &ArticleEditForm{Article: article, Columns: columns, TagList: article.TagList()}, nil
}

func (s *ArticleService) Create(ctx context.Context, in CreateArticleInput) (article *models.Article, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ArticleService", "Create")
	defer func() { observability.EndSpan(span, err) }()

	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Login required")
	}
	columnID, err := s.validateForm(ctx, in.Form)
	if err != nil {
		return nil, err
	}

	article = &models.Article{
		AuthorID: in.UserID,
		Title:    in.Form.Title,
		Body:     in.Form.Body,
		ColumnID: columnID,
	}
	if in.Avatar != nil {
		if article.Avatar, err = s.storeAvatar(*in.Avatar); err != nil {
			return nil, err
		}
	}

	if err := s.articles.Create(ctx, article, in.Form.TagNames()); err != nil {
		s.images.Remove(article.Avatar)
		return nil, models.NewInternalError(err)
	}
	observability.ArticleMutations.WithLabelValues("create").Inc()

	return s.articles.GetByID(ctx, article.ID)
}

func (s *ArticleService) Update(ctx context.Context, in UpdateArticleInput) (article *models.Article, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ArticleService", "Update", attribute.Int64("article.id", int64(in.ArticleID)))
	defer func() { observability.EndSpan(span, err) }()

	article, err = s.ownedArticle(ctx, in.UserID, in.ArticleID)
	if err != nil {
		return nil, err
	}
	columnID, err := s.validateForm(ctx, in.Form)
	if err != nil {
		return nil, err
	}

	oldAvatar := article.Avatar
	if in.Avatar != nil {
		if article.Avatar, err = s.storeAvatar(*in.Avatar); err != nil {
			return nil, err
		}
	} else if article.Avatar != "" {
		if err := s.images.ResizeInPlace(article.Avatar); err != nil {
			middleware.Logger.WarnContext(ctx, "Failed to normalise existing avatar",
				"article_id", article.ID, "error", err)
		}
	}

	article.Title = in.Form.Title
	article.Body = in.Form.Body
	article.ColumnID = columnID
	article.Column = nil

	if err := s.articles.Update(ctx, article, in.Form.TagNames()); err != nil {
		if article.Avatar != oldAvatar {
			s.images.Remove(article.Avatar)
		}
		return nil, appError(err)
	}
	if article.Avatar != oldAvatar {
		s.images.Remove(oldAvatar)
	}
	observability.ArticleMutations.WithLabelValues("update").Inc()

	return s.articles.GetByID(ctx, article.ID)
}

// Delete removes the article on behalf of its author.
func (s *ArticleService) Delete(ctx context.Context, in DeleteArticleInput) error {
	article, err := s.ownedArticle(ctx, in.UserID, in.ArticleID)
	if err != nil {
		return err
	}
	return s.remove(ctx, article, "delete")
}

// SafeDelete is Delete gated on a POST request. Any other method deletes
// nothing.
func (s *ArticleService) SafeDelete(ctx context.Context, in DeleteArticleInput) error {
	article, err := s.ownedArticle(ctx, in.UserID, in.ArticleID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(in.Method, "POST") {
		return models.NewMethodNotAllowedError("Articles can only be deleted with a POST request")
	}
	return s.remove(ctx, article, "safe_delete")
}

func (s *ArticleService) remove(ctx context.Context, article *models.Article, op string) error {
	if err := s.articles.Delete(ctx, article.ID); err != nil {
		return appError(err)
	}
	s.images.Remove(article.Avatar)
	observability.ArticleMutations.WithLabelValues(op).Inc()
	return nil
}

// ownedArticle loads an article and checks that userID wrote it.
func (s *ArticleService) ownedArticle(ctx context.Context, userID, articleID uint) (*models.Article, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Login required")
	}
	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article.AuthorID != userID {
		return nil, models.NewForbiddenError("You are not allowed to modify this article")
	}
	return article, nil
}

// validateForm checks the form and resolves its column.
func (s *ArticleService) validateForm(ctx context.Context, form ArticleForm) (*uint, error) {
	if err := form.Validate(); err != nil {
		return nil, models.NewValidationError(validation.Message(err))
	}
	for _, name := range form.TagNames() {
		if len([]rune(name)) > 100 {
			return nil, models.NewValidationError("tags: each tag must be at most 100 characters")
		}
	}

	id, ok := parseColumnID(form.Column)
	if !ok {
		return nil, nil
	}
	if _, err := s.columns.Get(ctx, id); err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, models.NewValidationError("column: does not exist")
		}
		return nil, err
	}
	return &id, nil
}

// storeAvatar saves an uploaded avatar and normalises it to the avatar size.
func (s *ArticleService) storeAvatar(in UploadImageInput) (string, error) {
	rel, err := s.images.Store(ImageKindArticle, in)
	if err != nil {
		return "", err
	}
	if err := s.images.ResizeInPlace(rel); err != nil {
		s.images.Remove(rel)
		return "", err
	}
	return rel, nil
}
