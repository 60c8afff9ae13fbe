package server

import (
	"context"
	"strconv"

	"myblog/internal/featureflags"
	"myblog/internal/middleware"
	"myblog/internal/repository"
	"myblog/internal/service"

	"github.com/gofiber/fiber/v2"
)

const popularTagLimit = 10

// ListArticles handles GET /article/article-list
func (s *Server) ListArticles(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page, err := s.articleService.List(ctx, service.ListArticlesInput{
		Search: c.Query("search"),
		Order:  c.Query("order"),
		Column: c.Query("column"),
		Tag:    c.Query("tag"),
		Page:   c.Query("page"),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	if middleware.WantsJSON(c) {
		return c.JSON(page)
	}

	columns, err := s.columnService.List(ctx)
	if err != nil {
		return s.respondError(c, err)
	}
	tags, err := s.tagRepo.Popular(ctx, popularTagLimit)
	if err != nil {
		tags = []repository.TagCount{}
	}
	return s.render(c, "article/list", fiber.Map{
		"title":   "Articles",
		"page":    page,
		"columns": columns,
		"tags":    tags,
	})
}

// ArticleDetail handles GET /article/article-detail/:id
func (s *Server) ArticleDetail(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	viewerID, _ := currentUserID(c)

	view, err := s.articleService.View(c.UserContext(), id, viewerID)
	if err != nil {
		return s.respondError(c, err)
	}
	if middleware.WantsJSON(c) {
		return c.JSON(view)
	}
	return s.render(c, "article/detail", fiber.Map{
		"title":         view.Article.Title,
		"view":          view,
		"is_author":     viewerID != 0 && viewerID == view.Article.AuthorID,
		"live_comments": s.featureFlags.Enabled(featureflags.LiveComments, viewerID),
	})
}

// CreateArticleForm handles GET /article/article-create
func (s *Server) CreateArticleForm(c *fiber.Ctx) error {
	columns, err := s.articleService.Columns(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	if middleware.WantsJSON(c) {
		return c.JSON(fiber.Map{"columns": columns})
	}
	return s.render(c, "article/create", fiber.Map{
		"title":   "Write an article",
		"columns": columns,
	})
}

// CreateArticle handles POST /article/article-create
func (s *Server) CreateArticle(c *fiber.Ctx) error {
	userID, _ := currentUserID(c)
	form, avatar, err := parseArticleForm(c)
	if err != nil {
		return s.respondError(c, err)
	}

	article, err := s.articleService.Create(c.UserContext(), service.CreateArticleInput{
		UserID: userID,
		Form:   form,
		Avatar: avatar,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return redirectOr(c, defaultRedirect, fiber.StatusCreated, article)
}

// UpdateArticleForm handles GET /article/article-update/:id
func (s *Server) UpdateArticleForm(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := currentUserID(c)

	form, err := s.articleService.EditForm(c.UserContext(), userID, id)
	if err != nil {
		return s.respondError(c, err)
	}
	if middleware.WantsJSON(c) {
		return c.JSON(form)
	}
	var selected uint
	if form.Article.ColumnID != nil {
		selected = *form.Article.ColumnID
	}
	return s.render(c, "article/update", fiber.Map{
		"title":           "Edit " + form.Article.Title,
		"form":            form,
		"selected_column": selected,
	})
}

// UpdateArticle handles POST /article/article-update/:id
func (s *Server) UpdateArticle(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := currentUserID(c)
	form, avatar, err := parseArticleForm(c)
	if err != nil {
		return s.respondError(c, err)
	}

	article, err := s.articleService.Update(c.UserContext(), service.UpdateArticleInput{
		UserID:    userID,
		ArticleID: id,
		Form:      form,
		Avatar:    avatar,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return redirectOr(c, detailURL(article.ID), fiber.StatusOK, article)
}

// DeleteArticle handles /article/article-delete/:id for any method.
func (s *Server) DeleteArticle(c *fiber.Ctx) error {
	return s.deleteArticle(c, s.articleService.Delete)
}

// SafeDeleteArticle handles /article/article-safe-delete/:id; only POST deletes.
func (s *Server) SafeDeleteArticle(c *fiber.Ctx) error {
	return s.deleteArticle(c, s.articleService.SafeDelete)
}

func (s *Server) deleteArticle(c *fiber.Ctx, del func(ctx context.Context, in service.DeleteArticleInput) error) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := currentUserID(c)

	if err := del(c.UserContext(), service.DeleteArticleInput{
		UserID:    userID,
		ArticleID: id,
		Method:    c.Method(),
	}); err != nil {
		return s.respondError(c, err)
	}
	return redirectOr(c, defaultRedirect, fiber.StatusNoContent, nil)
}

func parseArticleForm(c *fiber.Ctx) (service.ArticleForm, *service.UploadImageInput, error) {
	var form service.ArticleForm
	err := bindForm(c, &form, func(get func(string) string) {
		form = service.ArticleForm{
			Title:  get("title"),
			Body:   get("body"),
			Column: get("column"),
			Tags:   get("tags"),
		}
	})
	if err != nil {
		return form, nil, err
	}
	avatar, err := readUpload(c, "avatar")
	return form, avatar, err
}

func detailURL(id uint) string {
	return "/article/article-detail/" + strconv.FormatUint(uint64(id), 10)
}
