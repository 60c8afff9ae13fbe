package server

import (
	"context"
	"errors"
	"image"
	_ "image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"myblog/internal/models"
	"myblog/internal/repository"
	"myblog/internal/service"
	"myblog/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTagRepository is a mock of the TagRepository interface
type MockTagRepository struct {
	mock.Mock
}

func (m *MockTagRepository) Popular(ctx context.Context, limit int) ([]repository.TagCount, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.TagCount), args.Error(1)
}

func TestRoot_RedirectsToList(t *testing.T) {
	env := newTestEnv(t, false)
	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/article/article-list", resp.Header.Get("Location"))
}

func TestListArticles_JSONFiltersAndPages(t *testing.T) {
	env := newTestEnv(t, false)
	for _, title := range []string{"Go tips", "Rust notes", "More Go", "go again", "Gardening"} {
		env.createArticle(t, env.author, service.ArticleForm{Title: title, Body: "body", Column: "none"})
	}

	resp := env.do(t, env.jsonRequest(t, http.MethodGet, "/article/article-list?search=go&page=99", nil, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page service.ArticlePage
	decode(t, resp, &page)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 1, page.NumPages)
	assert.Equal(t, 1, page.Number)
	assert.Len(t, page.Articles, 3)
	assert.Equal(t, "go", page.Search)
}

func TestListArticles_RendersHTML(t *testing.T) {
	env := newTestEnv(t, false)
	env.createArticle(t, env.author, service.ArticleForm{Title: "Rendered title", Body: "x", Column: "none", Tags: "golang"})

	req := httptest.NewRequest(http.MethodGet, "/article/article-list/", nil)
	req.Header.Set("Accept", fiber.MIMETextHTML)
	resp := env.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	body := readBody(t, resp)
	assert.Contains(t, body, "Rendered title")
	assert.Contains(t, body, "golang")
}

func TestListArticles_TagSidebarFailureStillRenders(t *testing.T) {
	env := newTestEnv(t, false)
	tags := new(MockTagRepository)
	tags.On("Popular", mock.Anything, popularTagLimit).Return(nil, errors.New("boom"))
	env.srv.tagRepo = tags

	req := httptest.NewRequest(http.MethodGet, "/article/article-list", nil)
	req.Header.Set("Accept", fiber.MIMETextHTML)
	resp := env.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	tags.AssertExpectations(t)
}

func TestArticleDetail_CountsViews(t *testing.T) {
	env := newTestEnv(t, false)
	a := env.createArticle(t, env.author, service.ArticleForm{Title: "T", Body: "# Heading\n\ntext", Column: "none"})

	for want := uint(1); want <= 2; want++ {
		resp := env.do(t, env.jsonRequest(t, http.MethodGet, detailURL(a.ID), nil, nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var view service.ArticleView
		decode(t, resp, &view)
		assert.Equal(t, want, view.Article.TotalViews)
		assert.Contains(t, view.HTML, `<h1 id="heading">Heading</h1>`)
		assert.Contains(t, view.TOC, `href="#heading"`)
	}

	req := httptest.NewRequest(http.MethodGet, detailURL(a.ID), nil)
	resp := env.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `<h1 id="heading">Heading</h1>`)
	assert.Contains(t, body, "/ws/articles/")
}

func TestArticleDetail_Missing(t *testing.T) {
	env := newTestEnv(t, false)

	resp := env.do(t, env.jsonRequest(t, http.MethodGet, "/article/article-detail/999", nil, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, env.jsonRequest(t, http.MethodGet, "/article/article-detail/abc", nil, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateArticle_RequiresLogin(t *testing.T) {
	env := newTestEnv(t, false)

	req := httptest.NewRequest(http.MethodGet, "/article/article-create", nil)
	req.Header.Set("Accept", fiber.MIMETextHTML)
	resp := env.do(t, req)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/userprofile/login?next=%2Farticle%2Farticle-create", resp.Header.Get("Location"))

	resp = env.do(t, env.jsonRequest(t, http.MethodPost, "/article/article-create",
		service.ArticleForm{Title: "x", Body: "y"}, nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateArticle_MultipartWithAvatar(t *testing.T) {
	env := newTestEnv(t, false)

	body, contentType := multipartBody(t, map[string]string{
		"title":  "Hello",
		"body":   "World",
		"column": "none",
		"tags":   "a,b",
	}, testutil.PNG(t, 320, 180))
	req := httptest.NewRequest(http.MethodPost, "/article/article-create", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", fiber.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer "+env.token(t, env.author))

	resp := env.do(t, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Article
	decode(t, resp, &created)

	stored, err := env.srv.articleRepo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, env.author.ID, stored.AuthorID)
	assert.Nil(t, stored.ColumnID)
	assert.ElementsMatch(t, []string{"a", "b"}, stored.TagNames())
	require.NotEmpty(t, stored.Avatar)

	f, err := os.Open(env.srv.images.AbsPath(stored.Avatar))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 200, cfg.Height)

	// The stored file is served under /media.
	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/media/"+stored.Avatar, nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateArticle_FormRedirectsAndValidates(t *testing.T) {
	env := newTestEnv(t, false)
	col := testutil.CreateColumn(t, env.db, "Go")

	resp := env.do(t, env.formRequest(t, "/article/article-create", map[string][]string{
		"title":  {"Form post"},
		"body":   {"text"},
		"column": {itoa(col.ID)},
	}, env.author))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/article/article-list", resp.Header.Get("Location"))

	resp = env.do(t, env.formRequest(t, "/article/article-create", map[string][]string{
		"title": {""},
		"body":  {"text"},
	}, env.author))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotContains(t, resp.Header.Get("Content-Type"), "json")
}

func TestUpdateArticle_NonAuthorForbidden(t *testing.T) {
	env := newTestEnv(t, false)
	a := env.createArticle(t, env.author, service.ArticleForm{Title: "Original", Body: "Body", Column: "none"})

	resp := env.do(t, env.jsonRequest(t, http.MethodPost, "/article/article-update/"+itoa(a.ID),
		service.ArticleForm{Title: "Hijacked", Body: "Nope", Column: "none"}, env.reader))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, env.jsonRequest(t, http.MethodGet, "/article/article-update/"+itoa(a.ID), nil, env.reader))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	stored, err := env.srv.articleRepo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", stored.Title)
	assert.Equal(t, "Body", stored.Body)
}

func TestUpdateArticle_AuthorEdits(t *testing.T) {
	env := newTestEnv(t, false)
	a := env.createArticle(t, env.author, service.ArticleForm{Title: "Original", Body: "Body", Column: "none", Tags: "x,y"})

	req := httptest.NewRequest(http.MethodGet, "/article/article-update/"+itoa(a.ID), nil)
	req.AddCookie(&http.Cookie{Name: "myblog_token", Value: env.token(t, env.author)})
	resp := env.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `value="x,y"`)

	resp = env.do(t, env.formRequest(t, "/article/article-update/"+itoa(a.ID), map[string][]string{
		"title":  {"Edited"},
		"body":   {"New body"},
		"column": {"none"},
		"tags":   {"z"},
	}, env.author))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, detailURL(a.ID), resp.Header.Get("Location"))

	stored, err := env.srv.articleRepo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Edited", stored.Title)
	assert.Equal(t, []string{"z"}, stored.TagNames())
}

func TestSafeDelete_OnlyPOSTDeletes(t *testing.T) {
	env := newTestEnv(t, false)
	a := env.createArticle(t, env.author, service.ArticleForm{Title: "Doomed", Body: "b", Column: "none"})
	target := "/article/article-safe-delete/" + itoa(a.ID)

	resp := env.do(t, env.jsonRequest(t, http.MethodGet, target, nil, env.author))
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	_, err := env.srv.articleRepo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)

	resp = env.do(t, env.jsonRequest(t, http.MethodPost, target, nil, env.reader))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, env.jsonRequest(t, http.MethodPost, target, nil, env.author))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, err = env.srv.articleRepo.GetByID(context.Background(), a.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestDelete_AnyMethodByAuthor(t *testing.T) {
	env := newTestEnv(t, false)
	a := env.createArticle(t, env.author, service.ArticleForm{Title: "Doomed", Body: "b", Column: "none"})

	req := httptest.NewRequest(http.MethodGet, "/article/article-delete/"+itoa(a.ID), nil)
	req.AddCookie(&http.Cookie{Name: "myblog_token", Value: env.token(t, env.author)})
	resp := env.do(t, req)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/article/article-list", resp.Header.Get("Location"))

	_, err := env.srv.articleRepo.GetByID(context.Background(), a.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestHighlightCSS(t *testing.T) {
	env := newTestEnv(t, false)
	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/static/highlight.css", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")
	assert.Contains(t, readBody(t, resp), ".chroma")
}
