package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"testing"
	"time"

	"myblog/internal/cache"
	"myblog/internal/models"
	"myblog/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) create(t *testing.T, userID uint, form ArticleForm) *models.Article {
	t.Helper()
	a, err := f.articles.Create(context.Background(), CreateArticleInput{UserID: userID, Form: form})
	require.NoError(t, err)
	return a
}

func pngUpload(t *testing.T, w, h int) *UploadImageInput {
	return &UploadImageInput{Filename: "a.png", ContentType: "image/png", Content: testutil.PNG(t, w, h)}
}

func TestArticleService_CreateScenario(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	created := f.create(t, f.author.ID, ArticleForm{Title: "Hello", Body: "World", Column: "none", Tags: "a,b"})

	view, err := f.articles.View(ctx, created.ID, f.reader.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, view.Article.TagNames())
	assert.Nil(t, view.Article.Column)
	assert.Nil(t, view.Article.ColumnID)
	assert.Equal(t, f.author.ID, view.Article.AuthorID)
	assert.Equal(t, "author", view.Article.Author.Username)
	assert.Contains(t, view.HTML, "<p>World</p>")
	assert.True(t, view.IsNew)
}

func TestArticleService_CreateRequiresLogin(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.articles.Create(context.Background(), CreateArticleInput{Form: ArticleForm{Title: "t", Body: "b"}})
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))
}

func TestArticleService_CreateValidation(t *testing.T) {
	f := newFixture(t, "")
	col := testutil.CreateColumn(t, f.db, "Go")

	tests := []struct {
		name    string
		form    ArticleForm
		wantErr string
	}{
		{"missing title", ArticleForm{Body: "b"}, "title"},
		{"missing body", ArticleForm{Title: "t"}, "body"},
		{"title too long", ArticleForm{Title: strings.Repeat("x", 101), Body: "b"}, "title"},
		{"garbage column", ArticleForm{Title: "t", Body: "b", Column: "abc"}, "column"},
		{"unknown column", ArticleForm{Title: "t", Body: "b", Column: fmt.Sprint(col.ID + 10)}, "column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.articles.Create(context.Background(), CreateArticleInput{UserID: f.author.ID, Form: tt.form})
			require.Error(t, err)
			assert.True(t, models.HasCode(err, models.CodeValidation))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	var n int64
	require.NoError(t, f.db.Model(&models.Article{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestArticleForm_TagNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "d"}, ArticleForm{Tags: " a, b c ,,a, d "}.TagNames())
	assert.Empty(t, ArticleForm{Tags: " , "}.TagNames())
}

func TestArticleService_ViewIncrementsOnlyViews(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	col := testutil.CreateColumn(t, f.db, "Go")
	created := f.create(t, f.author.ID, ArticleForm{Title: "T", Body: "# Heading\n\nbody", Column: fmt.Sprint(col.ID), Tags: "go"})

	var before models.Article
	require.NoError(t, f.db.First(&before, created.ID).Error)

	view, err := f.articles.View(ctx, created.ID, 0)
	require.NoError(t, err)
	assert.Contains(t, view.TOC, `href="#heading"`)

	var after models.Article
	require.NoError(t, f.db.First(&after, created.ID).Error)
	assert.Equal(t, before.TotalViews+1, after.TotalViews)

	after.TotalViews = before.TotalViews
	assert.Equal(t, before, after)
}

func TestArticleService_ViewMissing(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.articles.View(context.Background(), 404, 0)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestArticleService_ViewUsesRenderCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	f := newFixture(t, "render_cache=on")
	ctx := context.Background()
	created := f.create(t, f.author.ID, ArticleForm{Title: "T", Body: "**bold**"})

	first, err := f.articles.View(ctx, created.ID, 0)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.RenderKey(created.ID, first.Article.UpdatedAt)))

	second, err := f.articles.View(ctx, created.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, first.HTML, second.HTML)
	assert.Equal(t, uint(2), second.Article.TotalViews)
}

func TestArticleService_ListSearchProperty(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	f.cfg.ArticlesPerPage = 100
	f.articles.perPage = 100

	corpus := []ArticleForm{
		{Title: "Go Concurrency", Body: "channels"},
		{Title: "Rust", Body: "Borrowing like a GOpher"},
		{Title: "Cooking", Body: "pasta"},
		{Title: "50% off", Body: "sale"},
	}
	for _, form := range corpus {
		f.create(t, f.author.ID, form)
	}

	for _, search := range []string{"go", "GO", "pasta", "%", "o", "zzz"} {
		page, err := f.articles.List(ctx, ListArticlesInput{Search: search})
		require.NoError(t, err)

		returned := map[string]bool{}
		for _, a := range page.Articles {
			returned[a.Title] = true
		}
		needle := strings.ToLower(search)
		for _, form := range corpus {
			contains := strings.Contains(strings.ToLower(form.Title), needle) ||
				strings.Contains(strings.ToLower(form.Body), needle)
			assert.Equal(t, contains, returned[form.Title], "search %q article %q", search, form.Title)
		}
		assert.Equal(t, search, page.Search)
	}
}

func TestArticleService_ListNonNumericColumnIgnored(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	col := testutil.CreateColumn(t, f.db, "Go")
	f.create(t, f.author.ID, ArticleForm{Title: "in column", Body: "b", Column: fmt.Sprint(col.ID)})
	f.create(t, f.author.ID, ArticleForm{Title: "loose", Body: "b"})

	all, err := f.articles.List(ctx, ListArticlesInput{})
	require.NoError(t, err)
	garbage, err := f.articles.List(ctx, ListArticlesInput{Column: "go"})
	require.NoError(t, err)
	assert.Equal(t, all.Total, garbage.Total)
	assert.Equal(t, int64(2), garbage.Total)

	filtered, err := f.articles.List(ctx, ListArticlesInput{Column: fmt.Sprint(col.ID)})
	require.NoError(t, err)
	require.Len(t, filtered.Articles, 1)
	assert.Equal(t, "in column", filtered.Articles[0].Title)
}

func TestArticleService_ListPageBeyondLast(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		f.create(t, f.author.ID, ArticleForm{Title: fmt.Sprintf("a%d", i), Body: "b"})
	}

	page, err := f.articles.List(ctx, ListArticlesInput{Page: "42"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Number)
	assert.Equal(t, 3, page.NumPages)
	assert.Len(t, page.Articles, 1)

	page, err = f.articles.List(ctx, ListArticlesInput{Page: "nope"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Number)
	assert.Len(t, page.Articles, 3)
}

func TestArticleService_UpdateByNonAuthorIsForbidden(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	created := f.create(t, f.author.ID, ArticleForm{Title: "Original", Body: "body", Tags: "keep"})

	var before models.Article
	require.NoError(t, f.db.First(&before, created.ID).Error)

	_, err := f.articles.Update(ctx, UpdateArticleInput{
		UserID:    f.reader.ID,
		ArticleID: created.ID,
		Form:      ArticleForm{Title: "Hijacked", Body: "x", Tags: "evil"},
	})
	assert.True(t, models.HasCode(err, models.CodeForbidden))

	got, err := f.articleR.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Title)
	assert.Equal(t, []string{"keep"}, got.TagNames())
	assert.True(t, before.UpdatedAt.Equal(got.UpdatedAt))
}

func TestArticleService_UpdateReplacesFields(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	col := testutil.CreateColumn(t, f.db, "Go")
	created := f.create(t, f.author.ID, ArticleForm{Title: "Old", Body: "old", Column: fmt.Sprint(col.ID), Tags: "a,b"})

	updated, err := f.articles.Update(ctx, UpdateArticleInput{
		UserID:    f.author.ID,
		ArticleID: created.ID,
		Form:      ArticleForm{Title: "New", Body: "new", Column: "none", Tags: "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, "new", updated.Body)
	assert.Nil(t, updated.ColumnID)
	assert.Equal(t, []string{"c"}, updated.TagNames())
}

func TestArticleService_EditForm(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	testutil.CreateColumn(t, f.db, "Go")
	created := f.create(t, f.author.ID, ArticleForm{Title: "T", Body: "b", Tags: "b,a"})

	form, err := f.articles.EditForm(ctx, f.author.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "a,b", form.TagList)
	assert.Len(t, form.Columns, 1)

	_, err = f.articles.EditForm(ctx, f.reader.ID, created.ID)
	assert.True(t, models.HasCode(err, models.CodeForbidden))
}

func TestArticleService_SafeDelete(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	target := f.create(t, f.author.ID, ArticleForm{Title: "target", Body: "b"})
	other := f.create(t, f.author.ID, ArticleForm{Title: "other", Body: "b"})

	err := f.articles.SafeDelete(ctx, DeleteArticleInput{UserID: f.author.ID, ArticleID: target.ID, Method: "GET"})
	assert.True(t, models.HasCode(err, models.CodeMethodNotAllowed))
	_, err = f.articleR.GetByID(ctx, target.ID)
	require.NoError(t, err)

	err = f.articles.SafeDelete(ctx, DeleteArticleInput{UserID: f.reader.ID, ArticleID: target.ID, Method: "POST"})
	assert.True(t, models.HasCode(err, models.CodeForbidden))

	require.NoError(t, f.articles.SafeDelete(ctx, DeleteArticleInput{UserID: f.author.ID, ArticleID: target.ID, Method: "POST"}))
	_, err = f.articleR.GetByID(ctx, target.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	_, err = f.articleR.GetByID(ctx, other.ID)
	assert.NoError(t, err)
}

func TestArticleService_DeleteAnyMethod(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	target := f.create(t, f.author.ID, ArticleForm{Title: "target", Body: "b"})

	err := f.articles.Delete(ctx, DeleteArticleInput{UserID: f.reader.ID, ArticleID: target.ID, Method: "GET"})
	assert.True(t, models.HasCode(err, models.CodeForbidden))

	require.NoError(t, f.articles.Delete(ctx, DeleteArticleInput{UserID: f.author.ID, ArticleID: target.ID, Method: "GET"}))
	_, err = f.articleR.GetByID(ctx, target.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func imageSize(t *testing.T, path string) (int, int) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestArticleService_AvatarLifecycle(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	f.images.now = func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) }

	created, err := f.articles.Create(ctx, CreateArticleInput{
		UserID: f.author.ID,
		Form:   ArticleForm{Title: "pic", Body: "b"},
		Avatar: pngUpload(t, 400, 300),
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(created.Avatar, "article/20240309/"))
	assert.True(t, strings.HasSuffix(created.Avatar, ".png"))

	w, h := imageSize(t, f.images.AbsPath(created.Avatar))
	assert.Equal(t, 200, w)
	assert.Equal(t, 200, h)

	oldPath := f.images.AbsPath(created.Avatar)
	updated, err := f.articles.Update(ctx, UpdateArticleInput{
		UserID:    f.author.ID,
		ArticleID: created.ID,
		Form:      ArticleForm{Title: "pic", Body: "b"},
		Avatar:    pngUpload(t, 50, 80),
	})
	require.NoError(t, err)
	assert.NotEqual(t, created.Avatar, updated.Avatar)
	_, err = os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))

	w, h = imageSize(t, f.images.AbsPath(updated.Avatar))
	assert.Equal(t, 200, w)
	assert.Equal(t, 200, h)

	require.NoError(t, f.articles.Delete(ctx, DeleteArticleInput{UserID: f.author.ID, ArticleID: created.ID}))
	_, err = os.Stat(f.images.AbsPath(updated.Avatar))
	assert.True(t, os.IsNotExist(err))
}
