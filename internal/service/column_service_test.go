package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"myblog/internal/cache"
	"myblog/internal/config"
	"myblog/internal/models"
	"myblog/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnService_CreateValidation(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	_, err := f.columns.Create(ctx, CreateColumnInput{Title: "   "})
	assert.True(t, models.HasCode(err, models.CodeValidation))

	_, err = f.columns.Create(ctx, CreateColumnInput{Title: strings.Repeat("c", 101)})
	assert.True(t, models.HasCode(err, models.CodeValidation))

	col, err := f.columns.Create(ctx, CreateColumnInput{Title: " Go "})
	require.NoError(t, err)
	assert.Equal(t, "Go", col.Title)
}

func TestColumnService_ListIsCachedAndInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	f := newFixture(t, "")
	ctx := context.Background()

	_, err := f.columns.Create(ctx, CreateColumnInput{Title: "Go"})
	require.NoError(t, err)

	cols, err := f.columns.List(ctx)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.True(t, mr.Exists(cache.ColumnsKey))

	// A write behind the service's back is hidden by the cache...
	require.NoError(t, f.db.Create(&models.Column{Title: "Sneaky"}).Error)
	cols, err = f.columns.List(ctx)
	require.NoError(t, err)
	assert.Len(t, cols, 1)

	// ...until the service itself writes.
	_, err = f.columns.Create(ctx, CreateColumnInput{Title: "Rust"})
	require.NoError(t, err)
	cols, err = f.columns.List(ctx)
	require.NoError(t, err)
	assert.Len(t, cols, 3)
}

func TestColumnService_DeletePolicies(t *testing.T) {
	for _, policy := range []string{config.ColumnDeleteCascade, config.ColumnDeleteNullify} {
		t.Run(policy, func(t *testing.T) {
			f := newFixture(t, "")
			f.columns = NewColumnService(repository.NewColumnRepository(f.db), f.images, policy)
			f.articles.columns = f.columns
			ctx := context.Background()

			col, err := f.columns.Create(ctx, CreateColumnInput{Title: "Doomed"})
			require.NoError(t, err)
			withPic, err := f.articles.Create(ctx, CreateArticleInput{
				UserID: f.author.ID,
				Form:   ArticleForm{Title: "pic", Body: "b", Column: fmt.Sprint(col.ID)},
				Avatar: pngUpload(t, 10, 10),
			})
			require.NoError(t, err)
			f.create(t, f.author.ID, ArticleForm{Title: "elsewhere", Body: "b"})

			res, err := f.columns.Delete(ctx, col.ID)
			require.NoError(t, err)
			assert.Equal(t, policy, res.Policy)

			_, statErr := os.Stat(f.images.AbsPath(withPic.Avatar))
			got, getErr := f.articleR.GetByID(ctx, withPic.ID)
			if policy == config.ColumnDeleteCascade {
				assert.Equal(t, 1, res.ArticlesRemoved)
				assert.True(t, models.HasCode(getErr, models.CodeNotFound))
				assert.True(t, os.IsNotExist(statErr))
			} else {
				assert.Equal(t, 0, res.ArticlesRemoved)
				require.NoError(t, getErr)
				assert.Nil(t, got.ColumnID)
				assert.NoError(t, statErr)
			}

			_, err = f.columns.Delete(ctx, col.ID)
			assert.True(t, models.HasCode(err, models.CodeNotFound))
		})
	}
}
