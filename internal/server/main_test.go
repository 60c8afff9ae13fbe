package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"myblog/internal/cache"
	"myblog/internal/config"
	"myblog/internal/middleware"
	"myblog/internal/models"
	"myblog/internal/service"
	"myblog/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-that-is-at-least-32-chars"

type testEnv struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
	cfg *config.Config
	mr  *miniredis.Miniredis

	author *models.User
	reader *models.User
}

func newTestEnv(t *testing.T, withRedis bool) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	cfg := &config.Config{
		Env:                "test",
		Port:               "0",
		JWTSecret:          testSecret,
		LoginURL:           "/userprofile/login",
		UploadDir:          t.TempDir(),
		MaxUploadSizeMB:    1,
		AvatarSize:         200,
		ArticlesPerPage:    3,
		ColumnDeletePolicy: config.ColumnDeleteCascade,
		FeatureFlags:       "render_cache=on,live_comments=on",
	}

	env := &testEnv{db: db, cfg: cfg}
	var rdb *redis.Client
	if withRedis {
		env.mr = miniredis.RunT(t)
		rdb = redis.NewClient(&redis.Options{Addr: env.mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
	}
	cache.SetClient(rdb)
	t.Cleanup(func() { cache.SetClient(nil) })

	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	env.srv = srv
	env.app = srv.NewApp()
	env.author = testutil.CreateUser(t, db, "author")
	env.reader = testutil.CreateUser(t, db, "reader")
	return env
}

// token signs a session token for u.
func (e *testEnv) token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, _, err := e.srv.auth.IssueToken(u.ID, u.Username)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) createArticle(t *testing.T, u *models.User, form service.ArticleForm) *models.Article {
	t.Helper()
	a, err := e.srv.articleService.Create(t.Context(), service.CreateArticleInput{UserID: u.ID, Form: form})
	require.NoError(t, err)
	return a
}

func (e *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// jsonRequest builds a request that asks for JSON, optionally as user u.
func (e *testEnv) jsonRequest(t *testing.T, method, target string, body interface{}, u *models.User) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Accept", fiber.MIMEApplicationJSON)
	if body != nil {
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	}
	if u != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(t, u))
	}
	return req
}

// formRequest builds a browser-style urlencoded POST, optionally as user u.
func (e *testEnv) formRequest(t *testing.T, target string, values url.Values, u *models.User) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	req.Header.Set("Accept", fiber.MIMETextHTML)
	if u != nil {
		req.AddCookie(&http.Cookie{Name: middleware.AuthCookie, Value: e.token(t, u)})
	}
	return req
}

// multipartBody encodes fields plus an optional PNG under "avatar".
func multipartBody(t *testing.T, fields map[string]string, png []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if png != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="avatar"; filename="cover.png"`)
		h.Set("Content-Type", "image/png")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(png)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decode(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
