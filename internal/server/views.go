package server

import (
	"io/fs"
	"net/http"
	"os"

	"myblog/internal/config"
	"myblog/internal/markdown"
	"myblog/web"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
)

// newViews loads templates from VIEWS_DIR when it exists on disk and falls
// back to the copies compiled into the binary.
func newViews(cfg *config.Config) *django.Engine {
	if cfg.ViewsDir != "" {
		if st, err := os.Stat(cfg.ViewsDir); err == nil && st.IsDir() {
			engine := django.New(cfg.ViewsDir, ".html")
			engine.Reload(cfg.Env == "development")
			return engine
		}
	}
	sub, err := fs.Sub(web.Views, "views")
	if err != nil {
		panic(err)
	}
	return django.NewFileSystem(http.FS(sub), ".html")
}

// render adds the session details every page needs and renders name
// inside the base layout.
func (s *Server) render(c *fiber.Ctx, name string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if uid, ok := currentUserID(c); ok {
		data["current_user_id"] = uid
		data["current_username"] = c.Locals("username")
	}
	data["login_url"] = s.auth.LoginURL()
	return c.Render(name, data)
}

// HighlightCSS serves the stylesheet for highlighted code blocks.
func (s *Server) HighlightCSS(c *fiber.Ctx) error {
	css, err := markdown.StyleCSS(markdown.DefaultStyle)
	if err != nil {
		return s.respondError(c, err)
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	c.Type("css", "utf-8")
	return c.SendString(css)
}
