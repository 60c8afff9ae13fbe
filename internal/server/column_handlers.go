package server

import (
	"myblog/internal/middleware"
	"myblog/internal/service"

	"github.com/gofiber/fiber/v2"
)

const columnsURL = "/admin/columns"

// ListColumns handles GET /admin/columns
func (s *Server) ListColumns(c *fiber.Ctx) error {
	columns, err := s.columnService.List(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	if middleware.WantsJSON(c) {
		return c.JSON(columns)
	}
	return s.render(c, "admin/columns", fiber.Map{
		"title":   "Columns",
		"columns": columns,
		"policy":  s.columnService.Policy(),
	})
}

// CreateColumn handles POST /admin/columns
func (s *Server) CreateColumn(c *fiber.Ctx) error {
	var in service.CreateColumnInput
	if err := bindForm(c, &in, func(get func(string) string) {
		in.Title = get("title")
	}); err != nil {
		return s.respondError(c, err)
	}

	column, err := s.columnService.Create(c.UserContext(), in)
	if err != nil {
		return s.respondError(c, err)
	}
	return redirectOr(c, columnsURL, fiber.StatusCreated, column)
}

// DeleteColumn handles POST /admin/columns/:id/delete
func (s *Server) DeleteColumn(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.columnService.Delete(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return redirectOr(c, columnsURL, fiber.StatusOK, result)
}
