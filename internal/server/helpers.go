package server

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"

	"myblog/internal/middleware"
	"myblog/internal/models"
	"myblog/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const defaultRedirect = "/article/article-list"

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 404 and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = s.respondError(c, models.NewNotFoundError("Resource", c.Params(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

func currentUserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("userID").(uint)
	return id, ok && id != 0
}

// respondError writes err with the status its code maps to. JSON clients
// get an ErrorResponse, browsers get the message as plain text.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request error",
			slog.String("path", c.Path()), slog.String("error", err.Error()))
	}
	if middleware.WantsJSON(c) {
		return models.RespondWithError(c, status, err)
	}

	message := "Internal server error"
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	return c.Status(status).SendString(message)
}

// redirectOr answers JSON clients with body and everyone else with a redirect.
func redirectOr(c *fiber.Ctx, location string, status int, body interface{}) error {
	if middleware.WantsJSON(c) {
		if body == nil {
			return c.SendStatus(status)
		}
		return c.Status(status).JSON(body)
	}
	return c.Redirect(location, fiber.StatusFound)
}

// isJSONBody reports whether the request body is JSON rather than a form.
func isJSONBody(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEApplicationJSON)
}

// bindForm decodes a JSON body into dst or fills it from form fields.
func bindForm(c *fiber.Ctx, dst interface{}, fromForm func(get func(string) string)) error {
	if isJSONBody(c) {
		if err := c.BodyParser(dst); err != nil {
			return models.NewValidationError("Invalid request body")
		}
		return nil
	}
	fromForm(func(key string) string { return c.FormValue(key) })
	return nil
}

// readUpload returns the named multipart file, or nil when none was sent.
func readUpload(c *fiber.Ctx, field string) (*service.UploadImageInput, error) {
	if !strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	file, err := c.FormFile(field)
	if err != nil || file.Size == 0 {
		return nil, nil
	}
	content, err := readFileHeader(file)
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}
	return &service.UploadImageInput{
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()
	return io.ReadAll(src)
}

// safeNext only follows local redirect targets.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return defaultRedirect
	}
	return next
}
