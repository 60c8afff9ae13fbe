package server

import (
	"myblog/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateComment handles POST /comment/post-comment/:id
func (s *Server) CreateComment(c *fiber.Ctx) error {
	articleID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := currentUserID(c)

	in := service.CreateCommentInput{UserID: userID, ArticleID: articleID}
	if err := bindForm(c, &in, func(get func(string) string) {
		in.Body = get("body")
	}); err != nil {
		return s.respondError(c, err)
	}
	// The body never carries identity.
	in.UserID, in.ArticleID = userID, articleID

	comment, err := s.commentService.Create(c.UserContext(), in)
	if err != nil {
		return s.respondError(c, err)
	}
	return redirectOr(c, detailURL(articleID)+"#comments", fiber.StatusCreated, comment)
}
