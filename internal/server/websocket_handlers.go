package server

import (
	"log"

	"myblog/internal/featureflags"
	"myblog/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// CommentStreamHandler handles GET /ws/articles/:id/comments. Anonymous
// readers may subscribe; the stream only carries comments already public
// on the article page.
func (s *Server) CommentStreamHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		articleID, _ := conn.Locals("articleID").(uint)
		userID, _ := conn.Locals("userID").(uint)

		client, err := s.hub.Register(articleID, userID, conn)
		if err != nil {
			log.Printf("WebSocket comments: failed to register on article %d: %v", articleID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		id, err := s.parseID(c, "id")
		if err != nil {
			return nil
		}
		userID, _ := currentUserID(c)
		if !s.featureFlags.Enabled(featureflags.LiveComments, userID) {
			return s.respondError(c, models.NewNotFoundError("Live comments for article", id))
		}
		if _, err := s.articleRepo.GetByID(c.UserContext(), id); err != nil {
			return s.respondError(c, err)
		}

		c.Locals("articleID", id)
		return upgrade(c)
	}
}
