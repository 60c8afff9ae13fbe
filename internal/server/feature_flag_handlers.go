package server

import "github.com/gofiber/fiber/v2"

type featureFlagState struct {
	Name    string `json:"name"`
	Rule    string `json:"rule"`
	Enabled bool   `json:"enabled"`
}

// GetFeatureFlags handles GET /admin/feature-flags. Each configured flag is
// listed with its rule and how it evaluates for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID, _ := currentUserID(c)
	raw := s.featureFlags.Raw()

	flags := make([]featureFlagState, 0, len(raw))
	for _, name := range s.featureFlags.Names() {
		flags = append(flags, featureFlagState{
			Name:    name,
			Rule:    raw[name],
			Enabled: s.featureFlags.Enabled(name, userID),
		})
	}
	return c.JSON(fiber.Map{"user_id": userID, "flags": flags})
}
