package server

import (
	"strconv"
	"time"

	"myblog/internal/middleware"
	"myblog/internal/models"
	"myblog/internal/service"

	"github.com/gofiber/fiber/v2"
)

// LoginForm handles GET /userprofile/login
func (s *Server) LoginForm(c *fiber.Ctx) error {
	return s.render(c, "userprofile/login", fiber.Map{
		"title": "Log in",
		"next":  c.Query("next"),
	})
}

// Login handles POST /userprofile/login
func (s *Server) Login(c *fiber.Ctx) error {
	var in service.LoginInput
	var next string
	if err := bindForm(c, &in, func(get func(string) string) {
		in.Username = get("username")
		in.Password = get("password")
		next = get("next")
	}); err != nil {
		return s.respondError(c, err)
	}
	if next == "" {
		next = c.Query("next")
	}

	user, err := s.userService.Authenticate(c.UserContext(), in)
	if err != nil {
		return s.respondError(c, err)
	}
	token, err := s.startSession(c, user)
	if err != nil {
		return s.respondError(c, err)
	}
	return redirectOr(c, safeNext(next), fiber.StatusOK, fiber.Map{"token": token, "user": user})
}

// Logout handles GET and POST /userprofile/logout
func (s *Server) Logout(c *fiber.Ctx) error {
	s.endSession(c)
	return redirectOr(c, defaultRedirect, fiber.StatusNoContent, nil)
}

// RegisterForm handles GET /userprofile/register
func (s *Server) RegisterForm(c *fiber.Ctx) error {
	return s.render(c, "userprofile/register", fiber.Map{"title": "Register"})
}

// Register handles POST /userprofile/register and logs the new user in.
func (s *Server) Register(c *fiber.Ctx) error {
	var in service.RegisterInput
	if err := bindForm(c, &in, func(get func(string) string) {
		in.Username = get("username")
		in.Email = get("email")
		in.Password = get("password")
		in.PasswordConfirm = get("password2")
	}); err != nil {
		return s.respondError(c, err)
	}

	user, err := s.userService.Register(c.UserContext(), in)
	if err != nil {
		return s.respondError(c, err)
	}
	token, err := s.startSession(c, user)
	if err != nil {
		return s.respondError(c, err)
	}
	return redirectOr(c, defaultRedirect, fiber.StatusCreated, fiber.Map{"token": token, "user": user})
}

// DeleteAccount handles POST /userprofile/delete/:id
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := currentUserID(c)

	if err := s.userService.DeleteAccount(c.UserContext(), service.DeleteAccountInput{
		UserID:   userID,
		TargetID: targetID,
	}); err != nil {
		return s.respondError(c, err)
	}
	s.endSession(c)
	return redirectOr(c, defaultRedirect, fiber.StatusNoContent, nil)
}

// ProfileEditForm handles GET /userprofile/edit/:id
func (s *Server) ProfileEditForm(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := currentUserID(c)
	if userID != targetID {
		return s.respondError(c, models.NewForbiddenError("You are not allowed to modify this user"))
	}

	user, err := s.userService.GetUserByID(c.UserContext(), targetID)
	if err != nil {
		return s.respondError(c, err)
	}
	if middleware.WantsJSON(c) {
		return c.JSON(user)
	}
	return s.render(c, "userprofile/edit", fiber.Map{
		"title":   user.Username,
		"profile": user,
	})
}

// UpdateProfile handles POST /userprofile/edit/:id
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := currentUserID(c)

	in := service.UpdateProfileInput{}
	if err := bindForm(c, &in, func(get func(string) string) {
		in.Phone = get("phone")
		in.Bio = get("bio")
	}); err != nil {
		return s.respondError(c, err)
	}
	in.UserID, in.TargetID = userID, targetID
	if in.Avatar, err = readUpload(c, "avatar"); err != nil {
		return s.respondError(c, err)
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), in)
	if err != nil {
		return s.respondError(c, err)
	}
	return redirectOr(c, "/userprofile/edit/"+strconv.FormatUint(uint64(user.ID), 10), fiber.StatusOK, user)
}

// startSession issues a token for user and stores it in the session cookie.
func (s *Server) startSession(c *fiber.Ctx, user *models.User) (string, error) {
	token, claims, err := s.auth.IssueToken(user.ID, user.Username)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.AuthCookie,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return token, nil
}

// endSession revokes the caller's token, if any, and clears the cookie.
func (s *Server) endSession(c *fiber.Ctx) {
	if claims, ok := c.Locals("claims").(*middleware.Claims); ok {
		if err := s.auth.Revoke(c.UserContext(), claims); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "failed to revoke token", "error", err.Error())
		}
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.AuthCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
