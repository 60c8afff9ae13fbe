package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"myblog/internal/cache"
	"myblog/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AuthCookie is the name of the HttpOnly cookie carrying the session token.
const AuthCookie = "myblog_token"

const (
	tokenIssuer   = "myblog"
	tokenAudience = "myblog-web"
	tokenTTL      = 7 * 24 * time.Hour
)

// Claims is the parsed content of a session token.
type Claims struct {
	UserID    uint
	Username  string
	JTI       string
	ExpiresAt time.Time
}

// Authenticator issues, parses and revokes session tokens.
type Authenticator struct {
	secret   []byte
	rdb      *redis.Client
	loginURL string
	now      func() time.Time
}

// NewAuthenticator returns an Authenticator. rdb may be nil, in which case
// logout cannot revoke tokens before they expire.
func NewAuthenticator(secret string, rdb *redis.Client, loginURL string) *Authenticator {
	if loginURL == "" {
		loginURL = "/userprofile/login"
	}
	return &Authenticator{secret: []byte(secret), rdb: rdb, loginURL: loginURL, now: time.Now}
}

// LoginURL is where unauthenticated page requests are sent.
func (a *Authenticator) LoginURL() string { return a.loginURL }

// IssueToken signs a token for the given user.
func (a *Authenticator) IssueToken(userID uint, username string) (string, *Claims, error) {
	if len(a.secret) == 0 {
		return "", nil, errors.New("JWT secret not configured")
	}

	now := a.now()
	claims := &Claims{
		UserID:    userID,
		Username:  username,
		JTI:       uuid.NewString(),
		ExpiresAt: now.Add(tokenTTL),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      tokenIssuer,
		"aud":      tokenAudience,
		"exp":      claims.ExpiresAt.Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      claims.JTI,
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// ParseToken validates a token string, including revocation.
func (a *Authenticator) ParseToken(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithAudience(tokenAudience), jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, models.NewUnauthorizedError("Invalid token claims")
	}
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return nil, models.NewUnauthorizedError("Invalid token structure - missing subject")
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid user ID in token")
	}

	claims := &Claims{UserID: uint(userID)}
	claims.Username, _ = mc["username"].(string)
	claims.JTI, _ = mc["jti"].(string)
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	if a.isRevoked(ctx, claims.JTI) {
		return nil, models.NewUnauthorizedError("Token has been revoked")
	}
	return claims, nil
}

// Revoke blacklists the token until it would have expired anyway.
func (a *Authenticator) Revoke(ctx context.Context, claims *Claims) error {
	if a.rdb == nil || claims == nil || claims.JTI == "" {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(a.now())
	if ttl <= 0 {
		return nil
	}
	return a.rdb.Set(ctx, cache.BlacklistKey(claims.JTI), "1", ttl).Err()
}

func (a *Authenticator) isRevoked(ctx context.Context, jti string) bool {
	if a.rdb == nil || jti == "" {
		return false
	}
	n, err := a.rdb.Exists(ctx, cache.BlacklistKey(jti)).Result()
	return err == nil && n > 0
}

func tokenFromRequest(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	return c.Cookies(AuthCookie)
}

// Identify attaches the caller identity to locals when a valid token is
// present and otherwise lets the request through anonymously.
func (a *Authenticator) Identify() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := tokenFromRequest(c)
		if raw == "" {
			return c.Next()
		}
		claims, err := a.ParseToken(c.UserContext(), raw)
		if err != nil {
			return c.Next()
		}
		c.Locals("userID", claims.UserID)
		c.Locals("username", claims.Username)
		c.Locals("claims", claims)
		c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, claims.UserID))
		return c.Next()
	}
}

// AuthRequired rejects anonymous callers. Page requests are redirected to
// the login URL with a next parameter, API requests get 401.
func (a *Authenticator) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := c.Locals("userID").(uint); ok {
			return c.Next()
		}
		if WantsJSON(c) {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authentication required"))
		}
		return c.Redirect(a.loginURL+"?next="+url.QueryEscape(c.OriginalURL()), fiber.StatusFound)
	}
}

// WantsJSON reports whether the client prefers a JSON response over HTML.
func WantsJSON(c *fiber.Ctx) bool {
	return c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON
}
