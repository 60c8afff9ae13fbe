// Package server contains the HTTP and WebSocket handlers of the blog.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	_ "myblog/docs" // swagger docs
	"myblog/internal/cache"
	"myblog/internal/config"
	"myblog/internal/database"
	"myblog/internal/featureflags"
	"myblog/internal/markdown"
	"myblog/internal/middleware"
	"myblog/internal/models"
	"myblog/internal/notifications"
	"myblog/internal/repository"
	"myblog/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Article pages run the live comment script inline.
const contentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline'; " +
	"style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self' ws: wss:"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	auth           *middleware.Authenticator
	featureFlags   *featureflags.Manager
	articleRepo    repository.ArticleRepository
	tagRepo        repository.TagRepository
	notifier       *notifications.Notifier
	hub            *notifications.CommentHub
	images         *service.ImageService
	articleService *service.ArticleService
	columnService  *service.ColumnService
	commentService *service.CommentService
	userService    *service.UserService
}

// NewServer connects to the database and Redis and builds a Server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; without it caching, rate limits and token
	// revocation are skipped and live comments stay on this instance.
	redisClient := cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	articleRepo := repository.NewArticleRepository(db)
	columnRepo := repository.NewColumnRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	userRepo := repository.NewUserRepository(db)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("myblog"),
		auth:           middleware.NewAuthenticator(cfg.JWTSecret, redisClient, cfg.LoginURL),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		articleRepo:    articleRepo,
		tagRepo:        repository.NewTagRepository(db),
		notifier:       notifications.NewNotifier(redisClient),
		images:         service.NewImageService(cfg),
	}
	server.hub = notifications.NewCommentHub(server.notifier)

	server.columnService = service.NewColumnService(columnRepo, server.images, cfg.ColumnDeletePolicy)
	server.articleService = service.NewArticleService(articleRepo, commentRepo, server.columnService,
		server.images, markdown.New(), server.featureFlags, cfg)
	server.commentService = service.NewCommentService(commentRepo, articleRepo, server.hub)
	server.userService = service.NewUserService(userRepo, server.images)

	return server, nil
}

// NewApp builds the fiber application with views, middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "myBlog",
		Views:        newViews(s.config),
		ViewsLayout:  "layouts/base",
		BodyLimit:    int(s.config.MaxUploadBytes()) + 1<<20,
		ErrorHandler: s.errorHandler,
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if middleware.WantsJSON(c) {
			return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
		}
		return c.Status(fe.Code).SendString(fe.Message)
	}
	return s.respondError(c, err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		ContentSecurityPolicy:     contentSecurityPolicy,
		CrossOriginEmbedderPolicy: "unsafe-none",
	}))

	app.Use(middleware.StructuredLogger())
	app.Use(middleware.TracingMiddleware())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:8000,http://127.0.0.1:8000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (300 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))

	app.Use(s.auth.Identify())
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Static("/media", s.images.Root(), fiber.Static{ByteRange: true})
	app.Get("/static/highlight.css", s.HighlightCSS)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/article/article-list", fiber.StatusFound)
	})

	authRequired := s.auth.AuthRequired()

	article := app.Group("/article")
	article.Get("/article-list", s.ListArticles)
	article.Get("/article-detail/:id", s.ArticleDetail)
	article.Get("/article-create", authRequired, s.CreateArticleForm)
	article.Post("/article-create", authRequired, middleware.RateLimit(
		s.redis, 10, 10*time.Minute, "create_article"), s.CreateArticle)
	article.Get("/article-update/:id", authRequired, s.UpdateArticleForm)
	article.Post("/article-update/:id", authRequired, s.UpdateArticle)
	article.All("/article-delete/:id", authRequired, s.DeleteArticle)
	article.All("/article-safe-delete/:id", authRequired, s.SafeDeleteArticle)

	comment := app.Group("/comment")
	comment.Post("/post-comment/:id", authRequired, middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateComment)

	profile := app.Group("/userprofile")
	profile.Get("/login", s.LoginForm)
	profile.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	profile.Get("/logout", s.Logout)
	profile.Post("/logout", s.Logout)
	profile.Get("/register", s.RegisterForm)
	profile.Post("/register", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "register"), s.Register)
	profile.Post("/delete/:id", authRequired, s.DeleteAccount)
	profile.Get("/edit/:id", authRequired, s.ProfileEditForm)
	profile.Post("/edit/:id", authRequired, s.UpdateProfile)

	admin := app.Group("/admin", authRequired, s.AdminRequired())
	admin.Get("/columns", s.ListColumns)
	admin.Post("/columns", s.CreateColumn)
	admin.Post("/columns/:id/delete", s.DeleteColumn)
	admin.Get("/feature-flags", s.GetFeatureFlags)

	app.Get("/ws/articles/:id/comments", s.CommentStreamHandler())
}

// LivenessCheck handles liveness check requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness check requests. Redis is optional, so
// only a configured but unreachable Redis makes the service unready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := currentUserID(c)

		admin, err := s.userService.IsAdmin(c.UserContext(), userID)
		if err != nil && !models.HasCode(err, models.CodeNotFound) {
			return s.respondError(c, err)
		}
		if !admin {
			return s.respondError(c, models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.NewApp()

	if s.notifier.Enabled() {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx); err != nil {
				log.Printf("failed to start %s wiring: %v", s.hub.Name(), err)
			}
		}()
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		log.Printf("error shutting down %s: %v", s.hub.Name(), err)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
