// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/notifications"
	"agora/internal/service"
	"agora/internal/store"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// wireableHub is implemented by every WebSocket hub that can be wired to
// Redis pub/sub and gracefully shut down.
type wireableHub interface {
	Name() string
	StartWiring(ctx context.Context, n *notifications.Notifier) error
	Shutdown(ctx context.Context) error
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	mongoClient    *mongo.Client
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	threadStore       store.ThreadStore
	notificationStore store.NotificationStore

	discussions   *service.DiscussionService
	notifications *service.NotificationService
	router        *service.ActivityRouter

	notifier    *notifications.Notifier
	hub         *notifications.Hub
	broadcaster *notifications.Broadcaster
	hubs        []wireableHub
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, _, err := store.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("document store connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	return newServer(cfg, client, redisClient), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes Mongo/Redis itself.
func NewServerWithDeps(cfg *config.Config, client *mongo.Client, redisClient *redis.Client) *Server {
	return newServer(cfg, client, redisClient)
}

func newServer(cfg *config.Config, client *mongo.Client, redisClient *redis.Client) *Server {
	middleware.InitMiddleware(cfg)

	db := client.Database(cfg.MongoDB)
	threadStore := store.NewThreadStore(db)
	notificationStore := store.NewNotificationStore(db)

	prom := middleware.InitMetrics("agora-api")

	server := &Server{
		config:            cfg,
		mongoClient:       client,
		redis:             redisClient,
		promMiddleware:    prom,
		threadStore:       threadStore,
		notificationStore: notificationStore,
	}

	server.discussions = service.NewDiscussionService(threadStore)
	server.notifications = service.NewNotificationService(notificationStore)

	server.hub = notifications.NewHub(redisClient)
	server.hubs = []wireableHub{server.hub}
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
	}
	server.broadcaster = notifications.NewBroadcaster(server.hub, server.notifier)
	server.router = service.NewActivityRouter(server.notifications, server.broadcaster, server.discussions)

	return server
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())

	app.Use(requestid.New())

	// Context middleware propagates request ID and user ID into UserContext.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())

	// After requestid and context middleware so entries carry both.
	app.Use(middleware.StructuredLogger())

	// CORS must run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests.
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
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Agora Metrics Dashboard",
	}))

	// Public thread browsing
	publicThreads := api.Group("/threads")
	publicThreads.Get("/", s.ListThreads)
	publicThreads.Get("/:id", s.GetThread)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired)

	threads := protected.Group("/threads")
	threads.Post("/", middleware.RateLimit(
		s.redis, 5, 5*time.Minute, "create_thread"), s.CreateThread)
	// Specific /:id/:resource routes BEFORE generic /:id routes.
	threads.Post("/:id/posts", middleware.RateLimit(
		s.redis, 15, time.Minute, "create_post"), s.AddPost)
	threads.Put("/:id/posts/:postId", s.EditPost)
	threads.Delete("/:id/posts/:postId", s.DeletePost)
	threads.Post("/:id/posts/:postId/reactions", s.ToggleReaction)
	threads.Post("/:id/posts/:postId/accept", s.AcceptAnswer)
	threads.Post("/:id/posts/:postId/moderate", s.ModeratePost)
	threads.Post("/:id/like", s.ToggleLike)
	threads.Post("/:id/bookmark", s.ToggleBookmark)
	threads.Post("/:id/close", s.CloseThread)
	threads.Post("/:id/lock", s.SetLocked)
	threads.Post("/:id/pin", s.SetPinned)
	threads.Post("/:id/feature", s.SetFeatured)

	// Notification inbox
	inbox := protected.Group("/notifications")
	inbox.Get("/", s.ListNotifications)
	inbox.Get("/unread-count", s.UnreadCount)
	inbox.Post("/read-all", s.MarkAllRead)
	inbox.Post("/:id/read", s.MarkRead)
	inbox.Post("/:id/archive", s.ArchiveNotification)
	inbox.Delete("/:id", s.DeleteNotification)

	// Activity ingestion for collaborating services
	protected.Post("/activities", middleware.RateLimit(
		s.redis, 60, time.Minute, "activities"), s.PostActivity)

	// Live channel
	ws := api.Group("/ws", middleware.WebSocketAuthRequired)
	ws.Get("/", s.WebsocketHandler())

	// Presence
	protected.Get("/presence/online", s.OnlineUsers)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	mongoStatus := "healthy"
	if s.mongoClient == nil {
		mongoStatus = "unavailable"
	} else if err := s.mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		mongoStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Redis is optional; live delivery degrades to local-only.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if mongoStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"mongo": mongoStatus,
			"redis": redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "Agora API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Wire hubs to the Redis subscriber if available
	if s.notifier != nil {
		for _, h := range s.hubs {
			h := h
			go func() {
				if err := h.StartWiring(s.shutdownCtx, s.notifier); err != nil {
					log.Printf("failed to start %s wiring: %v", h.Name(), err)
				}
			}()
		}
	}

	s.notifications.StartPurgeLoop(s.shutdownCtx, 0)

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

	for _, h := range s.hubs {
		if err := h.Shutdown(ctx); err != nil {
			log.Printf("error shutting down %s: %v", h.Name(), err)
		}
	}

	s.notifications.Stop()

	if s.mongoClient != nil {
		if err := store.Disconnect(ctx, s.mongoClient); err != nil {
			log.Printf("error closing mongo client: %v", err)
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
