package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/medtrack/medtrackd/internal/access"
	"github.com/medtrack/medtrackd/internal/adherence"
	"github.com/medtrack/medtrackd/internal/analytics"
	"github.com/medtrack/medtrackd/internal/clock"
	"github.com/medtrack/medtrackd/internal/config"
	"github.com/medtrack/medtrackd/internal/inventory"
	"github.com/medtrack/medtrackd/internal/router"
	"github.com/medtrack/medtrackd/internal/scheduler"
	"github.com/medtrack/medtrackd/internal/store"
)

// SessionSetter mirrors login and logout onto the device-level session the
// notification router consults.
type SessionSetter interface {
	Set(userID string)
	Clear()
}

// Deps bundles the services the HTTP surface exposes.
type Deps struct {
	Store     *store.Store
	Clock     clock.Clock
	Scheduler *scheduler.Scheduler
	Adherence *adherence.Service
	Analytics *analytics.Service
	Inventory *inventory.Engine
	Access    *access.Checker
	Router    *router.Router
	Session   SessionSetter
}

// Login attempts are rate limited per process to slow credential probing.
const (
	loginBurst  = 10
	loginRefill = 3 * time.Second
)

// Server handles the HTTP API
type Server struct {
	app          *fiber.App
	config       *config.Config
	deps         Deps
	loginLimiter *rate.Limiter
	logger       *zap.Logger
}

// New creates a new API server
func New(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	})

	s := &Server{
		app:          app,
		config:       cfg,
		deps:         deps,
		loginLimiter: rate.NewLimiter(rate.Every(loginRefill), loginBurst),
		logger:       logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Middleware
	s.app.Use(recover.New())
	s.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.config.Security.AllowOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Health check and metrics
	s.app.Get("/api/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes
	api := s.app.Group("/api")

	// Public routes
	api.Post("/auth/login", s.handleLogin)

	// Protected routes
	protected := api.Use(s.authMiddleware())

	// Session
	protected.Post("/auth/logout", s.handleLogout)

	// Profile
	protected.Get("/profile", s.handleGetProfile)
	protected.Put("/profile", s.handleUpdateProfile)

	// Medications
	protected.Get("/medications", s.handleListMedications)
	protected.Post("/medications", s.handleCreateMedication)
	protected.Get("/medications/:id", s.handleGetMedication)
	protected.Put("/medications/:id", s.handleUpdateMedication)
	protected.Delete("/medications/:id", s.handleDeactivateMedication)
	protected.Get("/medications/:id/reminders", s.handleListReminders)

	// Adherence logs
	protected.Get("/logs", s.handleListLogs)
	protected.Post("/logs", s.handleUpsertLog)

	// Read models
	protected.Get("/analytics/summary", s.handleAnalyticsSummary)
	protected.Get("/safety/report", s.handleSafetyReport)
	protected.Get("/inventory/report", s.handleInventoryReport)

	// Device callback for notification responses
	protected.Post("/notifications/action", s.handleNotificationAction)

	// Caregiver connections
	protected.Get("/connections", s.handleListConnections)
	protected.Post("/connections", s.handleCreateConnection)
	protected.Post("/connections/:id/accept", s.handleAcceptConnection)
	protected.Post("/connections/:id/revoke", s.handleRevokeConnection)
}

// Start starts the server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Address, s.config.Server.Port)
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   "0.1.0",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	if !s.loginLimiter.Allow() {
		return c.Status(429).JSON(fiber.Map{"error": "too many login attempts"})
	}

	var req struct {
		UserID      string `json:"user_id"`
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.UserID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "user_id is required"})
	}

	// Self-hosted single-household mode: login creates the profile on first
	// use, no password exchange.
	profile, err := s.deps.Store.GetProfile(req.UserID)
	if err != nil {
		s.logger.Error("Failed to load profile", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{"error": "failed to load profile"})
	}
	if profile == nil {
		role := req.Role
		if role != store.RolePatient && role != store.RoleCaregiver {
			role = store.RolePatient
		}
		profile = &store.UserProfile{
			UserID:      req.UserID,
			DisplayName: req.DisplayName,
			Role:        role,
		}
		if err := s.deps.Store.SaveProfile(profile); err != nil {
			s.logger.Error("Failed to create profile", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{"error": "failed to create profile"})
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": req.UserID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(7 * 24 * time.Hour).Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.config.Security.JWTSecret))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to generate token"})
	}

	s.deps.Session.Set(req.UserID)

	return c.JSON(fiber.Map{"token": tokenString, "profile": profile})
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	s.deps.Session.Clear()
	return c.SendStatus(204)
}

func (s *Server) authMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get("Authorization")
		if auth == "" {
			return c.Status(401).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenString := strings.TrimPrefix(auth, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return []byte(s.config.Security.JWTSecret), nil
		})

		if err != nil || !token.Valid {
			return c.Status(401).JSON(fiber.Map{"error": "invalid token"})
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return c.Status(401).JSON(fiber.Map{"error": "invalid token"})
		}

		c.Locals("user_id", sub)
		return c.Next()
	}
}
