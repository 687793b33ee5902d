package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/clickhook/internal/app/service"
	inthttp "github.com/sifan077/clickhook/internal/http/handler"
	"github.com/sifan077/clickhook/internal/http/middleware"
	"github.com/sifan077/clickhook/internal/http/util"
	"go.uber.org/zap"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 15 * time.Second
	idleTimeout  = 60 * time.Second
	bodyLimit    = 1 << 20
)

// Dependencies bundles what the HTTP server needs. Redis and ReadyChecks are optional.
type Dependencies struct {
	Logger      *zap.Logger
	Redis       *redis.Client
	ReadyChecks map[string]inthttp.Pinger

	Links    service.LinkService
	Events   service.EventSink
	Settings *service.SettingsService
	Tester   inthttp.WebhookTester
	Tokens   *util.TokenSigner

	CountryHeader string
	APIRateLimit  int
	CORSOrigins   []string
	// ProxyHeader, when set, is trusted for the client IP (e.g. X-Forwarded-For).
	ProxyHeader string
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with every route registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "clickhook",
		DisableStartupMessage: true,
		ReadTimeout:           readTimeout,
		WriteTimeout:          writeTimeout,
		IdleTimeout:           idleTimeout,
		BodyLimit:             bodyLimit,
		ProxyHeader:           deps.ProxyHeader,
		ErrorHandler:          errorHandler(deps.Logger),
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	log := s.deps.Logger

	s.app.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log, "/health", "/ready"),
	)

	inthttp.NewHealthHandler(log, s.deps.ReadyChecks).Register(s.app)

	api := s.app.Group("/api", middleware.CORS(s.deps.CORSOrigins))
	if s.deps.Redis != nil && s.deps.APIRateLimit > 0 {
		cfg := middleware.DefaultRateLimitConfig()
		cfg.MaxRequests = s.deps.APIRateLimit
		api.Use(middleware.RateLimit(s.deps.Redis, cfg, log))
	}
	api.Use(middleware.AdminAuth(s.deps.Tokens, log))

	inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:      log,
		LinkService: s.deps.Links,
	}).Register(api)
	inthttp.NewHooksHandler(log, s.deps.Events).Register(api)
	inthttp.NewSettingsHandler(log, s.deps.Settings, s.deps.Tester).Register(api)

	// catch-all, keep last
	inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:        log,
		Links:         s.deps.Links,
		Events:        s.deps.Events,
		CountryHeader: s.deps.CountryHeader,
	}).Register(s.app)
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("unhandled request error", zap.Error(err), zap.String("path", c.Path()))
		}
		return c.Status(code).JSON(fiber.Map{
			"error": publicMessage(code, err),
		})
	}
}

func publicMessage(code int, err error) string {
	if code >= fiber.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
