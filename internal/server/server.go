package server

import (
	"backend-trekko/internal/admin"
	"backend-trekko/internal/auth"
	"backend-trekko/internal/config"
	"backend-trekko/internal/event"
	"backend-trekko/internal/expedition"
	"backend-trekko/internal/favorite"
	"backend-trekko/internal/guide"
	"backend-trekko/internal/registry"
	"backend-trekko/internal/trail"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App   *fiber.App
	Cfg   config.Config
	DB    *pgxpool.Pool
	Redis *redis.Client
	Hub   *event.Hub
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:   app,
		Cfg:   cfg,
		DB:    db,
		Redis: redisClient,
		Hub:   event.NewHub(redisClient),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	adminOnly := auth.RequireRole("admin")
	guideOnly := auth.RequireGuide()

	eventSvc := event.NewService(s.DB, s.Hub)
	registrySvc := registry.NewService(s.DB, s.Redis)
	authSvc := auth.NewService(s.Cfg.JWTSecret, s.DB, registrySvc, eventSvc)
	expeditionSvc := expedition.NewService(s.DB, eventSvc)
	trailSvc := trail.NewService(s.DB)
	favoriteSvc := favorite.NewService(s.DB)
	guideSvc := guide.NewService(s.DB, registrySvc, eventSvc)
	adminSvc := admin.NewService(s.DB)

	auth.RegisterRoutes(s.App.Group("/auth"), authSvc, jwtMiddleware)
	registry.RegisterRoutes(s.App.Group("/registry"), registrySvc, authSvc, jwtMiddleware, adminOnly)
	trail.RegisterRoutes(s.App.Group("/trails"), trailSvc, expeditionSvc, jwtMiddleware, adminOnly)
	expedition.RegisterRoutes(s.App.Group("/expeditions"), expeditionSvc, jwtMiddleware, guideOnly)
	favorite.RegisterRoutes(s.App.Group("/favorites"), favoriteSvc, jwtMiddleware)
	guide.RegisterRoutes(s.App.Group("/guides"), guideSvc, jwtMiddleware)

	adminGroup := s.App.Group("/admin", jwtMiddleware, adminOnly)
	event.RegisterRoutes(adminGroup.Group("/events"), eventSvc, s.Hub)
	admin.RegisterRoutes(adminGroup, adminSvc, expeditionSvc, eventSvc)
}
