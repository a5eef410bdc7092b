package stream

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/ouva/dermascan/internal/scan"
)

// Server exposes the scan session over HTTP: current snapshot, a manual
// analyze trigger, and a websocket event stream.
type Server struct {
	app    *fiber.App
	hub    *Hub
	loop   *scan.Loop
	logger *slog.Logger
}

func NewServer(hub *Hub, loop *scan.Loop, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{app: app, hub: hub, loop: loop, logger: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	s.app.Get("/api/status", func(c *fiber.Ctx) error {
		return c.JSON(s.loop.Snapshot())
	})

	s.app.Post("/api/analyze", func(c *fiber.Ctx) error {
		if err := s.loop.AnalyzeNow(); err != nil {
			status := fiber.StatusConflict
			if errors.Is(err, scan.ErrNoFrame) {
				status = fiber.StatusServiceUnavailable
			}
			return c.Status(status).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "requested"})
	})

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	s.app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		client := &Client{
			hub:  s.hub,
			conn: conn,
			send: make(chan []byte, 256),
		}

		s.hub.register <- client

		go client.WritePump()
		client.ReadPump()
	}))
}

// Listen blocks serving the API until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("stream server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
