// Package web serves the preview surface: a full-bleed live image with a
// filter selection control, the JSON API behind the control, and the
// websocket streams that feed the page.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-camfilter/internal/log"
	"github.com/teslashibe/go-camfilter/pkg/capture"
	"github.com/teslashibe/go-camfilter/pkg/display"
	"github.com/teslashibe/go-camfilter/pkg/filter"
	"github.com/teslashibe/go-camfilter/pkg/hub"
	"github.com/teslashibe/go-camfilter/pkg/pipeline"
)

//go:embed static
var static embed.FS

// SelectionEvent is pushed to /ws/selection on every change.
type SelectionEvent struct {
	Filter string `json:"filter"`
	Index  int    `json:"index"`
}

// Server is the preview web server
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	selection *filter.Selection
	set       filter.Set

	cameraHub    *hub.Hub
	selectionHub *hub.Hub

	session  *capture.Session
	pipeline *pipeline.Pipeline
	display  *display.Display

	// LastFrame returns the most recent JPEG on screen, or nil.
	LastFrame func() []byte
}

// Option configures a Server.
type Option func(*Server)

// WithSession exposes the capture session's stats and stops it on Shutdown.
func WithSession(s *capture.Session) Option {
	return func(srv *Server) { srv.session = s }
}

// WithPipeline exposes the pipeline's stats.
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(srv *Server) { srv.pipeline = p }
}

// WithDisplay exposes the display's stats.
func WithDisplay(d *display.Display) Option {
	return func(srv *Server) { srv.display = d }
}

// WithRequestLog enables per-request access logging.
func WithRequestLog() Option {
	return func(srv *Server) {
		srv.app.Use(logger.New())
	}
}

// NewServer creates the preview server. The selection control offers set
// and writes to sel.
func NewServer(port string, sel *filter.Selection, set filter.Set, opts ...Option) *Server {
	s := &Server{
		port:         port,
		logger:       log.With("component", "web"),
		selection:    sel,
		set:          set,
		cameraHub:    hub.New("camera"),
		selectionHub: hub.New("selection"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "camfilter",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,PUT,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	s.app = app

	for _, opt := range opts {
		opt(s)
	}

	s.selectionHub.OnConnect = func() (hub.Message, bool) {
		data, err := json.Marshal(s.selectionEvent(s.selection.Current()))
		if err != nil {
			return hub.Message{}, false
		}
		return hub.NewJSONMessage(data), true
	}
	sel.OnChange(func(id filter.ID) {
		if err := s.selectionHub.BroadcastJSON(s.selectionEvent(id)); err != nil {
			s.logger.Debug("selection broadcast failed", "error", err)
		}
	})

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)

	api := app.Group("/api")
	api.Get("/filters", s.handleListFilters)
	api.Put("/filter", s.handleSetFilter)
	api.Post("/filter", s.handleSetFilter)
	api.Get("/stats", s.handleStats)
	api.Get("/frame.jpg", s.handleFrame)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/camera", websocket.New(s.cameraHub.Serve))
	app.Get("/ws/selection", websocket.New(s.selectionHub.Serve))

	app.Use("/", filesystem.New(filesystem.Config{
		Root:       http.FS(static),
		PathPrefix: "static",
		Index:      "index.html",
	}))

	return s
}

// App returns the underlying fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// CameraHub returns the hub encoded frames should be broadcast on.
func (s *Server) CameraHub() *hub.Hub {
	return s.cameraHub
}

// SelectionHub returns the hub selection events are broadcast on.
func (s *Server) SelectionHub() *hub.Hub {
	return s.selectionHub
}

// Start runs the hubs and serves until the listener fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	go s.cameraHub.Run(ctx)
	go s.selectionHub.Run(ctx)

	s.logger.Info("preview available", "url", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown stops capture without waiting for it and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.session != nil {
		s.session.Stop()
	}
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) selectionEvent(id filter.ID) SelectionEvent {
	return SelectionEvent{Filter: id.String(), Index: s.set.Index(id)}
}
