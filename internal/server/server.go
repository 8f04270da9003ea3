package server

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kevinmichaelchen/repofeed/internal/metrics"
	"github.com/kevinmichaelchen/repofeed/internal/pipeline"
	"github.com/kevinmichaelchen/repofeed/internal/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Loader is satisfied by *pipeline.Feed.
type Loader interface {
	Load(ctx context.Context) pipeline.State
	Refresh(ctx context.Context) pipeline.State
}

// Server hosts the rendered page and keeps the current result set.
type Server struct {
	feed     Loader
	renderer *render.Renderer

	mu    sync.RWMutex
	state pipeline.State

	refreshes singleflight.Group
}

func New(feed Loader, renderer *render.Renderer, initial pipeline.State) *Server {
	return &Server{feed: feed, renderer: renderer, state: initial}
}

// State returns the current result set.
func (s *Server) State() pipeline.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Refresh reloads the feed. Concurrent callers share one reload, which does
// not stop when the caller that started it goes away.
func (s *Server) Refresh(ctx context.Context) pipeline.State {
	shared := context.WithoutCancel(ctx)
	v, _, _ := s.refreshes.Do("refresh", func() (any, error) {
		st := s.feed.Refresh(shared)
		s.mu.Lock()
		s.state = st
		s.mu.Unlock()
		return st, nil
	})
	return v.(pipeline.State)
}

// App returns the fiber application serving the page.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Debug("Request")
		return err
	})

	app.Get("/", s.handlePage)
	app.Get("/repos", s.handleGrid)
	app.Post("/refresh", s.handleRefresh)
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return app
}

func (s *Server) handlePage(c *fiber.Ctx) error {
	st := s.State()
	q := c.Query("q")

	var buf bytes.Buffer
	err := s.renderer.Page(&buf, render.PageData{
		GridData:    gridData(st, q),
		Stats:       st.Stats,
		Query:       q,
		Interactive: true,
	})
	if err != nil {
		log.WithError(err).Error("Rendering page")
		return fiber.ErrInternalServerError
	}
	metrics.Renders.WithLabelValues("page").Inc()
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(buf.Bytes())
}

func (s *Server) handleGrid(c *fiber.Ctx) error {
	st := s.State()

	var buf bytes.Buffer
	if err := s.renderer.Grid(&buf, gridData(st, c.Query("q"))); err != nil {
		log.WithError(err).Error("Rendering grid")
		return fiber.ErrInternalServerError
	}
	metrics.Renders.WithLabelValues("grid").Inc()
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(buf.Bytes())
}

func (s *Server) handleRefresh(c *fiber.Ctx) error {
	st := s.Refresh(c.UserContext())
	log.WithFields(log.Fields{
		"source": st.Source,
		"repos":  len(st.Repos),
	}).Info("Refreshed repos")
	return c.Redirect("/", fiber.StatusSeeOther)
}

// gridData applies the search query to the current state.
func gridData(st pipeline.State, q string) render.GridData {
	return render.GridData{
		Repos:       st.Search(q),
		Unavailable: st.Unavailable(),
	}
}
