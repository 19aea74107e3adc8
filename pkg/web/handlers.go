package web

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-camfilter/pkg/capture"
	"github.com/teslashibe/go-camfilter/pkg/display"
	"github.com/teslashibe/go-camfilter/pkg/filter"
	"github.com/teslashibe/go-camfilter/pkg/hub"
	"github.com/teslashibe/go-camfilter/pkg/pipeline"
)

// FiltersResponse lists the filters the control offers.
type FiltersResponse struct {
	Filters []FilterInfo `json:"filters"`
	Current string       `json:"current"`
}

// FilterInfo describes one segment of the selection control.
type FilterInfo struct {
	Name      string `json:"name"`
	Operation string `json:"operation,omitempty"`
	Index     int    `json:"index"`
}

// SetFilterRequest is the request body for changing the filter.
type SetFilterRequest struct {
	Filter string `json:"filter"`
}

// StatsResponse aggregates counters from every stage.
type StatsResponse struct {
	Filter   string          `json:"filter"`
	Capture  *capture.Stats  `json:"capture,omitempty"`
	Pipeline *pipeline.Stats `json:"pipeline,omitempty"`
	Display  *display.Stats  `json:"display,omitempty"`
	Hubs     []hub.Stats     `json:"hubs"`
	HasFrame bool            `json:"has_frame"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	running := s.session != nil && s.session.Running()
	return c.JSON(fiber.Map{
		"status":  "ok",
		"capture": running,
		"filter":  s.selection.Current().String(),
	})
}

// handleListFilters returns the offered filters in control order
func (s *Server) handleListFilters(c *fiber.Ctx) error {
	ids := s.set.IDs()
	resp := FiltersResponse{
		Filters: make([]FilterInfo, len(ids)),
		Current: s.selection.Current().String(),
	}
	for i, id := range ids {
		resp.Filters[i] = FilterInfo{Name: id.String(), Operation: id.Operation(), Index: i}
	}
	return c.JSON(resp)
}

// handleSetFilter stores a new selection. Only offered filters are accepted.
func (s *Server) handleSetFilter(c *fiber.Ctx) error {
	var req SetFilterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	id, ok := filter.ParseID(strings.TrimSpace(req.Filter))
	if !ok || !s.set.Contains(id) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   fmt.Sprintf("%v: %q", filter.ErrUnknownFilter, req.Filter),
			"filters": s.set.Names(),
		})
	}

	s.selection.Set(id)
	s.logger.Info("filter selected", "filter", id.String())
	return c.JSON(s.selectionEvent(id))
}

func (s *Server) stats() StatsResponse {
	resp := StatsResponse{
		Filter: s.selection.Current().String(),
		Hubs:   []hub.Stats{s.cameraHub.Stats(), s.selectionHub.Stats()},
	}
	if s.session != nil {
		st := s.session.Stats()
		resp.Capture = &st
	}
	if s.pipeline != nil {
		st := s.pipeline.Stats()
		resp.Pipeline = &st
	}
	if s.display != nil {
		st := s.display.Stats()
		resp.Display = &st
	}
	resp.HasFrame = s.LastFrame != nil && len(s.LastFrame()) > 0
	return resp
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.stats())
}

// handleFrame returns the frame currently on screen as a JPEG.
func (s *Server) handleFrame(c *fiber.Ctx) error {
	if s.LastFrame == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	data := s.LastFrame()
	if len(data) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(data)
}

// handleMetrics renders counters in the Prometheus text format.
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	st := s.stats()

	var b strings.Builder
	metric := func(name, kind, help string, v uint64) {
		fmt.Fprintf(&b, "# HELP camfilter_%s %s\n# TYPE camfilter_%s %s\ncamfilter_%s %d\n\n",
			name, help, name, kind, name, v)
	}

	if st.Capture != nil {
		metric("frames_captured", "counter", "Frames read from the source", st.Capture.Captured)
		metric("frames_delivered", "counter", "Frames handed to the pipeline", st.Capture.Delivered)
		metric("frames_late", "counter", "Frames replaced before the pipeline took them", st.Capture.Dropped)
	}
	if st.Pipeline != nil {
		metric("frames_processed", "counter", "Frames filtered", st.Pipeline.Processed)
		metric("frames_dropped", "counter", "Frames whose filter produced no output", st.Pipeline.Dropped)
		metric("filter_latency_ns", "gauge", "Latency of the last filter pass", uint64(st.Pipeline.LastLatency))
	}
	if st.Display != nil {
		metric("frames_shown", "counter", "Frames rendered by the display", st.Display.Shown)
		metric("display_late", "counter", "Frames replaced before they were shown", st.Display.Late)
	}
	for _, h := range st.Hubs {
		metric(h.Name+"_clients", "gauge", "Connected "+h.Name+" viewers", uint64(h.Clients))
		metric(h.Name+"_skipped", "counter", "Messages skipped for slow "+h.Name+" viewers", h.Skipped)
	}

	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	return c.SendString(b.String())
}
