package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/lectern/lectern/internal/index"
)

// StatsService reports catalog analytics.
type StatsService interface {
	CourseStats(ctx context.Context) (index.Stats, error)
}

// CoursesHandler serves the catalog analytics endpoint.
type CoursesHandler struct {
	service StatsService
	logger  *slog.Logger
}

// NewCoursesHandler creates a courses handler.
func NewCoursesHandler(service StatsService, logger *slog.Logger) *CoursesHandler {
	return &CoursesHandler{service: service, logger: logger}
}

// RegisterRoutes registers the courses route on the mux.
func (h *CoursesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/courses", h.handleCourses)
}

func (h *CoursesHandler) handleCourses(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.CourseStats(r.Context())
	if err != nil {
		h.logger.Error("course stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "stats_failed", "failed to load course statistics")
		return
	}
	if stats.CourseTitles == nil {
		stats.CourseTitles = []string{}
	}
	writeJSON(w, http.StatusOK, stats)
}
