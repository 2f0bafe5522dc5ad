package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lectern/lectern/internal/chat"
)

// maxQueryBodySize caps the request body at 64KB; queries are short.
const maxQueryBodySize = 64 << 10

// QueryService answers one question.
type QueryService interface {
	Query(ctx context.Context, text, sessionID string) (chat.Response, error)
}

// QueryRequest is the POST /api/query body.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// QueryResponse is the POST /api/query reply.
type QueryResponse struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	SessionID string   `json:"session_id"`
}

// QueryHandler serves the question endpoint.
type QueryHandler struct {
	service QueryService
	logger  *slog.Logger
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(service QueryService, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{service: service, logger: logger}
}

// RegisterRoutes registers the query route on the mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.handleQuery)
}

func (h *QueryHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBodySize)

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	resp, err := h.service.Query(r.Context(), req.Query, req.SessionID)
	if err != nil {
		// Internal detail stays in the logs; the client gets a
		// generic failure.
		h.logger.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query_failed", "failed to process query")
		return
	}

	sources := resp.Sources
	if sources == nil {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, QueryResponse{
		Answer:    resp.Answer,
		Sources:   sources,
		SessionID: resp.SessionID,
	})
}
