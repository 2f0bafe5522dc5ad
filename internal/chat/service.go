// Package chat orchestrates one user query end to end: session
// resolution, history assembly, answer generation, and history
// persistence. It is the seam between transports (HTTP, CLI, MCP) and
// the generation machinery.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lectern/lectern/internal/agent"
	"github.com/lectern/lectern/internal/index"
)

// Answerer produces an answer for a query given formatted history.
type Answerer interface {
	Answer(ctx context.Context, query, history string) (agent.Answer, error)
}

// StatsProvider reports catalog analytics.
type StatsProvider interface {
	Stats(ctx context.Context) (index.Stats, error)
}

// Sessions is the conversation-state surface the service needs.
type Sessions interface {
	NewID() string
	FormattedHistory(id string) string
	AddExchange(id, query, answer string)
}

// Response is one completed query: the answer text, the source labels
// behind it (empty when no retrieval happened), and the session id the
// caller should carry into the next turn.
type Response struct {
	Answer    string
	Sources   []string
	SessionID string
}

// Service wires the orchestration dependencies together.
type Service struct {
	answerer Answerer
	sessions Sessions
	stats    StatsProvider
	logger   *slog.Logger
}

// New creates a Service.
func New(answerer Answerer, sessions Sessions, stats StatsProvider, logger *slog.Logger) (*Service, error) {
	if answerer == nil {
		return nil, fmt.Errorf("chat: answerer is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("chat: sessions is required")
	}
	if stats == nil {
		return nil, fmt.Errorf("chat: stats provider is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{answerer: answerer, sessions: sessions, stats: stats, logger: logger}, nil
}

// Query answers one user question. An empty sessionID starts a new
// conversation; the returned SessionID is always usable for the next
// turn. The exchange is appended to history only when generation
// succeeds, so a failed query leaves the conversation untouched.
func (s *Service) Query(ctx context.Context, text, sessionID string) (Response, error) {
	if strings.TrimSpace(text) == "" {
		return Response{}, fmt.Errorf("chat: empty query")
	}

	if sessionID == "" {
		sessionID = s.sessions.NewID()
	}
	history := s.sessions.FormattedHistory(sessionID)

	answer, err := s.answerer.Answer(ctx, text, history)
	if err != nil {
		s.logger.Error("query failed", "session_id", sessionID, "error", err)
		return Response{}, fmt.Errorf("answer query: %w", err)
	}

	s.sessions.AddExchange(sessionID, text, answer.Text)

	s.logger.Info("query answered",
		"session_id", sessionID,
		"sources", len(answer.Sources),
		"answer_len", len(answer.Text))
	return Response{
		Answer:    answer.Text,
		Sources:   answer.Sources,
		SessionID: sessionID,
	}, nil
}

// CourseStats returns the catalog summary.
func (s *Service) CourseStats(ctx context.Context) (index.Stats, error) {
	stats, err := s.stats.Stats(ctx)
	if err != nil {
		return index.Stats{}, fmt.Errorf("course stats: %w", err)
	}
	return stats, nil
}
