// Package mcp exposes the course assistant's retrieval and analytics
// over the Model Context Protocol, so IDE and desktop clients can
// search the indexed courses directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lectern/lectern/internal/index"
	"github.com/lectern/lectern/internal/tools"
)

// StatsProvider reports catalog analytics.
type StatsProvider interface {
	Stats(ctx context.Context) (index.Stats, error)
}

// Server wraps the MCP SDK server around the tool registry.
type Server struct {
	mcpServer *mcp.Server
	registry  *tools.Registry
	stats     StatsProvider
	name      string
	version   string
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// NewServer creates an MCP server exposing search_course_content and
// course_stats.
func NewServer(cfg Config, registry *tools.Registry, stats StatsProvider) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if stats == nil {
		return nil, fmt.Errorf("stats provider is required")
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		registry: registry,
		stats:    stats,
		name:     cfg.Name,
		version:  cfg.Version,
	}

	if err := s.registerSearch(); err != nil {
		return nil, fmt.Errorf("register search tool: %w", err)
	}
	if err := s.registerStats(); err != nil {
		return nil, fmt.Errorf("register stats tool: %w", err)
	}

	return s, nil
}

// Run starts the MCP server on the given transport and blocks until
// the context is cancelled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// registerSearch bridges the registry's retrieval tool to MCP. The
// result text carries the content blocks; sources are appended so MCP
// clients see the citations too.
func (s *Server) registerSearch() error {
	def, ok := s.registry.Lookup(tools.SearchCourseContentName)
	if !ok {
		return fmt.Errorf("%s not registered", tools.SearchCourseContentName)
	}
	definition := def.Definition()

	tool := &mcp.Tool{
		Name:        definition.Name,
		Description: definition.Description,
		InputSchema: definition.InputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in tools.SearchInput) (*mcp.CallToolResult, any, error) {
		args := map[string]any{"query": in.Query}
		if in.CourseName != "" {
			args["course_name"] = in.CourseName
		}
		if in.LessonNumber != nil {
			args["lesson_number"] = *in.LessonNumber
		}

		outcome, err := s.registry.Execute(ctx, definition.Name, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "search failed: course index is unavailable"}},
				IsError: true,
			}, nil, nil
		}

		text := outcome.Text
		if len(outcome.Sources) > 0 {
			text += "\n\nSources: " + strings.Join(outcome.Sources, ", ")
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, nil, nil
	})

	return nil
}

// CourseStatsInput is the (empty) input for course_stats.
type CourseStatsInput struct{}

func (s *Server) registerStats() error {
	inputSchema, err := jsonschema.For[CourseStatsInput](nil)
	if err != nil {
		return fmt.Errorf("schema for course_stats: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "course_stats",
		Description: "List the indexed courses: total count and every course title.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in CourseStatsInput) (*mcp.CallToolResult, any, error) {
		stats, err := s.stats.Stats(ctx)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "course statistics are unavailable"}},
				IsError: true,
			}, nil, nil
		}

		body, err := json.Marshal(stats)
		if err != nil {
			return nil, nil, fmt.Errorf("encode stats: %w", err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
		}, nil, nil
	})

	return nil
}
