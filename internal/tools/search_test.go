package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lectern/lectern/internal/course"
	"github.com/lectern/lectern/internal/index"
	"github.com/lectern/lectern/internal/log"
)

// mockSearcher implements Searcher for testing.
type mockSearcher struct {
	results    index.Results
	err        error
	lastQuery  string
	lastFilter index.Filter
}

func (m *mockSearcher) Search(ctx context.Context, query string, f index.Filter) (index.Results, error) {
	m.lastQuery = query
	m.lastFilter = f
	if m.err != nil {
		return index.Results{}, m.err
	}
	return m.results, nil
}

func intPtr(n int) *int { return &n }

func hit(courseTitle string, lesson int, text string) index.Hit {
	c := course.Chunk{CourseTitle: courseTitle, LessonNumber: intPtr(lesson), Text: text}
	return index.Hit{Chunk: c, Source: index.SourceLabel(c)}
}

func newSearchTool(t *testing.T, s Searcher) *SearchTool {
	t.Helper()
	tool, err := NewSearchTool(s, log.NewNop())
	if err != nil {
		t.Fatalf("NewSearchTool: %v", err)
	}
	return tool
}

func TestSearchToolDefinition(t *testing.T) {
	tool := newSearchTool(t, &mockSearcher{})
	def := tool.Definition()

	if def.Name != "search_course_content" {
		t.Errorf("name = %q", def.Name)
	}
	if def.Description == "" {
		t.Error("description is empty")
	}
	if def.InputSchema == nil {
		t.Fatal("input schema is nil")
	}
	if _, ok := def.InputSchema.Properties["query"]; !ok {
		t.Error("schema missing query property")
	}
}

func TestSearchToolExecute(t *testing.T) {
	t.Run("formats hits with source headers", func(t *testing.T) {
		s := &mockSearcher{results: index.Results{Hits: []index.Hit{
			hit("Introduction to MCP", 1, "MCP servers expose tools."),
			hit("Introduction to MCP", 2, "Resources provide context."),
		}}}
		tool := newSearchTool(t, s)

		out, err := tool.Execute(context.Background(), map[string]any{"query": "tools"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "[Introduction to MCP - Lesson 1]\nMCP servers expose tools.\n\n" +
			"[Introduction to MCP - Lesson 2]\nResources provide context."
		if out.Text != want {
			t.Errorf("text = %q, want %q", out.Text, want)
		}
		if len(out.Sources) != 2 || out.Sources[0] != "Introduction to MCP - Lesson 1" {
			t.Errorf("sources = %v", out.Sources)
		}
	})

	t.Run("de-duplicates sources preserving order", func(t *testing.T) {
		s := &mockSearcher{results: index.Results{Hits: []index.Hit{
			hit("Introduction to MCP", 1, "first chunk"),
			hit("Introduction to MCP", 1, "second chunk from same lesson"),
			hit("Introduction to MCP", 2, "third"),
		}}}
		tool := newSearchTool(t, s)

		out, err := tool.Execute(context.Background(), map[string]any{"query": "tools"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out.Sources) != 2 {
			t.Fatalf("sources = %v, want 2 entries", out.Sources)
		}
		if out.Sources[0] != "Introduction to MCP - Lesson 1" || out.Sources[1] != "Introduction to MCP - Lesson 2" {
			t.Errorf("sources = %v", out.Sources)
		}
		if strings.Count(out.Text, "[Introduction to MCP - Lesson 1]") != 2 {
			t.Errorf("text should keep every block: %q", out.Text)
		}
	})

	t.Run("filters are forwarded", func(t *testing.T) {
		s := &mockSearcher{}
		tool := newSearchTool(t, s)

		_, err := tool.Execute(context.Background(), map[string]any{
			"query":         "tools",
			"course_name":   "MCP",
			"lesson_number": 3,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.lastFilter.CourseName != "MCP" {
			t.Errorf("course filter = %q", s.lastFilter.CourseName)
		}
		if s.lastFilter.LessonNumber == nil || *s.lastFilter.LessonNumber != 3 {
			t.Errorf("lesson filter = %v", s.lastFilter.LessonNumber)
		}
	})

	t.Run("empty result names the filters", func(t *testing.T) {
		tool := newSearchTool(t, &mockSearcher{})

		out, err := tool.Execute(context.Background(), map[string]any{
			"query":         "quantum entanglement",
			"course_name":   "MCP",
			"lesson_number": 5,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.Text, "No relevant content found") {
			t.Errorf("text = %q", out.Text)
		}
		if !strings.Contains(out.Text, "course 'MCP'") || !strings.Contains(out.Text, "lesson 5") {
			t.Errorf("filters not named: %q", out.Text)
		}
		if len(out.Sources) != 0 {
			t.Errorf("sources = %v, want none", out.Sources)
		}
	})

	t.Run("unresolvable course filter surfaces the miss reason", func(t *testing.T) {
		s := &mockSearcher{results: index.Results{FilterMiss: "No course found matching 'Basket Weaving'"}}
		tool := newSearchTool(t, s)

		out, err := tool.Execute(context.Background(), map[string]any{
			"query":       "tools",
			"course_name": "Basket Weaving",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Text != "No course found matching 'Basket Weaving'" {
			t.Errorf("text = %q", out.Text)
		}
	})

	t.Run("missing query is an error", func(t *testing.T) {
		tool := newSearchTool(t, &mockSearcher{})
		if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
			t.Error("expected error for missing query")
		}
	})

	t.Run("retrieval failure is an error", func(t *testing.T) {
		tool := newSearchTool(t, &mockSearcher{err: errors.New("store down")})
		_, err := tool.Execute(context.Background(), map[string]any{"query": "tools"})
		if err == nil || !strings.Contains(err.Error(), "store down") {
			t.Errorf("error = %v", err)
		}
	})
}

func TestRegistry(t *testing.T) {
	t.Run("register and execute", func(t *testing.T) {
		reg := NewRegistry()
		tool := newSearchTool(t, &mockSearcher{results: index.Results{Hits: []index.Hit{
			hit("Introduction to MCP", 1, "content"),
		}}})
		if err := reg.Register(tool); err != nil {
			t.Fatalf("Register: %v", err)
		}

		out, err := reg.Execute(context.Background(), "search_course_content", map[string]any{"query": "x"})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if len(out.Sources) != 1 {
			t.Errorf("sources = %v", out.Sources)
		}
	})

	t.Run("unknown tool", func(t *testing.T) {
		reg := NewRegistry()
		_, err := reg.Execute(context.Background(), "no_such_tool", nil)
		if !errors.Is(err, ErrToolNotFound) {
			t.Errorf("error = %v, want ErrToolNotFound", err)
		}
	})

	t.Run("duplicate registration rejected", func(t *testing.T) {
		reg := NewRegistry()
		tool := newSearchTool(t, &mockSearcher{})
		if err := reg.Register(tool); err != nil {
			t.Fatalf("first Register: %v", err)
		}
		if err := reg.Register(tool); !errors.Is(err, ErrDuplicateTool) {
			t.Errorf("error = %v, want ErrDuplicateTool", err)
		}
	})

	t.Run("definitions in registration order", func(t *testing.T) {
		reg := NewRegistry()
		tool := newSearchTool(t, &mockSearcher{})
		if err := reg.Register(tool); err != nil {
			t.Fatalf("Register: %v", err)
		}
		defs := reg.Definitions()
		if len(defs) != 1 || defs[0].Name != "search_course_content" {
			t.Errorf("definitions = %+v", defs)
		}
	})
}
