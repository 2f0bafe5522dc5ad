package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"

	"github.com/lectern/lectern/internal/log"
	"github.com/lectern/lectern/internal/tools"
)

// fakeTool implements tools.Tool with a canned outcome.
type fakeTool struct {
	name     string
	outcome  tools.Outcome
	err      error
	calls    int
	lastArgs map[string]any
}

func (f *fakeTool) Definition() tools.Definition {
	return tools.Definition{Name: f.name, Description: "fake"}
}

func (f *fakeTool) Execute(ctx context.Context, args map[string]any) (tools.Outcome, error) {
	f.calls++
	f.lastArgs = args
	if f.err != nil {
		return tools.Outcome{}, f.err
	}
	return f.outcome, nil
}

func textResponse(text string) *ai.ModelResponse {
	return &ai.ModelResponse{Message: ai.NewModelTextMessage(text)}
}

func toolRequestResponse(name string, input map[string]any) *ai.ModelResponse {
	return &ai.ModelResponse{Message: ai.NewMessage(ai.RoleModel, nil,
		ai.NewToolRequestPart(&ai.ToolRequest{Name: name, Ref: "r1", Input: input}))}
}

// toolRef satisfies ai.ToolRef by name alone.
type toolRef string

func (r toolRef) Name() string { return string(r) }

// scriptedGenerate returns canned responses in order and records the
// tool refs offered on each call.
type scriptedGenerate struct {
	responses    []*ai.ModelResponse
	errs         []error
	calls        int
	offeredTools [][]ai.ToolRef
}

func (s *scriptedGenerate) generate(ctx context.Context, toolRefs []ai.ToolRef, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
	i := s.calls
	s.calls++
	s.offeredTools = append(s.offeredTools, toolRefs)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return nil, fmt.Errorf("unexpected generate call %d", i+1)
}

func newTestAgent(t *testing.T, reg *tools.Registry, gen *scriptedGenerate) *Agent {
	t.Helper()
	a, err := New(nil, reg, []ai.ToolRef{toolRef("search_course_content")}, Config{
		ModelName:   "googleai/gemini-2.5-flash",
		MaxTokens:   800,
		RetryConfig: RetryConfig{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		RateLimiter: rate.NewLimiter(rate.Inf, 1),
		Logger:      log.NewNop(),
	}, WithGenerate(gen.generate))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func registryWith(t *testing.T, ft *fakeTool) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	if err := reg.Register(ft); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return reg
}

func TestAnswerDirect(t *testing.T) {
	ft := &fakeTool{name: "search_course_content"}
	gen := &scriptedGenerate{responses: []*ai.ModelResponse{textResponse("General knowledge answer.")}}
	a := newTestAgent(t, registryWith(t, ft), gen)

	ans, err := a.Answer(context.Background(), "What is 2+2?", "")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Text != "General knowledge answer." {
		t.Errorf("text = %q", ans.Text)
	}
	if len(ans.Sources) != 0 {
		t.Errorf("sources = %v, want none", ans.Sources)
	}
	if gen.calls != 1 {
		t.Errorf("generate calls = %d, want 1", gen.calls)
	}
	if ft.calls != 0 {
		t.Errorf("tool calls = %d, want 0", ft.calls)
	}
}

func TestAnswerWithRetrieval(t *testing.T) {
	ft := &fakeTool{
		name: "search_course_content",
		outcome: tools.Outcome{
			Text:    "[Introduction to MCP - Lesson 1]\nMCP servers expose tools.",
			Sources: []string{"Introduction to MCP - Lesson 1"},
		},
	}
	gen := &scriptedGenerate{responses: []*ai.ModelResponse{
		toolRequestResponse("search_course_content", map[string]any{"query": "MCP tools"}),
		textResponse("MCP servers expose tools to clients."),
	}}
	a := newTestAgent(t, registryWith(t, ft), gen)

	ans, err := a.Answer(context.Background(), "What do MCP servers do?", "")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Text != "MCP servers expose tools to clients." {
		t.Errorf("text = %q", ans.Text)
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "Introduction to MCP - Lesson 1" {
		t.Errorf("sources = %v", ans.Sources)
	}
	if gen.calls != 2 {
		t.Errorf("generate calls = %d, want 2", gen.calls)
	}
	if ft.calls != 1 {
		t.Errorf("tool calls = %d, want exactly 1", ft.calls)
	}
	if ft.lastArgs["query"] != "MCP tools" {
		t.Errorf("tool args = %v", ft.lastArgs)
	}
	if len(gen.offeredTools) != 2 || len(gen.offeredTools[0]) != 1 {
		t.Fatalf("offered tools per call = %v, want one tool on round one", gen.offeredTools)
	}
	if gen.offeredTools[0][0].Name() != "search_course_content" {
		t.Errorf("round one tool = %q", gen.offeredTools[0][0].Name())
	}
	if len(gen.offeredTools[1]) != 0 {
		t.Errorf("round two offered %d tools, want none", len(gen.offeredTools[1]))
	}
}

func TestAnswerToolFailureSurvives(t *testing.T) {
	ft := &fakeTool{name: "search_course_content", err: errors.New("store down")}
	gen := &scriptedGenerate{responses: []*ai.ModelResponse{
		toolRequestResponse("search_course_content", map[string]any{"query": "x"}),
		textResponse("I could not search the course materials right now."),
	}}
	a := newTestAgent(t, registryWith(t, ft), gen)

	ans, err := a.Answer(context.Background(), "What do MCP servers do?", "")
	if err != nil {
		t.Fatalf("tool failure should not abort the query: %v", err)
	}
	if len(ans.Sources) != 0 {
		t.Errorf("sources = %v, want none after failed retrieval", ans.Sources)
	}
	if gen.calls != 2 {
		t.Errorf("generate calls = %d, want 2", gen.calls)
	}
}

func TestAnswerUnknownToolSurvives(t *testing.T) {
	ft := &fakeTool{name: "search_course_content"}
	gen := &scriptedGenerate{responses: []*ai.ModelResponse{
		toolRequestResponse("imaginary_tool", map[string]any{"query": "x"}),
		textResponse("final"),
	}}
	a := newTestAgent(t, registryWith(t, ft), gen)

	ans, err := a.Answer(context.Background(), "question", "")
	if err != nil {
		t.Fatalf("unknown tool should not abort the query: %v", err)
	}
	if ans.Text != "final" {
		t.Errorf("text = %q", ans.Text)
	}
	if ft.calls != 0 {
		t.Errorf("registered tool ran %d times for a different name", ft.calls)
	}
}

func TestAnswerGenerationFailure(t *testing.T) {
	gen := &scriptedGenerate{errs: []error{errors.New("invalid api key")}}
	a := newTestAgent(t, registryWith(t, &fakeTool{name: "search_course_content"}), gen)

	_, err := a.Answer(context.Background(), "question", "")
	if !errors.Is(err, ErrGeneration) {
		t.Errorf("error = %v, want ErrGeneration", err)
	}
}

func TestAnswerSecondRoundFailure(t *testing.T) {
	ft := &fakeTool{name: "search_course_content", outcome: tools.Outcome{Text: "content"}}
	gen := &scriptedGenerate{
		responses: []*ai.ModelResponse{toolRequestResponse("search_course_content", map[string]any{"query": "x"}), nil},
		errs:      []error{nil, errors.New("invalid request")},
	}
	a := newTestAgent(t, registryWith(t, ft), gen)

	_, err := a.Answer(context.Background(), "question", "")
	if !errors.Is(err, ErrGeneration) {
		t.Errorf("error = %v, want ErrGeneration", err)
	}
}

func TestAnswerRetriesTransientFailure(t *testing.T) {
	gen := &scriptedGenerate{
		responses: []*ai.ModelResponse{nil, textResponse("after retry")},
		errs:      []error{errors.New("503 service unavailable"), nil},
	}
	a := newTestAgent(t, registryWith(t, &fakeTool{name: "search_course_content"}), gen)

	ans, err := a.Answer(context.Background(), "question", "")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if ans.Text != "after retry" {
		t.Errorf("text = %q", ans.Text)
	}
	if gen.calls != 2 {
		t.Errorf("generate calls = %d, want 2", gen.calls)
	}
}

func TestAnswerEmptyQuery(t *testing.T) {
	a := newTestAgent(t, registryWith(t, &fakeTool{name: "search_course_content"}), &scriptedGenerate{})
	if _, err := a.Answer(context.Background(), "   ", ""); err == nil {
		t.Error("expected error for blank query")
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("503 Service Unavailable"), true},
		{errors.New("connection reset by peer"), true},
		{errors.New("request timeout"), true},
		{errors.New("400 bad request"), false},
		{errors.New("401 unauthorized"), false},
		{errors.New("invalid api key"), false},
	}
	for _, tt := range tests {
		if got := retryableError(tt.err); got != tt.want {
			t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestSystemText(t *testing.T) {
	a := newTestAgent(t, registryWith(t, &fakeTool{name: "search_course_content"}), &scriptedGenerate{})

	if got := a.systemText(""); got != systemPrompt {
		t.Errorf("empty history should yield the bare prompt")
	}
	got := a.systemText("User: hi\nAssistant: hello")
	if !strings.Contains(got, "Previous conversation:") || !strings.Contains(got, "User: hi") {
		t.Errorf("history not embedded: %q", got)
	}
}
