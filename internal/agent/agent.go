// Package agent drives answer generation: an explicit two-round
// tool-use protocol over Genkit. Round one offers the retrieval tool
// with auto-execution disabled; if the model asks for it, the agent
// dispatches through the tool registry and runs exactly one follow-up
// round with no tools. The model never gets a second retrieval.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/lectern/lectern/internal/tools"
)

// ErrGeneration marks a failure of the generation service itself.
// Queries fail on it; transport layers report a generic message and
// keep the detail in logs.
var ErrGeneration = errors.New("agent: generation failed")

const systemPrompt = `You are a teaching assistant for a catalog of indexed courses.

Answer questions about course content using the search_course_content tool.
Use the tool at most once per question, only when the question is about
specific course material. Answer general questions directly from your own
knowledge without searching.

Ground your answer in the retrieved content when you search. If the search
finds nothing relevant, say so plainly. Keep answers concise and do not
mention the search process itself.`

// queryState tracks the protocol position for one query.
type queryState int

const (
	stateDrafting queryState = iota
	stateToolRequested
	stateSynthesizing
	stateAnswered
)

func (s queryState) String() string {
	switch s {
	case stateDrafting:
		return "drafting"
	case stateToolRequested:
		return "tool_requested"
	case stateSynthesizing:
		return "synthesizing"
	case stateAnswered:
		return "answered"
	default:
		return "unknown"
	}
}

// generateFunc is the generation call. The tools offered on this call
// travel as an explicit argument so tests can observe that the second
// round offers none. Injected so tests can feed canned responses
// without a model.
type generateFunc func(ctx context.Context, toolRefs []ai.ToolRef, opts ...ai.GenerateOption) (*ai.ModelResponse, error)

// Answer is a completed generation: the text plus the sources behind
// it. Sources is empty when the model answered without retrieving.
type Answer struct {
	Text    string
	Sources []string
}

// Config configures an Agent.
type Config struct {
	ModelName   string // full Genkit model name, e.g. "googleai/gemini-2.5-flash"
	MaxTokens   int    // response token cap
	RetryConfig RetryConfig
	RateLimiter *rate.Limiter // nil installs the default limiter
	Logger      *slog.Logger
}

// Agent holds the generation dependencies for answering queries.
type Agent struct {
	generate    generateFunc
	registry    *tools.Registry
	toolRefs    []ai.ToolRef
	modelName   string
	maxTokens   int
	retryConfig RetryConfig
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// Option adjusts Agent construction.
type Option func(*Agent)

// WithGenerate replaces the generation call, for tests.
func WithGenerate(fn func(ctx context.Context, toolRefs []ai.ToolRef, opts ...ai.GenerateOption) (*ai.ModelResponse, error)) Option {
	return func(a *Agent) { a.generate = fn }
}

// New creates an Agent bound to a Genkit instance, a tool registry,
// and the Genkit tool refs whose schemas are offered in round one.
func New(g *genkit.Genkit, registry *tools.Registry, toolRefs []ai.ToolRef, cfg Config, opts ...Option) (*Agent, error) {
	if registry == nil {
		return nil, fmt.Errorf("agent: registry is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("agent: model name is required")
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &Agent{
		registry:    registry,
		toolRefs:    toolRefs,
		modelName:   cfg.ModelName,
		maxTokens:   cfg.MaxTokens,
		retryConfig: retryConfig,
		limiter:     limiter,
		logger:      logger,
	}
	a.generate = func(ctx context.Context, toolRefs []ai.ToolRef, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
		if len(toolRefs) > 0 {
			opts = append(opts, ai.WithTools(toolRefs...))
		}
		return genkit.Generate(ctx, g, opts...)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// modelConfig pins deterministic output: temperature zero and a
// bounded response size.
func (a *Agent) modelConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if a.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(a.maxTokens)
	}
	return cfg
}

func (a *Agent) systemText(history string) string {
	if history == "" {
		return systemPrompt
	}
	return systemPrompt + "\n\nPrevious conversation:\n" + history
}

// Answer runs the two-round protocol for one query. history is the
// formatted prior conversation, empty for a fresh session.
func (a *Agent) Answer(ctx context.Context, query, history string) (Answer, error) {
	if strings.TrimSpace(query) == "" {
		return Answer{}, fmt.Errorf("agent: empty query")
	}

	state := stateDrafting
	userMsg := ai.NewUserTextMessage(query)

	resp, err := a.generateWithRetry(ctx, a.toolRefs,
		ai.WithModelName(a.modelName),
		ai.WithSystem(a.systemText(history)),
		ai.WithMessages(userMsg),
		ai.WithReturnToolRequests(true),
		ai.WithConfig(a.modelConfig()),
	)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	requests := resp.ToolRequests()
	if len(requests) == 0 {
		state = stateAnswered
		a.logger.Debug("query answered directly", "state", state.String())
		return Answer{Text: resp.Text()}, nil
	}

	state = stateToolRequested
	a.logger.Debug("model requested tools", "state", state.String(), "count", len(requests))

	parts, sources := a.runTools(ctx, requests)

	state = stateSynthesizing
	toolMsg := ai.NewMessage(ai.RoleTool, nil, parts...)

	// Second round carries the tool results and offers no tools, so a
	// single retrieval is a hard ceiling regardless of model behavior.
	final, err := a.generateWithRetry(ctx, nil,
		ai.WithModelName(a.modelName),
		ai.WithSystem(a.systemText(history)),
		ai.WithMessages(userMsg, resp.Message, toolMsg),
		ai.WithConfig(a.modelConfig()),
	)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	state = stateAnswered
	a.logger.Debug("query answered after retrieval", "state", state.String(), "sources", len(sources))
	return Answer{Text: final.Text(), Sources: sources}, nil
}

// runTools executes the round-one tool requests through the registry.
// Failures never abort the query: an unknown tool or an execution
// error becomes the tool response text, and the model explains in the
// final round. Sources from successful outcomes are collected in
// request order, de-duplicated.
func (a *Agent) runTools(ctx context.Context, requests []*ai.ToolRequest) ([]*ai.Part, []string) {
	parts := make([]*ai.Part, 0, len(requests))
	var sources []string
	seen := make(map[string]struct{})

	for _, req := range requests {
		output := a.runTool(ctx, req, &sources, seen)
		parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   req.Name,
			Ref:    req.Ref,
			Output: output,
		}))
	}
	return parts, sources
}

func (a *Agent) runTool(ctx context.Context, req *ai.ToolRequest, sources *[]string, seen map[string]struct{}) string {
	args, ok := req.Input.(map[string]any)
	if !ok && req.Input != nil {
		a.logger.Warn("tool request with non-object input", "tool", req.Name)
		return fmt.Sprintf("Tool '%s' received malformed input.", req.Name)
	}

	outcome, err := a.registry.Execute(ctx, req.Name, args)
	if errors.Is(err, tools.ErrToolNotFound) {
		a.logger.Warn("model requested unknown tool", "tool", req.Name)
		return fmt.Sprintf("Tool '%s' does not exist.", req.Name)
	}
	if err != nil {
		a.logger.Warn("tool execution failed", "tool", req.Name, "error", err)
		return fmt.Sprintf("Tool '%s' failed: search is temporarily unavailable.", req.Name)
	}

	for _, s := range outcome.Sources {
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			*sources = append(*sources, s)
		}
	}
	return outcome.Text
}
