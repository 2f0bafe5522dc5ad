package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/lectern/lectern/internal/index"
)

// SearchCourseContentName is the registered name of the retrieval tool.
const SearchCourseContentName = "search_course_content"

// SearchInput is the model-facing input for search_course_content.
type SearchInput struct {
	Query        string `json:"query" jsonschema_description:"What to look for in the course materials"`
	CourseName   string `json:"course_name,omitempty" jsonschema_description:"Course title to restrict the search to; partial names like 'MCP' are resolved to the full title"`
	LessonNumber *int   `json:"lesson_number,omitempty" jsonschema_description:"Restrict the search to one lesson number, e.g. 3"`
}

// Searcher is the slice of the index this tool needs.
type Searcher interface {
	Search(ctx context.Context, query string, f index.Filter) (index.Results, error)
}

// SearchTool retrieves course content for the model. Its outcome text
// is what the model reads in the tool response; the source labels ride
// alongside for the caller to surface to the user.
type SearchTool struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewSearchTool creates the retrieval tool.
func NewSearchTool(searcher Searcher, logger *slog.Logger) (*SearchTool, error) {
	if searcher == nil {
		return nil, fmt.Errorf("tools: searcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchTool{searcher: searcher, logger: logger}, nil
}

func (t *SearchTool) Definition() Definition {
	schema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		// SearchInput is a fixed struct; schema derivation cannot fail
		// at runtime unless the type itself is broken.
		panic(fmt.Sprintf("schema for %s: %v", SearchCourseContentName, err))
	}
	return Definition{
		Name: SearchCourseContentName,
		Description: "Search the indexed course materials for specific content. " +
			"Use this for questions about what a course teaches, lesson content, " +
			"or course-specific details. Optionally restrict by course name " +
			"(fuzzy, e.g. 'MCP') and lesson number.",
		InputSchema: schema,
	}
}

// Execute runs one retrieval. A search that finds nothing is a normal
// outcome with an explanatory message; only embedding or store
// failures return an error.
func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (Outcome, error) {
	input, err := decodeSearchInput(args)
	if err != nil {
		return Outcome{}, err
	}
	if strings.TrimSpace(input.Query) == "" {
		return Outcome{}, fmt.Errorf("tools: %s requires a query", SearchCourseContentName)
	}

	results, err := t.searcher.Search(ctx, input.Query, index.Filter{
		CourseName:   input.CourseName,
		LessonNumber: input.LessonNumber,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", SearchCourseContentName, err)
	}

	if results.FilterMiss != "" {
		return Outcome{Text: results.FilterMiss}, nil
	}
	if results.Empty() {
		return Outcome{Text: emptyResultMessage(input)}, nil
	}

	blocks := make([]string, 0, len(results.Hits))
	sources := make([]string, 0, len(results.Hits))
	seen := make(map[string]struct{}, len(results.Hits))
	for _, hit := range results.Hits {
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", hit.Source, hit.Chunk.Text))
		if _, dup := seen[hit.Source]; !dup {
			seen[hit.Source] = struct{}{}
			sources = append(sources, hit.Source)
		}
	}

	t.logger.Debug("search tool executed", "hits", len(results.Hits), "sources", len(sources))
	return Outcome{Text: strings.Join(blocks, "\n\n"), Sources: sources}, nil
}

// decodeSearchInput converts the loosely-typed argument map coming off
// the wire into SearchInput via a JSON round-trip.
func decodeSearchInput(args map[string]any) (SearchInput, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return SearchInput{}, fmt.Errorf("tools: encode arguments: %w", err)
	}
	var input SearchInput
	if err := json.Unmarshal(raw, &input); err != nil {
		return SearchInput{}, fmt.Errorf("tools: decode arguments: %w", err)
	}
	return input, nil
}

func emptyResultMessage(input SearchInput) string {
	var b strings.Builder
	b.WriteString("No relevant content found")
	if input.CourseName != "" {
		fmt.Fprintf(&b, " in course '%s'", input.CourseName)
	}
	if input.LessonNumber != nil {
		fmt.Fprintf(&b, " in lesson %d", *input.LessonNumber)
	}
	b.WriteString(".")
	return b.String()
}
