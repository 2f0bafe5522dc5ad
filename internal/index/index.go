package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"

	"github.com/lectern/lectern/internal/course"
)

const (
	// DefaultMaxResults caps a content search when no explicit limit
	// is configured.
	DefaultMaxResults = 5

	// embedTimeout bounds a single embedding call so a stalled
	// provider cannot hang a search indefinitely.
	embedTimeout = 30 * time.Second
)

// Index is the two-level search structure over ingested course
// material. It is safe for concurrent use; writes happen only during
// ingestion and reads dominate at query time.
type Index struct {
	queries    Querier
	embedder   ai.Embedder
	maxResults int
	logger     *slog.Logger
}

// New creates an Index. maxResults <= 0 falls back to DefaultMaxResults.
func New(querier Querier, embedder ai.Embedder, maxResults int, logger *slog.Logger) *Index {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		queries:    querier,
		embedder:   embedder,
		maxResults: maxResults,
		logger:     logger,
	}
}

// embed turns text into a pgvector value via the configured embedder.
func (ix *Index) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	resp, err := ix.embedder.Embed(embedCtx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return pgvector.Vector{}, fmt.Errorf("embedding timeout: %w", err)
		}
		return pgvector.Vector{}, fmt.Errorf("generate embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, ErrEmptyEmbedding
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// AddCourse inserts a course into the catalog. The catalog text
// (title plus instructor) is embedded so later fuzzy references like
// "the MCP course" can resolve to the exact title. Returns
// ErrCourseExists when the title is already present; existing courses
// are never modified.
func (ix *Index) AddCourse(ctx context.Context, c course.Course) error {
	if c.Title == "" {
		return fmt.Errorf("index: course has no title")
	}

	embedding, err := ix.embed(ctx, c.CatalogText())
	if err != nil {
		return fmt.Errorf("embed course %q: %w", c.Title, err)
	}

	lessonsJSON, err := json.Marshal(c.Lessons)
	if err != nil {
		return fmt.Errorf("marshal lessons for %q: %w", c.Title, err)
	}

	inserted, err := ix.queries.InsertCourse(ctx, InsertCourseParams{
		Title:       c.Title,
		Link:        c.Link,
		Instructor:  c.Instructor,
		LessonsJSON: lessonsJSON,
		Embedding:   embedding,
	})
	if err != nil {
		return fmt.Errorf("insert course %q: %w", c.Title, err)
	}
	if !inserted {
		return fmt.Errorf("%w: %q", ErrCourseExists, c.Title)
	}

	ix.logger.Info("course added to catalog", "title", c.Title, "lessons", len(c.Lessons))
	return nil
}

// AddChunks embeds and stores content chunks. Chunks are embedded one
// at a time and inserted in a single batch.
func (ix *Index) AddChunks(ctx context.Context, chunks []course.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([]ChunkRow, 0, len(chunks))
	for _, c := range chunks {
		embedding, err := ix.embed(ctx, c.Text)
		if err != nil {
			return fmt.Errorf("embed chunk %d of %q: %w", c.Index, c.CourseTitle, err)
		}
		rows = append(rows, ChunkRow{
			CourseTitle:  c.CourseTitle,
			LessonNumber: c.LessonNumber,
			ChunkIndex:   c.Index,
			Content:      c.Text,
			Embedding:    embedding,
		})
	}

	if err := ix.queries.InsertChunks(ctx, rows); err != nil {
		return fmt.Errorf("insert %d chunks for %q: %w", len(rows), chunks[0].CourseTitle, err)
	}

	ix.logger.Info("chunks indexed", "course", chunks[0].CourseTitle, "count", len(rows))
	return nil
}

// ResolveCourseName maps free-text like "the MCP course" to the exact
// catalog title by semantic nearest-neighbor. ok is false when the
// catalog is empty; err is reserved for embedding or database
// failures. There is no similarity floor: a non-empty catalog always
// resolves to its closest title.
func (ix *Index) ResolveCourseName(ctx context.Context, text string) (string, bool, error) {
	if text == "" {
		return "", false, ErrEmptyQuery
	}

	embedding, err := ix.embed(ctx, text)
	if err != nil {
		return "", false, fmt.Errorf("resolve %q: %w", text, err)
	}

	title, ok, err := ix.queries.NearestCourse(ctx, embedding)
	if err != nil {
		return "", false, fmt.Errorf("resolve %q: %w", text, err)
	}
	if !ok {
		return "", false, nil
	}

	ix.logger.Debug("course name resolved", "input", text, "title", title)
	return title, true, nil
}

// Search runs a similarity search over course content. A course-name
// filter is resolved against the catalog first; when resolution finds
// nothing the search short-circuits with Results.FilterMiss set rather
// than scanning unfiltered. Hits come back most similar first, capped
// at the configured maximum.
func (ix *Index) Search(ctx context.Context, query string, f Filter) (Results, error) {
	if query == "" {
		return Results{}, ErrEmptyQuery
	}

	var resolvedTitle string
	if f.CourseName != "" {
		title, ok, err := ix.ResolveCourseName(ctx, f.CourseName)
		if err != nil {
			return Results{}, err
		}
		if !ok {
			return Results{FilterMiss: fmt.Sprintf("No course found matching '%s'", f.CourseName)}, nil
		}
		resolvedTitle = title
	}

	embedding, err := ix.embed(ctx, query)
	if err != nil {
		return Results{}, fmt.Errorf("search: %w", err)
	}

	rows, err := ix.queries.SearchChunks(ctx, SearchChunksParams{
		Embedding:    embedding,
		CourseTitle:  resolvedTitle,
		LessonNumber: f.LessonNumber,
		Limit:        ix.maxResults,
	})
	if err != nil {
		return Results{}, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(rows))
	for _, r := range rows {
		chunk := course.Chunk{
			CourseTitle:  r.CourseTitle,
			LessonNumber: r.LessonNumber,
			Index:        r.ChunkIndex,
			Text:         r.Content,
		}
		hits = append(hits, Hit{
			Chunk:    chunk,
			Distance: r.Distance,
			Source:   SourceLabel(chunk),
		})
	}

	ix.logger.Debug("content search",
		"query_len", len(query),
		"course", resolvedTitle,
		"hits", len(hits))
	return Results{Hits: hits}, nil
}

// ExistingTitles returns the titles that have content chunks stored,
// used by ingestion to skip already-loaded courses. A catalog row
// whose chunk insertion failed mid-run is not listed, so the next run
// picks the course up again instead of stranding it chunkless.
func (ix *Index) ExistingTitles(ctx context.Context) (map[string]struct{}, error) {
	titles, err := ix.queries.IngestedTitles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list titles: %w", err)
	}
	set := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		set[t] = struct{}{}
	}
	return set, nil
}

// Stats summarizes the catalog for the analytics endpoint.
func (ix *Index) Stats(ctx context.Context) (Stats, error) {
	count, err := ix.queries.CountCourses(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	titles, err := ix.queries.CourseTitles(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return Stats{TotalCourses: int(count), CourseTitles: titles}, nil
}
