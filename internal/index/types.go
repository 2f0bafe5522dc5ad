// Package index implements the two-level semantic search over course
// content: a catalog collection that resolves fuzzy course references,
// and a content collection for passage retrieval. Both are pgvector
// collections in PostgreSQL; embeddings come from a Genkit embedder.
package index

import (
	"fmt"

	"github.com/lectern/lectern/internal/course"
)

// VectorDimension is the embedding width for both collections.
// gemini-embedding-001 supports truncation to 768 dimensions; the
// pgvector schema in db/migrations is declared accordingly.
const VectorDimension = 768

// Filter narrows a content search. CourseName is free text and is
// fuzzy-resolved against the catalog before filtering; LessonNumber is
// exact. Both set means both must match.
type Filter struct {
	CourseName   string
	LessonNumber *int
}

// IsZero reports whether the filter imposes no constraints.
func (f Filter) IsZero() bool {
	return f.CourseName == "" && f.LessonNumber == nil
}

// Hit is one retrieved chunk with its cosine distance (smaller is more
// similar) and human-readable source label.
type Hit struct {
	Chunk    course.Chunk
	Distance float64
	Source   string
}

// Results is an ordered search outcome, most similar first.
// FilterMiss is set when a course-name filter resolved to nothing; the
// search then short-circuited with no hits, which is distinct from a
// retrieval failure (an error) and from an ordinary empty result.
type Results struct {
	Hits       []Hit
	FilterMiss string
}

// Empty reports whether the search produced no hits.
func (r Results) Empty() bool {
	return len(r.Hits) == 0
}

// SourceLabel renders the citation label for a chunk:
// "<course title> - Lesson <n>", or the course title alone when the
// chunk is not attached to a lesson.
func SourceLabel(c course.Chunk) string {
	if c.LessonNumber == nil {
		return c.CourseTitle
	}
	return fmt.Sprintf("%s - Lesson %d", c.CourseTitle, *c.LessonNumber)
}

// Stats is the read-only catalog summary exposed to the transport layer.
type Stats struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}
