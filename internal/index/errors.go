package index

import "errors"

var (
	// ErrEmptyQuery is returned when a search or resolution is asked
	// about blank text.
	ErrEmptyQuery = errors.New("index: empty query")

	// ErrEmptyEmbedding is returned when the embedder produces no
	// vector for a non-empty input.
	ErrEmptyEmbedding = errors.New("index: embedder returned no embedding")

	// ErrCourseExists is returned by AddCourse when the catalog
	// already holds a course with the same title. Course metadata is
	// immutable once ingested.
	ErrCourseExists = errors.New("index: course already exists")
)
