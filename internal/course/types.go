// Package course defines the course domain model and the ingestion
// pipeline that turns structured course documents into indexable chunks.
package course

// Course is the catalog-level record for one course.
// Title is the unique key; courses are immutable once ingested.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Lesson is one numbered section of a course.
// Number is unique within its course and non-negative.
type Lesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// Chunk is a bounded span of lesson text prepared for vector indexing.
// LessonNumber is nil for text that precedes the first lesson marker.
type Chunk struct {
	CourseTitle  string
	LessonNumber *int
	Index        int
	Text         string
}

// CatalogText renders the searchable text for the course catalog entry.
// The catalog stores one vector per course, built from this string, so
// fuzzy references ("MCP", the instructor's name) resolve to the title.
func (c Course) CatalogText() string {
	s := c.Title
	if c.Instructor != "" {
		s += " taught by " + c.Instructor
	}
	return s
}
