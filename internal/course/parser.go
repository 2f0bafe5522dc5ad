package course

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Header keys recognized at the top of a course document.
const (
	headerTitle      = "Course Title:"
	headerLink       = "Course Link:"
	headerInstructor = "Course Instructor:"
	headerLessonLink = "Lesson Link:"
)

// ErrMissingTitle indicates a document without a Course Title header.
var ErrMissingTitle = errors.New("course document has no title")

// lessonMarker matches lesson section headers like "Lesson 0: Introduction".
var lessonMarker = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.+)$`)

// Document is a parsed course file: the catalog record plus the raw text
// of each lesson, keyed by position in Course.Lessons. Preamble holds any
// text that appears before the first lesson marker.
type Document struct {
	Course      Course
	Preamble    string
	LessonTexts []string
}

// ParseFile parses the structured course document at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the operator's docs directory
	if err != nil {
		return nil, fmt.Errorf("opening course document: %w", err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}

// Parse reads a course document:
//
//	Course Title: <title>
//	Course Link: <url>
//	Course Instructor: <name>
//
//	Lesson 0: <lesson title>
//	Lesson Link: <url>
//	<lesson content ...>
//
// Header lines may appear in any order before the first lesson marker.
// A document with no lesson markers yields a single unnumbered text body
// in Preamble.
func Parse(r io.Reader) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := &Document{}
	var current *strings.Builder
	var preamble strings.Builder
	inHeader := true

	for scanner.Scan() {
		line := scanner.Text()

		if inHeader {
			trimmed := strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(trimmed, headerTitle):
				doc.Course.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, headerTitle))
				continue
			case strings.HasPrefix(trimmed, headerLink):
				doc.Course.Link = strings.TrimSpace(strings.TrimPrefix(trimmed, headerLink))
				continue
			case strings.HasPrefix(trimmed, headerInstructor):
				doc.Course.Instructor = strings.TrimSpace(strings.TrimPrefix(trimmed, headerInstructor))
				continue
			}
		}

		if m := lessonMarker.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			inHeader = false
			number, err := strconv.Atoi(m[1])
			if err != nil {
				// Unreachable given the \d+ group; guard anyway.
				return nil, fmt.Errorf("invalid lesson number %q: %w", m[1], err)
			}
			doc.Course.Lessons = append(doc.Course.Lessons, Lesson{
				Number: number,
				Title:  strings.TrimSpace(m[2]),
			})
			doc.LessonTexts = append(doc.LessonTexts, "")
			current = &strings.Builder{}
			continue
		}

		if current == nil {
			// Text before the first lesson marker.
			if strings.TrimSpace(line) != "" {
				inHeader = false
				preamble.WriteString(line)
				preamble.WriteString("\n")
			}
			continue
		}

		// Lesson Link lines belong to the lesson record, not its content.
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, headerLessonLink) && current.Len() == 0 {
			doc.Course.Lessons[len(doc.Course.Lessons)-1].Link =
				strings.TrimSpace(strings.TrimPrefix(trimmed, headerLessonLink))
			continue
		}

		current.WriteString(line)
		current.WriteString("\n")
		doc.LessonTexts[len(doc.LessonTexts)-1] = current.String()
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading course document: %w", err)
	}

	if doc.Course.Title == "" {
		return nil, ErrMissingTitle
	}

	doc.Preamble = strings.TrimSpace(preamble.String())
	for i, text := range doc.LessonTexts {
		doc.LessonTexts[i] = strings.TrimSpace(text)
	}
	return doc, nil
}
