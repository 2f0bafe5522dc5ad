package course

import (
	"regexp"
	"strconv"
	"strings"
)

// Chunker splits lesson text into overlapping, sentence-aligned windows.
// Size and Overlap are measured in characters; a sentence longer than
// Size becomes its own chunk rather than being split mid-sentence.
type Chunker struct {
	Size    int
	Overlap int
}

// sentenceEnd matches sentence boundaries: terminal punctuation followed
// by whitespace. Abbreviation handling is deliberately simple; the worst
// case is a slightly shorter chunk.
var sentenceEnd = regexp.MustCompile(`(?:[.!?])\s+`)

// whitespaceRun collapses internal whitespace before chunking.
var whitespaceRun = regexp.MustCompile(`\s+`)

// ChunkDocument produces the full ordered chunk sequence for a parsed
// document. Lesson-initial chunks carry a context prefix naming the
// course and lesson so retrieved passages stay attributable even when
// the chunk text itself never mentions them.
func (ck Chunker) ChunkDocument(doc *Document) []Chunk {
	var chunks []Chunk
	index := 0

	add := func(lessonNumber *int, texts []string, prefix string) {
		for i, text := range texts {
			if i == 0 && prefix != "" {
				text = prefix + text
			}
			chunks = append(chunks, Chunk{
				CourseTitle:  doc.Course.Title,
				LessonNumber: lessonNumber,
				Index:        index,
				Text:         text,
			})
			index++
		}
	}

	if doc.Preamble != "" {
		add(nil, ck.Split(doc.Preamble), "Course "+doc.Course.Title+" content: ")
	}

	for i, lesson := range doc.Course.Lessons {
		if i >= len(doc.LessonTexts) || doc.LessonTexts[i] == "" {
			continue
		}
		n := lesson.Number
		prefix := "Course " + doc.Course.Title + " Lesson " + strconv.Itoa(n) + " content: "
		add(&n, ck.Split(doc.LessonTexts[i]), prefix)
	}

	return chunks
}

// Split breaks text into chunks of at most Size characters, aligned to
// sentence boundaries, with roughly Overlap characters of trailing
// context repeated at the start of the next chunk.
func (ck Chunker) Split(text string) []string {
	text = whitespaceRun.ReplaceAllString(strings.TrimSpace(text), " ")
	if text == "" {
		return nil
	}

	size := ck.Size
	if size <= 0 {
		size = 800
	}
	overlap := ck.Overlap
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	sentences := splitSentences(text)

	var out []string
	start := 0
	for start < len(sentences) {
		var window []string
		length := 0
		end := start
		for end < len(sentences) {
			s := sentences[end]
			added := len(s)
			if length > 0 {
				added++ // joining space
			}
			if length+added > size && length > 0 {
				break
			}
			window = append(window, s)
			length += added
			end++
		}

		out = append(out, strings.Join(window, " "))
		if end >= len(sentences) {
			break
		}

		// Walk back from the window end until roughly Overlap characters
		// of trailing sentences are repeated in the next window.
		next := end
		carried := 0
		for next > start+1 {
			carried += len(sentences[next-1]) + 1
			if carried > overlap {
				break
			}
			next--
		}
		start = next
	}

	return out
}

// splitSentences splits on terminal punctuation followed by whitespace.
func splitSentences(text string) []string {
	bounds := sentenceEnd.FindAllStringIndex(text, -1)
	if len(bounds) == 0 {
		return []string{text}
	}

	var sentences []string
	prev := 0
	for _, b := range bounds {
		s := strings.TrimSpace(text[prev:b[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
		prev = b[1]
	}
	if rest := strings.TrimSpace(text[prev:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}
