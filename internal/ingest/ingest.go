// Package ingest loads course documents from a folder into the vector
// index: parse, chunk, embed, store. Ingestion is additive; courses
// whose content is already indexed are skipped, never updated.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"github.com/lectern/lectern/internal/course"
	"github.com/lectern/lectern/internal/index"
)

// lockFileName guards a docs folder against concurrent ingest runs.
const lockFileName = ".lectern-ingest.lock"

// Indexer is the index surface ingestion writes to.
type Indexer interface {
	ExistingTitles(ctx context.Context) (map[string]struct{}, error)
	AddCourse(ctx context.Context, c course.Course) error
	AddChunks(ctx context.Context, chunks []course.Chunk) error
}

// Summary reports what one ingest run did.
type Summary struct {
	CoursesAdded   int
	CoursesSkipped int
	ChunksAdded    int
}

// Ingestor runs the pipeline.
type Ingestor struct {
	index   Indexer
	chunker course.Chunker
	logger  *slog.Logger
}

// New creates an Ingestor.
func New(index Indexer, chunker course.Chunker, logger *slog.Logger) (*Ingestor, error) {
	if index == nil {
		return nil, fmt.Errorf("ingest: index is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{index: index, chunker: chunker, logger: logger}, nil
}

// Run ingests every supported document under dir. A file lock in the
// folder keeps two ingest processes from double-writing; a held lock
// aborts immediately rather than waiting. Files are processed in name
// order so runs are deterministic; one bad file fails the run.
func (in *Ingestor) Run(ctx context.Context, dir string) (Summary, error) {
	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return Summary{}, fmt.Errorf("acquire ingest lock: %w", err)
	}
	if !locked {
		return Summary{}, fmt.Errorf("ingest already running for %s", dir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			in.logger.Warn("release ingest lock", "error", err)
		}
	}()

	files, err := listDocuments(dir)
	if err != nil {
		return Summary{}, err
	}

	existing, err := in.index.ExistingTitles(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list existing courses: %w", err)
	}

	var summary Summary
	for _, path := range files {
		added, chunks, err := in.ingestFile(ctx, path, existing)
		if err != nil {
			return summary, fmt.Errorf("ingest %s: %w", filepath.Base(path), err)
		}
		if !added {
			summary.CoursesSkipped++
			continue
		}
		summary.CoursesAdded++
		summary.ChunksAdded += chunks
	}

	in.logger.Info("ingest complete",
		"added", summary.CoursesAdded,
		"skipped", summary.CoursesSkipped,
		"chunks", summary.ChunksAdded)
	return summary, nil
}

func (in *Ingestor) ingestFile(ctx context.Context, path string, existing map[string]struct{}) (bool, int, error) {
	doc, err := course.ParseFile(path)
	if err != nil {
		return false, 0, err
	}

	if _, ok := existing[doc.Course.Title]; ok {
		in.logger.Debug("course already indexed", "title", doc.Course.Title)
		return false, 0, nil
	}

	if err := in.index.AddCourse(ctx, doc.Course); err != nil {
		// A catalog row with no chunks is left behind when an earlier
		// run failed between the two inserts; the existing row is fine,
		// the chunks still need to go in.
		if !errors.Is(err, index.ErrCourseExists) {
			return false, 0, err
		}
		in.logger.Warn("resuming course with catalog entry but no content", "title", doc.Course.Title)
	}

	chunks := in.chunker.ChunkDocument(doc)
	if err := in.index.AddChunks(ctx, chunks); err != nil {
		return false, 0, err
	}
	// A course counts as ingested only once its chunks are stored;
	// ExistingTitles reports titles with content, so a run that dies
	// before this point leaves the file eligible for the next run.
	existing[doc.Course.Title] = struct{}{}
	return true, len(chunks), nil
}

// listDocuments returns the course files in dir, sorted by name.
func listDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read docs dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext == ".txt" || ext == ".md" {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}
