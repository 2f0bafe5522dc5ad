package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Querier is the persistence surface the index needs. The production
// implementation is Queries over a pgx pool; tests substitute a mock.
type Querier interface {
	// InsertCourse adds a catalog row. inserted is false when a course
	// with the same title already exists (the row is left untouched).
	InsertCourse(ctx context.Context, p InsertCourseParams) (inserted bool, err error)

	// NearestCourse returns the catalog title whose embedding is
	// closest to the given vector, or ok=false when the catalog is
	// empty.
	NearestCourse(ctx context.Context, embedding pgvector.Vector) (title string, ok bool, err error)

	// InsertChunks writes content rows in one batch.
	InsertChunks(ctx context.Context, rows []ChunkRow) error

	// SearchChunks returns the closest content rows, nearest first,
	// ties broken by insertion order.
	SearchChunks(ctx context.Context, p SearchChunksParams) ([]ChunkRow, error)

	// CourseTitles lists catalog titles in alphabetical order.
	CourseTitles(ctx context.Context) ([]string, error)

	// IngestedTitles lists the titles that have at least one content
	// chunk stored, in alphabetical order.
	IngestedTitles(ctx context.Context) ([]string, error)

	// CountCourses returns the catalog size.
	CountCourses(ctx context.Context) (int64, error)
}

// InsertCourseParams carries one catalog row.
type InsertCourseParams struct {
	Title       string
	Link        string
	Instructor  string
	LessonsJSON []byte
	Embedding   pgvector.Vector
}

// ChunkRow is one content row, both for insertion and as a search result.
type ChunkRow struct {
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
	Content      string
	Embedding    pgvector.Vector
	Distance     float64
}

// SearchChunksParams describes one similarity query. CourseTitle and
// LessonNumber are already-resolved exact filters; zero values mean
// unfiltered.
type SearchChunksParams struct {
	Embedding    pgvector.Vector
	CourseTitle  string
	LessonNumber *int
	Limit        int
}

// Queries implements Querier over PostgreSQL with pgvector.
type Queries struct {
	pool *pgxpool.Pool
}

// NewQueries wraps a connection pool.
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

func (q *Queries) InsertCourse(ctx context.Context, p InsertCourseParams) (bool, error) {
	tag, err := q.pool.Exec(ctx, `
		INSERT INTO course_catalog (title, link, instructor, lessons, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (title) DO NOTHING`,
		p.Title, p.Link, p.Instructor, p.LessonsJSON, p.Embedding)
	if err != nil {
		return false, fmt.Errorf("insert course: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (q *Queries) NearestCourse(ctx context.Context, embedding pgvector.Vector) (string, bool, error) {
	var title string
	err := q.pool.QueryRow(ctx, `
		SELECT title FROM course_catalog
		ORDER BY embedding <=> $1, id
		LIMIT 1`,
		embedding).Scan(&title)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("nearest course: %w", err)
	}
	return title, true, nil
}

func (q *Queries) InsertChunks(ctx context.Context, rows []ChunkRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO course_chunks (course_title, lesson_number, chunk_index, content, embedding)
			VALUES ($1, $2, $3, $4, $5)`,
			r.CourseTitle, r.LessonNumber, r.ChunkIndex, r.Content, r.Embedding)
	}
	results := q.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
	}
	return nil
}

func (q *Queries) SearchChunks(ctx context.Context, p SearchChunksParams) ([]ChunkRow, error) {
	sql := `
		SELECT course_title, lesson_number, chunk_index, content, embedding <=> $1 AS distance
		FROM course_chunks`
	args := []any{p.Embedding}
	where := ""
	if p.CourseTitle != "" {
		args = append(args, p.CourseTitle)
		where = fmt.Sprintf(" WHERE course_title = $%d", len(args))
	}
	if p.LessonNumber != nil {
		args = append(args, *p.LessonNumber)
		if where == "" {
			where = fmt.Sprintf(" WHERE lesson_number = $%d", len(args))
		} else {
			where += fmt.Sprintf(" AND lesson_number = $%d", len(args))
		}
	}
	args = append(args, p.Limit)
	sql += where + fmt.Sprintf(" ORDER BY distance, id LIMIT $%d", len(args))

	rows, err := q.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var out []ChunkRow
	for rows.Next() {
		var r ChunkRow
		if err := rows.Scan(&r.CourseTitle, &r.LessonNumber, &r.ChunkIndex, &r.Content, &r.Distance); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	return out, nil
}

func (q *Queries) CourseTitles(ctx context.Context) ([]string, error) {
	rows, err := q.pool.Query(ctx, `SELECT title FROM course_catalog ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		titles = append(titles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read titles: %w", err)
	}
	return titles, nil
}

func (q *Queries) IngestedTitles(ctx context.Context) ([]string, error) {
	rows, err := q.pool.Query(ctx, `SELECT DISTINCT course_title FROM course_chunks ORDER BY course_title`)
	if err != nil {
		return nil, fmt.Errorf("list ingested courses: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan ingested title: %w", err)
		}
		titles = append(titles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read ingested titles: %w", err)
	}
	return titles, nil
}

func (q *Queries) CountCourses(ctx context.Context) (int64, error) {
	var n int64
	if err := q.pool.QueryRow(ctx, `SELECT count(*) FROM course_catalog`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return n, nil
}
