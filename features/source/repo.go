package source

import (
	"context"
	"database/sql"
	"encoding/json"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Repository interface {
	Save(ctx context.Context, src *Source) error
	Get(ctx context.Context, id string) (*Source, error)
	List(ctx context.Context) ([]Source, error)
	Delete(ctx context.Context, id string) error

	UpdateStatus(ctx context.Context, id, status string) error
	SetFetchResult(ctx context.Context, id string, httpStatus int, contentType string) error
	SetExtraction(ctx context.Context, id, quality string, wordCount int) error
	SetWordCount(ctx context.Context, id string, wordCount int) error
	SetContentHash(ctx context.Context, id, hash string) error
	SetError(ctx context.Context, id, status, message string) error

	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type PostgresRepo struct {
	db DBTX
}

func NewPostgresRepo(db DBTX) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) WithTx(tx DBTX) *PostgresRepo {
	return &PostgresRepo{db: tx}
}

const sourceColumns = `id, corpus_id, url, COALESCE(http_status, 0), COALESCE(content_type, ''), COALESCE(word_count, 0), extraction_quality, COALESCE(content_hash, ''), status, last_error, created_at, updated_at`

func (r *PostgresRepo) Save(ctx context.Context, src *Source) error {
	query := `INSERT INTO sources (corpus_id, url) VALUES ($1, $2) RETURNING id, status, extraction_quality, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, src.CorpusID, src.URL).
		Scan(&src.ID, &src.Status, &src.ExtractionQuality, &src.CreatedAt, &src.UpdatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1`
	return scanSource(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepo) List(ctx context.Context) ([]Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM sources WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE sources SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

func (r *PostgresRepo) SetFetchResult(ctx context.Context, id string, httpStatus int, contentType string) error {
	query := `UPDATE sources SET http_status = $1, content_type = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, httpStatus, contentType, id)
	return err
}

func (r *PostgresRepo) SetExtraction(ctx context.Context, id, quality string, wordCount int) error {
	query := `UPDATE sources SET extraction_quality = $1, word_count = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, quality, wordCount, id)
	return err
}

func (r *PostgresRepo) SetWordCount(ctx context.Context, id string, wordCount int) error {
	query := `UPDATE sources SET word_count = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, wordCount, id)
	return err
}

func (r *PostgresRepo) SetContentHash(ctx context.Context, id, hash string) error {
	query := `UPDATE sources SET content_hash = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, hash, id)
	return err
}

// SetError moves a source to a terminal status (SKIPPED or FAILED) and
// records the reason as structured JSON.
func (r *PostgresRepo) SetError(ctx context.Context, id, status, message string) error {
	lastErr, _ := json.Marshal(map[string]string{"message": message})
	query := `UPDATE sources SET status = $1, last_error = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, lastErr, id)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM sources`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func (r *PostgresRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM sources GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSource(row rowScanner) (*Source, error) {
	src := &Source{}
	var lastErr []byte
	err := row.Scan(&src.ID, &src.CorpusID, &src.URL, &src.HTTPStatus, &src.ContentType,
		&src.WordCount, &src.ExtractionQuality, &src.ContentHash, &src.Status,
		&lastErr, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastErr != nil {
		src.LastError = json.RawMessage(lastErr)
	}
	return src, nil
}
