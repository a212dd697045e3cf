package chunk

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ErrDuplicate reports that a chunk with the same content hash already
// exists in the corpus. Callers treat it as a successful no-op.
var ErrDuplicate = errors.New("chunk: duplicate content hash in corpus")

type Repository interface {
	Insert(ctx context.Context, c *Chunk) error
	Exists(ctx context.Context, id string) (bool, error)
	ListBySource(ctx context.Context, sourceID string) ([]Chunk, error)
	DeleteBySource(ctx context.Context, sourceID string) error
	Count(ctx context.Context) (int, error)
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

// Insert persists a chunk. A unique violation on (corpus_id, content_hash)
// comes back as ErrDuplicate so the Embed stage can skip silently.
func (r *PostgresRepo) Insert(ctx context.Context, c *Chunk) error {
	if len(c.Metadata) == 0 {
		c.Metadata = json.RawMessage(`{}`)
	}
	if len(c.Quality) == 0 {
		c.Quality = json.RawMessage(`{}`)
	}
	query := `INSERT INTO chunks (corpus_id, source_id, title, subdomain, content, lang, content_hash, metadata, quality)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		c.CorpusID, c.SourceID, nullStr(c.Title), nullStr(c.Subdomain),
		c.Content, c.Lang, c.ContentHash, []byte(c.Metadata), []byte(c.Quality)).
		Scan(&c.ID, &c.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Exists reports whether a chunk row with the given id is present. The
// Embed stage uses it to distinguish a genuine near-duplicate from a vector
// whose chunk row was rolled back.
func (r *PostgresRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM chunks WHERE id = $1)`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&exists)
	return exists, err
}

func (r *PostgresRepo) ListBySource(ctx context.Context, sourceID string) ([]Chunk, error) {
	query := `SELECT id, corpus_id, source_id, COALESCE(title, ''), COALESCE(subdomain, ''), content, lang, content_hash, metadata, quality, created_at
	FROM chunks WHERE source_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var metadata, quality []byte
		if err := rows.Scan(&c.ID, &c.CorpusID, &c.SourceID, &c.Title, &c.Subdomain,
			&c.Content, &c.Lang, &c.ContentHash, &metadata, &quality, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Metadata = json.RawMessage(metadata)
		c.Quality = json.RawMessage(quality)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (r *PostgresRepo) DeleteBySource(ctx context.Context, sourceID string) error {
	query := `DELETE FROM chunks WHERE source_id = $1`
	_, err := r.db.ExecContext(ctx, query, sourceID)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM chunks`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
