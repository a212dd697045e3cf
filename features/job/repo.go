package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx, so the same repository serves
// both the worker loop (claiming against the pool) and stage handlers
// (enqueueing inside the stage transaction).
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Repository interface {
	Enqueue(ctx context.Context, j *Job) error
	PickNext(ctx context.Context, workerID string) (*Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkRetry(ctx context.Context, id string, errMsg string) (deadLettered bool, err error)
	Get(ctx context.Context, id string) (*Job, error)
	ListDeadLetters(ctx context.Context) ([]Job, error)
	Requeue(ctx context.Context, id string) error
	CountPending(ctx context.Context) (int, error)
	CountDeadLetters(ctx context.Context) (int, error)
}

// QueueConfig tunes the claim and retry behavior of the durable queue.
type QueueConfig struct {
	MaxAttempts int
	ClaimTTL    time.Duration
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxAttempts: 5,
		ClaimTTL:    5 * time.Minute,
		BackoffBase: 30 * time.Second,
		BackoffCap:  time.Hour,
	}
}

type PostgresRepo struct {
	db  DBTX
	cfg QueueConfig
}

func NewPostgresRepo(db DBTX, cfg QueueConfig) *PostgresRepo {
	return &PostgresRepo{db: db, cfg: cfg}
}

// WithTx returns a repository bound to the given transaction, keeping the
// same queue configuration.
func (r *PostgresRepo) WithTx(tx DBTX) *PostgresRepo {
	return &PostgresRepo{db: tx, cfg: r.cfg}
}

const jobColumns = `id, corpus_id, source_id, job_type, payload, attempt, COALESCE(claimed_by, ''), visible_after, terminal, dead_letter, last_error, created_at`

func (r *PostgresRepo) Enqueue(ctx context.Context, j *Job) error {
	if len(j.Payload) == 0 {
		j.Payload = json.RawMessage(`{}`)
	}
	query := `INSERT INTO jobs (corpus_id, source_id, job_type, payload) VALUES ($1, $2, $3, $4) RETURNING id, created_at, visible_after`
	return r.db.QueryRowContext(ctx, query, j.CorpusID, nullStr(j.SourceID), j.Type, []byte(j.Payload)).
		Scan(&j.ID, &j.CreatedAt, &j.VisibleAfter)
}

// PickNext atomically claims the oldest eligible job for workerID. A job is
// eligible when it is not terminal, its visibility time has passed, and no
// other worker holds an unexpired claim. The select-and-claim is a single
// statement over FOR UPDATE SKIP LOCKED, so two concurrent workers can
// never receive the same job. Returns (nil, nil) when the queue is empty.
func (r *PostgresRepo) PickNext(ctx context.Context, workerID string) (*Job, error) {
	query := `UPDATE jobs SET claimed_by = $1, claim_expires_at = NOW() + make_interval(secs => $2)
	WHERE id = (
		SELECT id FROM jobs
		WHERE terminal = FALSE
		  AND visible_after <= NOW()
		  AND (claimed_by IS NULL OR claim_expires_at < NOW())
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	)
	RETURNING ` + jobColumns

	j, err := scanJob(r.db.QueryRowContext(ctx, query, workerID, r.cfg.ClaimTTL.Seconds()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (r *PostgresRepo) MarkDone(ctx context.Context, id string) error {
	query := `UPDATE jobs SET terminal = TRUE, claimed_by = NULL, claim_expires_at = NULL WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// MarkRetry releases the claim, records the error verbatim and re-queues
// the job with exponential backoff (base * 2^attempt, capped). Once the
// incremented attempt count reaches MaxAttempts the job is dead-lettered
// instead: terminal, flagged, error preserved for operator inspection.
func (r *PostgresRepo) MarkRetry(ctx context.Context, id string, errMsg string) (bool, error) {
	lastErr, _ := json.Marshal(map[string]string{"message": errMsg})

	query := `UPDATE jobs SET
		attempt = attempt + 1,
		claimed_by = NULL,
		claim_expires_at = NULL,
		last_error = $2,
		terminal = attempt + 1 >= $3,
		dead_letter = attempt + 1 >= $3,
		visible_after = NOW() + make_interval(secs => LEAST($4 * POWER(2, attempt), $5))
	WHERE id = $1
	RETURNING dead_letter`

	var deadLettered bool
	err := r.db.QueryRowContext(ctx, query, id, lastErr, r.cfg.MaxAttempts,
		r.cfg.BackoffBase.Seconds(), r.cfg.BackoffCap.Seconds()).Scan(&deadLettered)
	return deadLettered, err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return scanJob(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepo) ListDeadLetters(ctx context.Context) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE dead_letter = TRUE ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// Requeue puts a dead-lettered job back in the queue with a fresh attempt
// budget. Only dead-lettered jobs qualify; anything else is not found.
func (r *PostgresRepo) Requeue(ctx context.Context, id string) error {
	query := `UPDATE jobs SET terminal = FALSE, dead_letter = FALSE, attempt = 0,
		claimed_by = NULL, claim_expires_at = NULL, visible_after = NOW()
	WHERE id = $1 AND dead_letter = TRUE`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresRepo) CountPending(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM jobs WHERE terminal = FALSE AND visible_after <= NOW()`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func (r *PostgresRepo) CountDeadLetters(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM jobs WHERE dead_letter = TRUE`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	j := &Job{}
	var sourceID sql.NullString
	var payload, lastErr []byte
	err := row.Scan(&j.ID, &j.CorpusID, &sourceID, &j.Type, &payload, &j.Attempt,
		&j.ClaimedBy, &j.VisibleAfter, &j.Terminal, &j.DeadLetter, &lastErr, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	j.SourceID = sourceID.String
	j.Payload = json.RawMessage(payload)
	if lastErr != nil {
		j.LastError = json.RawMessage(lastErr)
	}
	return j, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
