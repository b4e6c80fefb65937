package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"subweave/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "queue.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Submit enqueues a new job and returns it. The call returns as soon as the
// row is durable; processing happens on the worker pool.
func (s *Store) Submit(ctx context.Context, payload Payload) (*Job, error) {
	if strings.TrimSpace(payload.SubtitleContent) == "" {
		return nil, errors.New("subtitle content is required")
	}

	glossaryJSON, err := marshalGlossary(payload.Glossary)
	if err != nil {
		return nil, fmt.Errorf("marshal glossary: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            id, status, subtitle_content, tone, thinking_mode, glossary_json,
            attempts, progress_stage, next_attempt_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		id,
		StatusQueued,
		payload.SubtitleContent,
		nullableString(payload.Tone),
		boolToInt(payload.ThinkingMode),
		glossaryJSON,
		"Queued",
		timestamp,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier, returning nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Claim atomically transfers the oldest eligible queued job to active and
// returns it. Returns nil when no job is ready. The claim transaction
// guarantees no two workers ever hold the same job.
func (s *Store) Claim(ctx context.Context) (*Job, error) {
	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
         ORDER BY created_at LIMIT 1`,
		StatusQueued,
		nowStr,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select claimable job: %w", err)
	}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusActive,
		nowStr,
		job.ID,
		StatusQueued,
	)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim rows affected: %w", err)
	}
	if affected != 1 {
		// Lost the race to another worker; caller polls again.
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	job.Status = StatusActive
	job.UpdatedAt = now
	return job, nil
}

// SetProgress updates the job's human-readable stage label.
func (s *Store) SetProgress(ctx context.Context, id, stage string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET progress_stage = ?, updated_at = ? WHERE id = ?`,
		stage,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set progress: %w", err)
	}
	return nil
}

// Requeue returns a failed attempt to the queue with an updated attempt count
// and a delay before the job becomes eligible again.
func (s *Store) Requeue(ctx context.Context, id string, attempts int, lastError string, delay time.Duration) error {
	now := time.Now().UTC()
	eligible := now.Add(delay)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, attempts = ?, last_error = ?, progress_stage = ?,
             next_attempt_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusQueued,
		attempts,
		nullableString(lastError),
		"Retry scheduled",
		eligible.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	return nil
}

// MarkCompleted finalizes a job with its rendered result.
func (s *Store) MarkCompleted(ctx context.Context, id, result string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, result = ?, progress_stage = ?, last_error = NULL,
             next_attempt_at = NULL, updated_at = ?
         WHERE id = ?`,
		StatusCompleted,
		result,
		"Completed",
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed finalizes a job after its attempts are exhausted.
func (s *Store) MarkFailed(ctx context.Context, id string, attempts int, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, attempts = ?, last_error = ?, progress_stage = ?,
             next_attempt_at = NULL, updated_at = ?
         WHERE id = ?`,
		StatusFailed,
		attempts,
		nullableString(message),
		"Failed",
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ResetActive returns jobs stuck in active state back to queued. Called on
// daemon startup so a crashed worker's jobs are retried rather than lost.
func (s *Store) ResetActive(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, progress_stage = 'Recovered after restart',
             next_attempt_at = ?, updated_at = ?
         WHERE status = ?`,
		StatusQueued,
		now,
		now,
		StatusActive,
	)
	if err != nil {
		return 0, fmt.Errorf("reset active jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to queued with a fresh attempt budget.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	base := `UPDATE jobs
        SET status = ?, attempts = 0, progress_stage = 'Retry requested',
            last_error = NULL, next_attempt_at = ?, updated_at = ?
        WHERE status = ?`
	args := []any{StatusQueued, now, now, StatusFailed}
	if len(ids) > 0 {
		base += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.db.ExecContext(ctx, base, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}

// List returns jobs filtered by status set (or all jobs when none given).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusActive:
			health.Active += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

// Clear removes jobs from the queue, optionally restricted to a status.
func (s *Store) Clear(ctx context.Context, statuses ...Status) (int64, error) {
	query := `DELETE FROM jobs`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

const jobColumns = "id, status, subtitle_content, tone, thinking_mode, glossary_json, attempts, last_error, progress_stage, result, next_attempt_at, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id            string
		statusStr     string
		content       string
		tone          sql.NullString
		thinkingMode  sql.NullInt64
		glossaryJSON  sql.NullString
		attempts      int
		lastError     sql.NullString
		progressStage sql.NullString
		result        sql.NullString
		nextAttemptAt sql.NullString
		createdRaw    string
		updatedRaw    string
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&content,
		&tone,
		&thinkingMode,
		&glossaryJSON,
		&attempts,
		&lastError,
		&progressStage,
		&result,
		&nextAttemptAt,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	glossary, err := unmarshalGlossary(glossaryJSON.String)
	if err != nil {
		return nil, fmt.Errorf("decode glossary for job %s: %w", id, err)
	}

	job := &Job{
		ID: id,
		Payload: Payload{
			SubtitleContent: content,
			Tone:            tone.String,
			ThinkingMode:    thinkingMode.Int64 != 0,
			Glossary:        glossary,
		},
		Status:        Status(statusStr),
		Attempts:      attempts,
		LastError:     lastError.String,
		ProgressStage: progressStage.String,
		Result:        result.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if nextAttemptAt.Valid {
		if eligible, err := parseTimeString(nextAttemptAt.String); err == nil {
			job.NextAttemptAt = &eligible
		}
	}
	return job, nil
}

func marshalGlossary(glossary []GlossaryEntry) (any, error) {
	if len(glossary) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(glossary)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func unmarshalGlossary(value string) ([]GlossaryEntry, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	var glossary []GlossaryEntry
	if err := json.Unmarshal([]byte(value), &glossary); err != nil {
		return nil, err
	}
	return glossary, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
