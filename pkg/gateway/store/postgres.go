package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/hireloop/interview-gateway/pkg/core/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore persists interviews and responses in PostgreSQL. Question
// lists and answer history are stored as JSONB; the relational columns carry
// what queries filter on.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, waits for the database to accept connections, and
// applies pending migrations.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	// The database may still be starting when we are. Ping with backoff
	// before giving up.
	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}

	if err := migrate(cfg.ConnConfig.ConnString()); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// migrate applies embedded migrations through goose, which requires a
// database/sql handle.
func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) CreateInterview(ctx context.Context, iv *types.Interview) error {
	manual, err := json.Marshal(iv.ManualQuestions)
	if err != nil {
		return err
	}
	generated, err := json.Marshal(iv.GeneratedQuestions)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO interviews
			(id, name, objective, description, mode, question_count, auto_generate,
			 difficulty, context_summary, manual_questions, generated_questions, is_open, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		iv.ID, iv.Name, iv.Objective, iv.Description, string(iv.Mode), iv.QuestionCount,
		iv.AutoGenerate, string(iv.Difficulty), iv.ContextSummary, manual, generated,
		iv.IsOpen, iv.CreatedAt)
	return err
}

const interviewColumns = `id, name, objective, description, mode, question_count, auto_generate,
	difficulty, context_summary, manual_questions, generated_questions, is_open, created_at`

func scanInterview(row pgx.Row) (*types.Interview, error) {
	var iv types.Interview
	var mode, difficulty string
	var manual, generated []byte
	err := row.Scan(&iv.ID, &iv.Name, &iv.Objective, &iv.Description, &mode,
		&iv.QuestionCount, &iv.AutoGenerate, &difficulty, &iv.ContextSummary,
		&manual, &generated, &iv.IsOpen, &iv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	iv.Mode = types.Mode(mode)
	iv.Difficulty = types.Difficulty(difficulty)
	if err := json.Unmarshal(manual, &iv.ManualQuestions); err != nil {
		return nil, fmt.Errorf("decode manual questions: %w", err)
	}
	if err := json.Unmarshal(generated, &iv.GeneratedQuestions); err != nil {
		return nil, fmt.Errorf("decode generated questions: %w", err)
	}
	return &iv, nil
}

func (s *PostgresStore) Interview(ctx context.Context, id string) (*types.Interview, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE id = $1`, id)
	return scanInterview(row)
}

func (s *PostgresStore) UpdateInterview(ctx context.Context, iv *types.Interview) error {
	manual, err := json.Marshal(iv.ManualQuestions)
	if err != nil {
		return err
	}
	generated, err := json.Marshal(iv.GeneratedQuestions)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE interviews SET
			name = $2, objective = $3, description = $4, mode = $5, question_count = $6,
			auto_generate = $7, difficulty = $8, context_summary = $9,
			manual_questions = $10, generated_questions = $11, is_open = $12
		WHERE id = $1`,
		iv.ID, iv.Name, iv.Objective, iv.Description, string(iv.Mode), iv.QuestionCount,
		iv.AutoGenerate, string(iv.Difficulty), iv.ContextSummary, manual, generated, iv.IsOpen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListInterviews(ctx context.Context) ([]*types.Interview, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+interviewColumns+` FROM interviews ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Interview
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateResponse(ctx context.Context, rsp *types.Response) error {
	history, overall, err := encodeResponseJSON(rsp)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO responses
			(id, interview_id, candidate_name, candidate_email, session_id, start_time,
			 end_time, current_question_index, qa_history, completed, duration_seconds,
			 overall_analysis, status, status_source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rsp.ID, rsp.InterviewID, rsp.CandidateName, rsp.CandidateEmail, rsp.SessionID,
		nullTime(rsp.StartTime), rsp.EndTime, rsp.CurrentQuestionIndex, history,
		rsp.Completed, rsp.DurationSeconds, overall, string(rsp.Status),
		string(rsp.StatusSource), rsp.CreatedAt)
	return err
}

const responseColumns = `id, interview_id, candidate_name, candidate_email, session_id,
	start_time, end_time, current_question_index, qa_history, completed,
	duration_seconds, overall_analysis, status, status_source, created_at`

func scanResponse(row pgx.Row) (*types.Response, error) {
	var rsp types.Response
	var status, statusSource string
	var history, overall []byte
	var start *time.Time
	err := row.Scan(&rsp.ID, &rsp.InterviewID, &rsp.CandidateName, &rsp.CandidateEmail,
		&rsp.SessionID, &start, &rsp.EndTime, &rsp.CurrentQuestionIndex, &history,
		&rsp.Completed, &rsp.DurationSeconds, &overall, &status, &statusSource,
		&rsp.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if start != nil {
		rsp.StartTime = *start
	}
	rsp.Status = types.Status(status)
	rsp.StatusSource = types.StatusSource(statusSource)
	if err := json.Unmarshal(history, &rsp.QAHistory); err != nil {
		return nil, fmt.Errorf("decode qa history: %w", err)
	}
	if len(overall) > 0 {
		rsp.Overall = &types.AggregateAnalysis{}
		if err := json.Unmarshal(overall, rsp.Overall); err != nil {
			return nil, fmt.Errorf("decode overall analysis: %w", err)
		}
	}
	return &rsp, nil
}

func (s *PostgresStore) Response(ctx context.Context, id string) (*types.Response, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+responseColumns+` FROM responses WHERE id = $1`, id)
	return scanResponse(row)
}

func (s *PostgresStore) UpdateResponse(ctx context.Context, rsp *types.Response) error {
	history, overall, err := encodeResponseJSON(rsp)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE responses SET
			candidate_name = $2, candidate_email = $3, session_id = $4, start_time = $5,
			end_time = $6, current_question_index = $7, qa_history = $8, completed = $9,
			duration_seconds = $10, overall_analysis = $11, status = $12, status_source = $13
		WHERE id = $1`,
		rsp.ID, rsp.CandidateName, rsp.CandidateEmail, rsp.SessionID, nullTime(rsp.StartTime),
		rsp.EndTime, rsp.CurrentQuestionIndex, history, rsp.Completed, rsp.DurationSeconds,
		overall, string(rsp.Status), string(rsp.StatusSource))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ResponsesForInterview(ctx context.Context, interviewID string) ([]*types.Response, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+responseColumns+` FROM responses WHERE interview_id = $1 ORDER BY created_at`, interviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Response
	for rows.Next() {
		rsp, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rsp)
	}
	return out, rows.Err()
}

func encodeResponseJSON(rsp *types.Response) (history, overall []byte, err error) {
	history, err = json.Marshal(rsp.QAHistory)
	if err != nil {
		return nil, nil, err
	}
	if rsp.Overall != nil {
		overall, err = json.Marshal(rsp.Overall)
		if err != nil {
			return nil, nil, err
		}
	}
	return history, overall, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
