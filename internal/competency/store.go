// Package competency manages the competency question suite: curated
// questions with expected answers, run against the live system to track
// answer quality over time.
package competency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clausewise/clausewise/internal/db"
)

var ErrNotFound = errors.New("competency question not found")

// Question is one curated question with its expected answer.
type Question struct {
	ID             string  `json:"id"`
	Question       string  `json:"question"`
	ExpectedAnswer string  `json:"expected_answer"`
	// ConfidenceThreshold overrides the suite default when set.
	ConfidenceThreshold *float64  `json:"confidence_threshold,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Run is one recorded evaluation of a question. Runs are append-only.
type Run struct {
	ID            string    `json:"id"`
	QuestionID    string    `json:"question_id"`
	ActualAnswer  string    `json:"actual_answer"`
	AccuracyScore float64   `json:"accuracy_score"`
	Passed        bool      `json:"passed"`
	Citations     string    `json:"citations"`
	LatencyMs     int64     `json:"latency_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store persists questions and runs in SQLite.
type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// CreateQuestion inserts a question, assigning an id when absent.
func (s *Store) CreateQuestion(ctx context.Context, q *Question) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO competency_questions (id, question, expected_answer, confidence_threshold, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		q.ID, q.Question, q.ExpectedAnswer, q.ConfidenceThreshold, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// GetQuestion returns one question or ErrNotFound.
func (s *Store) GetQuestion(ctx context.Context, id string) (*Question, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, question, expected_answer, confidence_threshold, created_at
		 FROM competency_questions WHERE id = ?`, id)
	return scanQuestion(row)
}

// ListQuestions returns all questions ordered by creation time.
func (s *Store) ListQuestions(ctx context.Context) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, expected_answer, confidence_threshold, created_at
		 FROM competency_questions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// UpdateQuestion rewrites the mutable fields of a question.
func (s *Store) UpdateQuestion(ctx context.Context, q *Question) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE competency_questions SET question = ?, expected_answer = ?, confidence_threshold = ?
		 WHERE id = ?`,
		q.Question, q.ExpectedAnswer, q.ConfidenceThreshold, q.ID)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteQuestion removes a question and, via cascade, its runs.
func (s *Store) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM competency_questions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendRun records one evaluation. Existing runs are never modified.
func (s *Store) AppendRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.CreatedAt = time.Now().UTC()

	passed := 0
	if run.Passed {
		passed = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO competency_runs (id, question_id, actual_answer, accuracy_score, passed, citations, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.QuestionID, run.ActualAnswer, run.AccuracyScore, passed, run.Citations, run.LatencyMs, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RunsForQuestion returns a question's runs, newest first.
func (s *Store) RunsForQuestion(ctx context.Context, questionID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question_id, actual_answer, accuracy_score, passed, citations, latency_ms, created_at
		 FROM competency_runs WHERE question_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, questionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// LatestRuns returns the most recent run per question, keyed by question id.
func (s *Store) LatestRuns(ctx context.Context) (map[string]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.question_id, r.actual_answer, r.accuracy_score, r.passed, r.citations, r.latency_ms, r.created_at
		 FROM competency_runs r
		 JOIN (SELECT question_id, MAX(created_at) AS latest FROM competency_runs GROUP BY question_id) m
		   ON r.question_id = m.question_id AND r.created_at = m.latest`)
	if err != nil {
		return nil, fmt.Errorf("latest runs: %w", err)
	}
	defer rows.Close()

	runs, err := collectRuns(rows)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]Run, len(runs))
	for _, run := range runs {
		latest[run.QuestionID] = run
	}
	return latest, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(sc scanner) (*Question, error) {
	var q Question
	var threshold sql.NullFloat64
	err := sc.Scan(&q.ID, &q.Question, &q.ExpectedAnswer, &threshold, &q.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan question: %w", err)
	}
	if threshold.Valid {
		q.ConfidenceThreshold = &threshold.Float64
	}
	return &q, nil
}

func collectRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var run Run
		var passed int
		if err := rows.Scan(&run.ID, &run.QuestionID, &run.ActualAnswer, &run.AccuracyScore, &passed, &run.Citations, &run.LatencyMs, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Passed = passed != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
