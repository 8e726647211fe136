package competency

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/clausewise/clausewise/internal/answer"
	"github.com/clausewise/clausewise/internal/llm"
	"github.com/clausewise/clausewise/internal/progress"
)

// Answerer is the question-answering surface the runner evaluates.
type Answerer interface {
	Answer(ctx context.Context, question string) (*answer.Answer, error)
}

// Runner evaluates competency questions against the live answer path.
type Runner struct {
	store            *Store
	answerer         Answerer
	judge            llm.Provider
	judgeModel       string
	defaultThreshold float64
	batch            progress.Batch
}

// NewRunner creates a Runner. judge may be nil, in which case scoring
// always uses term overlap.
func NewRunner(store *Store, answerer Answerer, judge llm.Provider, judgeModel string, defaultThreshold float64) *Runner {
	if defaultThreshold <= 0 || defaultThreshold > 1 {
		defaultThreshold = 0.7
	}
	return &Runner{
		store:            store,
		answerer:         answerer,
		judge:            judge,
		judgeModel:       judgeModel,
		defaultThreshold: defaultThreshold,
	}
}

// RunOne evaluates a single question and appends the run.
func (r *Runner) RunOne(ctx context.Context, q *Question) (*Run, error) {
	start := time.Now()
	ans, err := r.answerer.Answer(ctx, q.Question)
	if err != nil {
		return nil, fmt.Errorf("answer question %s: %w", q.ID, err)
	}
	latency := time.Since(start).Milliseconds()

	score := r.score(ctx, q, ans.Answer)
	threshold := r.defaultThreshold
	if q.ConfidenceThreshold != nil {
		threshold = *q.ConfidenceThreshold
	}

	citations, err := json.Marshal(ans.Citations)
	if err != nil {
		citations = []byte("[]")
	}

	run := &Run{
		QuestionID:    q.ID,
		ActualAnswer:  ans.Answer,
		AccuracyScore: score,
		Passed:        score >= threshold,
		Citations:     string(citations),
		LatencyMs:     latency,
	}
	if err := r.store.AppendRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// RunAll evaluates every question sequentially, tracking progress for
// poll-based status. It reports an error immediately when a run is
// already in flight.
func (r *Runner) RunAll(ctx context.Context) error {
	questions, err := r.store.ListQuestions(ctx)
	if err != nil {
		return err
	}
	if !r.batch.Begin(len(questions)) {
		return fmt.Errorf("a competency run is already in progress")
	}
	defer r.batch.End()

	for _, q := range questions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.RunOne(ctx, &q); err != nil {
			return err
		}
		r.batch.Step(q.Question)
	}
	return nil
}

// Progress returns the current batch status for polling.
func (r *Runner) Progress() progress.Snapshot {
	return r.batch.Status()
}

// score asks the judge model to grade the answer, falling back to term
// overlap when the judge is unavailable or returns garbage.
func (r *Runner) score(ctx context.Context, q *Question, actual string) float64 {
	if r.judge != nil {
		if score, ok := r.judgeScore(ctx, q, actual); ok {
			return score
		}
	}
	return termOverlap(q.ExpectedAnswer, actual)
}

const judgeSystemPrompt = `You grade answers about NDA contracts. Given an expected answer and an actual answer, score how well the actual answer conveys the expected facts. Respond with JSON: {"score": <float between 0.0 and 1.0>}.`

func (r *Runner) judgeScore(ctx context.Context, q *Question, actual string) (float64, bool) {
	resp, err := r.judge.Complete(ctx, llm.CompletionRequest{
		Model: r.judgeModel,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: judgeSystemPrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Question: %s\n\nExpected answer: %s\n\nActual answer: %s", q.Question, q.ExpectedAnswer, actual)},
		},
		MaxTokens:   128,
		Temperature: 0.0,
		JSONMode:    true,
	})
	if err != nil {
		return 0, false
	}

	var payload struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Content)), &payload); err != nil {
		return 0, false
	}
	if payload.Score < 0 || payload.Score > 1 {
		return 0, false
	}
	return payload.Score, true
}

// termOverlap returns the fraction of expected-answer terms present in
// the actual answer. Adding matching terms to the actual answer never
// lowers the score.
func termOverlap(expected, actual string) float64 {
	expTerms := termSet(expected)
	if len(expTerms) == 0 {
		return 0
	}
	actTerms := termSet(actual)

	matched := 0
	for t := range expTerms {
		if actTerms[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(expTerms))
}

func termSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[t] = true
	}
	return set
}
