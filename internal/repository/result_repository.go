package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mocksh/mocksh-backend/internal/model"
)

// ResultRepository handles stored test attempt data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Insert stores a single finished attempt.
func (r *ResultRepository) Insert(ctx context.Context, res *model.TestResult) error {
	answers, err := json.Marshal(res.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	questions, err := json.Marshal(res.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO test_results (id, user_id, test_name, score, total_questions, time_taken_seconds, answers, questions, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		res.ID, res.UserID, res.TestName, res.Score, res.TotalQuestions,
		res.TimeTakenSeconds, answers, questions, res.CreatedAt,
	)
	return err
}

// BulkInsert stores a batch of finished attempts in one round trip using
// UNNEST. The JSONB columns travel as text arrays and are cast per element.
func (r *ResultRepository) BulkInsert(ctx context.Context, batch []*model.TestResult) error {
	n := len(batch)

	ids := make([]string, 0, n)
	userIDs := make([]string, 0, n)
	testNames := make([]string, 0, n)
	scores := make([]int, 0, n)
	totals := make([]int, 0, n)
	timeTakens := make([]int, 0, n)
	answers := make([]string, 0, n)
	questions := make([]string, 0, n)
	createdAts := make([]time.Time, 0, n)

	for _, res := range batch {
		ansJSON, err := json.Marshal(res.Answers)
		if err != nil {
			return fmt.Errorf("marshal answers: %w", err)
		}
		qJSON, err := json.Marshal(res.Questions)
		if err != nil {
			return fmt.Errorf("marshal questions: %w", err)
		}

		ids = append(ids, res.ID)
		userIDs = append(userIDs, res.UserID)
		testNames = append(testNames, res.TestName)
		scores = append(scores, res.Score)
		totals = append(totals, res.TotalQuestions)
		timeTakens = append(timeTakens, res.TimeTakenSeconds)
		answers = append(answers, string(ansJSON))
		questions = append(questions, string(qJSON))
		createdAts = append(createdAts, res.CreatedAt)
	}

	query := `
		INSERT INTO test_results (id, user_id, test_name, score, total_questions, time_taken_seconds, answers, questions, created_at)
		SELECT
			u.id::uuid,
			u.user_id::uuid,
			u.test_name,
			u.score,
			u.total_questions,
			u.time_taken_seconds,
			u.answers::jsonb,
			u.questions::jsonb,
			u.created_at
		FROM UNNEST(
			$1::text[],
			$2::text[],
			$3::text[],
			$4::int[],
			$5::int[],
			$6::int[],
			$7::text[],
			$8::text[],
			$9::timestamptz[]
		) AS u (id, user_id, test_name, score, total_questions, time_taken_seconds, answers, questions, created_at)
	`

	_, err := r.pool.Exec(ctx, query,
		ids, userIDs, testNames, scores, totals, timeTakens, answers, questions, createdAts,
	)
	return err
}

// ListByUser retrieves a user's attempts, newest first.
func (r *ResultRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.TestResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, test_name, score, total_questions, time_taken_seconds, answers, questions, created_at
		 FROM test_results
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.TestResult
	for rows.Next() {
		var res model.TestResult
		var ansJSON, qJSON []byte
		if err := rows.Scan(&res.ID, &res.UserID, &res.TestName, &res.Score, &res.TotalQuestions,
			&res.TimeTakenSeconds, &ansJSON, &qJSON, &res.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(ansJSON, &res.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
		if err := json.Unmarshal(qJSON, &res.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// Stats aggregates a user's stored attempts. A user with no attempts gets
// zero values, not an error.
func (r *ResultRepository) Stats(ctx context.Context, userID string) (*model.UserStats, error) {
	s := &model.UserStats{}
	err := r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COALESCE(AVG(score::float8 * 100 / NULLIF(total_questions, 0)), 0),
			COALESCE(MAX(score::float8 * 100 / NULLIF(total_questions, 0)), 0),
			COALESCE(SUM(total_questions), 0)
		 FROM test_results
		 WHERE user_id = $1`,
		userID,
	).Scan(&s.TotalTests, &s.AvgPercentage, &s.BestPercentage, &s.TotalQuestionsAttempted)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Leaderboard ranks users by their single best attempt: highest percentage
// first, faster time breaking ties.
func (r *ResultRepository) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT
			rank() OVER (ORDER BY best.percentage DESC, best.time_taken_seconds ASC, best.created_at ASC),
			best.user_id,
			best.email,
			best.score,
			best.total_questions,
			best.percentage,
			best.time_taken_seconds,
			best.created_at
		 FROM (
			SELECT DISTINCT ON (r.user_id)
				r.user_id,
				u.email,
				r.score,
				r.total_questions,
				r.score::float8 * 100 / NULLIF(r.total_questions, 0) AS percentage,
				r.time_taken_seconds,
				r.created_at
			FROM test_results r
			JOIN users u ON u.id = r.user_id
			ORDER BY r.user_id,
				r.score::float8 * 100 / NULLIF(r.total_questions, 0) DESC,
				r.time_taken_seconds ASC,
				r.created_at ASC
		 ) AS best
		 ORDER BY best.percentage DESC, best.time_taken_seconds ASC, best.created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.Rank, &e.UserID, &e.Email, &e.Score, &e.TotalQuestions,
			&e.Percentage, &e.TimeTakenSeconds, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
