package postgresql

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"prediction-tracker/internal/entity"
)

type PredictionRepository struct {
	pool *pgxpool.Pool
}

func NewPredictionRepository(pool *pgxpool.Pool) *PredictionRepository {
	return &PredictionRepository{pool: pool}
}

// CreateBatch inserts the extracted predictions for one video in a single
// transaction and fills in the generated ids.
func (r *PredictionRepository) CreateBatch(ctx context.Context, preds []entity.Prediction) error {
	if len(preds) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `
INSERT INTO predictions (video_id, text, predicted_outcome, timeframe)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at;
`
	for i := range preds {
		p := &preds[i]
		if err := tx.QueryRow(ctx, q, p.VideoID, p.Text, p.PredictedOutcome, p.Timeframe).
			Scan(&p.ID, &p.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PredictionRepository) SetVerification(ctx context.Context, id uuid.UUID, score float64, outcome, explanation string, verifiedAt time.Time) error {
	const q = `
UPDATE predictions SET
	accuracy_score = $2,
	actual_outcome = $3,
	explanation    = $4,
	verified_at    = $5
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, q, id, score, outcome, explanation, verifiedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPrediction(row pgx.Row) (*entity.Prediction, error) {
	var p entity.Prediction
	if err := row.Scan(
		&p.ID,
		&p.VideoID,
		&p.Text,
		&p.PredictedOutcome,
		&p.Timeframe,
		&p.AccuracyScore,
		&p.ActualOutcome,
		&p.Explanation,
		&p.VerifiedAt,
		&p.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PredictionRepository) collect(rows pgx.Rows) ([]entity.Prediction, error) {
	defer rows.Close()
	var out []entity.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PredictionRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]entity.Prediction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT
p.id, p.video_id, p.text, p.predicted_outcome, p.timeframe, p.accuracy_score,
p.actual_outcome, p.explanation, p.verified_at, p.created_at
FROM predictions p
JOIN videos v ON v.id = p.video_id
WHERE v.creator_id = $1
ORDER BY p.created_at DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, q, creatorID, limit)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *PredictionRepository) CountByCreator(ctx context.Context, creatorID uuid.UUID) (int, error) {
	const q = `
SELECT COUNT(*)
FROM predictions p
JOIN videos v ON v.id = p.video_id
WHERE v.creator_id = $1;
`
	var n int
	if err := r.pool.QueryRow(ctx, q, creatorID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
