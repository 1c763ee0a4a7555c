package postgresql

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"prediction-tracker/internal/entity"
)

type CreatorRepository struct {
	pool *pgxpool.Pool
}

func NewCreatorRepository(pool *pgxpool.Pool) *CreatorRepository {
	return &CreatorRepository{pool: pool}
}

func (r *CreatorRepository) Create(ctx context.Context, channelID, name string) (uuid.UUID, error) {
	const q = `
INSERT INTO creators (channel_id, name)
VALUES ($1, $2)
ON CONFLICT (channel_id) DO UPDATE SET name = EXCLUDED.name
RETURNING id;
`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, q, channelID, name).Scan(&id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

const creatorColumns = `
id, channel_id, name, avg_score, total_predictions, correct_predictions, accuracy_percent,
created_at, updated_at`

func scanCreator(row pgx.Row) (*entity.Creator, error) {
	var c entity.Creator
	if err := row.Scan(
		&c.ID,
		&c.ChannelID,
		&c.Name,
		&c.AvgScore,
		&c.TotalPredictions,
		&c.CorrectPredictions,
		&c.AccuracyPercent,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CreatorRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Creator, error) {
	const q = `SELECT` + creatorColumns + ` FROM creators WHERE id = $1;`
	return scanCreator(r.pool.QueryRow(ctx, q, id))
}

// List returns creators ranked for the leaderboard: scored creators first,
// best average score on top.
func (r *CreatorRepository) List(ctx context.Context, limit int) ([]entity.Creator, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT` + creatorColumns + `
FROM creators
ORDER BY avg_score DESC NULLS LAST, total_predictions DESC
LIMIT $1;
`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Creator
	for rows.Next() {
		c, err := scanCreator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// RecomputeAggregates derives the creator's stats from its prediction rows
// in a single statement. Called after any video finishes analysis and again
// by the completion job; repeat calls are harmless.
func (r *CreatorRepository) RecomputeAggregates(ctx context.Context, id uuid.UUID) error {
	const q = `
UPDATE creators c SET
	avg_score           = agg.avg_score,
	total_predictions   = agg.total,
	correct_predictions = agg.correct,
	accuracy_percent    = CASE WHEN agg.verified > 0
	                           THEN agg.correct::float8 / agg.verified * 100
	                           ELSE NULL END,
	updated_at          = now()
FROM (
	SELECT
		COUNT(p.id)                                          AS total,
		COUNT(p.id) FILTER (WHERE p.accuracy_score IS NOT NULL) AS verified,
		COUNT(p.id) FILTER (WHERE p.accuracy_score >= $2)    AS correct,
		AVG(p.accuracy_score)                                AS avg_score
	FROM videos v
	LEFT JOIN predictions p ON p.video_id = v.id
	WHERE v.creator_id = $1
) agg
WHERE c.id = $1;
`
	tag, err := r.pool.Exec(ctx, q, id, entity.CorrectScoreThreshold)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
