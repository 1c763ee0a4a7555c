package postgresql

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"prediction-tracker/internal/entity"
)

type VideoRepository struct {
	pool *pgxpool.Pool
}

func NewVideoRepository(pool *pgxpool.Pool) *VideoRepository {
	return &VideoRepository{pool: pool}
}

const videoColumns = `
id, creator_id, external_id, title, published_at, transcript, analyzed, avg_score,
created_at, updated_at`

func scanVideo(row pgx.Row) (*entity.Video, error) {
	var v entity.Video
	if err := row.Scan(
		&v.ID,
		&v.CreatorID,
		&v.ExternalID,
		&v.Title,
		&v.PublishedAt,
		&v.Transcript,
		&v.Analyzed,
		&v.AvgScore,
		&v.CreatedAt,
		&v.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *VideoRepository) collect(rows pgx.Rows) ([]entity.Video, error) {
	defer rows.Close()
	var out []entity.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// Upsert inserts or refreshes a video by its external id. The transcript and
// analysis columns are never touched on conflict, so re-running a sync is
// idempotent and cannot undo downstream work.
func (r *VideoRepository) Upsert(ctx context.Context, creatorID uuid.UUID, meta entity.VideoMeta) (uuid.UUID, error) {
	const q = `
INSERT INTO videos (creator_id, external_id, title, published_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (external_id) DO UPDATE SET
	title        = EXCLUDED.title,
	published_at = EXCLUDED.published_at,
	updated_at   = now()
RETURNING id;
`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, q, creatorID, meta.ExternalID, meta.Title, meta.PublishedAt).Scan(&id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *VideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Video, error) {
	const q = `SELECT` + videoColumns + ` FROM videos WHERE id = $1;`
	return scanVideo(r.pool.QueryRow(ctx, q, id))
}

// MissingTranscript returns the creator's videos with no transcript value at
// all. Videos carrying the unavailable sentinel are excluded: their fetch
// already failed permanently.
func (r *VideoRepository) MissingTranscript(ctx context.Context, creatorID uuid.UUID, limit int) ([]entity.Video, error) {
	const q = `
SELECT` + videoColumns + `
FROM videos
WHERE creator_id = $1 AND transcript IS NULL
ORDER BY published_at DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, q, creatorID, limit)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// AnalyzableByCreator returns un-analyzed videos with a real transcript.
func (r *VideoRepository) AnalyzableByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]entity.Video, error) {
	const q = `
SELECT` + videoColumns + `
FROM videos
WHERE creator_id = $1
  AND analyzed = FALSE
  AND transcript IS NOT NULL
  AND transcript <> $2
ORDER BY published_at DESC
LIMIT $3;
`
	rows, err := r.pool.Query(ctx, q, creatorID, entity.TranscriptUnavailable, limit)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// CountWithTranscript counts videos whose transcript column has any value,
// the unavailable sentinel included. This is the durable source for the
// transcripts_fetched progress counter.
func (r *VideoRepository) CountWithTranscript(ctx context.Context, creatorID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM videos WHERE creator_id = $1 AND transcript IS NOT NULL;`
	var n int
	if err := r.pool.QueryRow(ctx, q, creatorID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *VideoRepository) CountAnalyzed(ctx context.Context, creatorID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM videos WHERE creator_id = $1 AND analyzed = TRUE;`
	var n int
	if err := r.pool.QueryRow(ctx, q, creatorID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *VideoRepository) SetTranscript(ctx context.Context, id uuid.UUID, transcript string) error {
	const q = `UPDATE videos SET transcript = $2, updated_at = now() WHERE id = $1;`

	tag, err := r.pool.Exec(ctx, q, id, transcript)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *VideoRepository) SetAnalysis(ctx context.Context, id uuid.UUID, avgScore *float64) error {
	const q = `UPDATE videos SET analyzed = TRUE, avg_score = $2, updated_at = now() WHERE id = $1;`

	tag, err := r.pool.Exec(ctx, q, id, avgScore)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkTranscriptsUnavailable writes the sentinel into every transcript-less
// video of the creator. Used by the recovery sweep and the force-restart
// path to unblock a pipeline stuck mid-transcript-phase.
func (r *VideoRepository) MarkTranscriptsUnavailable(ctx context.Context, creatorID uuid.UUID) (int, error) {
	const q = `
UPDATE videos SET transcript = $2, updated_at = now()
WHERE creator_id = $1 AND transcript IS NULL;
`
	tag, err := r.pool.Exec(ctx, q, creatorID, entity.TranscriptUnavailable)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// OrphanedAnalysis scans globally for videos that have a usable transcript
// but were never analyzed, work a crashed process left behind. The batch is
// bounded; the sweep runs repeatedly so the backlog drains over time.
func (r *VideoRepository) OrphanedAnalysis(ctx context.Context, limit int) ([]entity.Video, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	const q = `
SELECT` + videoColumns + `
FROM videos
WHERE analyzed = FALSE
  AND transcript IS NOT NULL
  AND transcript <> $1
ORDER BY updated_at ASC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, q, entity.TranscriptUnavailable, limit)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}
