package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/video-tournament/models"
	"github.com/lib/pq"
)

var (
	ErrVideoNotFound    = errors.New("video submission not found")
	ErrVideoUserInvalid = errors.New("video submission user conflict or invalid")
)

type VideoRepository interface {
	Create(ctx context.Context, exec SQLExecutor, v *models.VideoSubmission) error
	GetByID(ctx context.Context, id int) (*models.VideoSubmission, error)
	IncrementViews(ctx context.Context, id int) error
	Delete(ctx context.Context, id int) error
}

type postgresVideoRepository struct {
	db *sql.DB
}

func NewPostgresVideoRepository(db *sql.DB) VideoRepository {
	return &postgresVideoRepository{db: db}
}

func (r *postgresVideoRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresVideoRepository) Create(ctx context.Context, exec SQLExecutor, v *models.VideoSubmission) error {
	query := `
		INSERT INTO video_submissions (title, description, video_key, cover_image_key, duration_ns, user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, views_count, processed, created_at`

	var durationNS *int64
	if v.Duration != nil {
		ns := int64(*v.Duration)
		durationNS = &ns
	}

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		v.Title,
		v.Description,
		v.VideoKey,
		v.CoverImageKey,
		durationNS,
		v.UserID,
	).Scan(&v.ID, &v.ViewsCount, &v.Processed, &v.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			if pqErr.Constraint == "video_submissions_user_id_fkey" {
				return ErrVideoUserInvalid
			}
		}
		return fmt.Errorf("failed to create video submission: %w", err)
	}
	return nil
}

func (r *postgresVideoRepository) GetByID(ctx context.Context, id int) (*models.VideoSubmission, error) {
	query := `
		SELECT id, title, description, video_key, cover_image_key, duration_ns, user_id, views_count, processed, created_at
		FROM video_submissions WHERE id = $1`

	v := &models.VideoSubmission{}
	var durationNS sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&v.ID,
		&v.Title,
		&v.Description,
		&v.VideoKey,
		&v.CoverImageKey,
		&durationNS,
		&v.UserID,
		&v.ViewsCount,
		&v.Processed,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("failed to find video submission: %w", err)
	}
	if durationNS.Valid {
		d := time.Duration(durationNS.Int64)
		v.Duration = &d
	}
	return v, nil
}

func (r *postgresVideoRepository) IncrementViews(ctx context.Context, id int) error {
	query := `UPDATE video_submissions SET views_count = views_count + 1 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment video views: %w", err)
	}
	return checkAffectedRows(result, ErrVideoNotFound)
}

func (r *postgresVideoRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM video_submissions WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete video submission: %w", err)
	}
	return checkAffectedRows(result, ErrVideoNotFound)
}
