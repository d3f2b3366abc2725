package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/video-tournament/models"
	"github.com/lib/pq"
)

var (
	ErrReportNotFound     = errors.New("video report not found")
	ErrReportConflict     = errors.New("report conflict: user already reported this video")
	ErrReportVideoInvalid = errors.New("report video conflict or invalid")
)

type ReportRepository interface {
	Create(ctx context.Context, report *models.VideoReport) error
	ListUnresolved(ctx context.Context) ([]*models.VideoReport, error)
	Resolve(ctx context.Context, id int) error
}

type postgresReportRepository struct {
	db *sql.DB
}

func NewPostgresReportRepository(db *sql.DB) ReportRepository {
	return &postgresReportRepository{db: db}
}

func (r *postgresReportRepository) Create(ctx context.Context, report *models.VideoReport) error {
	query := `
		INSERT INTO video_reports (video_id, reporter_id, reason, details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, resolved, created_at`

	err := r.db.QueryRowContext(ctx, query,
		report.VideoID,
		report.ReporterID,
		report.Reason,
		report.Details,
	).Scan(&report.ID, &report.Resolved, &report.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				if pqErr.Constraint == "video_reports_reporter_id_video_id_key" {
					return ErrReportConflict
				}
			case "23503":
				if pqErr.Constraint == "video_reports_video_id_fkey" {
					return ErrReportVideoInvalid
				}
			}
		}
		return fmt.Errorf("failed to create video report: %w", err)
	}
	return nil
}

func (r *postgresReportRepository) ListUnresolved(ctx context.Context) ([]*models.VideoReport, error) {
	query := `
		SELECT id, video_id, reporter_id, reason, details, resolved, created_at
		FROM video_reports
		WHERE resolved = FALSE
		ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list video reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*models.VideoReport, 0)
	for rows.Next() {
		rep := &models.VideoReport{}
		if err := rows.Scan(&rep.ID, &rep.VideoID, &rep.ReporterID, &rep.Reason, &rep.Details, &rep.Resolved, &rep.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan video report row: %w", err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating video report rows: %w", err)
	}
	return reports, nil
}

func (r *postgresReportRepository) Resolve(ctx context.Context, id int) error {
	query := `UPDATE video_reports SET resolved = TRUE WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to resolve video report: %w", err)
	}
	return checkAffectedRows(result, ErrReportNotFound)
}
