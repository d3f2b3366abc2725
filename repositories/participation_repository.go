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
	ErrParticipationNotFound          = errors.New("participation not found")
	ErrParticipationConflict          = errors.New("participation conflict: user already entered this tournament")
	ErrParticipationUserInvalid       = errors.New("participation user conflict or invalid")
	ErrParticipationTournamentInvalid = errors.New("participation tournament conflict or invalid")
	ErrParticipationVideoInvalid      = errors.New("participation video submission conflict or invalid")
)

type ParticipationRepository interface {
	// Create вставляет участие. Уникальность (user_id, tournament_id)
	// обеспечивает constraint БД: гонка двух одновременных входов
	// схлопывается в ErrParticipationConflict, а не в дубликат.
	Create(ctx context.Context, exec SQLExecutor, p *models.Participation) error
	FindByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participation, error)
	FindByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) (*models.Participation, error)
	FindByVideoAndTournament(ctx context.Context, videoID, tournamentID int) (*models.Participation, error)
	CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	ListByTournament(ctx context.Context, tournamentID int, orderByVotes bool) ([]*models.Participation, error)
	// ListTopByVotes возвращает top-N по голосам; точные совпадения
	// упорядочиваются по created_at ASC, id ASC — детерминированный тай-брейк.
	ListTopByVotes(ctx context.Context, exec SQLExecutor, tournamentID, limit int) ([]*models.Participation, error)
	IncrementVotes(ctx context.Context, exec SQLExecutor, id int) error
	SetVotesReceived(ctx context.Context, exec SQLExecutor, id, votes int) error
	MarkFinalists(ctx context.Context, exec SQLExecutor, ids []int) error
}

type postgresParticipationRepository struct {
	db *sql.DB
}

func NewPostgresParticipationRepository(db *sql.DB) ParticipationRepository {
	return &postgresParticipationRepository{db: db}
}

func (r *postgresParticipationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresParticipationRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Participation) error {
	query := `
		INSERT INTO participations (user_id, tournament_id, video_submission_id)
		VALUES ($1, $2, $3)
		RETURNING id, votes_received, is_finalist, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		p.UserID,
		p.TournamentID,
		p.VideoSubmissionID,
	).Scan(&p.ID, &p.VotesReceived, &p.IsFinalist, &p.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				if pqErr.Constraint == "participations_user_id_tournament_id_key" ||
					pqErr.Constraint == "participations_video_submission_id_key" {
					return ErrParticipationConflict
				}
			case "23503": // foreign_key_violation
				switch pqErr.Constraint {
				case "participations_user_id_fkey":
					return ErrParticipationUserInvalid
				case "participations_tournament_id_fkey":
					return ErrParticipationTournamentInvalid
				case "participations_video_submission_id_fkey":
					return ErrParticipationVideoInvalid
				}
			}
		}
		return fmt.Errorf("failed to create participation: %w", err)
	}
	return nil
}

func (r *postgresParticipationRepository) scanParticipation(rowScanner interface {
	Scan(dest ...interface{}) error
}, p *models.Participation) error {
	return rowScanner.Scan(
		&p.ID,
		&p.UserID,
		&p.TournamentID,
		&p.VideoSubmissionID,
		&p.VotesReceived,
		&p.IsFinalist,
		&p.CreatedAt,
	)
}

func (r *postgresParticipationRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Participation, error) {
	p := &models.Participation{}
	row := r.getExecutor(exec).QueryRowContext(ctx, query, args...)
	if err := r.scanParticipation(row, p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipationNotFound
		}
		return nil, fmt.Errorf("failed to find participation: %w", err)
	}
	return p, nil
}

func (r *postgresParticipationRepository) FindByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participation, error) {
	query := `SELECT id, user_id, tournament_id, video_submission_id, votes_received, is_finalist, created_at FROM participations WHERE id = $1`
	return r.findOne(ctx, exec, query, id)
}

func (r *postgresParticipationRepository) FindByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) (*models.Participation, error) {
	query := `SELECT id, user_id, tournament_id, video_submission_id, votes_received, is_finalist, created_at FROM participations WHERE user_id = $1 AND tournament_id = $2`
	return r.findOne(ctx, exec, query, userID, tournamentID)
}

func (r *postgresParticipationRepository) FindByVideoAndTournament(ctx context.Context, videoID, tournamentID int) (*models.Participation, error) {
	query := `SELECT id, user_id, tournament_id, video_submission_id, votes_received, is_finalist, created_at FROM participations WHERE video_submission_id = $1 AND tournament_id = $2`
	return r.findOne(ctx, nil, query, videoID, tournamentID)
}

func (r *postgresParticipationRepository) CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	var count int
	err := r.getExecutor(exec).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participations WHERE tournament_id = $1`, tournamentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participations: %w", err)
	}
	return count, nil
}

func (r *postgresParticipationRepository) list(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.Participation, error) {
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participations: %w", err)
	}
	defer rows.Close()

	participations := make([]*models.Participation, 0)
	for rows.Next() {
		p := &models.Participation{}
		if err := r.scanParticipation(rows, p); err != nil {
			return nil, fmt.Errorf("failed to scan participation row: %w", err)
		}
		participations = append(participations, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participation rows: %w", err)
	}
	return participations, nil
}

func (r *postgresParticipationRepository) ListByTournament(ctx context.Context, tournamentID int, orderByVotes bool) ([]*models.Participation, error) {
	order := "created_at DESC, id DESC"
	if orderByVotes {
		order = "votes_received DESC, created_at ASC, id ASC"
	}
	query := `SELECT id, user_id, tournament_id, video_submission_id, votes_received, is_finalist, created_at FROM participations WHERE tournament_id = $1 ORDER BY ` + order
	return r.list(ctx, nil, query, tournamentID)
}

func (r *postgresParticipationRepository) ListTopByVotes(ctx context.Context, exec SQLExecutor, tournamentID, limit int) ([]*models.Participation, error) {
	query := `
		SELECT id, user_id, tournament_id, video_submission_id, votes_received, is_finalist, created_at
		FROM participations
		WHERE tournament_id = $1
		ORDER BY votes_received DESC, created_at ASC, id ASC
		LIMIT $2`
	return r.list(ctx, exec, query, tournamentID, limit)
}

func (r *postgresParticipationRepository) IncrementVotes(ctx context.Context, exec SQLExecutor, id int) error {
	query := `UPDATE participations SET votes_received = votes_received + 1 WHERE id = $1`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment votes: %w", err)
	}
	return checkAffectedRows(result, ErrParticipationNotFound)
}

func (r *postgresParticipationRepository) SetVotesReceived(ctx context.Context, exec SQLExecutor, id, votes int) error {
	query := `UPDATE participations SET votes_received = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, votes, id)
	if err != nil {
		return fmt.Errorf("failed to set votes received: %w", err)
	}
	return checkAffectedRows(result, ErrParticipationNotFound)
}

func (r *postgresParticipationRepository) MarkFinalists(ctx context.Context, exec SQLExecutor, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE participations SET is_finalist = TRUE WHERE id = ANY($1)`
	_, err := r.getExecutor(exec).ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to mark finalists: %w", err)
	}
	return nil
}
