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
	ErrVoteNotFound             = errors.New("vote not found")
	ErrVoteConflict             = errors.New("vote conflict: voter already voted in this tournament")
	ErrVoteParticipationInvalid = errors.New("vote participation conflict or invalid")
)

type VoteRepository interface {
	// Create вставляет голос. Пара (voter_id, tournament_id) уникальна на
	// уровне БД — гонка двух одновременных голосов одного пользователя
	// возвращает ErrVoteConflict вместо второй строки.
	Create(ctx context.Context, exec SQLExecutor, v *models.Vote) error
	FindByVoterAndTournament(ctx context.Context, exec SQLExecutor, voterID, tournamentID int) (*models.Vote, error)
	CountByTournament(ctx context.Context, tournamentID int) (int, error)
	CountByParticipation(ctx context.Context, exec SQLExecutor, participationID int) (int, error)
}

type postgresVoteRepository struct {
	db *sql.DB
}

func NewPostgresVoteRepository(db *sql.DB) VoteRepository {
	return &postgresVoteRepository{db: db}
}

func (r *postgresVoteRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresVoteRepository) Create(ctx context.Context, exec SQLExecutor, v *models.Vote) error {
	query := `
		INSERT INTO votes (voter_id, participation_id, tournament_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		v.VoterID,
		v.ParticipationID,
		v.TournamentID,
	).Scan(&v.ID, &v.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				if pqErr.Constraint == "votes_voter_id_tournament_id_key" {
					return ErrVoteConflict
				}
			case "23503":
				if pqErr.Constraint == "votes_participation_id_fkey" {
					return ErrVoteParticipationInvalid
				}
			}
		}
		return fmt.Errorf("failed to create vote: %w", err)
	}
	return nil
}

func (r *postgresVoteRepository) FindByVoterAndTournament(ctx context.Context, exec SQLExecutor, voterID, tournamentID int) (*models.Vote, error) {
	query := `SELECT id, voter_id, participation_id, tournament_id, created_at FROM votes WHERE voter_id = $1 AND tournament_id = $2`
	v := &models.Vote{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, voterID, tournamentID).Scan(
		&v.ID,
		&v.VoterID,
		&v.ParticipationID,
		&v.TournamentID,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVoteNotFound
		}
		return nil, fmt.Errorf("failed to find vote: %w", err)
	}
	return v, nil
}

func (r *postgresVoteRepository) CountByTournament(ctx context.Context, tournamentID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE tournament_id = $1`, tournamentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tournament votes: %w", err)
	}
	return count, nil
}

func (r *postgresVoteRepository) CountByParticipation(ctx context.Context, exec SQLExecutor, participationID int) (int, error) {
	var count int
	err := r.getExecutor(exec).QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE participation_id = $1`, participationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participation votes: %w", err)
	}
	return count, nil
}
