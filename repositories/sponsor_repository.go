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
	ErrSponsorNotFound = errors.New("sponsor not found")
	ErrSponsorConflict = errors.New("sponsor already attached to this tournament")
)

type SponsorRepository interface {
	Create(ctx context.Context, s *models.Sponsor) error
	GetByID(ctx context.Context, id int) (*models.Sponsor, error)
	ListActive(ctx context.Context) ([]*models.Sponsor, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Sponsor, error)
	AttachToTournament(ctx context.Context, sponsorID, tournamentID int) error
	DetachFromTournament(ctx context.Context, sponsorID, tournamentID int) error
	Update(ctx context.Context, s *models.Sponsor) error
}

type postgresSponsorRepository struct {
	db *sql.DB
}

func NewPostgresSponsorRepository(db *sql.DB) SponsorRepository {
	return &postgresSponsorRepository{db: db}
}

const sponsorColumns = `id, name, description, logo_key, website_url, is_active, created_at`

func (r *postgresSponsorRepository) scanSponsor(rowScanner interface {
	Scan(dest ...interface{}) error
}, s *models.Sponsor) error {
	return rowScanner.Scan(&s.ID, &s.Name, &s.Description, &s.LogoKey, &s.WebsiteURL, &s.IsActive, &s.CreatedAt)
}

func (r *postgresSponsorRepository) Create(ctx context.Context, s *models.Sponsor) error {
	query := `
		INSERT INTO sponsors (name, description, logo_key, website_url, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, s.Name, s.Description, s.LogoKey, s.WebsiteURL, s.IsActive).
		Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create sponsor: %w", err)
	}
	return nil
}

func (r *postgresSponsorRepository) GetByID(ctx context.Context, id int) (*models.Sponsor, error) {
	query := `SELECT ` + sponsorColumns + ` FROM sponsors WHERE id = $1`
	s := &models.Sponsor{}
	if err := r.scanSponsor(r.db.QueryRowContext(ctx, query, id), s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSponsorNotFound
		}
		return nil, fmt.Errorf("failed to find sponsor: %w", err)
	}
	return s, nil
}

func (r *postgresSponsorRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Sponsor, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sponsors: %w", err)
	}
	defer rows.Close()

	sponsors := make([]*models.Sponsor, 0)
	for rows.Next() {
		s := &models.Sponsor{}
		if err := r.scanSponsor(rows, s); err != nil {
			return nil, fmt.Errorf("failed to scan sponsor row: %w", err)
		}
		sponsors = append(sponsors, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sponsor rows: %w", err)
	}
	return sponsors, nil
}

func (r *postgresSponsorRepository) ListActive(ctx context.Context) ([]*models.Sponsor, error) {
	return r.list(ctx, `SELECT `+sponsorColumns+` FROM sponsors WHERE is_active = TRUE ORDER BY name ASC`)
}

func (r *postgresSponsorRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Sponsor, error) {
	query := `
		SELECT s.id, s.name, s.description, s.logo_key, s.website_url, s.is_active, s.created_at
		FROM sponsors s
		JOIN tournament_sponsors ts ON ts.sponsor_id = s.id
		WHERE ts.tournament_id = $1
		ORDER BY s.name ASC`
	return r.list(ctx, query, tournamentID)
}

func (r *postgresSponsorRepository) AttachToTournament(ctx context.Context, sponsorID, tournamentID int) error {
	query := `INSERT INTO tournament_sponsors (sponsor_id, tournament_id) VALUES ($1, $2)`
	_, err := r.db.ExecContext(ctx, query, sponsorID, tournamentID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				return ErrSponsorConflict
			case "23503":
				if pqErr.Constraint == "tournament_sponsors_sponsor_id_fkey" {
					return ErrSponsorNotFound
				}
				return ErrTournamentNotFound
			}
		}
		return fmt.Errorf("failed to attach sponsor to tournament: %w", err)
	}
	return nil
}

func (r *postgresSponsorRepository) DetachFromTournament(ctx context.Context, sponsorID, tournamentID int) error {
	query := `DELETE FROM tournament_sponsors WHERE sponsor_id = $1 AND tournament_id = $2`
	result, err := r.db.ExecContext(ctx, query, sponsorID, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to detach sponsor from tournament: %w", err)
	}
	return checkAffectedRows(result, ErrSponsorNotFound)
}

func (r *postgresSponsorRepository) Update(ctx context.Context, s *models.Sponsor) error {
	query := `UPDATE sponsors SET name = $1, description = $2, logo_key = $3, website_url = $4, is_active = $5 WHERE id = $6`
	result, err := r.db.ExecContext(ctx, query, s.Name, s.Description, s.LogoKey, s.WebsiteURL, s.IsActive, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update sponsor: %w", err)
	}
	return checkAffectedRows(result, ErrSponsorNotFound)
}
