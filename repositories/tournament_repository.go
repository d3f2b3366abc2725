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
	ErrTournamentNotFound        = errors.New("tournament not found")
	ErrTournamentCategoryInvalid = errors.New("tournament category conflict or invalid")
	ErrTournamentInvalidData     = errors.New("tournament violates data constraints")
)

const tournamentColumns = `
	id, title, description, rules, prizes, image_key, category_id, featured,
	is_showcase, start_time, end_time, participant_limit, is_repeating,
	parent_tournament_id, group_name, active_group_count, finalists_count,
	entry_fee, is_final_tournament, views_count, created_by, created_at, updated_at`

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	// GetByIDForUpdate читает турнир под блокировкой строки (SELECT ... FOR
	// UPDATE). Конкурирующие входы в один турнир сериализуются на этой
	// блокировке — только запрос, заполнивший последний слот, видит момент
	// заполнения.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, limit, offset int) ([]*models.Tournament, error)
	ListChildren(ctx context.Context, exec SQLExecutor, parentID int) ([]*models.Tournament, error)
	Update(ctx context.Context, t *models.Tournament) error
	SetEndTime(ctx context.Context, id int, endTime sql.NullTime) error
	IncrementViews(ctx context.Context, id int) error
	// IncrementActiveGroupCount атомарно увеличивает счётчик групп родителя.
	IncrementActiveGroupCount(ctx context.Context, exec SQLExecutor, id int) error
	SetActiveGroupCount(ctx context.Context, exec SQLExecutor, id, count int) error
	ListRepeatingRoots(ctx context.Context) ([]*models.Tournament, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (
			title, description, rules, prizes, image_key, category_id, featured,
			is_showcase, start_time, end_time, participant_limit, is_repeating,
			parent_tournament_id, group_name, finalists_count, entry_fee,
			is_final_tournament, created_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, active_group_count, views_count, created_at, updated_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		t.Title,
		t.Description,
		t.Rules,
		t.Prizes,
		t.ImageKey,
		t.CategoryID,
		t.Featured,
		t.IsShowcase,
		t.StartTime,
		t.EndTime,
		t.ParticipantLimit,
		t.IsRepeating,
		t.ParentTournamentID,
		t.GroupName,
		t.FinalistsCount,
		t.EntryFee,
		t.IsFinalTournament,
		t.CreatedBy,
	).Scan(&t.ID, &t.ActiveGroupCount, &t.ViewsCount, &t.CreatedAt, &t.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23503":
				if pqErr.Constraint == "tournaments_category_id_fkey" {
					return ErrTournamentCategoryInvalid
				}
			case "23514":
				return ErrTournamentInvalidData
			}
		}
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) scanTournament(rowScanner interface {
	Scan(dest ...interface{}) error
}, t *models.Tournament) error {
	var endTime sql.NullTime
	err := rowScanner.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Rules,
		&t.Prizes,
		&t.ImageKey,
		&t.CategoryID,
		&t.Featured,
		&t.IsShowcase,
		&t.StartTime,
		&endTime,
		&t.ParticipantLimit,
		&t.IsRepeating,
		&t.ParentTournamentID,
		&t.GroupName,
		&t.ActiveGroupCount,
		&t.FinalistsCount,
		&t.EntryFee,
		&t.IsFinalTournament,
		&t.ViewsCount,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if endTime.Valid {
		t.EndTime = &endTime.Time
	}
	return nil
}

func (r *postgresTournamentRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Tournament, error) {
	t := &models.Tournament{}
	row := r.getExecutor(exec).QueryRowContext(ctx, query, args...)
	if err := r.scanTournament(row, t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to find tournament: %w", err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	return r.findOne(ctx, nil, query, id)
}

func (r *postgresTournamentRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1 FOR UPDATE`
	return r.findOne(ctx, exec, query, id)
}

func (r *postgresTournamentRepository) queryList(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.Tournament, error) {
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		t := &models.Tournament{}
		if err := r.scanTournament(rows, t); err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		tournaments = append(tournaments, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournament rows: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, limit, offset int) ([]*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.queryList(ctx, nil, query, limit, offset)
}

// ListChildren возвращает дочерние группы новейшими вперёд: первый элемент —
// самая свежая группа, на которую указывает подсказка "try newest group".
func (r *postgresTournamentRepository) ListChildren(ctx context.Context, exec SQLExecutor, parentID int) ([]*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE parent_tournament_id = $1 ORDER BY created_at DESC, id DESC`
	return r.queryList(ctx, exec, query, parentID)
}

func (r *postgresTournamentRepository) ListRepeatingRoots(ctx context.Context) ([]*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE is_repeating = TRUE AND parent_tournament_id IS NULL ORDER BY id ASC`
	return r.queryList(ctx, nil, query)
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	query := `
		UPDATE tournaments
		SET title = $1, description = $2, rules = $3, prizes = $4, image_key = $5,
		    category_id = $6, featured = $7, is_showcase = $8, start_time = $9,
		    end_time = $10, participant_limit = $11, finalists_count = $12,
		    entry_fee = $13, is_final_tournament = $14, updated_at = NOW()
		WHERE id = $15`

	result, err := r.db.ExecContext(ctx, query,
		t.Title, t.Description, t.Rules, t.Prizes, t.ImageKey,
		t.CategoryID, t.Featured, t.IsShowcase, t.StartTime,
		t.EndTime, t.ParticipantLimit, t.FinalistsCount,
		t.EntryFee, t.IsFinalTournament, t.ID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" {
			return ErrTournamentInvalidData
		}
		return fmt.Errorf("failed to update tournament: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) SetEndTime(ctx context.Context, id int, endTime sql.NullTime) error {
	query := `UPDATE tournaments SET end_time = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, endTime, id)
	if err != nil {
		return fmt.Errorf("failed to set tournament end time: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) IncrementViews(ctx context.Context, id int) error {
	query := `UPDATE tournaments SET views_count = views_count + 1 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment tournament views: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) IncrementActiveGroupCount(ctx context.Context, exec SQLExecutor, id int) error {
	query := `UPDATE tournaments SET active_group_count = active_group_count + 1, updated_at = NOW() WHERE id = $1`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment active group count: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) SetActiveGroupCount(ctx context.Context, exec SQLExecutor, id, count int) error {
	query := `UPDATE tournaments SET active_group_count = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, count, id)
	if err != nil {
		return fmt.Errorf("failed to set active group count: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}
