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
	ErrUserNotFound         = errors.New("user not found")
	ErrUserEmailConflict    = errors.New("user email already in use")
	ErrUserNicknameConflict = errors.New("user nickname already in use")
	ErrInsufficientBalance  = errors.New("insufficient ticket balance")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// AdjustTickets атомарно изменяет баланс на delta и возвращает новый
	// баланс. Отрицательный итог невозможен: условный UPDATE не находит
	// строку, и возвращается ErrInsufficientBalance.
	AdjustTickets(ctx context.Context, exec SQLExecutor, userID, delta int) (int, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, nickname, password_hash, role, tickets)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Email,
		user.Nickname,
		user.PasswordHash,
		user.Role,
		user.Tickets,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case "users_email_key":
				return ErrUserEmailConflict
			case "users_nickname_key":
				return ErrUserNicknameConflict
			}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Nickname,
		&u.PasswordHash,
		&u.Role,
		&u.Tickets,
		&u.AvatarKey,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT id, email, nickname, password_hash, role, tickets, avatar_key, created_at FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, nickname, password_hash, role, tickets, avatar_key, created_at FROM users WHERE email = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *postgresUserRepository) AdjustTickets(ctx context.Context, exec SQLExecutor, userID, delta int) (int, error) {
	query := `
		UPDATE users
		SET tickets = tickets + $1
		WHERE id = $2 AND tickets + $1 >= 0
		RETURNING tickets`

	var balance int
	err := exec.QueryRowContext(ctx, query, delta, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Либо пользователя нет, либо не хватает билетов. Различаем.
			var exists bool
			checkErr := exec.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
			if checkErr != nil {
				return 0, fmt.Errorf("failed to check user existence: %w", checkErr)
			}
			if !exists {
				return 0, ErrUserNotFound
			}
			return 0, ErrInsufficientBalance
		}
		return 0, fmt.Errorf("failed to adjust user tickets: %w", err)
	}
	return balance, nil
}
