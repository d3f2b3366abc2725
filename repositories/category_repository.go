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
	ErrCategoryNotFound     = errors.New("category not found")
	ErrCategoryNameConflict = errors.New("category name already exists")
)

type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, id int) (*models.Category, error)
	List(ctx context.Context) ([]*models.Category, error)
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id int) error
}

type postgresCategoryRepository struct {
	db *sql.DB
}

func NewPostgresCategoryRepository(db *sql.DB) CategoryRepository {
	return &postgresCategoryRepository{db: db}
}

func (r *postgresCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	query := `INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING id`
	err := r.db.QueryRowContext(ctx, query, category.Name, category.Description).Scan(&category.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrCategoryNameConflict
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (r *postgresCategoryRepository) GetByID(ctx context.Context, id int) (*models.Category, error) {
	query := `SELECT id, name, description FROM categories WHERE id = $1`
	c := &models.Category{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return c, nil
}

func (r *postgresCategoryRepository) List(ctx context.Context) ([]*models.Category, error) {
	query := `SELECT id, name, description FROM categories ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*models.Category, 0)
	for rows.Next() {
		c := &models.Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}
	return categories, nil
}

func (r *postgresCategoryRepository) Update(ctx context.Context, category *models.Category) error {
	query := `UPDATE categories SET name = $1, description = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, category.Name, category.Description, category.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrCategoryNameConflict
		}
		return fmt.Errorf("failed to update category: %w", err)
	}
	return checkAffectedRows(result, ErrCategoryNotFound)
}

func (r *postgresCategoryRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM categories WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return checkAffectedRows(result, ErrCategoryNotFound)
}
