package services

import (
	"context"
	"errors"

	"github.com/Dosada05/video-tournament/models"
	"github.com/Dosada05/video-tournament/repositories"
)

// CategoryService — справочник категорий турниров.
type CategoryService struct {
	categoryRepo repositories.CategoryRepository
}

func NewCategoryService(categoryRepo repositories.CategoryRepository) *CategoryService {
	return &CategoryService{categoryRepo: categoryRepo}
}

func (s *CategoryService) Create(ctx context.Context, name string, description *string) (*models.Category, error) {
	if name == "" {
		return nil, ErrValidationFailed
	}
	category := &models.Category{Name: name, Description: description}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		if errors.Is(err, repositories.ErrCategoryNameConflict) {
			return nil, ErrValidationFailed
		}
		return nil, err
	}
	return category, nil
}

func (s *CategoryService) GetByID(ctx context.Context, id int) (*models.Category, error) {
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrCategoryNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return category, nil
}

func (s *CategoryService) List(ctx context.Context) ([]*models.Category, error) {
	return s.categoryRepo.List(ctx)
}

func (s *CategoryService) Update(ctx context.Context, id int, name string, description *string) (*models.Category, error) {
	if name == "" {
		return nil, ErrValidationFailed
	}
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrCategoryNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	category.Name = name
	category.Description = description
	if err := s.categoryRepo.Update(ctx, category); err != nil {
		if errors.Is(err, repositories.ErrCategoryNameConflict) {
			return nil, ErrValidationFailed
		}
		return nil, err
	}
	return category, nil
}

func (s *CategoryService) Delete(ctx context.Context, id int) error {
	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrCategoryNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
