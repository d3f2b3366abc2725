package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Dosada05/video-tournament/models"
	"github.com/Dosada05/video-tournament/repositories"
	"github.com/Dosada05/video-tournament/storage"
)

// SponsorService — спонсоры и их привязка к турнирам (админ).
type SponsorService struct {
	sponsorRepo    repositories.SponsorRepository
	tournamentRepo repositories.TournamentRepository
	uploader       storage.FileUploader
	logger         *slog.Logger
}

func NewSponsorService(
	sponsorRepo repositories.SponsorRepository,
	tournamentRepo repositories.TournamentRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) *SponsorService {
	return &SponsorService{
		sponsorRepo:    sponsorRepo,
		tournamentRepo: tournamentRepo,
		uploader:       uploader,
		logger:         logger,
	}
}

type SponsorInput struct {
	Name            string
	Description     *string
	WebsiteURL      *string
	IsActive        bool
	LogoContentType string
	Logo            io.Reader
}

func (s *SponsorService) Create(ctx context.Context, input SponsorInput) (*models.Sponsor, error) {
	if input.Name == "" {
		return nil, ErrValidationFailed
	}

	sponsor := &models.Sponsor{
		Name:        input.Name,
		Description: input.Description,
		WebsiteURL:  input.WebsiteURL,
		IsActive:    input.IsActive,
	}

	if input.Logo != nil {
		key := buildMediaKey("sponsor_logos", input.LogoContentType)
		if _, err := s.uploader.Upload(ctx, key, input.LogoContentType, input.Logo); err != nil {
			return nil, fmt.Errorf("failed to upload sponsor logo: %w", err)
		}
		sponsor.LogoKey = &key
	}

	if err := s.sponsorRepo.Create(ctx, sponsor); err != nil {
		if sponsor.LogoKey != nil {
			if delErr := s.uploader.Delete(ctx, *sponsor.LogoKey); delErr != nil {
				s.logger.WarnContext(ctx, "failed to clean up sponsor logo", slog.Any("error", delErr))
			}
		}
		return nil, err
	}

	s.attachLogoURL(sponsor)
	return sponsor, nil
}

func (s *SponsorService) ListActive(ctx context.Context) ([]*models.Sponsor, error) {
	sponsors, err := s.sponsorRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, sp := range sponsors {
		s.attachLogoURL(sp)
	}
	return sponsors, nil
}

func (s *SponsorService) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Sponsor, error) {
	sponsors, err := s.sponsorRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	for _, sp := range sponsors {
		s.attachLogoURL(sp)
	}
	return sponsors, nil
}

// Attach привязывает спонсора к турниру. Повторная привязка — ошибка
// валидации, несуществующий спонсор или турнир — ErrNotFound.
func (s *SponsorService) Attach(ctx context.Context, sponsorID, tournamentID int) error {
	if _, err := s.sponsorRepo.GetByID(ctx, sponsorID); err != nil {
		if errors.Is(err, repositories.ErrSponsorNotFound) {
			return ErrNotFound
		}
		return err
	}
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.sponsorRepo.AttachToTournament(ctx, sponsorID, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrSponsorConflict) {
			return ErrValidationFailed
		}
		return err
	}
	return nil
}

func (s *SponsorService) Detach(ctx context.Context, sponsorID, tournamentID int) error {
	if err := s.sponsorRepo.DetachFromTournament(ctx, sponsorID, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrSponsorNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *SponsorService) attachLogoURL(sp *models.Sponsor) {
	if sp.LogoKey == nil || s.uploader == nil {
		return
	}
	url := s.uploader.GetPublicURL(*sp.LogoKey)
	sp.LogoURL = &url
}
