package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/video-tournament/models"
	"github.com/Dosada05/video-tournament/repositories"
)

// ModerationService — жалобы на видео и их разбор админом.
type ModerationService struct {
	reportRepo        repositories.ReportRepository
	videoRepo         repositories.VideoRepository
	participationRepo repositories.ParticipationRepository
	logger            *slog.Logger
}

func NewModerationService(
	reportRepo repositories.ReportRepository,
	videoRepo repositories.VideoRepository,
	participationRepo repositories.ParticipationRepository,
	logger *slog.Logger,
) *ModerationService {
	return &ModerationService{
		reportRepo:        reportRepo,
		videoRepo:         videoRepo,
		participationRepo: participationRepo,
		logger:            logger,
	}
}

// ReportVideo регистрирует жалобу reporterID на видео, участвующее в турнире
// tournamentID. Повторная жалоба того же пользователя на то же видео
// отклоняется constraint-ом БД.
func (s *ModerationService) ReportVideo(ctx context.Context, reporterID, tournamentID, videoID int, reason models.ReportReason, details string) (*models.VideoReport, error) {
	if !models.ValidReportReason(reason) {
		return nil, ErrInvalidReportReason
	}

	// Жаловаться можно только на видео, реально выставленное в этом турнире.
	if _, err := s.participationRepo.FindByVideoAndTournament(ctx, videoID, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrParticipationNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to check video participation: %w", err)
	}

	report := &models.VideoReport{
		VideoID:    videoID,
		ReporterID: reporterID,
		Reason:     reason,
		Details:    details,
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		if errors.Is(err, repositories.ErrReportConflict) {
			return nil, ErrAlreadyReported
		}
		if errors.Is(err, repositories.ErrReportVideoInvalid) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "video reported",
		slog.Int("video_id", videoID),
		slog.Int("reporter_id", reporterID),
		slog.String("reason", string(reason)),
	)
	return report, nil
}

func (s *ModerationService) ListUnresolved(ctx context.Context) ([]*models.VideoReport, error) {
	return s.reportRepo.ListUnresolved(ctx)
}

// Resolve помечает жалобу разобранной (админ).
func (s *ModerationService) Resolve(ctx context.Context, reportID int) error {
	if err := s.reportRepo.Resolve(ctx, reportID); err != nil {
		if errors.Is(err, repositories.ErrReportNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.logger.InfoContext(ctx, "video report resolved", slog.Int("report_id", reportID))
	return nil
}

// RegisterVideoView инкрементит счётчик просмотров видео.
func (s *ModerationService) RegisterVideoView(ctx context.Context, videoID int) error {
	if err := s.videoRepo.IncrementViews(ctx, videoID); err != nil {
		if errors.Is(err, repositories.ErrVideoNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
