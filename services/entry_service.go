package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"time"

	"github.com/Dosada05/video-tournament/live"
	"github.com/Dosada05/video-tournament/models"
	"github.com/Dosada05/video-tournament/repositories"
	"github.com/Dosada05/video-tournament/storage"
	"github.com/google/uuid"
)

// EntryService исполняет вход пользователя в турнир: валидация, загрузка
// видео, списание entry fee и создание участия — одним атомарным юнитом.
type EntryService struct {
	txRunner          repositories.TxRunner
	userRepo          repositories.UserRepository
	tournamentRepo    repositories.TournamentRepository
	participationRepo repositories.ParticipationRepository
	videoRepo         repositories.VideoRepository
	transactionRepo   repositories.TicketTransactionRepository
	spawner           *GroupSpawner
	uploader          storage.FileUploader
	hub               *live.Hub
	logger            *slog.Logger
	now               func() time.Time
}

func NewEntryService(
	txRunner repositories.TxRunner,
	userRepo repositories.UserRepository,
	tournamentRepo repositories.TournamentRepository,
	participationRepo repositories.ParticipationRepository,
	videoRepo repositories.VideoRepository,
	transactionRepo repositories.TicketTransactionRepository,
	spawner *GroupSpawner,
	uploader storage.FileUploader,
	hub *live.Hub,
	logger *slog.Logger,
) *EntryService {
	return &EntryService{
		txRunner:          txRunner,
		userRepo:          userRepo,
		tournamentRepo:    tournamentRepo,
		participationRepo: participationRepo,
		videoRepo:         videoRepo,
		transactionRepo:   transactionRepo,
		spawner:           spawner,
		uploader:          uploader,
		hub:               hub,
		logger:            logger,
		now:               time.Now,
	}
}

type EnterTournamentInput struct {
	Title            string
	Description      string
	VideoContentType string
	Video            io.Reader
	CoverContentType string
	Cover            io.Reader
	Duration         *time.Duration
}

// EnterTournament проводит вход userID в турнир tournamentID.
//
// Порядок проверок фиксирован, каждая падает со своей ошибкой:
// билеты -> повторный вход -> активность -> вместимость. Исполнение — одна
// транзакция: видео, участие и списание либо коммитятся вместе, либо никак.
// Вход, заполняющий последний слот повторяющегося турнира, порождает ровно
// одну новую группу в той же транзакции.
func (s *EntryService) EnterTournament(ctx context.Context, userID, tournamentID int, input EnterTournamentInput) (*models.Participation, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load tournament: %w", err)
	}

	// Предварительные проверки вне транзакции: дешёвый быстрый отказ.
	// Всё перепроверяется под блокировкой строки турнира ниже.
	if user.Tickets < tournament.EntryFee {
		return nil, ErrInsufficientTickets
	}
	if _, err := s.participationRepo.FindByUserAndTournament(ctx, nil, userID, tournamentID); err == nil {
		return nil, ErrAlreadyEntered
	} else if !errors.Is(err, repositories.ErrParticipationNotFound) {
		return nil, fmt.Errorf("failed to check existing participation: %w", err)
	}

	// Активность здесь — только временное окно (count=0): закрытие
	// заполнением репортится отдельной ошибкой вместимости с подсказкой.
	if !tournament.IsActiveAt(s.now(), 0) {
		return nil, ErrTournamentNotActive
	}
	count, err := s.participationRepo.CountByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCapacity(ctx, nil, tournament, count); err != nil {
		return nil, err
	}

	if input.Video == nil || input.Title == "" {
		return nil, ErrValidationFailed
	}

	// Загрузка медиа до транзакции: хранилище не умеет откатываться вместе
	// с БД, поэтому при неудачном коммите осиротевшие объекты подчищаются
	// best-effort ниже.
	video, err := s.uploadSubmission(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	var (
		participation *models.Participation
		spawned       *models.Tournament
	)

	txErr := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		locked, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if !locked.IsActiveAt(s.now(), 0) {
			return ErrTournamentNotActive
		}
		lockedCount, err := s.participationRepo.CountByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if err := s.checkCapacity(ctx, exec, locked, lockedCount); err != nil {
			return err
		}

		if err := s.videoRepo.Create(ctx, exec, video); err != nil {
			return err
		}

		participation = &models.Participation{
			UserID:            userID,
			TournamentID:      tournamentID,
			VideoSubmissionID: video.ID,
		}
		if err := s.participationRepo.Create(ctx, exec, participation); err != nil {
			if errors.Is(err, repositories.ErrParticipationConflict) {
				// Гонку одновременных входов закрыл constraint БД.
				return ErrAlreadyEntered
			}
			return err
		}

		if locked.EntryFee > 0 {
			balance, err := s.userRepo.AdjustTickets(ctx, exec, userID, -locked.EntryFee)
			if err != nil {
				if errors.Is(err, repositories.ErrInsufficientBalance) {
					return ErrInsufficientTickets
				}
				return err
			}
			entryTx := &models.TicketTransaction{
				UserID:       userID,
				Type:         models.TransactionUse,
				Delta:        -locked.EntryFee,
				BalanceAfter: balance,
				Notes:        fmt.Sprintf("Entry fee for tournament %d", tournamentID),
			}
			if err := s.transactionRepo.Create(ctx, exec, entryTx); err != nil {
				return err
			}
		}

		// Спавн срабатывает ровно один раз: только вход, доведший счётчик
		// до лимита, видит переход lockedCount+1 == limit под блокировкой.
		if locked.IsRepeating && locked.ParticipantLimit != nil && lockedCount+1 >= *locked.ParticipantLimit {
			root := locked
			if locked.ParentTournamentID != nil {
				root, err = s.tournamentRepo.GetByIDForUpdate(ctx, exec, *locked.ParentTournamentID)
				if err != nil {
					return fmt.Errorf("failed to load parent tournament: %w", err)
				}
			}
			spawned, err = s.spawner.spawnLocked(ctx, exec, root)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if txErr != nil {
		s.cleanupUploads(ctx, video)
		return nil, txErr
	}

	s.logger.InfoContext(ctx, "tournament entry committed",
		slog.Int("user_id", userID),
		slog.Int("tournament_id", tournamentID),
		slog.Int("participation_id", participation.ID),
	)

	s.announce(tournamentID, participation, spawned)
	return participation, nil
}

// checkCapacity возвращает ErrTournamentFull для обычного заполненного
// турнира. Для повторяющегося — структурную подсказку "иди в новейшую
// группу", если такая группа есть и это не текущий турнир.
func (s *EntryService) checkCapacity(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, count int) error {
	if tournament.ParticipantLimit == nil || count < *tournament.ParticipantLimit {
		return nil
	}
	if !tournament.IsRepeating {
		return ErrTournamentFull
	}

	rootID := tournament.ID
	if tournament.ParentTournamentID != nil {
		rootID = *tournament.ParentTournamentID
	}
	children, err := s.tournamentRepo.ListChildren(ctx, exec, rootID)
	if err != nil {
		return fmt.Errorf("failed to list tournament groups: %w", err)
	}
	if len(children) == 0 || children[0].ID == tournament.ID {
		return ErrTournamentFull
	}
	return &GroupFullError{NewestGroupID: children[0].ID}
}

func (s *EntryService) uploadSubmission(ctx context.Context, userID int, input EnterTournamentInput) (*models.VideoSubmission, error) {
	videoKey := buildMediaKey("tournament_videos", input.VideoContentType)
	if _, err := s.uploader.Upload(ctx, videoKey, input.VideoContentType, input.Video); err != nil {
		return nil, fmt.Errorf("failed to upload video: %w", err)
	}

	video := &models.VideoSubmission{
		Title:       input.Title,
		Description: input.Description,
		VideoKey:    videoKey,
		Duration:    input.Duration,
		UserID:      userID,
	}

	if input.Cover != nil {
		coverKey := buildMediaKey("video_covers", input.CoverContentType)
		if _, err := s.uploader.Upload(ctx, coverKey, input.CoverContentType, input.Cover); err != nil {
			s.cleanupUploads(ctx, video)
			return nil, fmt.Errorf("failed to upload cover image: %w", err)
		}
		video.CoverImageKey = &coverKey
	}
	return video, nil
}

func (s *EntryService) cleanupUploads(ctx context.Context, video *models.VideoSubmission) {
	if video == nil {
		return
	}
	if video.VideoKey != "" {
		if err := s.uploader.Delete(ctx, video.VideoKey); err != nil {
			s.logger.WarnContext(ctx, "failed to clean up uploaded video", slog.String("key", video.VideoKey), slog.Any("error", err))
		}
	}
	if video.CoverImageKey != nil {
		if err := s.uploader.Delete(ctx, *video.CoverImageKey); err != nil {
			s.logger.WarnContext(ctx, "failed to clean up uploaded cover", slog.String("key", *video.CoverImageKey), slog.Any("error", err))
		}
	}
}

func (s *EntryService) announce(tournamentID int, participation *models.Participation, spawned *models.Tournament) {
	if s.hub == nil {
		return
	}
	room := strconv.Itoa(tournamentID)
	s.hub.BroadcastToRoom(room, live.Message{
		Type:   live.EventParticipantJoined,
		RoomID: room,
		Payload: map[string]interface{}{
			"participation_id": participation.ID,
			"user_id":          participation.UserID,
		},
	})
	if spawned != nil && spawned.ParentTournamentID != nil {
		s.spawner.announce(*spawned.ParentTournamentID, spawned)
	}
}

func buildMediaKey(prefix, contentType string) string {
	ext := extensionForContentType(contentType)
	return path.Join(prefix, uuid.NewString()+ext)
}

func extensionForContentType(contentType string) string {
	switch contentType {
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	case "video/x-msvideo":
		return ".avi"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
