package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/Dosada05/video-tournament/live"
	"github.com/Dosada05/video-tournament/models"
	"github.com/Dosada05/video-tournament/repositories"
	"github.com/Dosada05/video-tournament/storage"
	"golang.org/x/sync/errgroup"
)

// TournamentService управляет жизненным циклом турниров: создание и
// редактирование (админ), просмотр, закрытие, таблица результатов и выбор
// финалистов.
type TournamentService struct {
	txRunner          repositories.TxRunner
	tournamentRepo    repositories.TournamentRepository
	participationRepo repositories.ParticipationRepository
	voteRepo          repositories.VoteRepository
	categoryRepo      repositories.CategoryRepository
	spawner           *GroupSpawner
	uploader          storage.FileUploader
	hub               *live.Hub
	logger            *slog.Logger
	now               func() time.Time
}

func NewTournamentService(
	txRunner repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	participationRepo repositories.ParticipationRepository,
	voteRepo repositories.VoteRepository,
	categoryRepo repositories.CategoryRepository,
	spawner *GroupSpawner,
	uploader storage.FileUploader,
	hub *live.Hub,
	logger *slog.Logger,
) *TournamentService {
	return &TournamentService{
		txRunner:          txRunner,
		tournamentRepo:    tournamentRepo,
		participationRepo: participationRepo,
		voteRepo:          voteRepo,
		categoryRepo:      categoryRepo,
		spawner:           spawner,
		uploader:          uploader,
		hub:               hub,
		logger:            logger,
		now:               time.Now,
	}
}

// Квота финалистов по умолчанию; схема требует finalists_count > 0.
const defaultFinalistsCount = 3

type CreateTournamentInput struct {
	Title            string
	Description      string
	Rules            *string
	Prizes           *string
	CategoryID       int
	Featured         bool
	IsShowcase       bool
	StartTime        time.Time
	EndTime          *time.Time
	ParticipantLimit *int
	IsRepeating      bool
	FinalistsCount   int
	EntryFee         int
	ImageContentType string
	Image            io.Reader
}

func (in *CreateTournamentInput) validate() error {
	if in.Title == "" {
		return ErrTournamentTitleRequired
	}
	if in.StartTime.IsZero() {
		return ErrTournamentDatesRequired
	}
	// Бессрочными могут быть только повторяющиеся турниры: их закрывает
	// заполнение группы, а не таймер.
	if in.EndTime == nil && !in.IsRepeating {
		return ErrTournamentEndTimeRequired
	}
	if in.EndTime != nil && !in.EndTime.After(in.StartTime) {
		return ErrTournamentInvalidDates
	}
	if in.ParticipantLimit != nil && *in.ParticipantLimit <= 0 {
		return ErrTournamentInvalidCapacity
	}
	if in.EntryFee < 0 || in.FinalistsCount < 0 {
		return ErrValidationFailed
	}
	return nil
}

// Create создаёт новый турнир (админ). Повторяющийся турнир создаётся как
// корень: первая группа порождается отдельным вызовом SpawnGroup или первым
// заполнением.
func (s *TournamentService) Create(ctx context.Context, createdBy int, input CreateTournamentInput) (*models.Tournament, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	// Нулевая квота означает "не указана": подставляем значение по умолчанию,
	// иначе вставка упрётся в CHECK (finalists_count > 0).
	if input.FinalistsCount == 0 {
		input.FinalistsCount = defaultFinalistsCount
	}
	if _, err := s.categoryRepo.GetByID(ctx, input.CategoryID); err != nil {
		if errors.Is(err, repositories.ErrCategoryNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load category: %w", err)
	}

	tournament := &models.Tournament{
		Title:            input.Title,
		Description:      input.Description,
		Rules:            input.Rules,
		Prizes:           input.Prizes,
		CategoryID:       input.CategoryID,
		Featured:         input.Featured,
		IsShowcase:       input.IsShowcase,
		StartTime:        input.StartTime,
		EndTime:          input.EndTime,
		ParticipantLimit: input.ParticipantLimit,
		IsRepeating:      input.IsRepeating,
		FinalistsCount:   input.FinalistsCount,
		EntryFee:         input.EntryFee,
		CreatedBy:        &createdBy,
	}

	if input.Image != nil {
		key := buildMediaKey("tournament_images", input.ImageContentType)
		if _, err := s.uploader.Upload(ctx, key, input.ImageContentType, input.Image); err != nil {
			return nil, fmt.Errorf("failed to upload tournament image: %w", err)
		}
		tournament.ImageKey = &key
	}

	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.tournamentRepo.Create(ctx, exec, tournament)
	})
	if err != nil {
		if tournament.ImageKey != nil {
			if delErr := s.uploader.Delete(ctx, *tournament.ImageKey); delErr != nil {
				s.logger.WarnContext(ctx, "failed to clean up tournament image", slog.Any("error", delErr))
			}
		}
		if errors.Is(err, repositories.ErrTournamentCategoryInvalid) {
			return nil, ErrNotFound
		}
		if errors.Is(err, repositories.ErrTournamentInvalidData) {
			return nil, ErrValidationFailed
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", tournament.ID),
		slog.String("title", tournament.Title),
		slog.Bool("is_repeating", tournament.IsRepeating),
	)
	s.attachImageURL(tournament)
	return tournament, nil
}

// GetByID возвращает турнир и инкрементит счётчик просмотров, если смотрит не
// создатель. viewerID <= 0 означает анонимного зрителя.
func (s *TournamentService) GetByID(ctx context.Context, id, viewerID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if tournament.CreatedBy == nil || *tournament.CreatedBy != viewerID {
		if err := s.tournamentRepo.IncrementViews(ctx, id); err != nil {
			// Счётчик просмотров не стоит отказа всего запроса.
			s.logger.WarnContext(ctx, "failed to increment tournament views", slog.Int("tournament_id", id), slog.Any("error", err))
		} else {
			tournament.ViewsCount++
		}
	}

	s.attachImageURL(tournament)
	return tournament, nil
}

func (s *TournamentService) List(ctx context.Context, limit, offset int) ([]*models.Tournament, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	tournaments, err := s.tournamentRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	for _, t := range tournaments {
		s.attachImageURL(t)
	}
	return tournaments, nil
}

func (s *TournamentService) ListGroups(ctx context.Context, parentID int) ([]*models.Tournament, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, parentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	children, err := s.tournamentRepo.ListChildren(ctx, nil, parentID)
	if err != nil {
		return nil, err
	}
	for _, t := range children {
		s.attachImageURL(t)
	}
	return children, nil
}

type UpdateTournamentInput struct {
	Title            *string
	Description      *string
	Rules            *string
	Prizes           *string
	Featured         *bool
	IsShowcase       *bool
	StartTime        *time.Time
	EndTime          *time.Time
	ParticipantLimit *int
	FinalistsCount   *int
	EntryFee         *int
}

// Update частично обновляет турнир (админ). Поля IsRepeating и
// ParentTournamentID после создания не меняются.
func (s *TournamentService) Update(ctx context.Context, id int, input UpdateTournamentInput) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, ErrTournamentTitleRequired
		}
		tournament.Title = *input.Title
	}
	if input.Description != nil {
		tournament.Description = *input.Description
	}
	if input.Rules != nil {
		tournament.Rules = input.Rules
	}
	if input.Prizes != nil {
		tournament.Prizes = input.Prizes
	}
	if input.Featured != nil {
		tournament.Featured = *input.Featured
	}
	if input.IsShowcase != nil {
		tournament.IsShowcase = *input.IsShowcase
	}
	if input.StartTime != nil {
		tournament.StartTime = *input.StartTime
	}
	if input.EndTime != nil {
		tournament.EndTime = input.EndTime
	}
	if input.ParticipantLimit != nil {
		if *input.ParticipantLimit <= 0 {
			return nil, ErrTournamentInvalidCapacity
		}
		tournament.ParticipantLimit = input.ParticipantLimit
	}
	if input.FinalistsCount != nil {
		if *input.FinalistsCount <= 0 {
			return nil, ErrValidationFailed
		}
		tournament.FinalistsCount = *input.FinalistsCount
	}
	if input.EntryFee != nil {
		if *input.EntryFee < 0 {
			return nil, ErrValidationFailed
		}
		tournament.EntryFee = *input.EntryFee
	}
	if tournament.EndTime != nil && !tournament.EndTime.After(tournament.StartTime) {
		return nil, ErrTournamentInvalidDates
	}
	if tournament.EndTime == nil && !tournament.IsRepeating {
		return nil, ErrTournamentEndTimeRequired
	}

	if err := s.tournamentRepo.Update(ctx, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentInvalidData) {
			return nil, ErrValidationFailed
		}
		return nil, err
	}
	s.attachImageURL(tournament)
	return tournament, nil
}

// Close завершает турнир досрочно, проставляя end_time = now. После этого
// предикат активности становится ложным для любых новых входов и голосов.
func (s *TournamentService) Close(ctx context.Context, id int) error {
	if _, err := s.tournamentRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.tournamentRepo.SetEndTime(ctx, id, sql.NullTime{Time: s.now(), Valid: true}); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "tournament closed", slog.Int("tournament_id", id))
	return nil
}

// SpawnGroup — административный запуск следующей группы корневого
// повторяющегося турнира.
func (s *TournamentService) SpawnGroup(ctx context.Context, parentID int) (*models.Tournament, error) {
	child, err := s.spawner.SpawnNextGroup(ctx, parentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if child == nil {
		return nil, ErrForbiddenOperation
	}
	return child, nil
}

// Standings возвращает участия турнира в порядке убывания голосов.
func (s *TournamentService) Standings(ctx context.Context, tournamentID int) ([]*models.Participation, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.participationRepo.ListByTournament(ctx, tournamentID, true)
}

func (s *TournamentService) Participants(ctx context.Context, tournamentID int) ([]*models.Participation, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.participationRepo.ListByTournament(ctx, tournamentID, false)
}

// SelectFinalists помечает топ finalists_count участий турнира финалистами.
// Тай-брейк детерминированный: голоса по убыванию, затем более ранний вход,
// затем меньший id. Повторный вызов пересчитывает пометки заново.
func (s *TournamentService) SelectFinalists(ctx context.Context, tournamentID int) ([]*models.Participation, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if tournament.FinalistsCount <= 0 {
		return nil, ErrForbiddenOperation
	}

	var finalists []*models.Participation
	err = s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		finalists, err = s.participationRepo.ListTopByVotes(ctx, exec, tournamentID, tournament.FinalistsCount)
		if err != nil {
			return err
		}
		ids := make([]int, 0, len(finalists))
		for _, p := range finalists {
			ids = append(ids, p.ID)
		}
		return s.participationRepo.MarkFinalists(ctx, exec, ids)
	})
	if err != nil {
		return nil, err
	}

	for _, p := range finalists {
		p.IsFinalist = true
	}
	s.logger.InfoContext(ctx, "finalists selected",
		slog.Int("tournament_id", tournamentID),
		slog.Int("count", len(finalists)),
	)

	if s.hub != nil {
		room := strconv.Itoa(tournamentID)
		s.hub.BroadcastToRoom(room, live.Message{
			Type:    live.EventStandingsUpdated,
			RoomID:  room,
			Payload: map[string]interface{}{"finalists_selected": len(finalists)},
		})
	}
	return finalists, nil
}

// ReconcileCounters сверяет денормализованные счётчики с фактом: для каждого
// участия votes_received пересчитывается из таблицы голосов, для каждого
// корня active_group_count — из числа дочерних групп. Расхождения чинятся и
// логируются.
func (s *TournamentService) ReconcileCounters(ctx context.Context, tournamentID int) error {
	participations, err := s.participationRepo.ListByTournament(ctx, tournamentID, false)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, p := range participations {
		p := p
		g.Go(func() error {
			actual, err := s.voteRepo.CountByParticipation(gctx, nil, p.ID)
			if err != nil {
				return err
			}
			if actual == p.VotesReceived {
				return nil
			}
			s.logger.WarnContext(gctx, "votes_received drift repaired",
				slog.Int("participation_id", p.ID),
				slog.Int("stored", p.VotesReceived),
				slog.Int("actual", actual),
			)
			return s.participationRepo.SetVotesReceived(gctx, nil, p.ID, actual)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to reconcile vote counters: %w", err)
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return err
	}
	if !tournament.IsRoot() {
		return nil
	}
	children, err := s.tournamentRepo.ListChildren(ctx, nil, tournamentID)
	if err != nil {
		return err
	}
	if len(children) != tournament.ActiveGroupCount {
		s.logger.WarnContext(ctx, "active_group_count drift repaired",
			slog.Int("tournament_id", tournamentID),
			slog.Int("stored", tournament.ActiveGroupCount),
			slog.Int("actual", len(children)),
		)
		return s.tournamentRepo.SetActiveGroupCount(ctx, nil, tournamentID, len(children))
	}
	return nil
}

// ReconcileAllRoots прогоняет сверку счётчиков по всем корневым повторяющимся
// турнирам разом. Возвращает число обработанных корней.
func (s *TournamentService) ReconcileAllRoots(ctx context.Context) (int, error) {
	roots, err := s.tournamentRepo.ListRepeatingRoots(ctx)
	if err != nil {
		return 0, err
	}
	for _, root := range roots {
		if err := s.ReconcileCounters(ctx, root.ID); err != nil {
			return 0, fmt.Errorf("failed to reconcile root %d: %w", root.ID, err)
		}
	}
	return len(roots), nil
}

func (s *TournamentService) attachImageURL(t *models.Tournament) {
	if t.ImageKey == nil || s.uploader == nil {
		return
	}
	url := s.uploader.GetPublicURL(*t.ImageKey)
	t.ImageURL = &url
}
