package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Dosada05/video-tournament/live"
	"github.com/Dosada05/video-tournament/models"
	"github.com/Dosada05/video-tournament/repositories"
)

// GroupSpawner порождает новые группы повторяющихся турниров. Порождать
// может только корневой повторяющийся турнир (parent_tournament_id IS NULL);
// для любого другого турнира вызов — no-op.
type GroupSpawner struct {
	txRunner       repositories.TxRunner
	tournamentRepo repositories.TournamentRepository
	hub            *live.Hub
	logger         *slog.Logger
	now            func() time.Time
}

func NewGroupSpawner(
	txRunner repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	hub *live.Hub,
	logger *slog.Logger,
) *GroupSpawner {
	return &GroupSpawner{
		txRunner:       txRunner,
		tournamentRepo: tournamentRepo,
		hub:            hub,
		logger:         logger,
		now:            time.Now,
	}
}

// SpawnNextGroup создаёт следующую группу от корневого турнира parentID в
// собственной транзакции (административная операция). Возвращает (nil, nil),
// если турнир не является корневым повторяющимся.
func (s *GroupSpawner) SpawnNextGroup(ctx context.Context, parentID int) (*models.Tournament, error) {
	var child *models.Tournament

	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		parent, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, parentID)
		if err != nil {
			return err
		}
		child, err = s.spawnLocked(ctx, exec, parent)
		return err
	})
	if err != nil {
		return nil, err
	}

	if child != nil {
		s.announce(parentID, child)
	}
	return child, nil
}

// spawnLocked создаёт группу внутри уже открытой транзакции. Вызывающий
// обязан держать блокировку строки parent (GetByIDForUpdate): инкремент
// active_group_count и вставка дочернего турнира коммитятся вместе, а
// конкурирующие вызовы сериализуются на блокировке.
func (s *GroupSpawner) spawnLocked(ctx context.Context, exec repositories.SQLExecutor, parent *models.Tournament) (*models.Tournament, error) {
	if !parent.IsRoot() {
		return nil, nil
	}

	now := s.now()
	child := &models.Tournament{
		Title:              parent.Title,
		Description:        parent.Description,
		Rules:              parent.Rules,
		Prizes:             parent.Prizes,
		ImageKey:           parent.ImageKey,
		CategoryID:         parent.CategoryID,
		Featured:           parent.Featured,
		IsShowcase:         parent.IsShowcase,
		StartTime:          now,
		EndTime:            parent.EndTime,
		ParticipantLimit:   parent.ParticipantLimit,
		IsRepeating:        true,
		ParentTournamentID: &parent.ID,
		GroupName:          models.NextGroupName(parent.ActiveGroupCount),
		FinalistsCount:     parent.FinalistsCount,
		EntryFee:           parent.EntryFee,
		IsFinalTournament:  parent.IsFinalTournament,
		CreatedBy:          parent.CreatedBy,
	}

	if err := s.tournamentRepo.Create(ctx, exec, child); err != nil {
		return nil, fmt.Errorf("failed to create tournament group: %w", err)
	}
	if err := s.tournamentRepo.IncrementActiveGroupCount(ctx, exec, parent.ID); err != nil {
		return nil, fmt.Errorf("failed to increment parent group count: %w", err)
	}

	s.logger.InfoContext(ctx, "tournament group spawned",
		slog.Int("parent_id", parent.ID),
		slog.Int("child_id", child.ID),
		slog.String("group_name", child.GroupName),
	)
	return child, nil
}

// announce шлёт GROUP_CREATED в комнату родительского турнира после коммита.
func (s *GroupSpawner) announce(parentID int, child *models.Tournament) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToRoom(strconv.Itoa(parentID), live.Message{
		Type:   live.EventGroupCreated,
		RoomID: strconv.Itoa(parentID),
		Payload: map[string]interface{}{
			"tournament_id": child.ID,
			"group_name":    child.GroupName,
		},
	})
}
