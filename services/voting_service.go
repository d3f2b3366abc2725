package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Dosada05/video-tournament/live"
	"github.com/Dosada05/video-tournament/models"
	"github.com/Dosada05/video-tournament/repositories"
)

// VotingService принимает голоса в турнирах. Один голос на пользователя
// на турнир; requireParticipation определяет, обязан ли голосующий сам
// участвовать в турнире.
type VotingService struct {
	txRunner             repositories.TxRunner
	tournamentRepo       repositories.TournamentRepository
	participationRepo    repositories.ParticipationRepository
	voteRepo             repositories.VoteRepository
	hub                  *live.Hub
	logger               *slog.Logger
	requireParticipation bool
	now                  func() time.Time
}

func NewVotingService(
	txRunner repositories.TxRunner,
	tournamentRepo repositories.TournamentRepository,
	participationRepo repositories.ParticipationRepository,
	voteRepo repositories.VoteRepository,
	hub *live.Hub,
	logger *slog.Logger,
	requireParticipation bool,
) *VotingService {
	return &VotingService{
		txRunner:             txRunner,
		tournamentRepo:       tournamentRepo,
		participationRepo:    participationRepo,
		voteRepo:             voteRepo,
		hub:                  hub,
		logger:               logger,
		requireParticipation: requireParticipation,
		now:                  time.Now,
	}
}

// CastVote записывает голос voterID за участие participationID в турнире
// tournamentID. Проверки идут в фиксированном порядке: право голоса ->
// принадлежность цели турниру -> самоголосование -> повторный голос.
// Вставка голоса и инкремент votes_received коммитятся одной транзакцией.
func (s *VotingService) CastVote(ctx context.Context, voterID, tournamentID, participationID int) (*models.Vote, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load tournament: %w", err)
	}

	var (
		vote   *models.Vote
		target *models.Participation
	)

	txErr := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		if s.requireParticipation {
			if _, err := s.participationRepo.FindByUserAndTournament(ctx, exec, voterID, tournamentID); err != nil {
				if errors.Is(err, repositories.ErrParticipationNotFound) {
					return ErrVotingForbidden
				}
				return fmt.Errorf("failed to check voter participation: %w", err)
			}
		}

		var err error
		target, err = s.participationRepo.FindByID(ctx, exec, participationID)
		if err != nil {
			if errors.Is(err, repositories.ErrParticipationNotFound) {
				return ErrInvalidParticipation
			}
			return fmt.Errorf("failed to load target participation: %w", err)
		}
		if target.TournamentID != tournamentID {
			return ErrInvalidParticipation
		}
		if target.UserID == voterID {
			return ErrSelfVoteForbidden
		}

		if _, err := s.voteRepo.FindByVoterAndTournament(ctx, exec, voterID, tournamentID); err == nil {
			return ErrAlreadyVoted
		} else if !errors.Is(err, repositories.ErrVoteNotFound) {
			return fmt.Errorf("failed to check existing vote: %w", err)
		}

		vote = &models.Vote{
			VoterID:         voterID,
			ParticipationID: participationID,
			TournamentID:    tournamentID,
		}
		if err := s.voteRepo.Create(ctx, exec, vote); err != nil {
			if errors.Is(err, repositories.ErrVoteConflict) {
				// Одновременный двойной сабмит: constraint БД пропустил один.
				return ErrAlreadyVoted
			}
			return err
		}
		return s.participationRepo.IncrementVotes(ctx, exec, participationID)
	})
	if txErr != nil {
		return nil, txErr
	}

	s.logger.InfoContext(ctx, "vote cast",
		slog.Int("voter_id", voterID),
		slog.Int("tournament_id", tournamentID),
		slog.Int("participation_id", participationID),
	)

	if s.hub != nil {
		room := strconv.Itoa(tournamentID)
		s.hub.BroadcastToRoom(room, live.Message{
			Type:   live.EventStandingsUpdated,
			RoomID: room,
			Payload: map[string]interface{}{
				"participation_id": participationID,
				"votes_received":   target.VotesReceived + 1,
			},
		})
	}
	return vote, nil
}

// VoteStatus возвращает снимок состояния голосования пользователя в турнире.
// CanVote учитывает активность турнира, политику участия и уже отданный голос.
func (s *VotingService) VoteStatus(ctx context.Context, userID, tournamentID int) (*models.VoteStatus, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load tournament: %w", err)
	}

	count, err := s.participationRepo.CountByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}

	status := &models.VoteStatus{
		CanVote: tournament.IsActiveAt(s.now(), count),
	}

	if s.requireParticipation && status.CanVote {
		if _, err := s.participationRepo.FindByUserAndTournament(ctx, nil, userID, tournamentID); err != nil {
			if !errors.Is(err, repositories.ErrParticipationNotFound) {
				return nil, fmt.Errorf("failed to check voter participation: %w", err)
			}
			status.CanVote = false
		}
	}

	vote, err := s.voteRepo.FindByVoterAndTournament(ctx, nil, userID, tournamentID)
	if err != nil {
		if !errors.Is(err, repositories.ErrVoteNotFound) {
			return nil, fmt.Errorf("failed to check existing vote: %w", err)
		}
		return status, nil
	}

	status.HasVoted = true
	status.CanVote = false
	if votedFor, err := s.participationRepo.FindByID(ctx, nil, vote.ParticipationID); err == nil {
		status.VotedFor = votedFor
	}
	return status, nil
}
