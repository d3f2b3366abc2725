package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dosada05/video-tournament/models"
)

type votingEnv struct {
	svc            *VotingService
	tournaments    *fakeTournamentRepo
	participations *fakeParticipationRepo
	votes          *fakeVoteRepo
	now            time.Time
}

func newVotingEnv(t *testing.T, requireParticipation bool) *votingEnv {
	t.Helper()
	env := &votingEnv{
		tournaments:    newFakeTournamentRepo(),
		participations: newFakeParticipationRepo(),
		votes:          newFakeVoteRepo(),
		now:            time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	env.svc = NewVotingService(
		&fakeTxRunner{},
		env.tournaments,
		env.participations,
		env.votes,
		nil,
		testLogger(),
		requireParticipation,
	)
	env.svc.now = func() time.Time { return env.now }
	return env
}

func (env *votingEnv) addTournament() *models.Tournament {
	end := env.now.Add(24 * time.Hour)
	return env.tournaments.add(&models.Tournament{
		Title:     "Clip Battle",
		StartTime: env.now.Add(-time.Hour),
		EndTime:   &end,
	})
}

func (env *votingEnv) addParticipation(userID, tournamentID int) *models.Participation {
	return env.participations.add(&models.Participation{
		UserID:            userID,
		TournamentID:      tournamentID,
		VideoSubmissionID: userID * 100,
	})
}

func TestCastVoteForbiddenForNonParticipant(t *testing.T) {
	env := newVotingEnv(t, true)
	tournament := env.addTournament()
	target := env.addParticipation(2, tournament.ID)

	_, err := env.svc.CastVote(context.Background(), 1, tournament.ID, target.ID)
	if !errors.Is(err, ErrVotingForbidden) {
		t.Fatalf("expected ErrVotingForbidden, got %v", err)
	}
}

func TestCastVoteOpenPolicyAllowsNonParticipant(t *testing.T) {
	env := newVotingEnv(t, false)
	tournament := env.addTournament()
	target := env.addParticipation(2, tournament.ID)

	vote, err := env.svc.CastVote(context.Background(), 1, tournament.ID, target.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vote.TournamentID != tournament.ID {
		t.Errorf("vote tournament denormalized wrong: got %d, want %d", vote.TournamentID, tournament.ID)
	}
}

func TestCastVoteInvalidParticipation(t *testing.T) {
	env := newVotingEnv(t, true)
	tournament := env.addTournament()
	other := env.addTournament()
	env.addParticipation(1, tournament.ID)
	foreign := env.addParticipation(2, other.ID)

	if _, err := env.svc.CastVote(context.Background(), 1, tournament.ID, foreign.ID); !errors.Is(err, ErrInvalidParticipation) {
		t.Fatalf("cross-tournament target: expected ErrInvalidParticipation, got %v", err)
	}
	if _, err := env.svc.CastVote(context.Background(), 1, tournament.ID, 9999); !errors.Is(err, ErrInvalidParticipation) {
		t.Fatalf("missing target: expected ErrInvalidParticipation, got %v", err)
	}
}

func TestCastVoteSelfVoteForbidden(t *testing.T) {
	env := newVotingEnv(t, true)
	tournament := env.addTournament()
	own := env.addParticipation(1, tournament.ID)

	if _, err := env.svc.CastVote(context.Background(), 1, tournament.ID, own.ID); !errors.Is(err, ErrSelfVoteForbidden) {
		t.Fatalf("expected ErrSelfVoteForbidden, got %v", err)
	}
}

func TestCastVoteAlreadyVoted(t *testing.T) {
	env := newVotingEnv(t, true)
	tournament := env.addTournament()
	env.addParticipation(1, tournament.ID)
	target := env.addParticipation(2, tournament.ID)
	another := env.addParticipation(3, tournament.ID)

	if _, err := env.svc.CastVote(context.Background(), 1, tournament.ID, target.ID); err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	// Второй голос отклоняется даже за другого участника.
	if _, err := env.svc.CastVote(context.Background(), 1, tournament.ID, another.ID); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
}

func TestCastVoteIncrementsCounter(t *testing.T) {
	env := newVotingEnv(t, true)
	tournament := env.addTournament()
	env.addParticipation(1, tournament.ID)
	target := env.addParticipation(2, tournament.ID)

	if _, err := env.svc.CastVote(context.Background(), 1, tournament.ID, target.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := env.participations.FindByID(context.Background(), nil, target.ID)
	if stored.VotesReceived != 1 {
		t.Errorf("votes_received: got %d, want 1", stored.VotesReceived)
	}
	if n, _ := env.votes.CountByParticipation(context.Background(), nil, target.ID); n != stored.VotesReceived {
		t.Errorf("denormalized counter diverged from vote rows: %d vs %d", stored.VotesReceived, n)
	}
}

func TestVoteStatus(t *testing.T) {
	env := newVotingEnv(t, true)
	tournament := env.addTournament()
	env.addParticipation(1, tournament.ID)
	target := env.addParticipation(2, tournament.ID)

	status, err := env.svc.VoteStatus(context.Background(), 1, tournament.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.HasVoted || !status.CanVote {
		t.Errorf("before voting: got %+v, want CanVote=true HasVoted=false", status)
	}

	if _, err := env.svc.CastVote(context.Background(), 1, tournament.ID, target.ID); err != nil {
		t.Fatalf("vote failed: %v", err)
	}

	status, err = env.svc.VoteStatus(context.Background(), 1, tournament.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.HasVoted || status.CanVote {
		t.Errorf("after voting: got %+v, want HasVoted=true CanVote=false", status)
	}
	if status.VotedFor == nil || status.VotedFor.ID != target.ID {
		t.Errorf("voted_for not resolved: %+v", status.VotedFor)
	}
}

func TestVoteStatusInactiveTournament(t *testing.T) {
	env := newVotingEnv(t, true)
	end := env.now.Add(-time.Hour)
	tournament := env.tournaments.add(&models.Tournament{
		Title:     "Clip Battle",
		StartTime: env.now.Add(-24 * time.Hour),
		EndTime:   &end,
	})
	env.addParticipation(1, tournament.ID)

	// Статус — витрина для клиента: на завершённом турнире кнопку голоса не
	// предлагаем, даже если участник ещё не голосовал.
	status, err := env.svc.VoteStatus(context.Background(), 1, tournament.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.CanVote {
		t.Error("closed tournament must not advertise voting")
	}
	if status.HasVoted {
		t.Error("has_voted must stay false without a vote")
	}
}

func TestVoteStatusNonParticipantCannotVote(t *testing.T) {
	env := newVotingEnv(t, true)
	tournament := env.addTournament()
	env.addParticipation(2, tournament.ID)

	status, err := env.svc.VoteStatus(context.Background(), 1, tournament.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.CanVote {
		t.Error("non-participant must not be able to vote under the strict policy")
	}
}
