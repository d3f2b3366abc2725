package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Dosada05/video-tournament/models"
	"github.com/Dosada05/video-tournament/repositories"
)

type entryEnv struct {
	svc            *EntryService
	txRunner       *fakeTxRunner
	users          *fakeUserRepo
	tournaments    *fakeTournamentRepo
	participations *fakeParticipationRepo
	videos         *fakeVideoRepo
	transactions   *fakeTransactionRepo
	uploader       *fakeUploader
	now            time.Time
}

func newEntryEnv(t *testing.T) *entryEnv {
	t.Helper()
	env := &entryEnv{
		txRunner:       &fakeTxRunner{},
		users:          newFakeUserRepo(),
		tournaments:    newFakeTournamentRepo(),
		participations: newFakeParticipationRepo(),
		videos:         newFakeVideoRepo(),
		transactions:   newFakeTransactionRepo(),
		uploader:       &fakeUploader{},
		now:            time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	logger := testLogger()
	spawner := NewGroupSpawner(env.txRunner, env.tournaments, nil, logger)
	spawner.now = func() time.Time { return env.now }

	env.svc = NewEntryService(
		env.txRunner,
		env.users,
		env.tournaments,
		env.participations,
		env.videos,
		env.transactions,
		spawner,
		env.uploader,
		nil,
		logger,
	)
	env.svc.now = func() time.Time { return env.now }
	return env
}

func (env *entryEnv) addUser(tickets int) *models.User {
	return env.users.add(&models.User{Nickname: "player", Tickets: tickets})
}

func (env *entryEnv) addTournament(mod func(*models.Tournament)) *models.Tournament {
	end := env.now.Add(24 * time.Hour)
	t := &models.Tournament{
		Title:      "Weekly Clips",
		CategoryID: 1,
		StartTime:  env.now.Add(-time.Hour),
		EndTime:    &end,
		EntryFee:   5,
	}
	if mod != nil {
		mod(t)
	}
	return env.tournaments.add(t)
}

func validEntryInput() EnterTournamentInput {
	return EnterTournamentInput{
		Title:            "My clip",
		VideoContentType: "video/mp4",
		Video:            strings.NewReader("video-bytes"),
	}
}

func TestEnterTournamentInsufficientTickets(t *testing.T) {
	env := newEntryEnv(t)
	user := env.addUser(3)
	tournament := env.addTournament(nil) // fee 5

	_, err := env.svc.EnterTournament(context.Background(), user.ID, tournament.ID, validEntryInput())
	if !errors.Is(err, ErrInsufficientTickets) {
		t.Fatalf("expected ErrInsufficientTickets, got %v", err)
	}

	stored, _ := env.users.GetByID(context.Background(), user.ID)
	if stored.Tickets != 3 {
		t.Errorf("balance changed on rejected entry: got %d, want 3", stored.Tickets)
	}
	if len(env.uploader.uploads) != 0 {
		t.Errorf("media uploaded before a failed pre-check")
	}
}

func TestEnterTournamentAlreadyEntered(t *testing.T) {
	env := newEntryEnv(t)
	user := env.addUser(10)
	tournament := env.addTournament(nil)
	env.participations.add(&models.Participation{UserID: user.ID, TournamentID: tournament.ID, VideoSubmissionID: 99})

	_, err := env.svc.EnterTournament(context.Background(), user.ID, tournament.ID, validEntryInput())
	if !errors.Is(err, ErrAlreadyEntered) {
		t.Fatalf("expected ErrAlreadyEntered, got %v", err)
	}
}

func TestEnterTournamentNotActive(t *testing.T) {
	env := newEntryEnv(t)
	user := env.addUser(10)

	notStarted := env.addTournament(func(tr *models.Tournament) {
		tr.StartTime = env.now.Add(time.Hour)
		end := env.now.Add(48 * time.Hour)
		tr.EndTime = &end
	})
	if _, err := env.svc.EnterTournament(context.Background(), user.ID, notStarted.ID, validEntryInput()); !errors.Is(err, ErrTournamentNotActive) {
		t.Fatalf("not started: expected ErrTournamentNotActive, got %v", err)
	}

	ended := env.addTournament(func(tr *models.Tournament) {
		tr.StartTime = env.now.Add(-48 * time.Hour)
		end := env.now.Add(-time.Hour)
		tr.EndTime = &end
	})
	if _, err := env.svc.EnterTournament(context.Background(), user.ID, ended.ID, validEntryInput()); !errors.Is(err, ErrTournamentNotActive) {
		t.Fatalf("ended: expected ErrTournamentNotActive, got %v", err)
	}
}

func TestEnterTournamentFull(t *testing.T) {
	env := newEntryEnv(t)
	user := env.addUser(10)
	limit := 1
	tournament := env.addTournament(func(tr *models.Tournament) {
		tr.ParticipantLimit = &limit
	})
	env.participations.add(&models.Participation{UserID: 42, TournamentID: tournament.ID, VideoSubmissionID: 1})

	_, err := env.svc.EnterTournament(context.Background(), user.ID, tournament.ID, validEntryInput())
	if !errors.Is(err, ErrTournamentFull) {
		t.Fatalf("expected ErrTournamentFull, got %v", err)
	}
}

func TestEnterTournamentGroupFullHint(t *testing.T) {
	env := newEntryEnv(t)
	user := env.addUser(10)
	limit := 1
	root := env.addTournament(func(tr *models.Tournament) {
		tr.IsRepeating = true
		tr.EndTime = nil
		tr.ParticipantLimit = &limit
		tr.ActiveGroupCount = 1
	})
	newest := env.addTournament(func(tr *models.Tournament) {
		tr.IsRepeating = true
		tr.EndTime = nil
		tr.ParticipantLimit = &limit
		tr.ParentTournamentID = &root.ID
		tr.GroupName = "A"
	})
	env.participations.add(&models.Participation{UserID: 42, TournamentID: root.ID, VideoSubmissionID: 1})

	_, err := env.svc.EnterTournament(context.Background(), user.ID, root.ID, validEntryInput())
	var groupFull *GroupFullError
	if !errors.As(err, &groupFull) {
		t.Fatalf("expected GroupFullError, got %v", err)
	}
	if groupFull.NewestGroupID != newest.ID {
		t.Errorf("hint points at tournament %d, want %d", groupFull.NewestGroupID, newest.ID)
	}
}

func TestEnterTournamentSuccess(t *testing.T) {
	env := newEntryEnv(t)
	user := env.addUser(10)
	tournament := env.addTournament(nil) // fee 5

	participation, err := env.svc.EnterTournament(context.Background(), user.ID, tournament.ID, validEntryInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if participation.ID == 0 {
		t.Fatal("participation was not persisted")
	}

	stored, _ := env.users.GetByID(context.Background(), user.ID)
	if stored.Tickets != 5 {
		t.Errorf("balance after entry: got %d, want 5", stored.Tickets)
	}

	txs, _ := env.transactions.ListByUser(context.Background(), user.ID)
	if len(txs) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(txs))
	}
	if txs[0].Type != models.TransactionUse || txs[0].Delta != -5 || txs[0].BalanceAfter != 5 {
		t.Errorf("ledger row mismatch: %+v", txs[0])
	}

	if _, err := env.videos.GetByID(context.Background(), participation.VideoSubmissionID); err != nil {
		t.Errorf("video submission was not persisted: %v", err)
	}
	if len(env.uploader.uploads) != 1 {
		t.Errorf("expected 1 upload, got %d", len(env.uploader.uploads))
	}
}

func TestEnterTournamentFreeEntrySkipsLedger(t *testing.T) {
	env := newEntryEnv(t)
	user := env.addUser(0)
	tournament := env.addTournament(func(tr *models.Tournament) { tr.EntryFee = 0 })

	if _, err := env.svc.EnterTournament(context.Background(), user.ID, tournament.ID, validEntryInput()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	txs, _ := env.transactions.ListByUser(context.Background(), user.ID)
	if len(txs) != 0 {
		t.Errorf("free entry must not produce ledger rows, got %d", len(txs))
	}
}

func TestEnterTournamentFillSpawnsOneGroup(t *testing.T) {
	env := newEntryEnv(t)
	user := env.addUser(10)
	limit := 2
	root := env.addTournament(func(tr *models.Tournament) {
		tr.IsRepeating = true
		tr.EndTime = nil
		tr.ParticipantLimit = &limit
	})
	// Видео первого участника заводится через репозиторий, чтобы его id не
	// пересёкся с id видео нового входа.
	seedVideo := &models.VideoSubmission{Title: "seed", UserID: 42, VideoKey: "seed"}
	_ = env.videos.Create(context.Background(), nil, seedVideo)
	env.participations.add(&models.Participation{UserID: 42, TournamentID: root.ID, VideoSubmissionID: seedVideo.ID})

	if _, err := env.svc.EnterTournament(context.Background(), user.ID, root.ID, validEntryInput()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	children, _ := env.tournaments.ListChildren(context.Background(), nil, root.ID)
	if len(children) != 1 {
		t.Fatalf("expected exactly 1 spawned group, got %d", len(children))
	}
	child := children[0]
	if child.GroupName != "A" {
		t.Errorf("first group name: got %q, want %q", child.GroupName, "A")
	}
	if !child.IsRepeating || child.ParentTournamentID == nil || *child.ParentTournamentID != root.ID {
		t.Errorf("spawned group is not a child of the root: %+v", child)
	}
	if child.EntryFee != root.EntryFee {
		t.Errorf("spawned group entry fee: got %d, want %d", child.EntryFee, root.EntryFee)
	}

	storedRoot, _ := env.tournaments.GetByID(context.Background(), root.ID)
	if storedRoot.ActiveGroupCount != 1 {
		t.Errorf("root active_group_count: got %d, want 1", storedRoot.ActiveGroupCount)
	}
}

func TestEnterTournamentFillOnChildSpawnsFromRoot(t *testing.T) {
	env := newEntryEnv(t)
	user := env.addUser(10)
	limit := 1
	root := env.addTournament(func(tr *models.Tournament) {
		tr.IsRepeating = true
		tr.EndTime = nil
		tr.ParticipantLimit = &limit
		tr.ActiveGroupCount = 1
	})
	child := env.addTournament(func(tr *models.Tournament) {
		tr.IsRepeating = true
		tr.EndTime = nil
		tr.ParticipantLimit = &limit
		tr.ParentTournamentID = &root.ID
		tr.GroupName = "A"
	})

	if _, err := env.svc.EnterTournament(context.Background(), user.ID, child.ID, validEntryInput()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	children, _ := env.tournaments.ListChildren(context.Background(), nil, root.ID)
	if len(children) != 2 {
		t.Fatalf("expected 2 groups after fill, got %d", len(children))
	}
	// Новейшая группа первой; имя продолжает последовательность.
	if children[0].GroupName != "B" {
		t.Errorf("new group name: got %q, want %q", children[0].GroupName, "B")
	}
}

// conflictOnCreateParticipationRepo эмулирует гонку одновременных входов:
// предварительная проверка чиста, а вставка бьётся о constraint.
type conflictOnCreateParticipationRepo struct {
	*fakeParticipationRepo
}

func (r *conflictOnCreateParticipationRepo) Create(ctx context.Context, exec repositories.SQLExecutor, p *models.Participation) error {
	return repositories.ErrParticipationConflict
}

func TestEnterTournamentCleansUploadsOnTxFailure(t *testing.T) {
	env := newEntryEnv(t)
	env.svc.participationRepo = &conflictOnCreateParticipationRepo{env.participations}
	user := env.addUser(10)
	tournament := env.addTournament(nil)

	_, err := env.svc.EnterTournament(context.Background(), user.ID, tournament.ID, validEntryInput())
	if !errors.Is(err, ErrAlreadyEntered) {
		t.Fatalf("expected ErrAlreadyEntered, got %v", err)
	}

	stored, _ := env.users.GetByID(context.Background(), user.ID)
	if stored.Tickets != 10 {
		t.Errorf("balance changed on rolled-back entry: got %d, want 10", stored.Tickets)
	}
	if len(env.uploader.uploads) != 1 || len(env.uploader.deletes) != 1 {
		t.Errorf("orphaned upload was not cleaned up: uploads=%d deletes=%d", len(env.uploader.uploads), len(env.uploader.deletes))
	}
	if len(env.uploader.uploads) == 1 && len(env.uploader.deletes) == 1 && env.uploader.uploads[0] != env.uploader.deletes[0] {
		t.Errorf("deleted key %q does not match uploaded key %q", env.uploader.deletes[0], env.uploader.uploads[0])
	}
}
