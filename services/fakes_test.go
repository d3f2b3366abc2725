package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/Dosada05/video-tournament/models"
	"github.com/Dosada05/video-tournament/repositories"
	"github.com/Dosada05/video-tournament/storage"
)

// In-memory реализации репозиториев для юнит-тестов сервисного слоя.
// Конфликты уникальности эмулируются так же, как их отдаёт postgres-слой.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTxRunner struct {
	calls int
}

func (r *fakeTxRunner) RunInTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	r.calls++
	return fn(nil)
}

type fakeUserRepo struct {
	users  map[int]*models.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]*models.User), nextID: 1}
}

func (r *fakeUserRepo) add(u *models.User) *models.User {
	if u.ID == 0 {
		u.ID = r.nextID
		r.nextID++
	} else if u.ID >= r.nextID {
		r.nextID = u.ID + 1
	}
	r.users[u.ID] = u
	return u
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
		if existing.Nickname == user.Nickname {
			return repositories.ErrUserNicknameConflict
		}
	}
	r.add(user)
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) AdjustTickets(ctx context.Context, exec repositories.SQLExecutor, userID, delta int) (int, error) {
	u, ok := r.users[userID]
	if !ok {
		return 0, repositories.ErrUserNotFound
	}
	if u.Tickets+delta < 0 {
		return 0, repositories.ErrInsufficientBalance
	}
	u.Tickets += delta
	return u.Tickets, nil
}

type fakeTournamentRepo struct {
	tournaments map[int]*models.Tournament
	nextID      int
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{tournaments: make(map[int]*models.Tournament), nextID: 1}
}

func (r *fakeTournamentRepo) add(t *models.Tournament) *models.Tournament {
	if t.ID == 0 {
		t.ID = r.nextID
		r.nextID++
	} else if t.ID >= r.nextID {
		r.nextID = t.ID + 1
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	r.tournaments[t.ID] = t
	return t
}

func (r *fakeTournamentRepo) Create(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	r.add(t)
	return nil
}

func (r *fakeTournamentRepo) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTournamentRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeTournamentRepo) List(ctx context.Context, limit, offset int) ([]*models.Tournament, error) {
	out := make([]*models.Tournament, 0, len(r.tournaments))
	for _, t := range r.tournaments {
		copied := *t
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) ListChildren(ctx context.Context, exec repositories.SQLExecutor, parentID int) ([]*models.Tournament, error) {
	var out []*models.Tournament
	for _, t := range r.tournaments {
		if t.ParentTournamentID != nil && *t.ParentTournamentID == parentID {
			copied := *t
			out = append(out, &copied)
		}
	}
	// Новейшие первыми, как в postgres-реализации.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) ListRepeatingRoots(ctx context.Context) ([]*models.Tournament, error) {
	var out []*models.Tournament
	for _, t := range r.tournaments {
		if t.IsRepeating && t.ParentTournamentID == nil {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeTournamentRepo) Update(ctx context.Context, t *models.Tournament) error {
	if _, ok := r.tournaments[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	copied := *t
	r.tournaments[t.ID] = &copied
	return nil
}

func (r *fakeTournamentRepo) SetEndTime(ctx context.Context, id int, endTime sql.NullTime) error {
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if endTime.Valid {
		et := endTime.Time
		t.EndTime = &et
	} else {
		t.EndTime = nil
	}
	return nil
}

func (r *fakeTournamentRepo) IncrementViews(ctx context.Context, id int) error {
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.ViewsCount++
	return nil
}

func (r *fakeTournamentRepo) IncrementActiveGroupCount(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.ActiveGroupCount++
	return nil
}

func (r *fakeTournamentRepo) SetActiveGroupCount(ctx context.Context, exec repositories.SQLExecutor, id, count int) error {
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.ActiveGroupCount = count
	return nil
}

type fakeParticipationRepo struct {
	participations map[int]*models.Participation
	nextID         int
}

func newFakeParticipationRepo() *fakeParticipationRepo {
	return &fakeParticipationRepo{participations: make(map[int]*models.Participation), nextID: 1}
}

func (r *fakeParticipationRepo) add(p *models.Participation) *models.Participation {
	if p.ID == 0 {
		p.ID = r.nextID
		r.nextID++
	} else if p.ID >= r.nextID {
		r.nextID = p.ID + 1
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	r.participations[p.ID] = p
	return p
}

func (r *fakeParticipationRepo) Create(ctx context.Context, exec repositories.SQLExecutor, p *models.Participation) error {
	for _, existing := range r.participations {
		if existing.UserID == p.UserID && existing.TournamentID == p.TournamentID {
			return repositories.ErrParticipationConflict
		}
		if existing.VideoSubmissionID == p.VideoSubmissionID {
			return repositories.ErrParticipationConflict
		}
	}
	r.add(p)
	return nil
}

func (r *fakeParticipationRepo) FindByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Participation, error) {
	p, ok := r.participations[id]
	if !ok {
		return nil, repositories.ErrParticipationNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeParticipationRepo) FindByUserAndTournament(ctx context.Context, exec repositories.SQLExecutor, userID, tournamentID int) (*models.Participation, error) {
	for _, p := range r.participations {
		if p.UserID == userID && p.TournamentID == tournamentID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrParticipationNotFound
}

func (r *fakeParticipationRepo) FindByVideoAndTournament(ctx context.Context, videoID, tournamentID int) (*models.Participation, error) {
	for _, p := range r.participations {
		if p.VideoSubmissionID == videoID && p.TournamentID == tournamentID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repositories.ErrParticipationNotFound
}

func (r *fakeParticipationRepo) CountByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	count := 0
	for _, p := range r.participations {
		if p.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

func (r *fakeParticipationRepo) ListByTournament(ctx context.Context, tournamentID int, orderByVotes bool) ([]*models.Participation, error) {
	var out []*models.Participation
	for _, p := range r.participations {
		if p.TournamentID == tournamentID {
			copied := *p
			out = append(out, &copied)
		}
	}
	if orderByVotes {
		sortByVotes(out)
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}
	return out, nil
}

func (r *fakeParticipationRepo) ListTopByVotes(ctx context.Context, exec repositories.SQLExecutor, tournamentID, limit int) ([]*models.Participation, error) {
	out, _ := r.ListByTournament(ctx, tournamentID, true)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortByVotes(out []*models.Participation) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].VotesReceived != out[j].VotesReceived {
			return out[i].VotesReceived > out[j].VotesReceived
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
}

func (r *fakeParticipationRepo) IncrementVotes(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	p, ok := r.participations[id]
	if !ok {
		return repositories.ErrParticipationNotFound
	}
	p.VotesReceived++
	return nil
}

func (r *fakeParticipationRepo) SetVotesReceived(ctx context.Context, exec repositories.SQLExecutor, id, votes int) error {
	p, ok := r.participations[id]
	if !ok {
		return repositories.ErrParticipationNotFound
	}
	p.VotesReceived = votes
	return nil
}

func (r *fakeParticipationRepo) MarkFinalists(ctx context.Context, exec repositories.SQLExecutor, ids []int) error {
	for _, p := range r.participations {
		p.IsFinalist = false
	}
	for _, id := range ids {
		if p, ok := r.participations[id]; ok {
			p.IsFinalist = true
		}
	}
	return nil
}

type fakeVideoRepo struct {
	videos map[int]*models.VideoSubmission
	nextID int
}

func newFakeVideoRepo() *fakeVideoRepo {
	return &fakeVideoRepo{videos: make(map[int]*models.VideoSubmission), nextID: 1}
}

func (r *fakeVideoRepo) Create(ctx context.Context, exec repositories.SQLExecutor, v *models.VideoSubmission) error {
	v.ID = r.nextID
	r.nextID++
	r.videos[v.ID] = v
	return nil
}

func (r *fakeVideoRepo) GetByID(ctx context.Context, id int) (*models.VideoSubmission, error) {
	v, ok := r.videos[id]
	if !ok {
		return nil, repositories.ErrVideoNotFound
	}
	copied := *v
	return &copied, nil
}

func (r *fakeVideoRepo) IncrementViews(ctx context.Context, id int) error {
	v, ok := r.videos[id]
	if !ok {
		return repositories.ErrVideoNotFound
	}
	v.ViewsCount++
	return nil
}

func (r *fakeVideoRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.videos[id]; !ok {
		return repositories.ErrVideoNotFound
	}
	delete(r.videos, id)
	return nil
}

type fakeVoteRepo struct {
	votes  map[int]*models.Vote
	nextID int
}

func newFakeVoteRepo() *fakeVoteRepo {
	return &fakeVoteRepo{votes: make(map[int]*models.Vote), nextID: 1}
}

func (r *fakeVoteRepo) Create(ctx context.Context, exec repositories.SQLExecutor, v *models.Vote) error {
	for _, existing := range r.votes {
		if existing.VoterID == v.VoterID && existing.TournamentID == v.TournamentID {
			return repositories.ErrVoteConflict
		}
	}
	v.ID = r.nextID
	r.nextID++
	v.CreatedAt = time.Now()
	r.votes[v.ID] = v
	return nil
}

func (r *fakeVoteRepo) FindByVoterAndTournament(ctx context.Context, exec repositories.SQLExecutor, voterID, tournamentID int) (*models.Vote, error) {
	for _, v := range r.votes {
		if v.VoterID == voterID && v.TournamentID == tournamentID {
			copied := *v
			return &copied, nil
		}
	}
	return nil, repositories.ErrVoteNotFound
}

func (r *fakeVoteRepo) CountByTournament(ctx context.Context, tournamentID int) (int, error) {
	count := 0
	for _, v := range r.votes {
		if v.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

func (r *fakeVoteRepo) CountByParticipation(ctx context.Context, exec repositories.SQLExecutor, participationID int) (int, error) {
	count := 0
	for _, v := range r.votes {
		if v.ParticipationID == participationID {
			count++
		}
	}
	return count, nil
}

type fakePackageRepo struct {
	packages map[int]*models.TicketPackage
	nextID   int
}

func newFakePackageRepo() *fakePackageRepo {
	return &fakePackageRepo{packages: make(map[int]*models.TicketPackage), nextID: 1}
}

func (r *fakePackageRepo) Create(ctx context.Context, p *models.TicketPackage) error {
	if p.ID == 0 {
		p.ID = r.nextID
		r.nextID++
	} else if p.ID >= r.nextID {
		r.nextID = p.ID + 1
	}
	r.packages[p.ID] = p
	return nil
}

func (r *fakePackageRepo) GetByID(ctx context.Context, id int) (*models.TicketPackage, error) {
	p, ok := r.packages[id]
	if !ok {
		return nil, repositories.ErrPackageNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakePackageRepo) ListActive(ctx context.Context) ([]*models.TicketPackage, error) {
	var out []*models.TicketPackage
	for _, p := range r.packages {
		if p.IsActive {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeOrderRepo struct {
	orders map[int]*models.Order
	nextID int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[int]*models.Order), nextID: 1}
}

func (r *fakeOrderRepo) Create(ctx context.Context, o *models.Order) error {
	o.ID = r.nextID
	r.nextID++
	o.CreatedAt = time.Now()
	r.orders[o.ID] = o
	return nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, id int) (*models.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, repositories.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (r *fakeOrderRepo) GetByCheckoutRefForUpdate(ctx context.Context, exec repositories.SQLExecutor, checkoutRef string) (*models.Order, error) {
	for _, o := range r.orders {
		if o.CheckoutRef != nil && *o.CheckoutRef == checkoutRef {
			copied := *o
			return &copied, nil
		}
	}
	return nil, repositories.ErrOrderNotFound
}

func (r *fakeOrderRepo) SetCheckoutRef(ctx context.Context, id int, checkoutRef string) error {
	o, ok := r.orders[id]
	if !ok {
		return repositories.ErrOrderNotFound
	}
	o.CheckoutRef = &checkoutRef
	return nil
}

func (r *fakeOrderRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.OrderStatus, paymentRef *string) error {
	o, ok := r.orders[id]
	if !ok {
		return repositories.ErrOrderNotFound
	}
	o.Status = status
	if paymentRef != nil {
		o.PaymentRef = paymentRef
	}
	return nil
}

func (r *fakeOrderRepo) ListByUser(ctx context.Context, userID int) ([]*models.Order, error) {
	var out []*models.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			copied := *o
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type fakeTransactionRepo struct {
	transactions []*models.TicketTransaction
	nextID       int
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{nextID: 1}
}

func (r *fakeTransactionRepo) Create(ctx context.Context, exec repositories.SQLExecutor, t *models.TicketTransaction) error {
	t.ID = r.nextID
	r.nextID++
	t.CreatedAt = time.Now()
	r.transactions = append(r.transactions, t)
	return nil
}

func (r *fakeTransactionRepo) ListByUser(ctx context.Context, userID int) ([]*models.TicketTransaction, error) {
	var out []*models.TicketTransaction
	for _, t := range r.transactions {
		if t.UserID == userID {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeTransactionRepo) SumDeltaByUser(ctx context.Context, userID int) (int, error) {
	sum := 0
	for _, t := range r.transactions {
		if t.UserID == userID {
			sum += t.Delta
		}
	}
	return sum, nil
}

type fakeReportRepo struct {
	reports map[int]*models.VideoReport
	nextID  int
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{reports: make(map[int]*models.VideoReport), nextID: 1}
}

func (r *fakeReportRepo) Create(ctx context.Context, report *models.VideoReport) error {
	for _, existing := range r.reports {
		if existing.ReporterID == report.ReporterID && existing.VideoID == report.VideoID {
			return repositories.ErrReportConflict
		}
	}
	report.ID = r.nextID
	r.nextID++
	r.reports[report.ID] = report
	return nil
}

func (r *fakeReportRepo) ListUnresolved(ctx context.Context) ([]*models.VideoReport, error) {
	var out []*models.VideoReport
	for _, rep := range r.reports {
		if !rep.Resolved {
			copied := *rep
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeReportRepo) Resolve(ctx context.Context, id int) error {
	rep, ok := r.reports[id]
	if !ok {
		return repositories.ErrReportNotFound
	}
	rep.Resolved = true
	return nil
}

type fakeUploader struct {
	uploads []string
	deletes []string
}

func (u *fakeUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	u.uploads = append(u.uploads, key)
	return &storage.UploadResult{Key: key}, nil
}

func (u *fakeUploader) Delete(ctx context.Context, key string) error {
	u.deletes = append(u.deletes, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}
