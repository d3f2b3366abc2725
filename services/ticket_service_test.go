package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Dosada05/video-tournament/models"
	"github.com/Dosada05/video-tournament/payments"
)

type stubProvider struct {
	failCheckout bool
	sessions     int
}

func (p *stubProvider) Name() string { return "test" }

func (p *stubProvider) CreateCheckout(ctx context.Context, params payments.CheckoutParams) (*payments.CheckoutSession, error) {
	if p.failCheckout {
		return nil, errors.New("provider unavailable")
	}
	p.sessions++
	return &payments.CheckoutSession{
		URL: "https://pay.test/session",
		Ref: "cs_test_ref",
	}, nil
}

func (p *stubProvider) ParseWebhook(body []byte, headers http.Header) (*payments.Event, error) {
	return nil, errors.New("not used in these tests")
}

type ticketEnv struct {
	svc          *TicketService
	users        *fakeUserRepo
	packages     *fakePackageRepo
	orders       *fakeOrderRepo
	transactions *fakeTransactionRepo
	provider     *stubProvider
}

func newTicketEnv(t *testing.T) *ticketEnv {
	t.Helper()
	env := &ticketEnv{
		users:        newFakeUserRepo(),
		packages:     newFakePackageRepo(),
		orders:       newFakeOrderRepo(),
		transactions: newFakeTransactionRepo(),
		provider:     &stubProvider{},
	}
	env.svc = NewTicketService(
		&fakeTxRunner{},
		env.users,
		env.packages,
		env.orders,
		env.transactions,
		env.provider,
		testLogger(),
	)
	return env
}

func (env *ticketEnv) addPackage(tickets, priceCents int, active bool) *models.TicketPackage {
	p := &models.TicketPackage{
		Name:            "Starter",
		NumberOfTickets: tickets,
		PriceCents:      priceCents,
		IsActive:        active,
	}
	_ = env.packages.Create(context.Background(), p)
	return p
}

func TestCreateCheckout(t *testing.T) {
	env := newTicketEnv(t)
	user := env.users.add(&models.User{Nickname: "buyer"})
	pkg := env.addPackage(10, 499, true)

	order, session, err := env.svc.CreateCheckout(context.Background(), user.ID, pkg.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != models.OrderPending {
		t.Errorf("order status: got %s, want pending", order.Status)
	}
	if session.URL == "" || session.Ref == "" {
		t.Errorf("incomplete checkout session: %+v", session)
	}

	stored, _ := env.orders.GetByID(context.Background(), order.ID)
	if stored.CheckoutRef == nil || *stored.CheckoutRef != session.Ref {
		t.Errorf("checkout ref not persisted on the order")
	}
}

func TestCreateCheckoutInactivePackage(t *testing.T) {
	env := newTicketEnv(t)
	user := env.users.add(&models.User{Nickname: "buyer"})
	pkg := env.addPackage(10, 499, false)

	if _, _, err := env.svc.CreateCheckout(context.Background(), user.ID, pkg.ID); !errors.Is(err, ErrPackageInactive) {
		t.Fatalf("expected ErrPackageInactive, got %v", err)
	}
}

func TestCreateCheckoutProviderFailureMarksOrderFailed(t *testing.T) {
	env := newTicketEnv(t)
	env.provider.failCheckout = true
	user := env.users.add(&models.User{Nickname: "buyer"})
	pkg := env.addPackage(10, 499, true)

	if _, _, err := env.svc.CreateCheckout(context.Background(), user.ID, pkg.ID); err == nil {
		t.Fatal("expected provider error")
	}

	orders, _ := env.orders.ListByUser(context.Background(), user.ID)
	if len(orders) != 1 || orders[0].Status != models.OrderFailed {
		t.Errorf("order not marked failed after provider rejection: %+v", orders)
	}
}

func paidEvent(ref string) *payments.Event {
	return &payments.Event{
		CheckoutRef: ref,
		PaymentRef:  "pi_123",
		AmountCents: 499,
		Status:      payments.StatusPaid,
	}
}

func TestApplyPaidEventCreditsTickets(t *testing.T) {
	env := newTicketEnv(t)
	user := env.users.add(&models.User{Nickname: "buyer", Tickets: 2})
	pkg := env.addPackage(10, 499, true)
	order, session, err := env.svc.CreateCheckout(context.Background(), user.ID, pkg.ID)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if err := env.svc.applyEvent(context.Background(), paidEvent(session.Ref)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := env.users.GetByID(context.Background(), user.ID)
	if stored.Tickets != 12 {
		t.Errorf("balance after purchase: got %d, want 12", stored.Tickets)
	}

	updated, _ := env.orders.GetByID(context.Background(), order.ID)
	if updated.Status != models.OrderCompleted {
		t.Errorf("order status: got %s, want completed", updated.Status)
	}
	if updated.PaymentRef == nil || *updated.PaymentRef != "pi_123" {
		t.Errorf("payment ref not stored: %+v", updated.PaymentRef)
	}

	txs, _ := env.transactions.ListByUser(context.Background(), user.ID)
	if len(txs) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(txs))
	}
	if txs[0].Type != models.TransactionPurchase || txs[0].Delta != 10 || txs[0].BalanceAfter != 12 {
		t.Errorf("ledger row mismatch: %+v", txs[0])
	}
	if txs[0].OrderID == nil || *txs[0].OrderID != order.ID {
		t.Errorf("ledger row not linked to the order")
	}
}

func TestApplyPaidEventIdempotentOnRedelivery(t *testing.T) {
	env := newTicketEnv(t)
	user := env.users.add(&models.User{Nickname: "buyer"})
	pkg := env.addPackage(10, 499, true)
	_, session, err := env.svc.CreateCheckout(context.Background(), user.ID, pkg.ID)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := env.svc.applyEvent(context.Background(), paidEvent(session.Ref)); err != nil {
			t.Fatalf("delivery %d failed: %v", i+1, err)
		}
	}

	stored, _ := env.users.GetByID(context.Background(), user.ID)
	if stored.Tickets != 10 {
		t.Errorf("redelivery double-credited: got %d tickets, want 10", stored.Tickets)
	}
	txs, _ := env.transactions.ListByUser(context.Background(), user.ID)
	if len(txs) != 1 {
		t.Errorf("redelivery produced extra ledger rows: got %d, want 1", len(txs))
	}
}

func TestApplyCancelledEvent(t *testing.T) {
	env := newTicketEnv(t)
	user := env.users.add(&models.User{Nickname: "buyer"})
	pkg := env.addPackage(10, 499, true)
	order, session, err := env.svc.CreateCheckout(context.Background(), user.ID, pkg.ID)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	event := &payments.Event{CheckoutRef: session.Ref, Status: payments.StatusCancelled}
	if err := env.svc.applyEvent(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := env.orders.GetByID(context.Background(), order.ID)
	if stored.Status != models.OrderCancelled {
		t.Errorf("order status: got %s, want cancelled", stored.Status)
	}

	// Отмена уже завершённого заказа — no-op, статус не откатывается.
	if err := env.svc.applyEvent(context.Background(), paidEvent(session.Ref)); !errors.Is(err, ErrOrderNotPending) {
		t.Fatalf("paid after cancelled: expected ErrOrderNotPending, got %v", err)
	}
}

func TestApplyEventUnknownRef(t *testing.T) {
	env := newTicketEnv(t)
	if err := env.svc.applyEvent(context.Background(), paidEvent("cs_missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReconcileBalanceMatchesLedger(t *testing.T) {
	env := newTicketEnv(t)
	user := env.users.add(&models.User{Nickname: "buyer"})
	pkg := env.addPackage(10, 499, true)
	_, session, err := env.svc.CreateCheckout(context.Background(), user.ID, pkg.ID)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if err := env.svc.applyEvent(context.Background(), paidEvent(session.Ref)); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	stored, ledger, err := env.svc.ReconcileBalance(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != ledger {
		t.Errorf("balance %d diverged from ledger sum %d", stored, ledger)
	}
}
