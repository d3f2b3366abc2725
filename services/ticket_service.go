package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Dosada05/video-tournament/models"
	"github.com/Dosada05/video-tournament/payments"
	"github.com/Dosada05/video-tournament/repositories"
)

// TicketService — покупка билетов и леджер: каталог пакетов, checkout у
// платёжного провайдера, начисление по вебхуку и история транзакций.
type TicketService struct {
	txRunner        repositories.TxRunner
	userRepo        repositories.UserRepository
	packageRepo     repositories.TicketPackageRepository
	orderRepo       repositories.OrderRepository
	transactionRepo repositories.TicketTransactionRepository
	provider        payments.Provider
	logger          *slog.Logger
}

func NewTicketService(
	txRunner repositories.TxRunner,
	userRepo repositories.UserRepository,
	packageRepo repositories.TicketPackageRepository,
	orderRepo repositories.OrderRepository,
	transactionRepo repositories.TicketTransactionRepository,
	provider payments.Provider,
	logger *slog.Logger,
) *TicketService {
	return &TicketService{
		txRunner:        txRunner,
		userRepo:        userRepo,
		packageRepo:     packageRepo,
		orderRepo:       orderRepo,
		transactionRepo: transactionRepo,
		provider:        provider,
		logger:          logger,
	}
}

func (s *TicketService) ListPackages(ctx context.Context) ([]*models.TicketPackage, error) {
	return s.packageRepo.ListActive(ctx)
}

// CreateCheckout создаёт pending-заказ и открывает сессию оплаты у провайдера.
// Если провайдер отказал, заказ помечается failed, чтобы не висеть вечно.
func (s *TicketService) CreateCheckout(ctx context.Context, userID, packageID int) (*models.Order, *payments.CheckoutSession, error) {
	pkg, err := s.packageRepo.GetByID(ctx, packageID)
	if err != nil {
		if errors.Is(err, repositories.ErrPackageNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to load ticket package: %w", err)
	}
	if !pkg.IsActive {
		return nil, nil, ErrPackageInactive
	}

	order := &models.Order{
		UserID:    userID,
		PackageID: packageID,
		Status:    models.OrderPending,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, nil, fmt.Errorf("failed to create order: %w", err)
	}

	session, err := s.provider.CreateCheckout(ctx, payments.CheckoutParams{
		OrderID:     order.ID,
		UserID:      userID,
		PackageName: pkg.Name,
		AmountCents: pkg.PriceCents,
	})
	if err != nil {
		if markErr := s.orderRepo.UpdateStatus(ctx, nil, order.ID, models.OrderFailed, nil); markErr != nil {
			s.logger.ErrorContext(ctx, "failed to mark order failed", slog.Int("order_id", order.ID), slog.Any("error", markErr))
		}
		return nil, nil, fmt.Errorf("payment provider rejected checkout: %w", err)
	}

	if err := s.orderRepo.SetCheckoutRef(ctx, order.ID, session.Ref); err != nil {
		return nil, nil, fmt.Errorf("failed to store checkout ref: %w", err)
	}
	order.CheckoutRef = &session.Ref

	s.logger.InfoContext(ctx, "checkout session created",
		slog.Int("order_id", order.ID),
		slog.Int("user_id", userID),
		slog.String("provider", s.provider.Name()),
	)
	return order, session, nil
}

// HandleWebhook проверяет подпись и применяет событие провайдера.
func (s *TicketService) HandleWebhook(ctx context.Context, body []byte, headers http.Header) error {
	event, err := s.provider.ParseWebhook(body, headers)
	if err != nil {
		return err
	}
	return s.applyEvent(ctx, event)
}

// applyEvent применяет событие оплаты. Идемпотентность: заказ блокируется
// FOR UPDATE, повторная доставка paid для completed-заказа — no-op без
// второго начисления. Начисление билетов, смена статуса и строка леджера
// коммитятся одной транзакцией.
func (s *TicketService) applyEvent(ctx context.Context, event *payments.Event) error {
	return s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		order, err := s.orderRepo.GetByCheckoutRefForUpdate(ctx, exec, event.CheckoutRef)
		if err != nil {
			if errors.Is(err, repositories.ErrOrderNotFound) {
				return ErrNotFound
			}
			return err
		}

		switch event.Status {
		case payments.StatusPaid:
			if order.Status == models.OrderCompleted {
				s.logger.InfoContext(ctx, "duplicate payment webhook ignored", slog.Int("order_id", order.ID))
				return nil
			}
			if order.Status != models.OrderPending {
				return ErrOrderNotPending
			}
			return s.fulfillLocked(ctx, exec, order, event)

		case payments.StatusCancelled:
			if order.Status.Terminal() {
				return nil
			}
			return s.orderRepo.UpdateStatus(ctx, exec, order.ID, models.OrderCancelled, nil)

		default:
			return fmt.Errorf("unsupported payment event status %q", event.Status)
		}
	})
}

func (s *TicketService) fulfillLocked(ctx context.Context, exec repositories.SQLExecutor, order *models.Order, event *payments.Event) error {
	pkg, err := s.packageRepo.GetByID(ctx, order.PackageID)
	if err != nil {
		return fmt.Errorf("failed to load package for order %d: %w", order.ID, err)
	}

	var paymentRef *string
	if event.PaymentRef != "" {
		paymentRef = &event.PaymentRef
	}
	if err := s.orderRepo.UpdateStatus(ctx, exec, order.ID, models.OrderCompleted, paymentRef); err != nil {
		return err
	}

	balance, err := s.userRepo.AdjustTickets(ctx, exec, order.UserID, pkg.NumberOfTickets)
	if err != nil {
		return fmt.Errorf("failed to credit tickets for order %d: %w", order.ID, err)
	}

	purchase := &models.TicketTransaction{
		UserID:       order.UserID,
		OrderID:      &order.ID,
		Type:         models.TransactionPurchase,
		Delta:        pkg.NumberOfTickets,
		BalanceAfter: balance,
		Notes:        fmt.Sprintf("Purchase of package %q", pkg.Name),
	}
	if err := s.transactionRepo.Create(ctx, exec, purchase); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "order fulfilled",
		slog.Int("order_id", order.ID),
		slog.Int("user_id", order.UserID),
		slog.Int("tickets", pkg.NumberOfTickets),
		slog.Int("balance_after", balance),
	)
	return nil
}

// Balance возвращает текущий остаток билетов пользователя.
func (s *TicketService) Balance(ctx context.Context, userID int) (int, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return user.Tickets, nil
}

func (s *TicketService) History(ctx context.Context, userID int) ([]*models.TicketTransaction, error) {
	return s.transactionRepo.ListByUser(ctx, userID)
}

func (s *TicketService) Orders(ctx context.Context, userID int) ([]*models.Order, error) {
	return s.orderRepo.ListByUser(ctx, userID)
}

// ReconcileBalance сверяет users.tickets с суммой дельт леджера. Возвращает
// (stored, ledgerSum, error); расхождение логируется, но не чинится — леджер
// первичен, и ремонт остатка решает оператор.
func (s *TicketService) ReconcileBalance(ctx context.Context, userID int) (int, int, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, err
	}
	sum, err := s.transactionRepo.SumDeltaByUser(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	if user.Tickets != sum {
		s.logger.WarnContext(ctx, "ticket balance drift detected",
			slog.Int("user_id", userID),
			slog.Int("stored", user.Tickets),
			slog.Int("ledger_sum", sum),
		)
	}
	return user.Tickets, sum, nil
}
