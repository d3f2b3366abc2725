package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/video-tournament/models"
)

var (
	ErrPackageNotFound = errors.New("ticket package not found")
	ErrOrderNotFound   = errors.New("order not found")
)

type TicketPackageRepository interface {
	GetByID(ctx context.Context, id int) (*models.TicketPackage, error)
	ListActive(ctx context.Context) ([]*models.TicketPackage, error)
	Create(ctx context.Context, p *models.TicketPackage) error
}

type OrderRepository interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id int) (*models.Order, error)
	// GetByCheckoutRefForUpdate читает заказ по ссылке checkout-сессии под
	// блокировкой строки. Проверка "уже completed" и начисление билетов
	// происходят под этой блокировкой, поэтому две одновременные доставки
	// одного подтверждения не могут обе увидеть pending.
	GetByCheckoutRefForUpdate(ctx context.Context, exec SQLExecutor, checkoutRef string) (*models.Order, error)
	SetCheckoutRef(ctx context.Context, id int, checkoutRef string) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.OrderStatus, paymentRef *string) error
	ListByUser(ctx context.Context, userID int) ([]*models.Order, error)
}

type TicketTransactionRepository interface {
	// Create добавляет строку в append-only леджер. Обновлений и удалений
	// у леджера нет.
	Create(ctx context.Context, exec SQLExecutor, t *models.TicketTransaction) error
	ListByUser(ctx context.Context, userID int) ([]*models.TicketTransaction, error)
	SumDeltaByUser(ctx context.Context, userID int) (int, error)
}

type postgresTicketPackageRepository struct {
	db *sql.DB
}

func NewPostgresTicketPackageRepository(db *sql.DB) TicketPackageRepository {
	return &postgresTicketPackageRepository{db: db}
}

func (r *postgresTicketPackageRepository) GetByID(ctx context.Context, id int) (*models.TicketPackage, error) {
	query := `SELECT id, name, number_of_tickets, price_cents, description, is_active, created_at FROM ticket_packages WHERE id = $1`
	p := &models.TicketPackage{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.NumberOfTickets, &p.PriceCents, &p.Description, &p.IsActive, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("failed to find ticket package: %w", err)
	}
	return p, nil
}

func (r *postgresTicketPackageRepository) ListActive(ctx context.Context) ([]*models.TicketPackage, error) {
	query := `SELECT id, name, number_of_tickets, price_cents, description, is_active, created_at FROM ticket_packages WHERE is_active = TRUE ORDER BY price_cents ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket packages: %w", err)
	}
	defer rows.Close()

	packages := make([]*models.TicketPackage, 0)
	for rows.Next() {
		p := &models.TicketPackage{}
		if err := rows.Scan(&p.ID, &p.Name, &p.NumberOfTickets, &p.PriceCents, &p.Description, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket package row: %w", err)
		}
		packages = append(packages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticket package rows: %w", err)
	}
	return packages, nil
}

func (r *postgresTicketPackageRepository) Create(ctx context.Context, p *models.TicketPackage) error {
	query := `
		INSERT INTO ticket_packages (name, number_of_tickets, price_cents, description, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, p.Name, p.NumberOfTickets, p.PriceCents, p.Description, p.IsActive).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ticket package: %w", err)
	}
	return nil
}

type postgresOrderRepository struct {
	db *sql.DB
}

func NewPostgresOrderRepository(db *sql.DB) OrderRepository {
	return &postgresOrderRepository{db: db}
}

func (r *postgresOrderRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const orderColumns = `id, user_id, package_id, status, checkout_ref, payment_ref, created_at, updated_at`

func (r *postgresOrderRepository) scanOrder(rowScanner interface {
	Scan(dest ...interface{}) error
}, o *models.Order) error {
	return rowScanner.Scan(
		&o.ID,
		&o.UserID,
		&o.PackageID,
		&o.Status,
		&o.CheckoutRef,
		&o.PaymentRef,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
}

func (r *postgresOrderRepository) Create(ctx context.Context, o *models.Order) error {
	query := `
		INSERT INTO orders (user_id, package_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, o.UserID, o.PackageID, o.Status).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *postgresOrderRepository) GetByID(ctx context.Context, id int) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o := &models.Order{}
	if err := r.scanOrder(r.db.QueryRowContext(ctx, query, id), o); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return o, nil
}

func (r *postgresOrderRepository) GetByCheckoutRefForUpdate(ctx context.Context, exec SQLExecutor, checkoutRef string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE checkout_ref = $1 FOR UPDATE`
	o := &models.Order{}
	if err := r.scanOrder(r.getExecutor(exec).QueryRowContext(ctx, query, checkoutRef), o); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by checkout ref: %w", err)
	}
	return o, nil
}

func (r *postgresOrderRepository) SetCheckoutRef(ctx context.Context, id int, checkoutRef string) error {
	query := `UPDATE orders SET checkout_ref = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, checkoutRef, id)
	if err != nil {
		return fmt.Errorf("failed to set order checkout ref: %w", err)
	}
	return checkAffectedRows(result, ErrOrderNotFound)
}

func (r *postgresOrderRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.OrderStatus, paymentRef *string) error {
	query := `UPDATE orders SET status = $1, payment_ref = COALESCE($2, payment_ref), updated_at = NOW() WHERE id = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, paymentRef, id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return checkAffectedRows(result, ErrOrderNotFound)
}

func (r *postgresOrderRepository) ListByUser(ctx context.Context, userID int) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		o := &models.Order{}
		if err := r.scanOrder(rows, o); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}
	return orders, nil
}

type postgresTicketTransactionRepository struct {
	db *sql.DB
}

func NewPostgresTicketTransactionRepository(db *sql.DB) TicketTransactionRepository {
	return &postgresTicketTransactionRepository{db: db}
}

func (r *postgresTicketTransactionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTicketTransactionRepository) Create(ctx context.Context, exec SQLExecutor, t *models.TicketTransaction) error {
	query := `
		INSERT INTO ticket_transactions (user_id, order_id, type, delta, balance_after, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		t.UserID,
		t.OrderID,
		t.Type,
		t.Delta,
		t.BalanceAfter,
		t.Notes,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ticket transaction: %w", err)
	}
	return nil
}

func (r *postgresTicketTransactionRepository) ListByUser(ctx context.Context, userID int) ([]*models.TicketTransaction, error) {
	query := `
		SELECT id, user_id, order_id, type, delta, balance_after, notes, created_at
		FROM ticket_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]*models.TicketTransaction, 0)
	for rows.Next() {
		t := &models.TicketTransaction{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.OrderID, &t.Type, &t.Delta, &t.BalanceAfter, &t.Notes, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket transaction row: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticket transaction rows: %w", err)
	}
	return transactions, nil
}

func (r *postgresTicketTransactionRepository) SumDeltaByUser(ctx context.Context, userID int) (int, error) {
	var sum int
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(delta), 0) FROM ticket_transactions WHERE user_id = $1`, userID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ticket transaction deltas: %w", err)
	}
	return sum, nil
}
