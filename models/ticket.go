package models

import "time"

// TicketPackage — позиция каталога пакетов билетов. После покупки
// пакет считается неизменяемым.
type TicketPackage struct {
	ID              int       `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	NumberOfTickets int       `json:"number_of_tickets" db:"number_of_tickets"`
	PriceCents      int       `json:"price_cents" db:"price_cents"`
	Description     *string   `json:"description,omitempty" db:"description"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// OrderStatus соответствует ENUM order_status в БД.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

// Terminal сообщает, является ли статус заказа финальным.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderFailed || s == OrderCancelled
}

// Order — заказ на покупку пакета билетов. Создаётся pending при старте
// checkout-а и переходит в completed не более одного раза: повторная доставка
// подтверждения оплаты обязана быть no-op.
type Order struct {
	ID          int         `json:"id" db:"id"`
	UserID      int         `json:"user_id" db:"user_id"`
	PackageID   int         `json:"package_id" db:"package_id"`
	Status      OrderStatus `json:"status" db:"status"`
	CheckoutRef *string     `json:"-" db:"checkout_ref"`
	PaymentRef  *string     `json:"-" db:"payment_ref"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// TransactionType соответствует ENUM ticket_transaction_type в БД.
type TransactionType string

const (
	TransactionPurchase TransactionType = "purchase"
	TransactionUse      TransactionType = "use"
	TransactionRefund   TransactionType = "refund"
	TransactionBonus    TransactionType = "bonus"
)

// TicketTransaction — append-only строка леджера билетов. Никогда не
// обновляется и не удаляется. Инвариант: balance_after = предыдущий
// balance_after + delta и совпадает с users.tickets в точке коммита.
type TicketTransaction struct {
	ID           int             `json:"id" db:"id"`
	UserID       int             `json:"user_id" db:"user_id"`
	OrderID      *int            `json:"order_id,omitempty" db:"order_id"`
	Type         TransactionType `json:"type" db:"type"`
	Delta        int             `json:"delta" db:"delta"`
	BalanceAfter int             `json:"balance_after" db:"balance_after"`
	Notes        string          `json:"notes,omitempty" db:"notes"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
