package payments

import (
	"context"
	"errors"
	"net/http"
)

var ErrInvalidSignature = errors.New("payment webhook signature is invalid")

// Статусы событий, которые возвращает ParseWebhook.
const (
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

type CheckoutParams struct {
	OrderID     int
	UserID      int
	UserEmail   string
	PackageName string
	AmountCents int
	ReturnURL   string
}

type CheckoutSession struct {
	// URL, на который фронтенд отправляет пользователя платить.
	URL string
	// Ref — идентификатор сессии у провайдера; по нему заказ находится
	// при доставке вебхука.
	Ref string
}

// Event — проверенное уведомление об оплате. К моменту возврата из
// ParseWebhook подпись уже сверена: ядро принимает событие как достоверное.
type Event struct {
	CheckoutRef string
	PaymentRef  string
	AmountCents int
	Status      string
}

// Provider абстрагирует платёжный процессор. Ядро не ретраит его ошибки:
// повторная доставка — ответственность самого процессора.
type Provider interface {
	Name() string

	CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)

	// ParseWebhook валидирует подпись и разбирает тело вебхука.
	// Невалидная подпись — ErrInvalidSignature, до каких-либо мутаций состояния.
	ParseWebhook(body []byte, headers http.Header) (*Event, error)
}
