// Package stub реализует платёжного провайдера для локальной разработки и
// стейджинга:
//   - CreateCheckout генерит ссылку /pay/stub?ref=...
//   - вебхук приходит POST-ом с подписью X-Signature (HMAC SHA-256 от тела)
package stub

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Dosada05/video-tournament/payments"
	"github.com/google/uuid"
)

type Provider struct {
	secret  string
	baseURL string
}

func New(secret, baseURL string) *Provider {
	return &Provider{secret: secret, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *Provider) Name() string { return "stub" }

func (p *Provider) CreateCheckout(ctx context.Context, params payments.CheckoutParams) (*payments.CheckoutSession, error) {
	ref := fmt.Sprintf("cs_%d_%s", params.OrderID, uuid.NewString())

	url := "/pay/stub?ref=" + ref
	if p.baseURL != "" {
		url = p.baseURL + url
	}
	return &payments.CheckoutSession{URL: url, Ref: ref}, nil
}

type webhookPayload struct {
	CheckoutRef string `json:"checkout_ref"`
	PaymentRef  string `json:"payment_ref"`
	AmountCents int    `json:"amount_cents"`
	Status      string `json:"status"` // paid/cancelled
}

func (p *Provider) ParseWebhook(body []byte, headers http.Header) (*payments.Event, error) {
	sig := headers.Get("X-Signature")
	if sig == "" || !hmac.Equal([]byte(sig), []byte(p.sign(body))) {
		return nil, payments.ErrInvalidSignature
	}

	var pl webhookPayload
	if err := json.Unmarshal(body, &pl); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}
	if pl.CheckoutRef == "" {
		return nil, fmt.Errorf("webhook payload is missing checkout_ref")
	}
	if pl.Status != payments.StatusPaid && pl.Status != payments.StatusCancelled {
		return nil, fmt.Errorf("unknown webhook status %q", pl.Status)
	}

	return &payments.Event{
		CheckoutRef: pl.CheckoutRef,
		PaymentRef:  pl.PaymentRef,
		AmountCents: pl.AmountCents,
		Status:      pl.Status,
	}, nil
}

func (p *Provider) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(p.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
