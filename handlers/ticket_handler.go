package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/Dosada05/video-tournament/middleware"
	"github.com/Dosada05/video-tournament/services"
)

type TicketHandler struct {
	ticketService *services.TicketService
}

func NewTicketHandler(ticketService *services.TicketService) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

func (h *TicketHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.ticketService.ListPackages(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"packages": packages}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TicketHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input struct {
		PackageID int `json:"package_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.PackageID <= 0 {
		badRequestResponse(w, r, errors.New("package_id is required"))
		return
	}

	order, session, err := h.ticketService.CreateCheckout(r.Context(), userID, input.PackageID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"order":        order,
		"checkout_url": session.URL,
	}
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Webhook принимает уведомления платёжного провайдера. Аутентификация —
// подпись тела, а не JWT: эндпоинт вызывает провайдер, не пользователь.
func (h *TicketHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		badRequestResponse(w, r, errors.New("failed to read webhook body"))
		return
	}

	if err := h.ticketService.HandleWebhook(r.Context(), body, r.Header); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *TicketHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	balance, err := h.ticketService.Balance(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tickets": balance}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TicketHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	history, err := h.ticketService.History(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"transactions": history}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TicketHandler) Orders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	orders, err := h.ticketService.Orders(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"orders": orders}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
