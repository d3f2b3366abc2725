package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/video-tournament/middleware"
	"github.com/Dosada05/video-tournament/models"
	"github.com/Dosada05/video-tournament/services"
)

type ModerationHandler struct {
	moderationService *services.ModerationService
}

func NewModerationHandler(moderationService *services.ModerationService) *ModerationHandler {
	return &ModerationHandler{moderationService: moderationService}
}

// ReportVideo — жалоба участника турнира на выставленное в нём видео.
func (h *ModerationHandler) ReportVideo(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	tournamentID, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		VideoID int                 `json:"video_id"`
		Reason  models.ReportReason `json:"reason"`
		Details string              `json:"details"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.VideoID <= 0 {
		badRequestResponse(w, r, errors.New("video_id is required"))
		return
	}

	report, err := h.moderationService.ReportVideo(r.Context(), userID, tournamentID, input.VideoID, input.Reason, input.Details)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"report": report}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ModerationHandler) ListUnresolved(w http.ResponseWriter, r *http.Request) {
	reports, err := h.moderationService.ListUnresolved(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"reports": reports}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ModerationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	reportID, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.moderationService.Resolve(r.Context(), reportID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "report resolved"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RegisterView инкрементит счётчик просмотров видео. Открытый эндпоинт.
func (h *ModerationHandler) RegisterView(w http.ResponseWriter, r *http.Request) {
	videoID, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.moderationService.RegisterVideoView(r.Context(), videoID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
