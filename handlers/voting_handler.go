package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/video-tournament/middleware"
	"github.com/Dosada05/video-tournament/services"
)

type VotingHandler struct {
	votingService *services.VotingService
}

func NewVotingHandler(votingService *services.VotingService) *VotingHandler {
	return &VotingHandler{votingService: votingService}
}

func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
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
		ParticipationID int `json:"participation_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.ParticipationID <= 0 {
		badRequestResponse(w, r, errors.New("participation_id is required"))
		return
	}

	vote, err := h.votingService.CastVote(r.Context(), userID, tournamentID, input.ParticipationID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"vote": vote}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *VotingHandler) VoteStatus(w http.ResponseWriter, r *http.Request) {
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

	status, err := h.votingService.VoteStatus(r.Context(), userID, tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"vote_status": status}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
