package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/video-tournament/services"
)

type SponsorHandler struct {
	sponsorService *services.SponsorService
}

func NewSponsorHandler(sponsorService *services.SponsorService) *SponsorHandler {
	return &SponsorHandler{sponsorService: sponsorService}
}

// Create — multipart/form-data, чтобы логотип грузился тем же запросом.
func (h *SponsorHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		badRequestResponse(w, r, errors.New("request must be multipart/form-data"))
		return
	}

	input := services.SponsorInput{
		Name:        r.FormValue("name"),
		Description: optionalFormValue(r, "description"),
		WebsiteURL:  optionalFormValue(r, "website_url"),
		IsActive:    r.FormValue("is_active") != "false",
	}

	if file, header, err := r.FormFile("logo"); err == nil {
		defer file.Close()
		input.Logo = file
		input.LogoContentType = header.Header.Get("Content-Type")
	}

	sponsor, err := h.sponsorService.Create(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"sponsor": sponsor}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SponsorHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	sponsors, err := h.sponsorService.ListActive(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"sponsors": sponsors}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SponsorHandler) ListByTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	sponsors, err := h.sponsorService.ListByTournament(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"sponsors": sponsors}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SponsorHandler) Attach(w http.ResponseWriter, r *http.Request) {
	sponsorID, err := urlParamInt(r, "sponsorID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	tournamentID, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.sponsorService.Attach(r.Context(), sponsorID, tournamentID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SponsorHandler) Detach(w http.ResponseWriter, r *http.Request) {
	sponsorID, err := urlParamInt(r, "sponsorID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	tournamentID, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.sponsorService.Detach(r.Context(), sponsorID, tournamentID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
