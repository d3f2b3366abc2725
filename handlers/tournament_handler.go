package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Dosada05/video-tournament/middleware"
	"github.com/Dosada05/video-tournament/services"
)

const maxUploadSize = 256 << 20 // 256MB на multipart-запрос с видео

type TournamentHandler struct {
	tournamentService *services.TournamentService
	entryService      *services.EntryService
}

func NewTournamentHandler(tournamentService *services.TournamentService, entryService *services.EntryService) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: tournamentService,
		entryService:      entryService,
	}
}

// Create создаёт турнир. Принимает multipart/form-data, чтобы картинка
// турнира грузилась тем же запросом.
func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequestResponse(w, r, errors.New("request must be multipart/form-data"))
		return
	}

	input := services.CreateTournamentInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Rules:       optionalFormValue(r, "rules"),
		Prizes:      optionalFormValue(r, "prizes"),
		Featured:    r.FormValue("featured") == "true",
		IsShowcase:  r.FormValue("is_showcase") == "true",
		IsRepeating: r.FormValue("is_repeating") == "true",
	}

	var err error
	if input.CategoryID, err = strconv.Atoi(r.FormValue("category_id")); err != nil {
		badRequestResponse(w, r, errors.New("category_id is required and must be an integer"))
		return
	}
	if input.StartTime, err = time.Parse(time.RFC3339, r.FormValue("start_time")); err != nil {
		badRequestResponse(w, r, errors.New("start_time must be a valid RFC3339 timestamp"))
		return
	}
	if raw := r.FormValue("end_time"); raw != "" {
		endTime, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequestResponse(w, r, errors.New("end_time must be a valid RFC3339 timestamp"))
			return
		}
		input.EndTime = &endTime
	}
	if raw := r.FormValue("participant_limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			badRequestResponse(w, r, errors.New("participant_limit must be an integer"))
			return
		}
		input.ParticipantLimit = &limit
	}
	if raw := r.FormValue("finalists_count"); raw != "" {
		if input.FinalistsCount, err = strconv.Atoi(raw); err != nil {
			badRequestResponse(w, r, errors.New("finalists_count must be an integer"))
			return
		}
	}
	if raw := r.FormValue("entry_fee"); raw != "" {
		if input.EntryFee, err = strconv.Atoi(raw); err != nil {
			badRequestResponse(w, r, errors.New("entry_fee must be an integer"))
			return
		}
	}

	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		input.Image = file
		input.ImageContentType = header.Header.Get("Content-Type")
	}

	tournament, err := h.tournamentService.Create(r.Context(), userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	viewerID, _ := middleware.UserIDFromContext(r.Context())

	tournament, err := h.tournamentService.GetByID(r.Context(), id, viewerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	tournaments, err := h.tournamentService.List(r.Context(), limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	groups, err := h.tournamentService.ListGroups(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"groups": groups}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.UpdateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.Update(r.Context(), id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.tournamentService.Close(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "tournament closed"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) SpawnGroup(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	group, err := h.tournamentService.SpawnGroup(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"group": group}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Standings(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	standings, err := h.tournamentService.Standings(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Participants(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	participants, err := h.tournamentService.Participants(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"participants": participants}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) SelectFinalists(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	finalists, err := h.tournamentService.SelectFinalists(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"finalists": finalists}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) ReconcileCounters(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.tournamentService.ReconcileCounters(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "counters reconciled"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ReconcileAllRoots — плановая сверка по всем корневым повторяющимся турнирам.
func (h *TournamentHandler) ReconcileAllRoots(w http.ResponseWriter, r *http.Request) {
	count, err := h.tournamentService.ReconcileAllRoots(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"reconciled_roots": count}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Enter — вход в турнир с видеозаявкой (multipart/form-data: title,
// description, video, cover, duration_seconds).
func (h *TournamentHandler) Enter(w http.ResponseWriter, r *http.Request) {
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

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequestResponse(w, r, errors.New("request must be multipart/form-data with a video file"))
		return
	}

	input := services.EnterTournamentInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}

	videoFile, videoHeader, err := r.FormFile("video")
	if err != nil {
		badRequestResponse(w, r, errors.New("video file is required"))
		return
	}
	defer videoFile.Close()
	input.Video = videoFile
	input.VideoContentType = videoHeader.Header.Get("Content-Type")

	if coverFile, coverHeader, err := r.FormFile("cover"); err == nil {
		defer coverFile.Close()
		input.Cover = coverFile
		input.CoverContentType = coverHeader.Header.Get("Content-Type")
	}

	if raw := r.FormValue("duration_seconds"); raw != "" {
		seconds, err := strconv.ParseFloat(raw, 64)
		if err != nil || seconds < 0 {
			badRequestResponse(w, r, errors.New("duration_seconds must be a non-negative number"))
			return
		}
		d := time.Duration(seconds * float64(time.Second))
		input.Duration = &d
	}

	participation, err := h.entryService.EnterTournament(r.Context(), userID, tournamentID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"participation": participation}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func optionalFormValue(r *http.Request, name string) *string {
	if v := r.FormValue(name); v != "" {
		return &v
	}
	return nil
}
