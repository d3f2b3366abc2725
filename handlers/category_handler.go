package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/video-tournament/services"
)

type CategoryHandler struct {
	categoryService *services.CategoryService
}

func NewCategoryHandler(categoryService *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

type categoryInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input categoryInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Name == "" {
		badRequestResponse(w, r, errors.New("name is required"))
		return
	}

	category, err := h.categoryService.Create(r.Context(), input.Name, input.Description)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"category": category}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryService.List(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"categories": categories}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	category, err := h.categoryService.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"category": category}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input categoryInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	category, err := h.categoryService.Update(r.Context(), id, input.Name, input.Description)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"category": category}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.categoryService.Delete(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
