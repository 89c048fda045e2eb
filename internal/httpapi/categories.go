package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arawak/modelarium/internal/store"
)

type CategoryRequest struct {
	Title string `json:"title"`
	Order int    `json:"order"`
}

type SubCategoryRequest struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Order int    `json:"order"`
}

func (s *Server) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to list categories", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid category id", nil)
		return
	}
	category, err := s.store.GetCategory(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "category not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to load category", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (s *Server) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var payload CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	category, err := s.store.CreateCategory(r.Context(), payload.Title, payload.Order)
	if err != nil {
		if errors.Is(err, store.ErrEmptyName) {
			writeError(w, http.StatusBadRequest, "bad_request", "title is required", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to create category", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (s *Server) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid category id", nil)
		return
	}
	var payload CategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	category, err := s.store.UpdateCategory(r.Context(), id, payload.Title, payload.Order)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "category not found", nil)
		case errors.Is(err, store.ErrProtected):
			writeError(w, http.StatusBadRequest, "protected", "protected categories cannot be renamed", nil)
		case errors.Is(err, store.ErrEmptyName):
			writeError(w, http.StatusBadRequest, "bad_request", "title is required", nil)
		default:
			writeError(w, http.StatusInternalServerError, "internal", "failed to update category", map[string]any{"error": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (s *Server) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid category id", nil)
		return
	}
	if err := s.store.DeleteCategory(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "category not found", nil)
		case errors.Is(err, store.ErrProtected):
			writeError(w, http.StatusForbidden, "protected", "protected categories cannot be deleted", nil)
		default:
			writeError(w, http.StatusInternalServerError, "internal", "failed to delete category", map[string]any{"error": err.Error()})
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) CreateSubCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid category id", nil)
		return
	}
	var payload SubCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	sub, assigned, err := s.store.CreateSubCategory(r.Context(), id, payload.Name, payload.Icon, payload.Order)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "category not found", nil)
		case errors.Is(err, store.ErrEmptyName):
			writeError(w, http.StatusBadRequest, "bad_request", "name is required", nil)
		default:
			writeError(w, http.StatusInternalServerError, "internal", "failed to create subcategory", map[string]any{"error": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"subcategory":     sub,
		"assigned_assets": assigned,
	})
}

func (s *Server) UpdateSubCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid subcategory id", nil)
		return
	}
	var payload SubCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	sub, err := s.store.UpdateSubCategory(r.Context(), id, payload.Name, payload.Icon, payload.Order)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "subcategory not found", nil)
		case errors.Is(err, store.ErrProtected):
			writeError(w, http.StatusBadRequest, "protected", "protected subcategories cannot be renamed", nil)
		case errors.Is(err, store.ErrEmptyName):
			writeError(w, http.StatusBadRequest, "bad_request", "name is required", nil)
		default:
			writeError(w, http.StatusInternalServerError, "internal", "failed to update subcategory", map[string]any{"error": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) DeleteSubCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid subcategory id", nil)
		return
	}
	if err := s.store.DeleteSubCategory(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "subcategory not found", nil)
		case errors.Is(err, store.ErrProtected):
			writeError(w, http.StatusForbidden, "protected", "protected subcategories cannot be deleted", nil)
		default:
			writeError(w, http.StatusInternalServerError, "internal", "failed to delete subcategory", map[string]any{"error": err.Error()})
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkReplaceCategories swaps the whole user-defined taxonomy in one call.
// Protected categories survive, and keyword auto-assignment re-runs for every
// recreated subcategory.
func (s *Server) BulkReplaceCategories(w http.ResponseWriter, r *http.Request) {
	var payload []store.Category
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	if err := s.store.BulkReplaceCategories(r.Context(), payload); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to replace categories", map[string]any{"error": err.Error()})
		return
	}
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to list categories", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, categories)
}
