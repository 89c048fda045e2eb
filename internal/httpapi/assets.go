package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/arawak/modelarium/internal/media"
	"github.com/arawak/modelarium/internal/store"
)

type AssetCreateRequest struct {
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Path           string          `json:"path"`
	PreviewImage   string          `json:"preview_image"`
	Description    string          `json:"description"`
	TriggerWords   string          `json:"trigger_words"`
	PositivePrompt string          `json:"positive_prompt"`
	NegativePrompt string          `json:"negative_prompt"`
	Tags           string          `json:"tags"`
	ModelVersion   string          `json:"model_version"`
	UsedResources  string          `json:"used_resources"`
	Slug           string          `json:"slug"`
	Creator        string          `json:"creator"`
	CreatorURL     string          `json:"creator_url"`
	BaseModel      string          `json:"base_model"`
	PublishedAt    string          `json:"published_at"`
	NsfwLevel      string          `json:"nsfw_level"`
	DownloadURL    string          `json:"download_url"`
	IsFavorite     bool            `json:"is_favorite"`
	MediaFiles     []string        `json:"media_files"`
	CustomFields   map[string]any  `json:"custom_fields"`
	SubCategoryID  *int64          `json:"subcategory_id"`
	LinkedAssets   json.RawMessage `json:"linked_assets"`
}

// AssetUpdateRequest is a patch. Absent fields stay untouched; subcategory_id
// and linked_assets keep their raw form so an explicit null is distinguishable
// from absence.
type AssetUpdateRequest struct {
	Name           *string         `json:"name"`
	Type           *string         `json:"type"`
	Path           *string         `json:"path"`
	PreviewImage   *string         `json:"preview_image"`
	Description    *string         `json:"description"`
	TriggerWords   *string         `json:"trigger_words"`
	PositivePrompt *string         `json:"positive_prompt"`
	NegativePrompt *string         `json:"negative_prompt"`
	Tags           *string         `json:"tags"`
	ModelVersion   *string         `json:"model_version"`
	UsedResources  *string         `json:"used_resources"`
	Slug           *string         `json:"slug"`
	Creator        *string         `json:"creator"`
	CreatorURL     *string         `json:"creator_url"`
	BaseModel      *string         `json:"base_model"`
	PublishedAt    *string         `json:"published_at"`
	NsfwLevel      *string         `json:"nsfw_level"`
	DownloadURL    *string         `json:"download_url"`
	IsFavorite     *bool           `json:"is_favorite"`
	MediaFiles     *[]string       `json:"media_files"`
	CustomFields   *map[string]any `json:"custom_fields"`
	SubCategoryID  json.RawMessage `json:"subcategory_id"`
	LinkedAssets   json.RawMessage `json:"linked_assets"`
}

func (s *Server) ListAssets(w http.ResponseWriter, r *http.Request) {
	category, err := bindQueryString(r, "category", "")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid category parameter", nil)
		return
	}
	favorite, err := bindQueryBool(r, "favorite", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid favorite parameter", nil)
		return
	}
	assets, err := s.store.ListAssets(r.Context(), category, favorite)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to list assets", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (s *Server) SearchAssets(w http.ResponseWriter, r *http.Request) {
	query, err := bindQueryString(r, "q", "")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid q parameter", nil)
		return
	}
	category, err := bindQueryString(r, "category", "")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid category parameter", nil)
		return
	}
	assets, err := s.store.SearchAssets(r.Context(), query, category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "search failed", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (s *Server) Keywords(w http.ResponseWriter, r *http.Request) {
	query, err := bindQueryString(r, "q", "")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid q parameter", nil)
		return
	}
	category, err := bindQueryString(r, "category", "")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid category parameter", nil)
		return
	}
	keywords, err := s.store.Keywords(r.Context(), query, category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to compute keywords", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, keywords)
}

func (s *Server) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid asset id", nil)
		return
	}
	asset, err := s.store.GetAsset(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "asset not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to load asset", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *Server) GetAssetLinks(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid asset id", nil)
		return
	}
	linked, err := s.store.ResolveLinks(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "asset not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to resolve links", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, linked)
}

func (s *Server) CreateAsset(w http.ResponseWriter, r *http.Request) {
	var payload AssetCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "name is required", nil)
		return
	}

	asset, err := s.store.CreateAsset(r.Context(), store.AssetCreate{
		Name:           payload.Name,
		Type:           payload.Type,
		Path:           payload.Path,
		PreviewImage:   payload.PreviewImage,
		Description:    payload.Description,
		TriggerWords:   payload.TriggerWords,
		PositivePrompt: payload.PositivePrompt,
		NegativePrompt: payload.NegativePrompt,
		Tags:           payload.Tags,
		ModelVersion:   payload.ModelVersion,
		UsedResources:  payload.UsedResources,
		Slug:           payload.Slug,
		Creator:        payload.Creator,
		CreatorURL:     payload.CreatorURL,
		BaseModel:      payload.BaseModel,
		PublishedAt:    payload.PublishedAt,
		NsfwLevel:      payload.NsfwLevel,
		DownloadURL:    payload.DownloadURL,
		IsFavorite:     payload.IsFavorite,
		MediaFiles:     payload.MediaFiles,
		CustomFields:   payload.CustomFields,
		SubCategoryID:  payload.SubCategoryID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to create asset", map[string]any{"error": err.Error()})
		return
	}

	// Links go through the update path so both sides get wired.
	if links, present := decodeLinkedAssets(payload.LinkedAssets); present && len(links) > 0 {
		asset, err = s.store.UpdateAsset(r.Context(), asset.ID, store.AssetUpdate{LinkedAssets: &links})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal", "failed to link assets", map[string]any{"error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusCreated, asset)
}

func (s *Server) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid asset id", nil)
		return
	}
	var payload AssetUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}

	upd := store.AssetUpdate{
		Name:           payload.Name,
		Type:           payload.Type,
		Path:           payload.Path,
		PreviewImage:   payload.PreviewImage,
		Description:    payload.Description,
		TriggerWords:   payload.TriggerWords,
		PositivePrompt: payload.PositivePrompt,
		NegativePrompt: payload.NegativePrompt,
		Tags:           payload.Tags,
		ModelVersion:   payload.ModelVersion,
		UsedResources:  payload.UsedResources,
		Slug:           payload.Slug,
		Creator:        payload.Creator,
		CreatorURL:     payload.CreatorURL,
		BaseModel:      payload.BaseModel,
		PublishedAt:    payload.PublishedAt,
		NsfwLevel:      payload.NsfwLevel,
		DownloadURL:    payload.DownloadURL,
		IsFavorite:     payload.IsFavorite,
		MediaFiles:     payload.MediaFiles,
		CustomFields:   payload.CustomFields,
	}
	if len(payload.SubCategoryID) > 0 {
		upd.SubCategoryID = store.OptionalID{Set: true}
		if string(payload.SubCategoryID) != "null" {
			var sub int64
			if err := json.Unmarshal(payload.SubCategoryID, &sub); err != nil {
				writeError(w, http.StatusBadRequest, "bad_request", "invalid subcategory_id", nil)
				return
			}
			upd.SubCategoryID.ID = &sub
		}
	}
	if links, present := decodeLinkedAssets(payload.LinkedAssets); present {
		upd.LinkedAssets = &links
	}

	asset, err := s.store.UpdateAsset(r.Context(), id, upd)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "asset not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to update asset", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// decodeLinkedAssets normalizes the three accepted payload shapes (null, id
// array, object array) into an id list. Anything unrecognized yields an empty
// list rather than an error.
func decodeLinkedAssets(raw json.RawMessage) (links []int64, present bool) {
	if len(raw) == 0 {
		return nil, false
	}
	if string(raw) == "null" {
		return []int64{}, true
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return []int64{}, true
	}
	return store.NormalizeLinkedAssets(parsed), true
}

func (s *Server) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid asset id", nil)
		return
	}
	asset, err := s.store.ToggleFavorite(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "asset not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to toggle favorite", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *Server) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid asset id", nil)
		return
	}
	asset, err := s.store.DeleteAsset(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "asset not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to delete asset", map[string]any{"error": err.Error()})
		return
	}

	paths := append([]string{}, asset.MediaFiles...)
	if asset.PreviewImage != "" {
		paths = append(paths, asset.PreviewImage)
	}
	for _, remErr := range s.media.Remove(paths) {
		s.logger.Warn("failed to remove media file", "asset_id", id, "error", remErr)
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadAssetMedia attaches an uploaded image to an existing asset. The first
// upload also becomes the preview when none is set.
func (s *Server) UploadAssetMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid asset id", nil)
		return
	}
	asset, err := s.store.GetAsset(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "asset not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to load asset", map[string]any{"error": err.Error()})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to parse multipart", map[string]any{"error": err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "file is required", nil)
		return
	}
	defer file.Close()

	save, err := s.media.Save(r.Context(), file, asset.Type, header.Filename, s.cfg.MaxUploadBytes, s.cfg.MaxPixels)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, media.ErrTooLarge) || errors.Is(err, media.ErrInvalidImage) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "upload_failed", err.Error(), nil)
		return
	}

	files := append([]string{}, asset.MediaFiles...)
	files = append(files, save.RelPath)
	upd := store.AssetUpdate{MediaFiles: &files}
	if asset.PreviewImage == "" {
		preview := save.RelPath
		upd.PreviewImage = &preview
	}
	updated, err := s.store.UpdateAsset(r.Context(), id, upd)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to attach media", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, updated)
}

func (s *Server) ListAssetTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.store.AssetTypes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to list asset types", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (s *Server) AddAssetType(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "name is required", nil)
		return
	}
	types, err := s.store.AddAssetType(r.Context(), payload.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to add asset type", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, types)
}
