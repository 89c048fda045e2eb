package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/arawak/modelarium/internal/civitai"
	"github.com/arawak/modelarium/internal/metadata"
	"github.com/arawak/modelarium/internal/store"
)

var modelURLPattern = regexp.MustCompile(`civitai\.com/models/(\d+)`)
var imageURLPattern = regexp.MustCompile(`civitai\.com/images/(\d+)`)

// maxPreviewDownloads caps how many preview files one model import pulls.
const maxPreviewDownloads = 4

type civitaiImportRequest struct {
	CivitaiURL string `json:"civitai_url"`
	APIKey     string `json:"api_key"`
}

// ImportFromCivitai fetches a model from the civitai API and stores it as an
// asset, downloading up to maxPreviewDownloads preview files.
func (s *Server) ImportFromCivitai(w http.ResponseWriter, r *http.Request) {
	var payload civitaiImportRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	ref := modelRef(payload.CivitaiURL)
	if ref == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "civitai_url must be a model URL, id, or slug", nil)
		return
	}

	client := s.civitai.WithKey(payload.APIKey)
	model, err := client.Model(r.Context(), ref)
	if err != nil {
		s.writeCivitaiError(w, err)
		return
	}

	create := s.assetFromModel(model)
	if len(model.ModelVersions) > 0 {
		version := model.ModelVersions[0]
		for i, img := range version.Images {
			if i >= maxPreviewDownloads {
				break
			}
			data, err := client.Download(r.Context(), img.URL)
			if err != nil {
				s.logger.Warn("civitai preview download failed", "url", img.URL, "error", err)
				continue
			}
			rel, err := s.media.SaveBytes(create.Type, fileNameFromURL(img.URL), data)
			if err != nil {
				s.logger.Warn("failed to store civitai preview", "url", img.URL, "error", err)
				continue
			}
			create.MediaFiles = append(create.MediaFiles, rel)
			if create.PreviewImage == "" {
				create.PreviewImage = rel
			}
		}
	}

	asset, err := s.store.CreateAsset(r.Context(), create)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to store imported asset", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

func (s *Server) assetFromModel(model *civitai.Model) store.AssetCreate {
	create := store.AssetCreate{
		Name:        model.Name,
		Type:        model.Type,
		Description: model.Description,
		Tags:        strings.Join(model.Tags, ", "),
		Slug:        model.Slug,
		Creator:     model.Creator.Username,
		NsfwLevel:   strconv.FormatBool(model.NSFW),
	}
	if model.Creator.Username != "" {
		create.CreatorURL = "https://civitai.com/user/" + url.PathEscape(model.Creator.Username)
	}
	if len(model.ModelVersions) == 0 {
		return create
	}
	version := model.ModelVersions[0]
	create.ModelVersion = version.Name
	create.TriggerWords = strings.Join(version.TrainedWords, ", ")
	create.BaseModel = version.BaseModel
	create.PublishedAt = version.CreatedAt
	create.DownloadURL = version.DownloadURL
	if len(version.Images) > 0 {
		first := version.Images[0]
		if p, ok := first.Meta["prompt"].(string); ok {
			create.PositivePrompt = p
		}
		if n, ok := first.Meta["negativePrompt"].(string); ok {
			create.NegativePrompt = n
		}
		create.UsedResources = civitai.FormatResources(first.Resources)
	}
	return create
}

// CivitaiImageMetadata looks up one civitai image and returns its generation
// metadata as a flat field map.
func (s *Server) CivitaiImageMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid image id", nil)
		return
	}
	img, err := s.civitai.Image(r.Context(), id)
	if err != nil {
		s.writeCivitaiError(w, err)
		return
	}
	fields := civitai.MetadataFields(img)
	if len(fields) == 0 {
		writeError(w, http.StatusNotFound, "no_metadata", "image carries no generation metadata", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"image_url": img.URL,
		"metadata":  fields,
	})
}

func (s *Server) CivitaiSearch(w http.ResponseWriter, r *http.Request) {
	query, err := bindQueryString(r, "query", "")
	if err != nil || query == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "query is required", nil)
		return
	}
	limit, err := bindQueryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid limit parameter", nil)
		return
	}
	page, err := bindQueryInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid page parameter", nil)
		return
	}
	sort, err := bindQueryString(r, "sort", "")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid sort parameter", nil)
		return
	}
	result, err := s.civitai.SearchModels(r.Context(), query, limit, page, sort)
	if err != nil {
		s.writeCivitaiError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ExtractMetadata parses generation metadata out of an uploaded PNG.
func (s *Server) ExtractMetadata(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to parse multipart", map[string]any{"error": err.Error()})
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "file is required", nil)
		return
	}
	defer file.Close()

	chunks, err := metadata.TextChunks(file)
	if err != nil {
		writeError(w, http.StatusNotFound, "no_metadata", "file is not a PNG with text metadata", nil)
		return
	}
	s.writeExtracted(w, chunks)
}

type extractURLRequest struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key"`
}

// ExtractMetadataURL resolves metadata for a remote image. Civitai image
// pages go through the API; any other URL is fetched and parsed as a PNG.
func (s *Server) ExtractMetadataURL(w http.ResponseWriter, r *http.Request) {
	var payload extractURLRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	if payload.URL == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "url is required", nil)
		return
	}

	if m := imageURLPattern.FindStringSubmatch(payload.URL); m != nil {
		id, _ := strconv.ParseInt(m[1], 10, 64)
		img, err := s.civitai.WithKey(payload.APIKey).Image(r.Context(), id)
		if err != nil {
			s.writeCivitaiError(w, err)
			return
		}
		fields := civitai.MetadataFields(img)
		if len(fields) == 0 {
			writeError(w, http.StatusNotFound, "no_metadata", "image carries no generation metadata", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"metadata": fields})
		return
	}

	data, err := s.civitai.Download(r.Context(), payload.URL)
	if err != nil {
		writeError(w, http.StatusBadGateway, "fetch_failed", "could not fetch url", map[string]any{"error": err.Error()})
		return
	}
	chunks, err := metadata.TextChunks(bytes.NewReader(data))
	if err != nil {
		writeError(w, http.StatusNotFound, "no_metadata", "url does not point to a PNG with text metadata", nil)
		return
	}
	s.writeExtracted(w, chunks)
}

func (s *Server) writeExtracted(w http.ResponseWriter, chunks map[string]string) {
	fields, err := s.extractor.Extract(chunks)
	if err != nil {
		if errors.Is(err, metadata.ErrNoMetadata) {
			writeError(w, http.StatusNotFound, "no_metadata", "no generation metadata found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "metadata extraction failed", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metadata": fields})
}

// ExportArchive streams the whole library as a ZIP bundle.
func (s *Server) ExportArchive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="modelarium-export.zip"`)
	if err := s.archiver.Export(r.Context(), w); err != nil {
		// headers are gone at this point, log is all we have
		s.logger.Error("archive export failed", "error", err)
	}
}

// ImportArchive restores a previously exported bundle.
func (s *Server) ImportArchive(w http.ResponseWriter, r *http.Request) {
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

	result, err := s.archiver.Import(r.Context(), file, header.Size)
	if err != nil {
		writeError(w, http.StatusBadRequest, "import_failed", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeCivitaiError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, civitai.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, civitai.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	case errors.Is(err, civitai.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error(), nil)
	default:
		writeError(w, http.StatusBadGateway, "civitai_error", err.Error(), nil)
	}
}

// modelRef extracts a model id from a civitai URL, falling back to treating
// the whole string as an id or slug.
func modelRef(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if m := modelURLPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if strings.Contains(raw, "://") {
		return ""
	}
	return raw
}

func fileNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "preview.png"
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." || base == "" {
		return "preview.png"
	}
	return base
}
