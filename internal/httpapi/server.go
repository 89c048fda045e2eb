// Package httpapi exposes the library over HTTP: asset CRUD and search,
// category management, civitai import, metadata extraction, and archive
// export/import.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/arawak/modelarium/internal/archive"
	"github.com/arawak/modelarium/internal/civitai"
	"github.com/arawak/modelarium/internal/config"
	"github.com/arawak/modelarium/internal/media"
	"github.com/arawak/modelarium/internal/metadata"
	"github.com/arawak/modelarium/internal/store"
	"github.com/arawak/modelarium/internal/swaggerui"
)

type Server struct {
	cfg       *config.Config
	store     *store.Store
	media     *media.Manager
	civitai   *civitai.Client
	archiver  *archive.Archiver
	extractor *metadata.Extractor
	apiKeys   *APIKeyStore
	logger    *slog.Logger
}

var (
	openapiOnce sync.Once
	openapiData []byte
	openapiErr  error
)

func loadOpenAPI() ([]byte, error) {
	openapiOnce.Do(func() {
		path := filepath.Clean("openapi.yaml")
		openapiData, openapiErr = os.ReadFile(path)
	})
	return openapiData, openapiErr
}

func NewRouter(cfg *config.Config, st *store.Store, mediaMgr *media.Manager, civ *civitai.Client, apiKeys *APIKeyStore, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	s := &Server{
		cfg:       cfg,
		store:     st,
		media:     mediaMgr,
		civitai:   civ,
		archiver:  archive.New(st, mediaMgr, logger),
		extractor: &metadata.Extractor{Logger: logger},
		apiKeys:   apiKeys,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(loggingMiddleware(logger))

	if len(cfg.CORSAllowedOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"X-Api-Key", "Content-Type", "Accept"},
			AllowCredentials: true,
		})
		r.Use(c.Handler)
	}

	r.Get("/healthz", s.GetHealthz)
	r.Get("/readyz", s.GetReadyz)
	r.Get(cfg.OpenAPIPath, s.serveOpenAPI)
	r.Mount(cfg.SwaggerUIPath, swaggerui.Handler(cfg.OpenAPIPath))

	r.Group(func(r chi.Router) {
		r.Use(s.requirePerm(PermCanView))
		r.Get("/api/assets", s.ListAssets)
		r.Get("/api/assets/search", s.SearchAssets)
		r.Get("/api/assets/keywords", s.Keywords)
		r.Get("/api/assets/export", s.ExportArchive)
		r.Get("/api/assets/{id}", s.GetAsset)
		r.Get("/api/assets/{id}/links", s.GetAssetLinks)
		r.Get("/api/asset-types", s.ListAssetTypes)
		r.Get("/api/categories", s.ListCategories)
		r.Get("/api/categories/{id}", s.GetCategory)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requirePerm(PermCanManage))
		r.Post("/api/assets", s.CreateAsset)
		r.Patch("/api/assets/{id}", s.UpdateAsset)
		r.Patch("/api/assets/{id}/favorite", s.ToggleFavorite)
		r.Delete("/api/assets/{id}", s.DeleteAsset)
		r.Post("/api/assets/{id}/media", s.UploadAssetMedia)
		r.Post("/api/assets/import", s.ImportArchive)
		r.Post("/api/asset-types", s.AddAssetType)
		r.Post("/api/categories", s.CreateCategory)
		r.Put("/api/categories/{id}", s.UpdateCategory)
		r.Delete("/api/categories/{id}", s.DeleteCategory)
		r.Post("/api/categories/bulk", s.BulkReplaceCategories)
		r.Post("/api/categories/{id}/subcategories", s.CreateSubCategory)
		r.Put("/api/categories/subcategories/{id}", s.UpdateSubCategory)
		r.Delete("/api/categories/subcategories/{id}", s.DeleteSubCategory)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requirePerm(PermCanImport))
		r.Post("/api/import/from-civitai", s.ImportFromCivitai)
		r.Get("/api/import/from-civitai-image/{id}", s.CivitaiImageMetadata)
		r.Post("/api/import/from-civitai-image/{id}", s.CivitaiImageMetadata)
		r.Get("/api/import/civitai/search", s.CivitaiSearch)
		r.Post("/api/extract-metadata", s.ExtractMetadata)
		r.Post("/api/extract-metadata-url", s.ExtractMetadataURL)
	})

	r.Group(func(r chi.Router) {
		if !cfg.PublicMedia {
			r.Use(s.requirePerm(PermCanView))
		}
		r.Get("/media/*", s.ServeMedia)
	})

	return r
}

func (s *Server) serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	data, err := loadOpenAPI()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "unable to load openapi.yaml", map[string]any{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) GetHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthBody{Status: "ok"})
}

func (s *Server) GetReadyz(w http.ResponseWriter, _ *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "database unreachable", map[string]any{"error": err.Error()})
		return
	}
	if err := s.media.IsWritable(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "storage not writable", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthBody{Status: "ok"})
}

// ServeMedia streams a stored file. The wildcard path is relative to the
// storage root; anything escaping it is rejected by the manager.
func (s *Server) ServeMedia(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	file, err := s.media.Open(rel)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "media file not found", nil)
		return
	}
	defer file.Close()

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(rel)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	info, err := file.Stat()
	if err == nil {
		http.ServeContent(w, r, filepath.Base(rel), info.ModTime(), file)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = file.WriteTo(w)
}

type healthBody struct {
	Status string `json:"status"`
}

type errorBody struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details *map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	body := errorBody{Code: code, Message: message}
	if details != nil {
		body.Details = &details
	}
	writeJSON(w, status, body)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
		})
	}
}
