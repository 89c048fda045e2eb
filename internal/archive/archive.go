// Package archive implements ZIP-based library export and import. An export
// bundle contains assets.json, categories.json, and a media/ directory with
// every referenced preview file.
package archive

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/arawak/modelarium/internal/media"
	"github.com/arawak/modelarium/internal/store"
)

const (
	assetsEntry     = "assets.json"
	categoriesEntry = "categories.json"
	mediaPrefix     = "media/"
)

// exportAsset carries the asset row plus the subcategory binding by name, so
// an import into a database with different ids can rebind it.
type exportAsset struct {
	store.Asset
	SubCategoryName string `json:"subcategory_name,omitempty"`
	CategoryTitle   string `json:"category_title,omitempty"`
}

type Archiver struct {
	store  *store.Store
	media  *media.Manager
	logger *slog.Logger
}

func New(st *store.Store, mm *media.Manager, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{store: st, media: mm, logger: logger}
}

// Export writes the whole library as a ZIP bundle to w. Media files that are
// referenced but missing on disk are logged and skipped.
func (a *Archiver) Export(ctx context.Context, w io.Writer) error {
	assets, err := a.store.AllAssets(ctx)
	if err != nil {
		return err
	}
	categories, err := a.store.ListCategories(ctx)
	if err != nil {
		return err
	}

	subNames := make(map[int64]string)
	subParents := make(map[int64]string)
	for _, cat := range categories {
		for _, sub := range cat.SubCategories {
			subNames[sub.ID] = sub.Name
			subParents[sub.ID] = cat.Title
		}
	}

	out := make([]exportAsset, 0, len(assets))
	for _, asset := range assets {
		ea := exportAsset{Asset: asset}
		if asset.SubCategoryID != nil {
			ea.SubCategoryName = subNames[*asset.SubCategoryID]
			ea.CategoryTitle = subParents[*asset.SubCategoryID]
		}
		out = append(out, ea)
	}

	zw := zip.NewWriter(w)
	if err := writeJSONEntry(zw, assetsEntry, out); err != nil {
		return err
	}
	if err := writeJSONEntry(zw, categoriesEntry, categories); err != nil {
		return err
	}

	written := make(map[string]bool)
	for _, asset := range assets {
		for _, rel := range mediaPaths(&asset) {
			if written[rel] {
				continue
			}
			written[rel] = true
			if err := a.writeMediaEntry(zw, rel); err != nil {
				a.logger.Warn("export: skipping media file",
					"asset_id", asset.ID, "path", rel, "error", err)
			}
		}
	}
	return zw.Close()
}

func mediaPaths(asset *store.Asset) []string {
	paths := make([]string, 0, len(asset.MediaFiles)+1)
	for _, rel := range asset.MediaFiles {
		if rel != "" {
			paths = append(paths, rel)
		}
	}
	if asset.PreviewImage != "" {
		paths = append(paths, asset.PreviewImage)
	}
	return paths
}

func (a *Archiver) writeMediaEntry(zw *zip.Writer, rel string) error {
	f, err := a.media.Open(rel)
	if err != nil {
		return err
	}
	defer f.Close()
	entry, err := zw.Create(mediaPrefix + rel)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, f)
	return err
}

func writeJSONEntry(zw *zip.Writer, name string, v any) error {
	entry, err := zw.Create(name)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(entry)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ImportResult summarizes what a bundle import created.
type ImportResult struct {
	IDMapping  map[int64]int64 `json:"id_mapping"`
	Assets     int             `json:"assets"`
	Categories int             `json:"categories"`
	Skipped    []string        `json:"skipped"`
}

// Import reads a bundle produced by Export and recreates its contents.
// Categories are merged by title, subcategories by name within their parent,
// and asset links are remapped to the newly assigned ids.
func (a *Archiver) Import(ctx context.Context, r io.ReaderAt, size int64) (*ImportResult, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("archive: not a valid bundle: %w", err)
	}

	var exported []exportAsset
	if err := readJSONEntry(zr, assetsEntry, &exported); err != nil {
		return nil, err
	}
	var categories []store.Category
	if err := readJSONEntry(zr, categoriesEntry, &categories); err != nil {
		// old bundles carried only assets
		categories = nil
	}

	result := &ImportResult{IDMapping: make(map[int64]int64)}

	created, err := a.importCategories(ctx, categories)
	if err != nil {
		return nil, err
	}
	result.Categories = created

	subByName, err := a.subcategoryIndex(ctx)
	if err != nil {
		return nil, err
	}

	for i := range exported {
		ea := &exported[i]
		oldID := ea.ID
		create, err := a.buildCreate(zr, ea, subByName)
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", ea.Name, err))
			a.logger.Warn("import: skipping asset", "name", ea.Name, "error", err)
			continue
		}
		asset, err := a.store.CreateAsset(ctx, *create)
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %v", ea.Name, err))
			continue
		}
		result.IDMapping[oldID] = asset.ID
		result.Assets++
	}

	if err := a.relinkImported(ctx, exported, result.IDMapping); err != nil {
		return nil, err
	}
	return result, nil
}

func (a *Archiver) importCategories(ctx context.Context, categories []store.Category) (int, error) {
	created := 0
	for _, cat := range categories {
		if store.IsProtectedTitle(cat.Title) {
			continue
		}
		target, err := a.store.CreateCategory(ctx, cat.Title, cat.SortOrder)
		if err != nil {
			return created, err
		}
		existing := make(map[string]bool, len(target.SubCategories))
		for _, sub := range target.SubCategories {
			existing[strings.ToLower(sub.Name)] = true
		}
		for _, sub := range cat.SubCategories {
			if existing[strings.ToLower(sub.Name)] {
				continue
			}
			if _, _, err := a.store.CreateSubCategory(ctx, target.ID, sub.Name, sub.Icon, sub.SortOrder); err != nil {
				a.logger.Warn("import: skipping subcategory",
					"category", cat.Title, "name", sub.Name, "error", err)
			}
		}
		created++
	}
	return created, nil
}

// subcategoryIndex maps "category/subcategory" (lowercased) to subcategory id.
func (a *Archiver) subcategoryIndex(ctx context.Context) (map[string]int64, error) {
	categories, err := a.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int64)
	for _, cat := range categories {
		for _, sub := range cat.SubCategories {
			key := strings.ToLower(cat.Title + "/" + sub.Name)
			index[key] = sub.ID
		}
	}
	return index, nil
}

func (a *Archiver) buildCreate(zr *zip.Reader, ea *exportAsset, subByName map[string]int64) (*store.AssetCreate, error) {
	if strings.TrimSpace(ea.Name) == "" {
		return nil, fmt.Errorf("asset has no name")
	}

	mediaFiles := make([]string, 0, len(ea.MediaFiles))
	remapped := make(map[string]string)
	for _, rel := range ea.MediaFiles {
		newRel, err := a.restoreMedia(zr, ea.Type, rel)
		if err != nil {
			a.logger.Warn("import: media file missing in bundle",
				"asset", ea.Name, "path", rel)
			continue
		}
		remapped[rel] = newRel
		mediaFiles = append(mediaFiles, newRel)
	}
	preview := ea.PreviewImage
	if mapped, ok := remapped[preview]; ok {
		preview = mapped
	} else if preview != "" {
		if newRel, err := a.restoreMedia(zr, ea.Type, preview); err == nil {
			preview = newRel
		}
	}

	var subID *int64
	if ea.SubCategoryName != "" {
		key := strings.ToLower(ea.CategoryTitle + "/" + ea.SubCategoryName)
		if id, ok := subByName[key]; ok {
			subID = &id
		}
	}

	return &store.AssetCreate{
		Name:           ea.Name,
		Type:           ea.Type,
		Path:           ea.Path,
		PreviewImage:   preview,
		Description:    ea.Description,
		TriggerWords:   ea.TriggerWords,
		PositivePrompt: ea.PositivePrompt,
		NegativePrompt: ea.NegativePrompt,
		Tags:           ea.Tags,
		ModelVersion:   ea.ModelVersion,
		UsedResources:  ea.UsedResources,
		Slug:           ea.Slug,
		Creator:        ea.Creator,
		CreatorURL:     ea.CreatorURL,
		BaseModel:      ea.BaseModel,
		PublishedAt:    ea.PublishedAt,
		NsfwLevel:      ea.NsfwLevel,
		DownloadURL:    ea.DownloadURL,
		IsFavorite:     ea.IsFavorite,
		MediaFiles:     mediaFiles,
		CustomFields:   ea.CustomFields,
		SubCategoryID:  subID,
	}, nil
}

func (a *Archiver) restoreMedia(zr *zip.Reader, assetType, rel string) (string, error) {
	f, err := zr.Open(mediaPrefix + rel)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	dir := path.Dir(rel)
	if dir == "." || dir == "" {
		dir = assetType
	}
	return a.media.SaveBytes(dir, path.Base(rel), data)
}

// relinkImported rewrites linked_assets on the newly created assets using the
// old-to-new id mapping. Links to assets outside the bundle are dropped.
func (a *Archiver) relinkImported(ctx context.Context, exported []exportAsset, mapping map[int64]int64) error {
	for i := range exported {
		ea := &exported[i]
		newID, ok := mapping[ea.ID]
		if !ok || len(ea.LinkedAssets) == 0 {
			continue
		}
		links := make([]int64, 0, len(ea.LinkedAssets))
		for _, old := range ea.LinkedAssets {
			if mapped, ok := mapping[old]; ok {
				links = append(links, mapped)
			}
		}
		if len(links) == 0 {
			continue
		}
		if _, err := a.store.UpdateAsset(ctx, newID, store.AssetUpdate{LinkedAssets: &links}); err != nil {
			return err
		}
	}
	return nil
}

func readJSONEntry(zr *zip.Reader, name string, v any) error {
	f, err := zr.Open(name)
	if err != nil {
		return fmt.Errorf("archive: missing %s: %w", name, err)
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}
