package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("not found")
var ErrProtected = errors.New("protected title")
var ErrEmptyName = errors.New("empty name")

const assetColumns = `id, name, type, path, preview_image, description, trigger_words,
	positive_prompt, negative_prompt, tags, model_version, used_resources, slug, creator,
	creator_url, base_model, published_at, nsfw_level, download_url, is_favorite,
	media_files, custom_fields, linked_assets, subcategory_id, created_at, updated_at`

type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func New(db *sqlx.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateAsset inserts a new asset. When no subcategory is given, the first
// subcategory (by id) whose name occurs in the asset's text fields is
// assigned.
func (s *Store) CreateAsset(ctx context.Context, in AssetCreate) (*Asset, error) {
	a := Asset{
		Name:           in.Name,
		Type:           in.Type,
		Path:           in.Path,
		PreviewImage:   in.PreviewImage,
		Description:    in.Description,
		TriggerWords:   in.TriggerWords,
		PositivePrompt: in.PositivePrompt,
		NegativePrompt: in.NegativePrompt,
		Tags:           in.Tags,
		ModelVersion:   in.ModelVersion,
		UsedResources:  in.UsedResources,
		Slug:           in.Slug,
		Creator:        in.Creator,
		CreatorURL:     in.CreatorURL,
		BaseModel:      in.BaseModel,
		PublishedAt:    in.PublishedAt,
		NsfwLevel:      in.NsfwLevel,
		DownloadURL:    in.DownloadURL,
		IsFavorite:     in.IsFavorite,
		MediaFiles:     StringList(in.MediaFiles),
		CustomFields:   FieldMap(in.CustomFields),
		LinkedAssets:   IDList{},
		SubCategoryID:  in.SubCategoryID,
	}

	if a.SubCategoryID == nil {
		subs, err := s.allSubCategories(ctx)
		if err != nil {
			return nil, err
		}
		a.SubCategoryID = autoAssignSubcategory(subs, &a)
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO asset (name, type, path, preview_image,
		description, trigger_words, positive_prompt, negative_prompt, tags, model_version,
		used_resources, slug, creator, creator_url, base_model, published_at, nsfw_level,
		download_url, is_favorite, media_files, custom_fields, linked_assets, subcategory_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Name, a.Type, a.Path, a.PreviewImage, a.Description, a.TriggerWords,
		a.PositivePrompt, a.NegativePrompt, a.Tags, a.ModelVersion, a.UsedResources,
		a.Slug, a.Creator, a.CreatorURL, a.BaseModel, a.PublishedAt, a.NsfwLevel,
		a.DownloadURL, a.IsFavorite, a.MediaFiles, a.CustomFields, a.LinkedAssets,
		a.SubCategoryID,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetAsset(ctx, id)
}

func (s *Store) GetAsset(ctx context.Context, id int64) (*Asset, error) {
	var a Asset
	err := s.db.GetContext(ctx, &a, "SELECT "+assetColumns+" FROM asset WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ResolveLinks returns the still-existing assets referenced by an asset's
// linked_assets list, in list order. Broken references are skipped.
func (s *Store) ResolveLinks(ctx context.Context, id int64) ([]Asset, error) {
	a, err := s.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]Asset, 0, len(a.LinkedAssets))
	for _, linkedID := range a.LinkedAssets {
		linked, err := s.GetAsset(ctx, linkedID)
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("linked asset missing", "asset", id, "target", linkedID)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *linked)
	}
	return out, nil
}

// ListAssets returns assets filtered by category name and favorite flag. The
// category predicate works on text fields, so filtering happens here rather
// than in SQL.
func (s *Store) ListAssets(ctx context.Context, category string, favoriteOnly bool) ([]Asset, error) {
	assets, err := s.allAssets(ctx)
	if err != nil {
		return nil, err
	}
	match := categoryPredicate(category)
	out := make([]Asset, 0, len(assets))
	for i := range assets {
		if !match(&assets[i]) {
			continue
		}
		if favoriteOnly && !assets[i].IsFavorite {
			continue
		}
		out = append(out, assets[i])
	}
	return out, nil
}

// SearchAssets returns assets whose search corpus contains every keyword of
// the query, within the given category.
func (s *Store) SearchAssets(ctx context.Context, query, category string) ([]Asset, error) {
	if strings.TrimSpace(query) == "" {
		return s.ListAssets(ctx, category, false)
	}
	assets, err := s.ListAssets(ctx, category, false)
	if err != nil {
		return nil, err
	}
	keywords := strings.Fields(strings.ToLower(query))
	out := make([]Asset, 0, len(assets))
	for i := range assets {
		if matchesSearch(keywords, &assets[i]) {
			out = append(out, assets[i])
		}
	}
	return out, nil
}

type KeywordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Keywords returns the 15 most frequent tokens across the search corpus of
// the selected assets, optionally narrowed by a query substring.
func (s *Store) Keywords(ctx context.Context, query, category string) ([]KeywordCount, error) {
	assets, err := s.ListAssets(ctx, category, false)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for i := range assets {
		text := strings.ReplaceAll(searchCorpus(&assets[i]), ",", " ")
		for _, token := range strings.Fields(text) {
			counts[token]++
		}
	}

	query = strings.ToLower(query)
	out := make([]KeywordCount, 0, len(counts))
	for word, count := range counts {
		if query != "" && !strings.Contains(word, query) {
			continue
		}
		out = append(out, KeywordCount{Word: word, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	if len(out) > 15 {
		out = out[:15]
	}
	return out, nil
}

// UpdateAsset applies a patch. When the patch touches linked_assets, the
// reverse direction of every added and removed link is repaired in the same
// transaction; targets that no longer exist are skipped with a warning.
func (s *Store) UpdateAsset(ctx context.Context, id int64, upd AssetUpdate) (*Asset, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var current Asset
	err = tx.GetContext(ctx, &current, "SELECT "+assetColumns+" FROM asset WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	setParts := []string{}
	args := []any{}
	set := func(column string, v any) {
		setParts = append(setParts, column+" = ?")
		args = append(args, v)
	}
	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.Type != nil {
		set("type", *upd.Type)
	}
	if upd.Path != nil {
		set("path", *upd.Path)
	}
	if upd.PreviewImage != nil {
		set("preview_image", *upd.PreviewImage)
	}
	if upd.Description != nil {
		set("description", *upd.Description)
	}
	if upd.TriggerWords != nil {
		set("trigger_words", *upd.TriggerWords)
	}
	if upd.PositivePrompt != nil {
		set("positive_prompt", *upd.PositivePrompt)
	}
	if upd.NegativePrompt != nil {
		set("negative_prompt", *upd.NegativePrompt)
	}
	if upd.Tags != nil {
		set("tags", *upd.Tags)
	}
	if upd.ModelVersion != nil {
		set("model_version", *upd.ModelVersion)
	}
	if upd.UsedResources != nil {
		set("used_resources", *upd.UsedResources)
	}
	if upd.Slug != nil {
		set("slug", *upd.Slug)
	}
	if upd.Creator != nil {
		set("creator", *upd.Creator)
	}
	if upd.CreatorURL != nil {
		set("creator_url", *upd.CreatorURL)
	}
	if upd.BaseModel != nil {
		set("base_model", *upd.BaseModel)
	}
	if upd.PublishedAt != nil {
		set("published_at", *upd.PublishedAt)
	}
	if upd.NsfwLevel != nil {
		set("nsfw_level", *upd.NsfwLevel)
	}
	if upd.DownloadURL != nil {
		set("download_url", *upd.DownloadURL)
	}
	if upd.IsFavorite != nil {
		set("is_favorite", *upd.IsFavorite)
	}
	if upd.MediaFiles != nil {
		set("media_files", StringList(*upd.MediaFiles))
	}
	if upd.CustomFields != nil {
		set("custom_fields", FieldMap(*upd.CustomFields))
	}
	if upd.SubCategoryID.Set {
		set("subcategory_id", upd.SubCategoryID.ID)
	}

	if upd.LinkedAssets != nil {
		newLinks, dropped := withoutSelf(*upd.LinkedAssets, id)
		if dropped {
			s.logger.Warn("dropping self-link", "asset", id)
		}
		if err := s.repairLinkTargets(ctx, tx, id, current.LinkedAssets, newLinks); err != nil {
			return nil, err
		}
		set("linked_assets", IDList(newLinks))
	}

	if len(setParts) > 0 {
		query := "UPDATE asset SET " + strings.Join(setParts, ", ") + " WHERE id = ?"
		args = append(args, id)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetAsset(ctx, id)
}

// repairLinkTargets keeps the linked_assets relation symmetric: removed
// targets lose this asset's id, added targets gain it. A target that no
// longer exists is skipped; any other database error aborts the transaction.
func (s *Store) repairLinkTargets(ctx context.Context, tx *sqlx.Tx, id int64, oldLinks, newLinks []int64) error {
	removed, added := diffIDs(oldLinks, newLinks)

	for _, targetID := range removed {
		var target Asset
		err := tx.GetContext(ctx, &target, "SELECT id, linked_assets FROM asset WHERE id = ?", targetID)
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("unlink target missing", "asset", id, "target", targetID)
			continue
		}
		if err != nil {
			return err
		}
		if !containsID(target.LinkedAssets, id) {
			continue
		}
		list := IDList(removeID(target.LinkedAssets, id))
		if _, err := tx.ExecContext(ctx, "UPDATE asset SET linked_assets = ? WHERE id = ?", list, targetID); err != nil {
			return err
		}
	}

	for _, targetID := range added {
		var target Asset
		err := tx.GetContext(ctx, &target, "SELECT id, linked_assets FROM asset WHERE id = ?", targetID)
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("link target missing", "asset", id, "target", targetID)
			continue
		}
		if err != nil {
			return err
		}
		if containsID(target.LinkedAssets, id) {
			continue
		}
		list := IDList(append(target.LinkedAssets, id))
		if _, err := tx.ExecContext(ctx, "UPDATE asset SET linked_assets = ? WHERE id = ?", list, targetID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAsset removes the asset row after scrubbing its id from every other
// asset's linked_assets list. The deleted asset is returned so the caller can
// clean up media files afterwards.
func (s *Store) DeleteAsset(ctx context.Context, id int64) (*Asset, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var a Asset
	err = tx.GetContext(ctx, &a, "SELECT "+assetColumns+" FROM asset WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var referencing []Asset
	err = tx.SelectContext(ctx, &referencing,
		"SELECT id, linked_assets FROM asset WHERE linked_assets IS NOT NULL AND id != ?", id)
	if err != nil {
		return nil, err
	}
	for i := range referencing {
		if !containsID(referencing[i].LinkedAssets, id) {
			continue
		}
		list := IDList(removeID(referencing[i].LinkedAssets, id))
		if _, err := tx.ExecContext(ctx, "UPDATE asset SET linked_assets = ? WHERE id = ?", list, referencing[i].ID); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM asset WHERE id = ?", id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ToggleFavorite(ctx context.Context, id int64) (*Asset, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE asset SET is_favorite = NOT is_favorite WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetAsset(ctx, id)
}

var defaultAssetTypes = []string{
	"Checkpoint",
	"Controlnet",
	"Embedding",
	"Hypernetwork",
	"LoRA",
	"Other",
	"Poses",
	"Textual Inversion",
	"VAE",
	"Wildcards",
}

// AssetTypes returns the distinct asset types present in the library, sorted,
// falling back to a default palette when the library is empty.
func (s *Store) AssetTypes(ctx context.Context) ([]string, error) {
	var types []string
	err := s.db.SelectContext(ctx, &types,
		"SELECT DISTINCT type FROM asset WHERE type != '' ORDER BY type")
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return append([]string{}, defaultAssetTypes...), nil
	}
	return types, nil
}

// AddAssetType registers a new type by creating a placeholder asset carrying
// it, so the type shows up in the distinct-type listing.
func (s *Store) AddAssetType(ctx context.Context, name string) ([]string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	existing, err := s.AssetTypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range existing {
		if t == name {
			return existing, nil
		}
	}
	_, err = s.CreateAsset(ctx, AssetCreate{
		Name:        "Type Definition: " + name,
		Type:        name,
		Description: "Placeholder asset defining the type '" + name + "'.",
	})
	if err != nil {
		return nil, err
	}
	return s.AssetTypes(ctx)
}

// AllAssets returns every asset, ordered by id. Used by export and the
// listing paths.
func (s *Store) AllAssets(ctx context.Context) ([]Asset, error) {
	return s.allAssets(ctx)
}

func (s *Store) allAssets(ctx context.Context) ([]Asset, error) {
	var assets []Asset
	err := s.db.SelectContext(ctx, &assets, "SELECT "+assetColumns+" FROM asset ORDER BY id")
	if err != nil {
		return nil, err
	}
	return assets, nil
}
