package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Asset struct {
	ID             int64      `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Type           string     `db:"type" json:"type"`
	Path           string     `db:"path" json:"path"`
	PreviewImage   string     `db:"preview_image" json:"preview_image"`
	Description    string     `db:"description" json:"description"`
	TriggerWords   string     `db:"trigger_words" json:"trigger_words"`
	PositivePrompt string     `db:"positive_prompt" json:"positive_prompt"`
	NegativePrompt string     `db:"negative_prompt" json:"negative_prompt"`
	Tags           string     `db:"tags" json:"tags"`
	ModelVersion   string     `db:"model_version" json:"model_version"`
	UsedResources  string     `db:"used_resources" json:"used_resources"`
	Slug           string     `db:"slug" json:"slug"`
	Creator        string     `db:"creator" json:"creator"`
	CreatorURL     string     `db:"creator_url" json:"creator_url"`
	BaseModel      string     `db:"base_model" json:"base_model"`
	PublishedAt    string     `db:"published_at" json:"published_at"`
	NsfwLevel      string     `db:"nsfw_level" json:"nsfw_level"`
	DownloadURL    string     `db:"download_url" json:"download_url"`
	IsFavorite     bool       `db:"is_favorite" json:"is_favorite"`
	MediaFiles     StringList `db:"media_files" json:"media_files"`
	CustomFields   FieldMap   `db:"custom_fields" json:"custom_fields"`
	LinkedAssets   IDList     `db:"linked_assets" json:"linked_assets"`
	SubCategoryID  *int64     `db:"subcategory_id" json:"subcategory_id"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type AssetCreate struct {
	Name           string
	Type           string
	Path           string
	PreviewImage   string
	Description    string
	TriggerWords   string
	PositivePrompt string
	NegativePrompt string
	Tags           string
	ModelVersion   string
	UsedResources  string
	Slug           string
	Creator        string
	CreatorURL     string
	BaseModel      string
	PublishedAt    string
	NsfwLevel      string
	DownloadURL    string
	IsFavorite     bool
	MediaFiles     []string
	CustomFields   map[string]any
	SubCategoryID  *int64
}

// AssetUpdate is a patch: nil means "leave the field alone". SubCategoryID and
// LinkedAssets carry explicit presence so null can be applied deliberately.
type AssetUpdate struct {
	Name           *string
	Type           *string
	Path           *string
	PreviewImage   *string
	Description    *string
	TriggerWords   *string
	PositivePrompt *string
	NegativePrompt *string
	Tags           *string
	ModelVersion   *string
	UsedResources  *string
	Slug           *string
	Creator        *string
	CreatorURL     *string
	BaseModel      *string
	PublishedAt    *string
	NsfwLevel      *string
	DownloadURL    *string
	IsFavorite     *bool
	MediaFiles     *[]string
	CustomFields   *map[string]any
	SubCategoryID  OptionalID
	LinkedAssets   *[]int64
}

// OptionalID distinguishes "not in the patch" (Set=false) from "set to null"
// (Set=true, ID=nil).
type OptionalID struct {
	Set bool
	ID  *int64
}

type Category struct {
	ID            int64         `db:"id" json:"id"`
	Title         string        `db:"title" json:"title"`
	SortOrder     int           `db:"sort_order" json:"order"`
	SubCategories []SubCategory `db:"-" json:"subcategories"`
}

type SubCategory struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Icon       string `db:"icon" json:"icon"`
	SortOrder  int    `db:"sort_order" json:"order"`
	CategoryID int64  `db:"category_id" json:"category_id"`
}

// StringList maps a JSON array column to []string.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if data == nil {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		*l = StringList{}
		return nil
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

// FieldMap maps a JSON object column to a free-form map.
type FieldMap map[string]any

func (m FieldMap) Value() (driver.Value, error) {
	if m == nil {
		m = FieldMap{}
	}
	return json.Marshal(m)
}

func (m *FieldMap) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if data == nil {
		*m = FieldMap{}
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		*m = FieldMap{}
		return nil
	}
	if out == nil {
		out = map[string]any{}
	}
	*m = out
	return nil
}

// IDList maps the linked_assets JSON column to a list of asset ids. Scanning
// repairs stale entries (numeric strings, junk) so readers always see ints.
type IDList []int64

func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		l = IDList{}
	}
	return json.Marshal(l)
}

func (l *IDList) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if data == nil {
		*l = IDList{}
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		*l = IDList{}
		return nil
	}
	*l = RepairLinkedAssets(raw)
	return nil
}

func jsonBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported json column type %T", src)
	}
}
