// Package civitai is a thin client for the civitai.com v1 REST API, covering
// the calls the importer needs: model lookup (by id or slug), single-image
// lookup, and model search.
package civitai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const userAgent = "Modelarium-Importer/1.0"

var ErrUnauthorized = errors.New("civitai: authentication failed")
var ErrForbidden = errors.New("civitai: access denied")
var ErrNotFound = errors.New("civitai: not found")

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New builds a client. apiKey may be empty; civitai serves most public
// content without one.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// WithKey returns a copy using a request-scoped API key, falling back to the
// configured one when the override is empty.
func (c *Client) WithKey(apiKey string) *Client {
	if apiKey == "" {
		return c
	}
	copied := *c
	copied.apiKey = apiKey
	return &copied
}

type Model struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Description   string         `json:"description"`
	Tags          []string       `json:"tags"`
	Slug          string         `json:"slug"`
	NSFW          bool           `json:"nsfw"`
	Creator       Creator        `json:"creator"`
	ModelVersions []ModelVersion `json:"modelVersions"`
}

type Creator struct {
	Username string `json:"username"`
}

type ModelVersion struct {
	Name         string   `json:"name"`
	TrainedWords []string `json:"trainedWords"`
	BaseModel    string   `json:"baseModel"`
	CreatedAt    string   `json:"createdAt"`
	DownloadURL  string   `json:"downloadUrl"`
	Images       []Image  `json:"images"`
}

type Image struct {
	ID           int64          `json:"id"`
	URL          string         `json:"url"`
	Meta         map[string]any `json:"meta"`
	Resources    []Resource     `json:"resources"`
	Tags         []string       `json:"tags"`
	ModelVersion NamedRef       `json:"modelVersion"`
	Model        TypedRef       `json:"model"`
	Stats        map[string]any `json:"stats"`
}

type NamedRef struct {
	Name      string `json:"name"`
	BaseModel string `json:"baseModel"`
}

type TypedRef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Resource struct {
	Name   string   `json:"name"`
	Type   string   `json:"type"`
	Weight *float64 `json:"weight"`
}

type SearchResult struct {
	Items    []json.RawMessage `json:"items"`
	Metadata map[string]any    `json:"metadata"`
}

// Model fetches a model by numeric id or slug. Slugs resolve through the
// search endpoint first.
func (c *Client) Model(ctx context.Context, idOrSlug string) (*Model, error) {
	id, err := c.resolveModelID(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	var m Model
	if err := c.get(ctx, fmt.Sprintf("/api/v1/models/%d?nsfw=true", id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) resolveModelID(ctx context.Context, idOrSlug string) (int64, error) {
	if id, err := strconv.ParseInt(idOrSlug, 10, 64); err == nil {
		return id, nil
	}
	var res struct {
		Items []struct {
			ID   int64  `json:"id"`
			Slug string `json:"slug"`
		} `json:"items"`
	}
	path := "/api/v1/models?query=" + url.QueryEscape(idOrSlug) + "&nsfw=true"
	if err := c.get(ctx, path, &res); err != nil {
		return 0, err
	}
	for _, item := range res.Items {
		if item.Slug == idOrSlug {
			return item.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: no model with slug %q", ErrNotFound, idOrSlug)
}

// Image fetches one image record by id.
func (c *Client) Image(ctx context.Context, id int64) (*Image, error) {
	var img Image
	if err := c.get(ctx, fmt.Sprintf("/api/v1/images/%d", id), &img); err != nil {
		return nil, err
	}
	return &img, nil
}

// SearchModels proxies the model search, deduplicating items by id (civitai
// pages occasionally repeat entries).
func (c *Client) SearchModels(ctx context.Context, query string, limit, page int, sort string) (*SearchResult, error) {
	path := fmt.Sprintf("/api/v1/models?query=%s&nsfw=true&limit=%d&page=%d",
		url.QueryEscape(query), limit, page)
	if sort != "" {
		path += "&sort=" + url.QueryEscape(sort)
	}
	var res SearchResult
	if err := c.get(ctx, path, &res); err != nil {
		return nil, err
	}
	res.Items = dedupeByID(res.Items)
	return &res, nil
}

func dedupeByID(items []json.RawMessage) []json.RawMessage {
	seen := make(map[int64]bool, len(items))
	out := make([]json.RawMessage, 0, len(items))
	for _, raw := range items {
		var probe struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil || probe.ID == 0 {
			out = append(out, raw)
			continue
		}
		if seen[probe.ID] {
			continue
		}
		seen[probe.ID] = true
		out = append(out, raw)
	}
	return out
}

// Download fetches a media file (preview image) from a civitai CDN URL.
func (c *Client) Download(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("civitai: download %s: status %d", fileURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("civitai: %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
