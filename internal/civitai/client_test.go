package civitai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestModelByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/models/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(Model{ID: 42, Name: "Dreamshaper", Type: "Checkpoint"})
	}))
	defer srv.Close()

	c := New(srv.URL, "sekrit")
	m, err := c.Model(context.Background(), "42")
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "Dreamshaper" || m.Type != "Checkpoint" {
		t.Errorf("model = %+v", m)
	}
}

func TestModelBySlugResolvesThroughSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/models" && r.URL.Query().Get("query") == "dreamshaper":
			w.Write([]byte(`{"items": [{"id": 7, "slug": "other"}, {"id": 42, "slug": "dreamshaper"}]}`))
		case r.URL.Path == "/api/v1/models/42":
			json.NewEncoder(w).Encode(Model{ID: 42, Name: "Dreamshaper"})
		default:
			t.Errorf("unexpected request %s", r.URL)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	m, err := c.Model(context.Background(), "dreamshaper")
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != 42 {
		t.Errorf("resolved id = %d", m.ID)
	}
}

func TestModelSlugNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": []}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").Model(context.Background(), "missing-slug")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		_, err := New(srv.URL, "").Image(context.Background(), 1)
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: err = %v, want %v", tc.status, err, tc.want)
		}
		srv.Close()
	}
}

func TestSearchModelsDeduplicates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": [{"id": 1, "name": "a"}, {"id": 2, "name": "b"}, {"id": 1, "name": "a again"}]}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, "").SearchModels(context.Background(), "a", 20, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 2 {
		t.Errorf("items = %d, want 2 after dedupe", len(res.Items))
	}
}

func TestWithKey(t *testing.T) {
	base := New("http://example", "configured")
	if got := base.WithKey("").apiKey; got != "configured" {
		t.Errorf("empty override should keep configured key, got %q", got)
	}
	if got := base.WithKey("override").apiKey; got != "override" {
		t.Errorf("override not applied, got %q", got)
	}
	if base.apiKey != "configured" {
		t.Error("WithKey must not mutate the base client")
	}
}

func TestMetadataFields(t *testing.T) {
	weight := 0.8
	img := &Image{
		URL: "https://cdn/img.png",
		Meta: map[string]any{
			"prompt":         "a castle",
			"negativePrompt": "blurry",
			"cfgScale":       7.5,
			"steps":          30.0,
			"clipSkip":       2.0,
		},
		Model:        TypedRef{Name: "Dreamshaper", Type: "Checkpoint"},
		ModelVersion: NamedRef{Name: "v8", BaseModel: "SD 1.5"},
		Resources: []Resource{
			{Name: "detail-tweaker", Type: "lora", Weight: &weight},
			{Name: "vae-ft", Type: "vae"},
		},
		Tags: []string{"fantasy", "castle"},
	}
	got := MetadataFields(img)

	want := map[string]string{
		"Prompt":          "a castle",
		"Negative prompt": "blurry",
		"Guidance scale":  "7.5",
		"Steps":           "30",
		"Clip skip":       "2",
		"Model":           "Dreamshaper",
		"Model type":      "Checkpoint",
		"Model version":   "v8",
		"Base model":      "SD 1.5",
		"Resources":       "detail-tweaker (lora: 0.8); vae-ft (vae)",
		"Tags":            "fantasy, castle",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestMetadataFieldsEmpty(t *testing.T) {
	if got := MetadataFields(&Image{}); len(got) != 0 {
		t.Errorf("expected empty map, got %v", got)
	}
	if got := MetadataFields(nil); len(got) != 0 {
		t.Errorf("nil image should yield empty map, got %v", got)
	}
}
