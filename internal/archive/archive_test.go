package archive

import (
	"archive/zip"
	"bytes"
	"reflect"
	"testing"

	"github.com/arawak/modelarium/internal/store"
)

func TestMediaPaths(t *testing.T) {
	asset := &store.Asset{
		MediaFiles:   store.StringList{"LoRA/a.png", "", "LoRA/b.png"},
		PreviewImage: "LoRA/a.png",
	}
	got := mediaPaths(asset)
	want := []string{"LoRA/a.png", "LoRA/b.png", "LoRA/a.png"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mediaPaths = %v, want %v", got, want)
	}

	if got := mediaPaths(&store.Asset{}); len(got) != 0 {
		t.Errorf("empty asset should yield no paths, got %v", got)
	}
}

func TestJSONEntryRoundTrip(t *testing.T) {
	subName := "Character"
	assets := []exportAsset{
		{
			Asset: store.Asset{
				ID:           3,
				Name:         "Dreamshaper",
				Type:         "Checkpoint",
				LinkedAssets: store.IDList{5},
			},
			SubCategoryName: subName,
			CategoryTitle:   "Models",
		},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := writeJSONEntry(zw, assetsEntry, assets); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	var decoded []exportAsset
	if err := readJSONEntry(zr, assetsEntry, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 {
		t.Fatalf("decoded %d assets", len(decoded))
	}
	got := decoded[0]
	if got.ID != 3 || got.Name != "Dreamshaper" || got.SubCategoryName != subName || got.CategoryTitle != "Models" {
		t.Errorf("decoded = %+v", got)
	}
	if !reflect.DeepEqual([]int64(got.LinkedAssets), []int64{5}) {
		t.Errorf("linked = %v", got.LinkedAssets)
	}
}

func TestReadJSONEntryMissing(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.Close()

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	var out []exportAsset
	if err := readJSONEntry(zr, assetsEntry, &out); err == nil {
		t.Error("expected an error for a bundle without assets.json")
	}
}
