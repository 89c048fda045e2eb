package httpapi

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arawak/modelarium/internal/config"
	"github.com/arawak/modelarium/internal/metadata"
)

var testPNGSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func pngWithParameters(params string) []byte {
	var buf bytes.Buffer
	buf.Write(testPNGSignature)
	data := append([]byte("parameters"), 0)
	data = append(data, []byte(params)...)
	var header [8]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(data)))
	copy(header[4:], "tEXt")
	buf.Write(header[:])
	buf.Write(data)
	buf.Write([]byte{0, 0, 0, 0})
	binary.BigEndian.PutUint32(header[:4], 0)
	copy(header[4:], "IEND")
	buf.Write(header[:])
	buf.Write([]byte{0, 0, 0, 0})
	return buf.Bytes()
}

func multipartFile(t *testing.T, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	mw.Close()
	return &body, mw.FormDataContentType()
}

func metadataTestServer() *Server {
	return &Server{
		cfg:       &config.Config{AuthMode: config.AuthNone, MaxUploadBytes: 1 << 20},
		extractor: &metadata.Extractor{Pick: func(options []string) string { return options[0] }},
		logger:    slog.Default(),
	}
}

func TestExtractMetadataFromUpload(t *testing.T) {
	s := metadataTestServer()
	body, contentType := multipartFile(t, "image.png",
		pngWithParameters("a photo of a cat\nNegative prompt: blurry\nSteps: 20, Sampler: Euler"))

	req := httptest.NewRequest(http.MethodPost, "/api/extract-metadata", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.ExtractMetadata(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Metadata["Prompt"] != "a photo of a cat" {
		t.Errorf("Prompt = %q", resp.Metadata["Prompt"])
	}
	if resp.Metadata["Steps"] != "20" {
		t.Errorf("Steps = %q", resp.Metadata["Steps"])
	}
}

func TestExtractMetadataNonPNG(t *testing.T) {
	s := metadataTestServer()
	body, contentType := multipartFile(t, "image.jpg", []byte("not a png"))

	req := httptest.NewRequest(http.MethodPost, "/api/extract-metadata", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.ExtractMetadata(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestExtractMetadataPNGWithoutChunks(t *testing.T) {
	s := metadataTestServer()
	var png bytes.Buffer
	png.Write(testPNGSignature)
	var header [8]byte
	copy(header[4:], "IEND")
	png.Write(header[:])
	png.Write([]byte{0, 0, 0, 0})

	body, contentType := multipartFile(t, "image.png", png.Bytes())
	req := httptest.NewRequest(http.MethodPost, "/api/extract-metadata", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.ExtractMetadata(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no metadata chunks exist", rec.Code)
	}
}

func TestExtractMetadataMissingFile(t *testing.T) {
	s := metadataTestServer()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("other", "value")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/extract-metadata", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.ExtractMetadata(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDecodeLinkedAssets(t *testing.T) {
	cases := []struct {
		name        string
		raw         string
		wantPresent bool
		wantLen     int
	}{
		{"absent", ``, false, 0},
		{"null", `null`, true, 0},
		{"id list", `[1, 2]`, true, 2},
		{"object list", `[{"id": 3}]`, true, 1},
		{"garbage", `"nope"`, true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			links, present := decodeLinkedAssets(json.RawMessage(tc.raw))
			if present != tc.wantPresent {
				t.Errorf("present = %v, want %v", present, tc.wantPresent)
			}
			if len(links) != tc.wantLen {
				t.Errorf("links = %v, want %d entries", links, tc.wantLen)
			}
		})
	}
}

func TestModelRef(t *testing.T) {
	cases := map[string]string{
		"https://civitai.com/models/4201/realistic-vision": "4201",
		"https://civitai.com/models/4201":                  "4201",
		"4201":            "4201",
		"dreamshaper":     "dreamshaper",
		"":                "",
		"https://example.com/models/1": "",
	}
	for in, want := range cases {
		if got := modelRef(in); got != want {
			t.Errorf("modelRef(%q) = %q, want %q", in, got, want)
		}
	}
}
