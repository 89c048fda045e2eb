// Package media handles on-disk storage for asset preview files. Files live
// under <root>/<asset type>/<filename> and are served back verbatim over the
// /media route.
package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "golang.org/x/image/webp"
)

var ErrTooLarge = errors.New("upload too large")
var ErrInvalidImage = errors.New("invalid image")

var unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)

// Manager handles filesystem operations for asset media.
type Manager struct {
	root string
}

func NewManager(root string) *Manager {
	return &Manager{root: root}
}

func (m *Manager) Root() string { return m.root }

type SaveResult struct {
	// RelPath is the path relative to the media root, suitable for storing
	// on the asset and serving under /media/.
	RelPath string
	Bytes   int64
	Mime    string
	Width   int
	Height  int
}

// SanitizeFilename strips path separators and other characters that are not
// safe in a filename, replacing each with an underscore.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		name = "file"
	}
	return name
}

// Save streams an upload to disk under the given asset type, validating that
// it is a decodable image within the size and pixel limits. An existing file
// with the same name gets a numeric suffix rather than being overwritten.
func (m *Manager) Save(ctx context.Context, r io.Reader, assetType, filename string, maxBytes int64, maxPixels int) (*SaveResult, error) {
	dir := filepath.Join(m.root, SanitizeFilename(assetType))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	lim := &io.LimitedReader{R: r, N: maxBytes + 1}
	br := bufio.NewReader(lim)
	peek, _ := br.Peek(8192)
	mimeType := http.DetectContentType(peek)

	tmp, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	written, err := io.Copy(tmp, br)
	if err != nil {
		return nil, err
	}
	if lim.N <= 0 || written > maxBytes {
		return nil, ErrTooLarge
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(tmp)
	if err != nil {
		return nil, ErrInvalidImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return nil, ErrInvalidImage
	}

	name := SanitizeFilename(filename)
	dst, err := availablePath(dir, name)
	if err != nil {
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return nil, err
	}

	rel, err := filepath.Rel(m.root, dst)
	if err != nil {
		return nil, err
	}
	return &SaveResult{
		RelPath: filepath.ToSlash(rel),
		Bytes:   written,
		Mime:    mimeType,
		Width:   cfg.Width,
		Height:  cfg.Height,
	}, nil
}

// SaveBytes stores an already-downloaded file (civitai previews, archive
// imports) without image validation. Non-image media such as video previews
// pass through here.
func (m *Manager) SaveBytes(assetType, filename string, data []byte) (string, error) {
	dir := filepath.Join(m.root, SanitizeFilename(assetType))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dst, err := availablePath(dir, SanitizeFilename(filename))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", err
	}
	rel, err := filepath.Rel(m.root, dst)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Open returns a reader for a stored file given its relative path. Paths
// escaping the media root are rejected.
func (m *Manager) Open(relPath string) (*os.File, error) {
	abs, err := m.resolve(relPath)
	if err != nil {
		return nil, err
	}
	return os.Open(abs)
}

// ReadFile returns the contents of a stored file given its relative path.
func (m *Manager) ReadFile(relPath string) ([]byte, error) {
	abs, err := m.resolve(relPath)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

// Remove deletes stored files by relative path. Missing files and other
// removal errors are collected, not fatal; cleanup after an asset delete is
// best effort.
func (m *Manager) Remove(relPaths []string) []error {
	var errs []error
	for _, rel := range relPaths {
		abs, err := m.resolve(rel)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errs
}

func (m *Manager) resolve(relPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(relPath))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("media: invalid path %q", relPath)
	}
	return filepath.Join(m.root, clean), nil
}

// availablePath returns dir/name, or dir/name_N for the first free N when
// the plain name is taken.
func availablePath(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
		return candidate, nil
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i < 10000; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("media: no free filename for %q", name)
}

func (m *Manager) IsWritable() error {
	testPath := filepath.Join(m.root, ".writetest")
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(testPath, []byte("ok"), 0o644); err != nil {
		return err
	}
	return os.Remove(testPath)
}
