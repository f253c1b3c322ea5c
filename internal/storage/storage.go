// Package storage keeps uploaded post images on local disk.
//
// Layout: <root>/posts/<ownerID>/<xid>_<name>, served by the HTTP server at
// <urlPrefix>/posts/<ownerID>/<xid>_<name>. The xid prefix keeps two uploads
// with the same file name apart.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/rs/xid"

	"github.com/toptuitions/toptuitions/internal/apperror"
)

const (
	// MaxImages is the most images one post may carry.
	MaxImages = 4
	// MaxImageBytes is the per-image size limit (5 MB).
	MaxImageBytes = 5 << 20
)

// allowedTypes maps accepted MIME types to their usual extensions.
var allowedTypes = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
	"image/gif":  {".gif"},
	"image/webp": {".webp"},
	"image/avif": {".avif"},
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Upload is one file taken from a multipart form.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Check enforces the type and size rules for post images.
func (u Upload) Check() error {
	exts, ok := allowedTypes[strings.ToLower(u.ContentType)]
	if !ok {
		return apperror.ValidationFailed("images", fmt.Sprintf("%s: unsupported image type %q", u.Name, u.ContentType))
	}
	ext := strings.ToLower(filepath.Ext(u.Name))
	if ext != "" && !slices.Contains(exts, ext) {
		return apperror.ValidationFailed("images", fmt.Sprintf("%s: extension does not match %s", u.Name, u.ContentType))
	}
	if u.Size > MaxImageBytes {
		return apperror.ValidationFailed("images", fmt.Sprintf("%s: image exceeds 5 MB", u.Name))
	}
	return nil
}

// CheckAll validates a whole set of uploads before anything is written.
func CheckAll(uploads []Upload) error {
	if len(uploads) > MaxImages {
		return apperror.ValidationFailed("images", fmt.Sprintf("at most %d images per post", MaxImages))
	}
	for _, u := range uploads {
		if err := u.Check(); err != nil {
			return err
		}
	}
	return nil
}

// DiskStore writes uploads below a root directory.
type DiskStore struct {
	root      string
	urlPrefix string
}

// NewDiskStore creates root if needed. urlPrefix is where the server mounts
// root, e.g. "/uploads".
func NewDiskStore(root, urlPrefix string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating %s: %w", root, err)
	}
	return &DiskStore{root: root, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Root is the directory uploads live in.
func (s *DiskStore) Root() string {
	return s.root
}

// SavePostImages writes every upload for ownerID and returns their URLs in
// order. On any failure the files already written are removed, so a failed
// post leaves nothing behind.
func (s *DiskStore) SavePostImages(ownerID string, uploads []Upload) ([]string, error) {
	if err := CheckAll(uploads); err != nil {
		return nil, err
	}
	owner := cleanName(ownerID)
	if owner == "" {
		return nil, errors.New("storage: owner id is required")
	}

	dir := filepath.Join(s.root, "posts", owner)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating %s: %w", dir, err)
	}

	urls := make([]string, 0, len(uploads))
	for _, u := range uploads {
		name := cleanName(u.Name)
		if name == "" {
			name = "image"
		}
		file := xid.New().String() + "_" + name
		if err := writeLimited(filepath.Join(dir, file), u.Body); err != nil {
			s.Remove(urls...)
			return nil, fmt.Errorf("storage: saving %s: %w", u.Name, err)
		}
		urls = append(urls, path.Join(s.urlPrefix, "posts", owner, file))
	}
	return urls, nil
}

// Remove deletes the files behind urls. Missing files and URLs outside the
// store are ignored.
func (s *DiskStore) Remove(urls ...string) {
	for _, u := range urls {
		p, ok := s.pathFor(u)
		if !ok {
			continue
		}
		_ = os.Remove(p)
	}
}

// pathFor maps a URL produced by SavePostImages back to a file path,
// refusing anything that escapes the root.
func (s *DiskStore) pathFor(url string) (string, bool) {
	rel, ok := strings.CutPrefix(url, s.urlPrefix+"/")
	if !ok {
		return "", false
	}
	rel = path.Clean("/" + rel)[1:]
	if rel == "" || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), true
}

// writeLimited copies body to a new file, failing if it exceeds MaxImageBytes
// (the declared size of a multipart part is not trusted).
func writeLimited(dst string, body io.Reader) (err error) {
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	n, err := io.Copy(f, io.LimitReader(body, MaxImageBytes+1))
	if err != nil {
		return err
	}
	if n > MaxImageBytes {
		return apperror.ValidationFailed("images", "image exceeds 5 MB")
	}
	return nil
}

func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if len(name) > 80 {
		name = name[len(name)-80:]
	}
	return name
}
