package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// ErrTooLarge is returned when an upload exceeds the configured size.
var ErrTooLarge = errors.New("upload exceeds size limit")

// FS keeps uploads under Root until the pipeline consumes them.
type FS struct {
	Root     string
	MaxBytes int64
}

func New(root string, maxBytes int64) (*FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, eris.Wrapf(err, "creating upload dir %s", root)
	}
	return &FS{Root: root, MaxBytes: maxBytes}, nil
}

// Save writes src to a fresh "<uuid>-<name>" file and returns its path.
// A partial file is removed when the copy fails or runs over MaxBytes.
func (s *FS) Save(name string, src io.Reader) (string, error) {
	path := filepath.Join(s.Root, uuid.NewString()+"-"+sanitize(name))
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", eris.Wrap(err, "creating upload")
	}

	r := src
	if s.MaxBytes > 0 {
		r = io.LimitReader(src, s.MaxBytes+1)
	}
	n, err := io.Copy(dst, r)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.MaxBytes > 0 && n > s.MaxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", eris.Wrap(err, "writing upload")
	}
	return path, nil
}

// SaveFile copies a file already on disk into the store, so the caller's
// source file survives the pipeline cleanup.
func (s *FS) SaveFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrap(err, "opening source")
	}
	defer f.Close()
	return s.Save(filepath.Base(path), f)
}

// sanitize keeps letters (any script), digits, dot, dash and underscore.
func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, ch := range name {
		switch {
		case ch == '.' || ch == '-' || ch == '_':
			b.WriteRune(ch)
		case ch >= '0' && ch <= '9', ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch > 0x7f && unicode.IsLetter(ch):
			b.WriteRune(ch)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "upload.pdf"
	}
	return out
}
