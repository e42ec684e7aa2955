// Package pipeline runs one uploaded PDF through extraction and index
// generation and removes the upload afterwards.
package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/MalithGihan/torahindex-service/pkg/types"
)

// DefaultPreviewCount is the number of entries shown in a preview.
const DefaultPreviewCount = 5

type Extractor interface {
	ExtractText(path string) (types.ExtractedContent, error)
}

type Generator interface {
	GenerateIndex(ctx context.Context, text string, kind types.IndexKind) (types.GeneratedIndex, error)
}

type Service struct {
	extractor Extractor
	generator Generator
	log       *slog.Logger
	remove    func(string) error
}

func New(extractor Extractor, generator Generator, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		extractor: extractor,
		generator: generator,
		log:       log.With("component", "pipeline"),
		remove:    os.Remove,
	}
}

// GenerateIndexFromFile extracts the text at path and generates an index of
// kind from it. Errors from either stage are returned unchanged. The file is
// removed exactly once whatever the outcome.
func (s *Service) GenerateIndexFromFile(ctx context.Context, path string, kind types.IndexKind) (types.GeneratedIndex, error) {
	defer s.cleanup(path)

	content, err := s.extractor.ExtractText(path)
	if err != nil {
		return types.GeneratedIndex{}, err
	}
	s.log.Debug("extracted", "path", path, "pages", content.PageCount, "chars", len(content.Text))

	idx, err := s.generator.GenerateIndex(ctx, content.Text, kind)
	if err != nil {
		return types.GeneratedIndex{}, err
	}
	s.log.Info("index generated", "kind", kind, "entries", len(idx.Entries), "pages", content.PageCount)
	return idx, nil
}

func (s *Service) cleanup(path string) {
	err := s.remove(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		s.log.Debug("upload already gone", "path", path)
	default:
		s.log.Warn("failed to cleanup file", "path", path, "error", err)
	}
}

// PreviewEntries returns the first n entries. A negative n means
// DefaultPreviewCount.
func PreviewEntries(entries []types.IndexEntry, n int) []types.IndexEntry {
	if n < 0 {
		n = DefaultPreviewCount
	}
	if n > len(entries) {
		n = len(entries)
	}
	return entries[:n:n]
}
