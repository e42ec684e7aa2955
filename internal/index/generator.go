package index

import (
	"context"
	"errors"
	"time"

	"golang.org/x/text/language"

	"github.com/MalithGihan/torahindex-service/internal/llm"
	"github.com/MalithGihan/torahindex-service/pkg/types"
)

// GenerationError reports a failed or rejected model call.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "failed to generate index: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }

type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// MaxChars bounds how much of the document reaches the prompt.
	MaxChars  int
	Collation language.Tag
}

func DefaultConfig() Config {
	return Config{
		Model:       "gpt-4-turbo",
		Temperature: 0.7,
		MaxTokens:   4000,
		MaxChars:    8000,
		Collation:   language.Hebrew,
	}
}

type Generator struct {
	cfg  Config
	chat llm.ChatCompleter
	now  func() time.Time
}

func NewGenerator(cfg Config, chat llm.ChatCompleter) (*Generator, error) {
	if chat == nil {
		return nil, errors.New("index: nil chat client")
	}
	if cfg.Model == "" {
		return nil, errors.New("index: model is required")
	}
	if cfg.Collation == language.Und {
		cfg.Collation = language.Hebrew
	}
	return &Generator{cfg: cfg, chat: chat, now: time.Now}, nil
}

// GenerateIndex asks the model for an index of kind over the first
// cfg.MaxChars characters of text. The call is attempted once.
func (g *Generator) GenerateIndex(ctx context.Context, text string, kind types.IndexKind) (types.GeneratedIndex, error) {
	if !kind.Valid() {
		return types.GeneratedIndex{}, &GenerationError{Err: errors.New("unknown index type " + string(kind))}
	}
	raw, err := g.chat.Complete(ctx, llm.ChatRequest{
		Model:       g.cfg.Model,
		System:      systemPrompt(kind),
		User:        userPrompt(kind, truncate(text, g.cfg.MaxChars)),
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		return types.GeneratedIndex{}, &GenerationError{Err: err}
	}

	entries := Parse(raw, kind)
	SortEntries(entries, g.cfg.Collation)

	return types.GeneratedIndex{
		Type:        kind,
		Entries:     entries,
		GeneratedAt: g.now(),
	}, nil
}
