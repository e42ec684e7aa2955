package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/MalithGihan/torahindex-service/internal/config"
	"github.com/MalithGihan/torahindex-service/internal/index"
	"github.com/MalithGihan/torahindex-service/internal/ingest"
	"github.com/MalithGihan/torahindex-service/internal/llm"
	"github.com/MalithGihan/torahindex-service/internal/pipeline"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "torahindex",
		Short: "Generate source, topic and person indexes for Torah books",
		Long: `torahindex extracts the text of a PDF, asks a language model for an index
of sources, topics or persons, and returns it as JSON or as a document.

Configuration comes from the environment (or a .env file): OPENAI_API_KEY,
OPENAI_MODEL, LLM_PROVIDER=mock for offline runs, UPLOAD_DIR, PORT, ...`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newGenerateCmd())
	return root
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg := config.Load()
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// buildPipeline wires extractor, model client and generator from cfg.
func buildPipeline(cfg config.Config, log *slog.Logger) (*pipeline.Service, error) {
	var chat llm.ChatCompleter
	switch cfg.LLMProvider {
	case config.ProviderMock:
		log.Warn("using the offline mock model; indexes are placeholders")
		chat = llm.Mock{}
	default:
		c, err := llm.NewOpenAI(llm.OpenAIOptions{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL})
		if err != nil {
			return nil, err
		}
		chat = c
	}

	tag, err := language.Parse(cfg.CollationLang)
	if err != nil {
		return nil, err
	}
	gen, err := index.NewGenerator(index.Config{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		MaxChars:    cfg.PromptMaxChars,
		Collation:   tag,
	}, chat)
	if err != nil {
		return nil, err
	}
	return pipeline.New(ingest.NewPDFExtractor(), gen, log), nil
}
