package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/MalithGihan/torahindex-service/internal/export"
	"github.com/MalithGihan/torahindex-service/internal/ingest"
	"github.com/MalithGihan/torahindex-service/internal/pipeline"
	"github.com/MalithGihan/torahindex-service/internal/store"
	"github.com/MalithGihan/torahindex-service/pkg/types"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("33")).
			Padding(0, 1)
)

type generateOptions struct {
	kind     string
	format   string
	out      string
	bookName string
}

func newGenerateCmd() *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate <file.pdf>",
		Short: "Generate an index for a local PDF and write it to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.kind, "kind", "k", string(types.KindTopics), "Index kind: sources, topics or persons")
	cmd.Flags().StringVarP(&opts.format, "format", "f", export.FormatPDF, "Output format: pdf, md, json or yaml")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output file (default <book>-<kind>.<ext> in the current directory)")
	cmd.Flags().StringVar(&opts.bookName, "book", "", "Book name for the index title (default the file name)")
	return cmd
}

func runGenerate(cmd *cobra.Command, path string, opts generateOptions) error {
	kind, ok := types.ParseKind(opts.kind)
	if !ok {
		return fmt.Errorf("invalid index kind %q", opts.kind)
	}
	if err := checkPDF(path); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg, cmd.ErrOrStderr())
	renderer, err := export.New(opts.format, export.Options{FontPath: cfg.ExportFontPath})
	if err != nil {
		return err
	}

	svc, err := buildPipeline(cfg, log)
	if err != nil {
		return err
	}
	st, err := store.New(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		return err
	}
	// The pipeline deletes its input, so it works on a copy.
	work, err := st.SaveFile(path)
	if err != nil {
		return err
	}

	idx, err := svc.GenerateIndexFromFile(cmd.Context(), work, kind)
	if err != nil {
		return err
	}
	idx.BookName = opts.bookName
	if idx.BookName == "" {
		idx.BookName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	doc, err := renderer.Render(idx)
	if err != nil {
		return err
	}
	out := opts.out
	if out == "" {
		out = fmt.Sprintf("%s-%s%s", idx.BookName, kind, renderer.Extension())
	}
	if err := os.WriteFile(out, doc, 0o644); err != nil {
		return err
	}

	printPreview(cmd.OutOrStdout(), idx, pipeline.PreviewEntries(idx.Entries, cfg.PreviewCount))
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ wrote "+out))
	return nil
}

func checkPDF(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	head := make([]byte, 8)
	n, _ := io.ReadFull(f, head)
	if ingest.IsPDF("", head[:n]) {
		return nil
	}
	if ingest.DetectType(path) == "raster" {
		return fmt.Errorf("%s is an image; only PDF files are supported", path)
	}
	return fmt.Errorf("%s is not a PDF", path)
}

func printPreview(w io.Writer, idx types.GeneratedIndex, preview []types.IndexEntry) {
	var b strings.Builder
	b.WriteString(titleStyle.Render(export.Title(idx)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d entries", len(idx.Entries))))
	for _, e := range preview {
		b.WriteString("\n• ")
		b.WriteString(export.FormatEntry(e))
	}
	if len(idx.Entries) > len(preview) {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("… %d more", len(idx.Entries)-len(preview))))
	}
	fmt.Fprintln(w, boxStyle.Render(b.String()))
}
