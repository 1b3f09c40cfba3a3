package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oluwaseun-a/po-tracker/constants"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	MaxPages  int    // 0 = no limit
}

// Extractor picks a strategy based on file extension: plain text documents
// are decoded directly, PDFs go through pdftotext.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// WithRunner swaps the command runner. Test hook.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

func (e *Extractor) Extract(ctx context.Context, path string, data []byte) (TextExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("extract.start", "path", path, "ext", ext, "bytes", len(data))

	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err := e.extractPDF(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	case constants.TEXT:
		res, err := e.extractPlain(data)
		res.Duration = time.Since(start)
		return res, err
	default:
		e.logger.Error("extract.unsupported_extension", "extension", ext)
		return TextExtractionResult{}, fmt.Errorf("unsupported extension: %q", ext)
	}
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (TextExtractionResult, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	res := TextExtractionResult{SourceType: constants.PDF, Method: "pdf-text"}
	if err != nil {
		res.Warnings = append(res.Warnings, string(errb))
		return res, fmt.Errorf("pdftotext: %w", err)
	}
	text := string(out)
	// A form-feed \f is used as page separator by default.
	pages := 1 + strings.Count(text, "\f")
	if e.cfg.MaxPages > 0 && pages > e.cfg.MaxPages {
		parts := strings.SplitN(text, "\f", e.cfg.MaxPages+1)
		text = strings.Join(parts[:e.cfg.MaxPages], "\f")
		pages = e.cfg.MaxPages
		res.Warnings = append(res.Warnings, fmt.Sprintf("truncated to %d pages", pages))
	}
	res.Text = text
	res.Pages = pages
	return res, nil
}

func (e *Extractor) extractPlain(data []byte) (TextExtractionResult, error) {
	res := TextExtractionResult{SourceType: constants.TEXT, Method: "plain-text", Pages: 1}
	if !utf8.Valid(data) {
		return res, fmt.Errorf("document is not valid UTF-8 text")
	}
	res.Text = strings.ReplaceAll(string(data), "\r\n", "\n")
	return res, nil
}
