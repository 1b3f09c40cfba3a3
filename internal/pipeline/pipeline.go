// Package pipeline drives an uploaded purchase-order document through the
// ordered extraction stages (load, extract text, structure via model,
// validate/normalize) and classifies every fault into the failure taxonomy.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/oluwaseun-a/po-tracker/internal/entity"
	"github.com/oluwaseun-a/po-tracker/internal/extract"
	"github.com/oluwaseun-a/po-tracker/internal/failure"
	"github.com/oluwaseun-a/po-tracker/internal/llm"
	"github.com/oluwaseun-a/po-tracker/internal/scratch"
	"github.com/oluwaseun-a/po-tracker/internal/validation"
)

const maxRawDiagnosticBytes = 4 << 10

// pipeline runs the fixed stage order over one scratch file. Stage
// substitution (deterministic vs model structuring) happens at construction,
// never as a runtime branch here.
type pipeline struct {
	files      *scratch.Manager
	extractor  extract.TextExtractor
	structurer llm.Structurer
	rules      validation.Ruleset
	logger     *slog.Logger
}

// run executes all stages. The returned error is always a *failure.Failure
// with exactly one taxonomy kind.
func (p *pipeline) run(ctx context.Context, scratchPath string) (*entity.PurchaseOrder, error) {
	start := time.Now()

	// Stage 1: load raw bytes.
	data, err := p.files.Read(scratchPath)
	if err != nil {
		p.logger.Error("pipeline.load.failed", "path", scratchPath, "error", err)
		return nil, asProcessing(err, "load document")
	}

	// Stage 2: extract layout/text.
	res, err := p.extractor.Extract(ctx, scratchPath, data)
	if err != nil {
		p.logger.Error("pipeline.extract.failed", "path", scratchPath, "error", err)
		if strings.Contains(err.Error(), "unsupported extension") {
			return nil, failure.Feature("document format: %v", err)
		}
		return nil, failure.Parsing("extract text: "+err.Error(), bestEffortRaw(res.Text, data))
	}
	if !hasRecognizableContent(res.Text) {
		p.logger.Warn("pipeline.extract.no_content", "path", scratchPath, "pages", res.Pages)
		return nil, failure.Parsing("document contains no extractable content", bestEffortRaw(res.Text, data))
	}
	p.logger.Info("pipeline.extract.ok",
		"path", scratchPath,
		"method", res.Method,
		"pages", res.Pages,
		"text_len", len(res.Text),
	)

	// Stage 3: structure via model (or the configured substitute).
	sres, err := p.structurer.Structure(ctx, llm.StructureRequest{
		Text:         res.Text,
		FilenameHint: scratchPath,
	})
	if err != nil {
		p.logger.Error("pipeline.structure.failed", "path", scratchPath, "model", sres.Model, "error", err)
		// A substitute structurer may already classify its own faults
		// (the rule parser reports parsing); keep that kind.
		if f, ok := failure.As(err); ok {
			return nil, f
		}
		return nil, failure.LLM("structure document: "+err.Error(), err, string(sres.Raw), sres.Usage)
	}
	p.logger.Info("pipeline.structure.ok",
		"path", scratchPath,
		"model", sres.Model,
		"po_number", sres.Fields.PONumber,
		"items", len(sres.Fields.Items),
	)

	// Stage 4: validate & normalize.
	po, result := validateAndNormalize(sres.Fields, p.rules, time.Now().UTC())
	if !result.Acceptable() {
		p.logger.Warn("pipeline.validate.rejected",
			"path", scratchPath,
			"errors", len(result.Errors),
			"warnings", len(result.Warnings),
		)
		return nil, failure.Validation("extracted order failed validation", result.Errors, result.Warnings, result.Notes)
	}

	p.logger.Info("pipeline.run.ok",
		"path", scratchPath,
		"po_number", po.PONumber,
		"total", po.Total,
		"warnings", len(result.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return po, nil
}

// asProcessing keeps an already-classified failure, wrapping anything else as
// a processing fault.
func asProcessing(err error, op string) *failure.Failure {
	if f, ok := failure.As(err); ok {
		return f
	}
	return failure.Processingf(err, "%s", op)
}

// hasRecognizableContent requires at least one letter or digit.
func hasRecognizableContent(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// bestEffortRaw prefers extracted text over raw bytes, capped for diagnostics.
func bestEffortRaw(text string, data []byte) string {
	raw := text
	if strings.TrimSpace(raw) == "" {
		raw = string(data)
	}
	if len(raw) > maxRawDiagnosticBytes {
		raw = raw[:maxRawDiagnosticBytes]
	}
	return raw
}
