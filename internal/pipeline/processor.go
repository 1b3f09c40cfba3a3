package pipeline

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/oluwaseun-a/po-tracker/internal/entity"
	"github.com/oluwaseun-a/po-tracker/internal/extract"
	"github.com/oluwaseun-a/po-tracker/internal/failure"
	"github.com/oluwaseun-a/po-tracker/internal/llm"
	"github.com/oluwaseun-a/po-tracker/internal/scratch"
	"github.com/oluwaseun-a/po-tracker/internal/validation"
)

// Feature flags recognized by the factory.
const (
	// FlagDeterministicStructuring substitutes the rule-based structurer for
	// the model-backed one at construction time.
	FlagDeterministicStructuring = "deterministic_structuring"
)

// Upload is a raw uploaded document: bytes plus the original filename.
type Upload struct {
	Data     []byte
	Filename string
}

// Config is everything the factory needs to build a Processor.
type Config struct {
	// TempDir is the scratch directory for uploaded documents. Required.
	TempDir string
	// Structurer is the model collaborator for stage 3. Required unless
	// FlagDeterministicStructuring is set.
	Structurer llm.Structurer
	// FeatureFlags toggles optional capabilities (see Flag* constants).
	FeatureFlags []string
	// Rules configures the validate stage; nil means validation.DefaultRuleset.
	Rules *validation.Ruleset
	// Extract configures the text-extraction stage.
	Extract extract.Config
	Logger  *slog.Logger
}

// Processor is the single entry point for document ingestion. It holds no
// mutable state between calls; one instance is safe to reuse across many
// concurrent uploads.
type Processor struct {
	files  *scratch.Manager
	pipe   *pipeline
	logger *slog.Logger
}

// New builds a configured Processor, failing fast with a configuration-kind
// failure when the scratch directory is unusable or the structuring
// collaborator is missing while model structuring is enabled.
func New(cfg Config) (*Processor, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	files, err := scratch.NewManager(cfg.TempDir, logger)
	if err != nil {
		return nil, err
	}

	structurer := cfg.Structurer
	if slices.Contains(cfg.FeatureFlags, FlagDeterministicStructuring) {
		structurer = llm.NewRuleStructurer(logger)
	} else if structurer == nil {
		return nil, failure.Configuration("model structurer is required when %s is not set", FlagDeterministicStructuring)
	}

	rules := validation.DefaultRuleset()
	if cfg.Rules != nil {
		rules = *cfg.Rules
	}

	return &Processor{
		files: files,
		pipe: &pipeline{
			files:      files,
			extractor:  extract.NewExtractor(cfg.Extract, logger),
			structurer: structurer,
			rules:      rules,
			logger:     logger,
		},
		logger: logger,
	}, nil
}

// Scratch exposes the scratch manager for startup/shutdown cleanup.
func (p *Processor) Scratch() *scratch.Manager {
	return p.files
}

// Process runs one document through the pipeline: exactly one attempt, one
// scratch save paired with exactly one delete on every exit path. On failure
// the returned error is a *failure.Failure with its recovery strategy
// attached, so callers never classify faults themselves.
func (p *Processor) Process(ctx context.Context, up Upload) (*entity.PurchaseOrder, error) {
	start := time.Now()

	path, err := p.files.Save(up.Data, up.Filename)
	if err != nil {
		return nil, p.classify(err, up.Filename, start)
	}
	defer func() {
		if delErr := p.files.Delete(path); delErr != nil {
			p.logger.Warn("processor.scratch_release_failed", "path", path, "error", delErr)
		}
	}()

	po, err := p.pipe.run(ctx, path)
	if err != nil {
		return nil, p.classify(err, up.Filename, start)
	}

	p.logger.Info("processor.process.ok",
		"filename", up.Filename,
		"po_number", po.PONumber,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return po, nil
}

// classify guarantees the outgoing error is taxonomy-typed and carries its
// resolved strategy. This is the only place a strategy is attached.
func (p *Processor) classify(err error, filename string, start time.Time) *failure.Failure {
	f, ok := failure.As(err)
	if !ok {
		f = failure.Processingf(err, "process %q", filename)
	}
	if f.Metrics == nil && f.Kind == failure.KindProcessing {
		f.Metrics = map[string]any{"elapsed_ms": time.Since(start).Milliseconds()}
	}
	f.Strategy = failure.ResolveStrategy(f)
	p.logger.Error("processor.process.failed",
		"filename", filename,
		"kind", string(f.Kind),
		"strategy", string(f.Strategy),
		"elapsed_ms", time.Since(start).Milliseconds(),
		"error", f,
	)
	return f
}
