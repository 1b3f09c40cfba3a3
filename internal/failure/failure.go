// Package failure defines the closed set of pipeline failure kinds and the
// recovery strategy derived from them. Every fault that escapes the ingestion
// pipeline is one of these kinds; callers never see an untyped error.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindValidation    Kind = "validation"    // output failed the acceptability check
	KindProcessing    Kind = "processing"    // a stage failed for operational reasons (I/O, timeout)
	KindConfiguration Kind = "configuration" // pipeline built with an invalid/incomplete configuration
	KindFeature       Kind = "feature"       // requested capability disabled or unsupported
	KindLLM           Kind = "llm"           // model call failed or returned unusable output
	KindParsing       Kind = "parsing"       // content could not be parsed into the target shape
)

// Strategy is the caller-facing action derived from a failure kind.
type Strategy string

const (
	StrategyRetry    Strategy = "retry"
	StrategyFallback Strategy = "fallback"
	StrategyManual   Strategy = "manual"
	StrategyAbort    Strategy = "abort"
)

// FieldError is a single (field, message) entry from validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// TokenUsage holds the token counters reported by the structuring model.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Failure is the tagged variant carried by every pipeline fault. Only the
// payload fields matching the Kind are populated.
type Failure struct {
	Kind    Kind
	Message string

	// processing
	Cause   error
	Metrics map[string]any

	// validation: blocking entries plus the non-blocking remainder of the
	// validation result, so callers can render the full checklist.
	Fields   []FieldError
	Warnings []FieldError
	Notes    []FieldError

	// llm
	ModelResponse string
	Usage         *TokenUsage

	// parsing
	RawContent string

	// Strategy is attached once, at the processor boundary. It is always
	// re-derivable via ResolveStrategy and must never be mutated after.
	Strategy Strategy
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString(string(f.Kind))
	if f.Message != "" {
		b.WriteString(": ")
		b.WriteString(f.Message)
	}
	if len(f.Fields) > 0 {
		parts := make([]string, len(f.Fields))
		for i, fe := range f.Fields {
			parts[i] = fe.Field + ": " + fe.Message
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString("]")
	}
	if f.Cause != nil {
		b.WriteString(": ")
		b.WriteString(f.Cause.Error())
	}
	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// Validation returns a validation-kind failure carrying the full validation
// outcome: blocking entries first, then warnings and notes.
func Validation(msg string, errs, warnings, notes []FieldError) *Failure {
	return &Failure{Kind: KindValidation, Message: msg, Fields: errs, Warnings: warnings, Notes: notes}
}

// Processing wraps an operational fault, with optional stage metrics.
func Processing(msg string, cause error, metrics map[string]any) *Failure {
	return &Failure{Kind: KindProcessing, Message: msg, Cause: cause, Metrics: metrics}
}

// Processingf wraps an operational fault with a formatted message.
func Processingf(cause error, format string, args ...any) *Failure {
	return &Failure{Kind: KindProcessing, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Configuration reports an invalid or incomplete pipeline configuration.
func Configuration(format string, args ...any) *Failure {
	return &Failure{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Feature reports a disabled or unsupported capability.
func Feature(format string, args ...any) *Failure {
	return &Failure{Kind: KindFeature, Message: fmt.Sprintf(format, args...)}
}

// LLM reports a model fault. Response and usage may be empty/nil when the
// collaborator never produced them.
func LLM(msg string, cause error, response string, usage *TokenUsage) *Failure {
	return &Failure{Kind: KindLLM, Message: msg, Cause: cause, ModelResponse: response, Usage: usage}
}

// Parsing reports unparseable content, carrying the best-effort raw text.
func Parsing(msg string, raw string) *Failure {
	return &Failure{Kind: KindParsing, Message: msg, RawContent: raw}
}

// As extracts a *Failure from an error chain.
func As(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// ResolveStrategy maps a failure to its recovery strategy. Pure and total:
// the result depends on the kind alone and unknown kinds fall back to manual
// review rather than guessing at an automatic action.
func ResolveStrategy(f *Failure) Strategy {
	if f == nil {
		return StrategyManual
	}
	switch f.Kind {
	case KindLLM:
		return StrategyRetry
	case KindValidation:
		return StrategyManual
	case KindProcessing:
		return StrategyFallback
	case KindConfiguration, KindFeature:
		return StrategyAbort
	default:
		return StrategyManual
	}
}
