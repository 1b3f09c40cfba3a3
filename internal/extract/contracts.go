package extract

import (
	"context"
	"time"
)

// TextExtractor turns a raw document into extractable text.
type TextExtractor interface {
	Extract(ctx context.Context, path string, data []byte) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.TEXT
	Method     string // "pdf-text" | "plain-text"
	Duration   time.Duration
	Warnings   []string
}
