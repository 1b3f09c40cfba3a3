package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oluwaseun-a/po-tracker/constants"
	"github.com/oluwaseun-a/po-tracker/internal/failure"
	"github.com/oluwaseun-a/po-tracker/internal/llm"
)

// fakeStructurer returns a canned result or error.
type fakeStructurer struct {
	res llm.StructureResult
	err error
}

func (f *fakeStructurer) Structure(_ context.Context, _ llm.StructureRequest) (llm.StructureResult, error) {
	return f.res, f.err
}

func wellFormedFields() llm.OrderFields {
	return llm.OrderFields{
		PONumber:         "PO-2041",
		OrderDate:        "2026-03-14",
		BuyerName:        "Ada Obi",
		BuyerEmail:       "ada.obi@example.com",
		DeliveryLocation: "Warehouse 7, Lagos",
		Items: []llm.OrderItem{
			{Code: "WID-1", Description: "Widget", Quantity: 2, UnitCost: 3.5, LineTotal: 7},
			{Code: "GAD-9", Description: "Gadget", Quantity: 1, UnitCost: 12.25, LineTotal: 12.25},
		},
		GrossWeight: 18.4,
		NetWeight:   16.0,
		Total:       19.25,
	}
}

func newTestProcessor(t *testing.T, s llm.Structurer) (*Processor, string) {
	t.Helper()
	dir := t.TempDir()
	proc, err := New(Config{TempDir: dir, Structurer: s})
	require.NoError(t, err)
	return proc, dir
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch file leaked")
}

func TestProcessRoundTrip(t *testing.T) {
	proc, dir := newTestProcessor(t, &fakeStructurer{res: llm.StructureResult{Fields: wellFormedFields()}})

	po, err := proc.Process(context.Background(), Upload{Data: []byte("some purchase order text"), Filename: "po.txt"})
	require.NoError(t, err)

	assert.Equal(t, "PO-2041", po.PONumber)
	assert.Equal(t, constants.StatusUploaded, po.Status)
	assert.Equal(t, "2026-03-14", po.OrderDate.Format("2006-01-02"))
	assert.Equal(t, "ada.obi@example.com", po.Buyer.Email)
	assert.Len(t, po.Items, 2)
	assert.True(t, po.TotalReconciles(0.01))
	assert.NotEmpty(t, po.PONumber)
	assert.Equal(t, 1, po.Revision)
	require.Len(t, po.History, 1)
	assert.Equal(t, constants.StatusUploaded, po.History[0].Status)

	assertScratchEmpty(t, dir)
}

func TestProcessMissingBuyerEmail(t *testing.T) {
	fields := wellFormedFields()
	fields.BuyerEmail = ""
	proc, dir := newTestProcessor(t, &fakeStructurer{res: llm.StructureResult{Fields: fields}})

	_, err := proc.Process(context.Background(), Upload{Data: []byte("text"), Filename: "po.txt"})
	require.Error(t, err)

	f, ok := failure.As(err)
	require.True(t, ok)
	assert.Equal(t, failure.KindValidation, f.Kind)
	assert.Equal(t, failure.StrategyManual, f.Strategy)
	require.Len(t, f.Fields, 1)
	assert.Equal(t, "buyerInfo.email", f.Fields[0].Field)

	assertScratchEmpty(t, dir)
}

func TestProcessTotalMismatchIsValidationFailure(t *testing.T) {
	fields := wellFormedFields()
	fields.Total = 999.99
	proc, dir := newTestProcessor(t, &fakeStructurer{res: llm.StructureResult{Fields: fields}})

	_, err := proc.Process(context.Background(), Upload{Data: []byte("text"), Filename: "po.txt"})
	require.Error(t, err)

	f, ok := failure.As(err)
	require.True(t, ok)
	assert.Equal(t, failure.KindValidation, f.Kind)
	require.Len(t, f.Fields, 1)
	assert.Equal(t, "total", f.Fields[0].Field)

	assertScratchEmpty(t, dir)
}

func TestProcessEmptyModelResponse(t *testing.T) {
	usage := &failure.TokenUsage{PromptTokens: 120, TotalTokens: 120}
	proc, dir := newTestProcessor(t, &fakeStructurer{
		res: llm.StructureResult{Usage: usage, Model: "gpt-4o-mini"},
		err: errors.New("empty model response content"),
	})

	_, err := proc.Process(context.Background(), Upload{Data: []byte("text"), Filename: "po.txt"})
	require.Error(t, err)

	f, ok := failure.As(err)
	require.True(t, ok)
	assert.Equal(t, failure.KindLLM, f.Kind)
	assert.Equal(t, failure.StrategyRetry, f.Strategy)
	require.NotNil(t, f.Usage)
	assert.Equal(t, 120, f.Usage.TotalTokens)

	assertScratchEmpty(t, dir)
}

func TestProcessModelFailureWithoutUsage(t *testing.T) {
	proc, dir := newTestProcessor(t, &fakeStructurer{err: errors.New("request timed out")})

	_, err := proc.Process(context.Background(), Upload{Data: []byte("text"), Filename: "po.txt"})
	require.Error(t, err)

	f, ok := failure.As(err)
	require.True(t, ok)
	assert.Equal(t, failure.KindLLM, f.Kind)
	assert.Equal(t, failure.StrategyRetry, f.Strategy)
	assert.Nil(t, f.Usage)

	assertScratchEmpty(t, dir)
}

func TestProcessUnrecognizableContent(t *testing.T) {
	proc, dir := newTestProcessor(t, &fakeStructurer{res: llm.StructureResult{Fields: wellFormedFields()}})

	_, err := proc.Process(context.Background(), Upload{Data: []byte("£€¥ ---- ???"), Filename: "po.txt"})
	require.Error(t, err)

	f, ok := failure.As(err)
	require.True(t, ok)
	assert.Equal(t, failure.KindParsing, f.Kind)
	assert.Equal(t, failure.StrategyManual, f.Strategy)
	assert.Contains(t, f.RawContent, "£€¥")

	assertScratchEmpty(t, dir)
}

func TestProcessUnsupportedExtension(t *testing.T) {
	proc, dir := newTestProcessor(t, &fakeStructurer{res: llm.StructureResult{Fields: wellFormedFields()}})

	_, err := proc.Process(context.Background(), Upload{Data: []byte("binary"), Filename: "po.docx"})
	require.Error(t, err)

	f, ok := failure.As(err)
	require.True(t, ok)
	assert.Equal(t, failure.KindFeature, f.Kind)
	assert.Equal(t, failure.StrategyAbort, f.Strategy)

	assertScratchEmpty(t, dir)
}

func TestProcessScratchWriteFailure(t *testing.T) {
	dir := t.TempDir()
	scratchDir := filepath.Join(dir, "scratch")
	proc, err := New(Config{TempDir: scratchDir, Structurer: &fakeStructurer{}})
	require.NoError(t, err)

	// Replace the scratch directory with a regular file so the next save
	// fails the way a full or broken disk would.
	require.NoError(t, os.RemoveAll(scratchDir))
	require.NoError(t, os.WriteFile(scratchDir, []byte("x"), 0o600))

	_, err = proc.Process(context.Background(), Upload{Data: []byte("text"), Filename: "po.txt"})
	require.Error(t, err)

	f, ok := failure.As(err)
	require.True(t, ok)
	assert.Equal(t, failure.KindProcessing, f.Kind)
	assert.Equal(t, failure.StrategyFallback, f.Strategy)

	// No scratch file anywhere under the parent.
	st, err := os.Stat(scratchDir)
	require.NoError(t, err)
	assert.True(t, st.Mode().IsRegular())
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	_, err := New(Config{TempDir: "", Structurer: &fakeStructurer{}})
	f, ok := failure.As(err)
	require.True(t, ok)
	assert.Equal(t, failure.KindConfiguration, f.Kind)

	_, err = New(Config{TempDir: t.TempDir()})
	f, ok = failure.As(err)
	require.True(t, ok)
	assert.Equal(t, failure.KindConfiguration, f.Kind)
}

func TestDeterministicStructuringFlag(t *testing.T) {
	proc, err := New(Config{
		TempDir:      t.TempDir(),
		FeatureFlags: []string{FlagDeterministicStructuring},
	})
	require.NoError(t, err)

	doc := "PO Number: PO-77\n" +
		"Order Date: 2026-01-09\n" +
		"Buyer: Chi Eze\n" +
		"Email: chi@example.com\n" +
		"WID-1 | Widget | 3 | 2.00 | 6.00\n"
	po, err := proc.Process(context.Background(), Upload{Data: []byte(doc), Filename: "po.txt"})
	require.NoError(t, err)
	assert.Equal(t, "PO-77", po.PONumber)
	assert.InDelta(t, 6.0, po.Total, 0.001)
}

func TestProcessorIsReusableAcrossUploads(t *testing.T) {
	proc, dir := newTestProcessor(t, &fakeStructurer{res: llm.StructureResult{Fields: wellFormedFields()}})

	for i := 0; i < 5; i++ {
		po, err := proc.Process(context.Background(), Upload{Data: []byte("text"), Filename: "po.txt"})
		require.NoError(t, err)
		assert.Equal(t, "PO-2041", po.PONumber)
	}
	assertScratchEmpty(t, dir)
}
