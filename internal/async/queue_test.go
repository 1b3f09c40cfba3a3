package async

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oluwaseun-a/po-tracker/internal/failure"
	"github.com/oluwaseun-a/po-tracker/internal/pipeline"
)

const goodDocument = `PO: PO-2024-010
Status: confirmed
Date: 2024-03-15
Buyer: Amaka Eze
Email: amaka@buyer.example
Deliver To: Dock 3, Apapa

WID-1 | Widget, large | 4 | 2.50 | 10.00
GAD-2 | Gadget | 2 | 15.00 | 30.00

Total: 40.00
`

func newDeterministicProcessor(t *testing.T) *pipeline.Processor {
	t.Helper()
	proc, err := pipeline.New(pipeline.Config{
		TempDir:      t.TempDir(),
		FeatureFlags: []string{pipeline.FlagDeterministicStructuring},
	})
	require.NoError(t, err)
	return proc
}

func TestQueueProcessesJobs(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(good, []byte(goodDocument), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte("dear sir, attached please find our requirements"), 0o600))

	q := NewQueue(newDeterministicProcessor(t), 2, 8, nil)
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: good}))
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: bad}))
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: filepath.Join(dir, "missing.txt")}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go func() { _ = q.Shutdown(ctx) }()

	byPath := map[string]Result{}
	for res := range q.Results() {
		byPath[res.Job.Path] = res
	}
	require.Len(t, byPath, 3)

	ok := byPath[good]
	require.NoError(t, ok.Err)
	require.NotNil(t, ok.Order)
	assert.Equal(t, "PO-2024-010", ok.Order.PONumber)
	assert.NotEmpty(t, ok.Job.TraceID)
	assert.False(t, ok.Job.SubmittedAt.IsZero())

	parseFail := byPath[bad]
	require.Error(t, parseFail.Err)
	f, isFailure := failure.As(parseFail.Err)
	require.True(t, isFailure)
	assert.Equal(t, failure.KindParsing, f.Kind)
	assert.Equal(t, failure.StrategyManual, f.Strategy)

	readFail := byPath[filepath.Join(dir, "missing.txt")]
	require.Error(t, readFail.Err)
	assert.Nil(t, readFail.Order)
}

func TestQueueShutdownWaitsForInFlight(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(p, []byte(goodDocument), 0o600))

	q := NewQueue(newDeterministicProcessor(t), 1, 1, nil)
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: p}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))

	n := 0
	for range q.Results() {
		n++
	}
	assert.Equal(t, 1, n)
}

func TestQueueEnqueueHonorsContext(t *testing.T) {
	// One worker, no buffers: the worker takes the first job, finishes it fast
	// (missing file) and blocks handing off the result, so the second enqueue
	// has nowhere to go and must observe the cancelled context.
	q := NewQueue(newDeterministicProcessor(t), 1, 0, nil)
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "does-not-exist"}))

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	err := q.Enqueue(cancelled, Job{Path: "second"})
	require.ErrorIs(t, err, context.Canceled)

	<-q.Results()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))
}
