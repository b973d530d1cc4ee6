package async

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tradedocs/constants"
	"github.com/joseph-ayodele/tradedocs/internal/extract"
	"github.com/joseph-ayodele/tradedocs/internal/pipeline"
)

type runnerFunc func(ctx context.Context, req extract.Request) (pipeline.Result, error)

func (f runnerFunc) Run(ctx context.Context, req extract.Request) (pipeline.Result, error) {
	return f(ctx, req)
}

type outcome struct {
	job    Job
	status constants.JobStatus
	err    error
}

type collector struct {
	mu  sync.Mutex
	out []outcome
}

func (c *collector) Done(_ context.Context, job Job, status constants.JobStatus, _ pipeline.Result, err error) {
	c.mu.Lock()
	c.out = append(c.out, outcome{job, status, err})
	c.mu.Unlock()
}

func TestQueueProcessesAndDrains(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "inv.png")
	bad := filepath.Join(dir, "gst.pdf")
	require.NoError(t, os.WriteFile(good, []byte{0x89, 'P', 'N', 'G'}, 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("%PDF"), 0o644))

	var seen sync.Map
	runner := runnerFunc(func(_ context.Context, req extract.Request) (pipeline.Result, error) {
		seen.Store(req.Filename, req.MIMEType)
		if req.DocType == constants.GSTCertificate {
			return pipeline.Result{}, errors.New("upstream 500")
		}
		return pipeline.Result{RequestID: "r1"}, nil
	})
	sink := &collector{}
	q := NewProcessorQueue(runner, nil, WithWorkers(2), WithQueueSize(4), WithSink(sink))

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Job{Path: good, DocType: constants.Invoice}))
	require.NoError(t, q.Enqueue(ctx, Job{Path: bad, DocType: constants.GSTCertificate}))
	require.NoError(t, q.Enqueue(ctx, Job{Path: filepath.Join(dir, "missing.png"), DocType: constants.Invoice}))

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	q.Shutdown(shutdownCtx)

	require.Len(t, sink.out, 3)
	statuses := map[string]constants.JobStatus{}
	for _, o := range sink.out {
		statuses[filepath.Base(o.job.Path)] = o.status
	}
	assert.Equal(t, constants.JobStatusValidated, statuses["inv.png"])
	assert.Equal(t, constants.JobStatusFailed, statuses["gst.pdf"])
	assert.Equal(t, constants.JobStatusFailed, statuses["missing.png"])

	mt, _ := seen.Load("inv.png")
	assert.Equal(t, constants.MIMEPNG, mt)

	assert.ErrorIs(t, q.Enqueue(ctx, Job{Path: good}), ErrQueueClosed)
}

func TestEnqueueRespectsContext(t *testing.T) {
	block := make(chan struct{})
	runner := runnerFunc(func(context.Context, extract.Request) (pipeline.Result, error) {
		<-block
		return pipeline.Result{}, nil
	})
	dir := t.TempDir()
	p := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(p, []byte{1}, 0o644))

	q := NewProcessorQueue(runner, nil, WithWorkers(1), WithQueueSize(1))
	// one job in flight, one buffered
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: p}))
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: p}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(ctx, Job{Path: p}), context.DeadlineExceeded)

	close(block)
	q.Shutdown(context.Background())
}
