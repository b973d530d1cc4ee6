package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/tradedocs/constants"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job asks for one document on disk to be validated.
type Job struct {
	ID          string
	Path        string
	DocType     constants.DocType
	HashHex     string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
