package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/tradedocs/constants"
)

// Fields is the flat field name -> value mapping extracted from one document.
type Fields map[string]string

// Clone returns an independent copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Document is the immutable result of extracting one uploaded document.
type Document struct {
	DocType  constants.DocType `json:"doc_type"`
	MIMEType string            `json:"mime_type"`
	Filename string            `json:"filename,omitempty"`
	Fields   Fields            `json:"fields"`
	Lines    []string          `json:"lines,omitempty"`
	Pages    int               `json:"pages"`
	Backend  string            `json:"backend"`
	Duration time.Duration     `json:"duration_ns"`
}

// Request carries one raw document into the extractor.
type Request struct {
	Data     []byte
	MIMEType string
	DocType  constants.DocType
	Filename string
}

// KeyValue is one pair as the upstream service reported it, in order.
type KeyValue struct {
	Key   string
	Value string
}

// Analysis is what a backend returns before fields are assembled.
type Analysis struct {
	Pairs []KeyValue
	Lines []string
	Pages int
}

// Backend wraps one document-intelligence service. It is called at most once per Extract.
type Backend interface {
	Name() string
	Analyze(ctx context.Context, req Request) (Analysis, error)
}
