package ocr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	text    string
	textErr error
	boxes   []gosseract.BoundingBox
	langs   []string
	prefix  string
	image   []byte
	closed  bool
}

func (f *fakeClient) SetImageFromBytes(data []byte) error { f.image = data; return nil }
func (f *fakeClient) SetLanguage(langs ...string) error   { f.langs = langs; return nil }
func (f *fakeClient) SetTessdataPrefix(p string) error    { f.prefix = p; return nil }
func (f *fakeClient) SetPageSegMode(gosseract.PageSegMode) error {
	return nil
}
func (f *fakeClient) Text() (string, error) { return f.text, f.textErr }
func (f *fakeClient) GetBoundingBoxes(gosseract.PageIteratorLevel) ([]gosseract.BoundingBox, error) {
	return f.boxes, nil
}
func (f *fakeClient) Close() error { f.closed = true; return nil }

func newTestEngine(cfg Config, fc *fakeClient) *Engine {
	e := NewEngine(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.clientFactory = func() Client { return fc }
	return e
}

func TestRecognize(t *testing.T) {
	fc := &fakeClient{
		text:  "GSTIN  : 27AAPFU0939F1ZV\r\n\r\n\r\n-----\nLegal Name :  ACME EXPORTS\t\n",
		boxes: []gosseract.BoundingBox{{Confidence: 90}, {Confidence: 70}},
	}
	e := newTestEngine(Config{TessdataDir: "/usr/share/tessdata"}, fc)

	res, err := e.Recognize(context.Background(), []byte("png-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "GSTIN: 27AAPFU0939F1ZV\n\nLegal Name: ACME EXPORTS", res.Text)
	assert.Equal(t, []string{"eng"}, fc.langs)
	assert.Equal(t, "/usr/share/tessdata", fc.prefix)
	assert.Equal(t, []byte("png-bytes"), fc.image)
	assert.True(t, fc.closed)
	assert.Equal(t, "eng", res.Language)
	assert.Greater(t, res.Confidence, float32(0.5))
	assert.LessOrEqual(t, res.Confidence, float32(1))
}

func TestRecognizeError(t *testing.T) {
	fc := &fakeClient{textErr: errors.New("tesseract: failed to initialize")}
	e := newTestEngine(Config{}, fc)

	_, err := e.Recognize(context.Background(), []byte("x"))
	assert.ErrorContains(t, err, "failed to initialize")
	assert.True(t, fc.closed)
}

func TestRecognizeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestEngine(Config{}, &fakeClient{}).Recognize(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHeuristicConfidence(t *testing.T) {
	low := heuristicConfidence("hello")
	high := heuristicConfidence("Invoice date 12/03/2024 total Rs. 1,250.00 GSTIN 27AAPFU0939F1ZV")
	assert.InDelta(t, 0.2, low, 1e-6)
	assert.Greater(t, high, low)
	assert.InDelta(t, 0.7*0.8+0.3*0.2, blendConfidence(0.8, 0.2), 1e-6)
	assert.InDelta(t, 0.4, blendConfidence(0, 0.4), 1e-6)
}
