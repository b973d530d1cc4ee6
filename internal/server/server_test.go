package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/tradedocs/constants"
	"github.com/joseph-ayodele/tradedocs/internal/agents"
	"github.com/joseph-ayodele/tradedocs/internal/analytics"
	"github.com/joseph-ayodele/tradedocs/internal/chat"
	"github.com/joseph-ayodele/tradedocs/internal/common"
	"github.com/joseph-ayodele/tradedocs/internal/extract"
	"github.com/joseph-ayodele/tradedocs/internal/feedback"
	"github.com/joseph-ayodele/tradedocs/internal/ingest"
	"github.com/joseph-ayodele/tradedocs/internal/llm"
	"github.com/joseph-ayodele/tradedocs/internal/pipeline"
	"github.com/joseph-ayodele/tradedocs/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBackend struct {
	calls int
	pairs []extract.KeyValue
	err   error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Analyze(context.Context, extract.Request) (extract.Analysis, error) {
	f.calls++
	return extract.Analysis{Pairs: f.pairs, Pages: 1}, f.err
}

// scripted answers each agent by the role its prompt opens with.
func scripted(prompts *[]string) llm.Generator {
	return llm.GeneratorFunc(func(_ context.Context, p string) (string, error) {
		*prompts = append(*prompts, p)
		switch {
		case strings.HasPrefix(p, "You are a Document Analysis Agent"):
			return `{"missing_fields": ["DueDate"], "critical_issues": [], "analysis_summary": "mostly complete"}`, nil
		case strings.HasPrefix(p, "You are a Compliance Validation Agent"):
			return "```json\n{\"compliance_status\": \"non-compliant\", \"risk_assessment\": \"medium\", \"violations\": [\"no due date\"], \"recommendations\": []}\n```", nil
		default:
			return "not json at all", nil
		}
	})
}

type fakeChat struct{}

func (fakeChat) Reply(_ context.Context, msg string) (chat.Reply, error) {
	if strings.TrimSpace(msg) == "" {
		return chat.Reply{}, common.InvalidInputError("No message provided")
	}
	return chat.Reply{Response: "An e-way bill is required above INR 50,000.", Sources: []string{"gst.pdf#3"}}, nil
}

type fakeAnalytics struct{}

func (fakeAnalytics) Analyze(_ context.Context, msmeID, topic string) (analytics.Result, error) {
	switch {
	case msmeID == "" || topic == "":
		return analytics.Result{}, common.InvalidInputError("Both MSME ID and topic are required")
	case msmeID == "404":
		return analytics.Result{}, common.NotFoundErrorf("MSME ID %s not found in database", msmeID)
	case msmeID == "0":
		return analytics.Result{}, common.PremiumExpiredError("Your premium has expired. Please renew to continue using the service.")
	}
	return analytics.Result{Response: "• Sales grew 12%", PremiumDays: 30}, nil
}

type fakeExport struct{}

func (fakeExport) ExportInvoicesCSV(_ context.Context, id string) ([]byte, error) {
	if id != "7" {
		return nil, common.NotFoundErrorf("MSME ID %s not found in database", id)
	}
	return []byte("invoice_id,amount\n1,100\n"), nil
}

func (fakeExport) ExportInvoicesXLSX(context.Context, string) ([]byte, error) {
	return []byte("PK"), nil
}

type fakeIngestor struct {
	docTypes []constants.DocType
}

func (f *fakeIngestor) IngestPath(_ context.Context, path string, dt constants.DocType) (ingest.IngestionResult, error) {
	f.docTypes = append(f.docTypes, dt)
	return ingest.IngestionResult{SourcePath: path, JobID: "job-1", DocType: dt}, nil
}

func (f *fakeIngestor) IngestDirectory(_ context.Context, root string, dt constants.DocType, _ bool) ([]ingest.IngestionResult, ingest.DirStats, error) {
	f.docTypes = append(f.docTypes, dt)
	return []ingest.IngestionResult{{SourcePath: root + "/a.pdf", JobID: "job-2"}}, ingest.DirStats{Scanned: 2, Matched: 1, Succeeded: 1}, nil
}

type harness struct {
	srv      *httptest.Server
	backend  *fakeBackend
	prompts  []string
	feedback *feedback.MemoryStore
	ingestor *fakeIngestor
	reg      *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend: &fakeBackend{pairs: []extract.KeyValue{
			{Key: "InvoiceId", Value: "INV-9"},
			{Key: "InvoiceTotal", Value: "118000"},
		}},
		feedback: feedback.NewMemoryStore(),
		ingestor: &fakeIngestor{},
		reg:      prometheus.NewRegistry(),
	}
	gen := scripted(&h.prompts)
	log := discardLogger()
	proc := pipeline.NewProcessor(log,
		extract.NewExtractor(h.backend, log),
		agents.NewAnalyzer(gen, log),
		agents.NewComplianceValidator(gen, log),
		agents.NewEnhancer(gen, log),
		0,
		pipeline.NewMetrics(nil),
	)
	s := New(Deps{
		Pipeline:  proc,
		Sessions:  session.NewStore(),
		Feedback:  h.feedback,
		Chat:      fakeChat{},
		Analytics: fakeAnalytics{},
		Export:    fakeExport{},
		Ingestor:  h.ingestor,
		Gatherer:  h.reg,
		Metrics:   NewHTTPMetrics(h.reg),
	}, log, WithMaxUploadMB(1))
	h.srv = httptest.NewServer(s.Handler())
	t.Cleanup(h.srv.Close)
	return h
}

type envelope struct {
	Status      string          `json:"status"`
	Code        string          `json:"code"`
	Response    json.RawMessage `json:"response"`
	PremiumDays int64           `json:"premium_days"`
	Sources     []string        `json:"sources"`
	Page        string          `json:"page"`
}

func decode(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func (h *harness) upload(t *testing.T, filename, contentType, docType string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("documentType", docType))
	require.NoError(t, mw.Close())

	resp, err := http.Post(h.srv.URL+"/documents", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func (h *harness) postJSON(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(h.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func (h *harness) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(h.srv.URL + path)
	require.NoError(t, err)
	return resp
}

func TestDocumentFlow(t *testing.T) {
	h := newHarness(t)

	resp := h.upload(t, "inv.png", "image/png", "Invoice", []byte{0x89, 'P', 'N', 'G'})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	env := decode(t, resp)
	var flow struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Response, &flow))
	require.NotEmpty(t, flow.ID)
	assert.Contains(t, string(env.Response), `"page":"review"`)
	assert.Contains(t, string(env.Response), `"InvoiceId":"INV-9"`)

	resp = h.postJSON(t, "/documents/"+flow.ID+"/process", `{"fields": {"DueDate": "2024-05-01", "InvoiceTotal": ""}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env = decode(t, resp)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "feedback", env.Page)

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(env.Response, &res))
	assert.Equal(t, extract.Fields{"InvoiceId": "INV-9", "DueDate": "2024-05-01"}, res.Extraction.Fields)
	assert.Equal(t, []string{"DueDate"}, res.Analysis.MissingFields)
	assert.Equal(t, agents.StatusNonCompliant, res.Compliance.Status)
	assert.Equal(t, agents.FallbackEnhancement(), res.Enhancement)
	assert.Equal(t, []string{pipeline.StageEnhance}, res.Degraded)
	assert.Len(t, h.prompts, 3)

	// a second process call is out of order
	resp = h.postJSON(t, "/documents/"+flow.ID+"/process", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, common.CodeInvalidInput, decode(t, resp).Code)

	resp = h.get(t, "/documents/"+flow.ID+"/feedback")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env = decode(t, resp)
	assert.Contains(t, string(env.Response), `"doc_type":"invoice"`)

	resp = h.get(t, "/documents/"+flow.ID)
	env = decode(t, resp)
	assert.Contains(t, string(env.Response), `"page":"home"`)

	recs, err := h.feedback.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, flow.ID, recs[0].ID)
}

func TestUploadValidationOrder(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		docType     string
		data        []byte
		status      int
		code        string
	}{
		{"unsupported mime wins over bad type", "a.docx", "application/msword", "passport", nil, http.StatusBadRequest, common.CodeUnsupportedFormat},
		{"unknown document type", "a.pdf", "application/pdf", "passport", []byte("%PDF"), http.StatusBadRequest, common.CodeUnsupportedFormat},
		{"empty payload", "a.png", "image/png", "gst", nil, http.StatusBadRequest, common.CodeEmptyDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			resp := h.upload(t, tt.filename, tt.contentType, tt.docType, tt.data)
			assert.Equal(t, tt.status, resp.StatusCode)
			env := decode(t, resp)
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, tt.code, env.Code)
			assert.Zero(t, h.backend.calls)
		})
	}
}

func TestUploadUpstreamFailure(t *testing.T) {
	h := newHarness(t)
	h.backend.err = errors.New("401 access denied due to invalid subscription key")

	resp := h.upload(t, "a.jpg", "image/jpeg", "pan_card", []byte{0xff, 0xd8})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	env := decode(t, resp)
	assert.Equal(t, common.CodeExtractionService, env.Code)
	assert.Contains(t, string(env.Response), "invalid subscription key")
	assert.Empty(t, h.prompts)
}

func TestUnknownDocument(t *testing.T) {
	h := newHarness(t)
	resp := h.get(t, "/documents/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, common.CodeNotFound, decode(t, resp).Code)

	resp = h.get(t, "/documents/nope")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, common.CodeInvalidInput, decode(t, resp).Code)
}

func TestAnalyzeInvoice(t *testing.T) {
	h := newHarness(t)

	resp := h.postJSON(t, "/analyze_invoice/", `{"msme_id": "42", "topic": "sales"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env := decode(t, resp)
	assert.Equal(t, `"• Sales grew 12%"`, string(env.Response))
	assert.Equal(t, int64(30), env.PremiumDays)

	tests := []struct {
		query  string
		status int
		code   string
	}{
		{"?msme_id=42", http.StatusBadRequest, common.CodeInvalidInput},
		{"?msme_id=404&topic=x", http.StatusNotFound, common.CodeNotFound},
		{"?msme_id=0&topic=x", http.StatusForbidden, common.CodePremiumExpired},
	}
	for _, tt := range tests {
		resp := h.get(t, "/analyze_invoice/"+tt.query)
		assert.Equal(t, tt.status, resp.StatusCode, tt.query)
		assert.Equal(t, tt.code, decode(t, resp).Code, tt.query)
	}

	resp = h.postJSON(t, "/analyze_invoice/", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChat(t *testing.T) {
	h := newHarness(t)
	resp := h.postJSON(t, "/chat", `{"message": "When do I need an e-way bill?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	env := decode(t, resp)
	assert.Equal(t, []string{"gst.pdf#3"}, env.Sources)

	resp = h.postJSON(t, "/chat", `{"message": ""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	resp := h.get(t, "/msme/7/invoices.csv")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "invoice_id,amount\n1,100\n", string(body))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "invoices_7.csv")

	resp = h.get(t, "/msme/8/invoices.csv")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = h.get(t, "/msme/7/invoices.xlsx")
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	resp.Body.Close()
}

func TestIngest(t *testing.T) {
	h := newHarness(t)

	resp := h.postJSON(t, "/ingest", `{"path": "/inbox/invoice/a.pdf", "document_type": "Bill of Lading"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var single struct {
		Response ingest.IngestionResult `json:"response"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&single))
	resp.Body.Close()
	assert.Equal(t, "job-1", single.Response.JobID)
	assert.Equal(t, constants.BillOfLading, single.Response.DocType)

	resp = h.postJSON(t, "/ingest", `{"root_path": "/inbox"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var dir struct {
		Stats map[string]uint32 `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dir))
	resp.Body.Close()
	assert.Equal(t, uint32(1), dir.Stats["matched"])
	assert.Equal(t, []constants.DocType{constants.BillOfLading, ""}, h.ingestor.docTypes)

	for _, body := range []string{`{}`, `{"path": "a.pdf", "root_path": "/inbox"}`, `{"path": "a.pdf", "document_type": "passport"}`} {
		resp = h.postJSON(t, "/ingest", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Equal(t, common.CodeInvalidInput, decode(t, resp).Code, body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	resp := h.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = h.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "tradedocs_http_requests_total")
	// one series each for /healthz and /metrics; the latter lands after the body is sent
	assert.Eventually(t, func() bool {
		return testutil.CollectAndCount(h.reg, "tradedocs_http_requests_total") == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHealthzReportsFailure(t *testing.T) {
	s := New(Deps{Health: func(context.Context) error { return errors.New("db down") }}, discardLogger())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), codeUnavailable)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestGRPCHealthFollowsCheck(t *testing.T) {
	hs := health.NewServer()
	ctx := context.Background()

	st := UpdateHealth(ctx, hs, func(context.Context) error { return errors.New("db down") }, discardLogger())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)
	resp, err := hs.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	UpdateHealth(ctx, hs, func(context.Context) error { return nil }, discardLogger())
	resp, err = hs.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestApplyEdits(t *testing.T) {
	in := extract.Fields{"a": "1", "b": "2"}
	out := applyEdits(in, map[string]string{"a": "9", "b": " ", "c": "3", " ": "x"})
	assert.Equal(t, extract.Fields{"a": "9", "c": "3"}, out)
	assert.Equal(t, extract.Fields{"a": "1", "b": "2"}, in)
}
