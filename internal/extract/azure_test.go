package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tradedocs/constants"
)

func TestAzureBackendPollsUntilSucceeded(t *testing.T) {
	var polls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			assert.Equal(t, "secret", r.Header.Get("Ocp-Apim-Subscription-Key"))
			assert.True(t, strings.Contains(r.URL.Path, "prebuilt-invoice:analyze"))
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.NotEmpty(t, body["base64Source"])
			w.Header().Set("Operation-Location", srv.URL+"/operations/1")
			w.WriteHeader(http.StatusAccepted)
		case r.Method == http.MethodGet:
			if polls.Add(1) < 2 {
				_, _ = w.Write([]byte(`{"status":"running"}`))
				return
			}
			_, _ = w.Write([]byte(`{
				"status": "succeeded",
				"analyzeResult": {
					"pages": [{"lines": [{"content": "TAX INVOICE"}, {"content": "Invoice No: INV-9"}]}],
					"keyValuePairs": [
						{"key": {"content": "Invoice No:"}, "value": {"content": "INV-9"}},
						{"key": {"content": "Signature"}}
					],
					"documents": [{"fields": {"InvoiceTotal": {"content": "₹1,000"}, "Invoice No": {"content": "INV-9"}}}]
				}
			}`))
		}
	}))
	defer srv.Close()

	b := NewAzureBackend(AzureConfig{Endpoint: srv.URL + "/", APIKey: "secret", PollEvery: 5 * time.Millisecond}, discardLogger(),
		WithAzureHTTPClient(srv.Client()))
	res, err := b.Analyze(context.Background(), Request{Data: []byte("img"), MIMEType: constants.MIMEPNG, DocType: constants.Invoice})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, []string{"TAX INVOICE", "Invoice No: INV-9"}, res.Lines)
	assert.Equal(t, []KeyValue{{Key: "Invoice No:", Value: "INV-9"}, {Key: "InvoiceTotal", Value: "₹1,000"}}, res.Pairs)
	assert.Equal(t, int32(2), polls.Load())
}

func TestAzureBackendFailures(t *testing.T) {
	t.Run("auth rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"code":"401","message":"Access denied"}}`, http.StatusUnauthorized)
		}))
		defer srv.Close()

		b := NewAzureBackend(AzureConfig{Endpoint: srv.URL, APIKey: "bad"}, discardLogger())
		_, err := b.Analyze(context.Background(), Request{Data: []byte("x"), DocType: constants.PANCard})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("analysis failed", func(t *testing.T) {
		var srv *httptest.Server
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				w.Header().Set("Operation-Location", srv.URL+"/operations/2")
				w.WriteHeader(http.StatusAccepted)
				return
			}
			_, _ = w.Write([]byte(`{"status":"failed","error":{"code":"InvalidContent","message":"The file is corrupted"}}`))
		}))
		defer srv.Close()

		b := NewAzureBackend(AzureConfig{Endpoint: srv.URL, APIKey: "k"}, discardLogger())
		_, err := b.Analyze(context.Background(), Request{Data: []byte("x"), DocType: constants.BillOfLading})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "The file is corrupted")
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := NewAzureBackend(AzureConfig{}, discardLogger()).Analyze(context.Background(), Request{Data: []byte("x")})
		assert.Error(t, err)
	})
}
