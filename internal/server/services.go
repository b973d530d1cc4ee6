package server

import (
	"net/http"
	"strings"

	"github.com/joseph-ayodele/tradedocs/constants"
	"github.com/joseph-ayodele/tradedocs/internal/common"
	"github.com/joseph-ayodele/tradedocs/internal/ingest"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	reply, err := s.deps.Chat.Reply(r.Context(), req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var extras map[string]any
	if len(reply.Sources) > 0 {
		extras = map[string]any{"sources": reply.Sources}
	}
	writeSuccess(w, http.StatusOK, reply.Response, extras)
}

type analyzeRequest struct {
	MSMEID string `json:"msme_id"`
	Topic  string `json:"topic"`
}

// handleAnalyze accepts the query string on GET and a JSON body on POST.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if r.Method == http.MethodPost {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else {
		q := r.URL.Query()
		req.MSMEID, req.Topic = q.Get("msme_id"), q.Get("topic")
	}

	ctx := common.WithMSMEID(r.Context(), req.MSMEID)
	res, err := s.deps.Analytics.Analyze(ctx, strings.TrimSpace(req.MSMEID), strings.TrimSpace(req.Topic))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, res.Response, map[string]any{"premium_days": res.PremiumDays})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	data, err := s.deps.Export.ExportInvoicesCSV(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAttachment(w, "text/csv; charset=utf-8", "invoices_"+id+".csv", data)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	data, err := s.deps.Export.ExportInvoicesXLSX(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAttachment(w, xlsxContentType, "invoices_"+id+".xlsx", data)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type ingestRequest struct {
	Path         string `json:"path"`
	RootPath     string `json:"root_path"`
	DocumentType string `json:"document_type"`
	SkipHidden   *bool  `json:"skip_hidden"`
}

// handleIngest queues a file or a directory tree from the server's filesystem.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	path, root := strings.TrimSpace(req.Path), strings.TrimSpace(req.RootPath)
	if (path == "") == (root == "") {
		s.writeError(w, r, common.InvalidInputError("exactly one of path or root_path is required"))
		return
	}
	var docType constants.DocType
	if strings.TrimSpace(req.DocumentType) != "" {
		if err := common.NewValidator().Field("document_type", req.DocumentType, common.DocType).Err(); err != nil {
			s.writeError(w, r, err)
			return
		}
		docType, _ = constants.Canonicalize(req.DocumentType)
	}

	if path != "" {
		res, err := s.deps.Ingestor.IngestPath(r.Context(), path, docType)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeSuccess(w, http.StatusAccepted, res, nil)
		return
	}

	skipHidden := true
	if req.SkipHidden != nil {
		skipHidden = *req.SkipHidden
	}
	results, stats, err := s.deps.Ingestor.IngestDirectory(r.Context(), root, docType, skipHidden)
	if err != nil {
		s.writeError(w, r, common.InvalidInputError(err.Error()))
		return
	}
	writeSuccess(w, http.StatusAccepted, results, map[string]any{"stats": ingestStats(stats)})
}

func ingestStats(st ingest.DirStats) map[string]uint32 {
	return map[string]uint32{
		"scanned":      st.Scanned,
		"matched":      st.Matched,
		"succeeded":    st.Succeeded,
		"deduplicated": st.Deduplicated,
		"failed":       st.Failed,
	}
}
