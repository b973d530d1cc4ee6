package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/tradedocs/constants"
	"github.com/joseph-ayodele/tradedocs/internal/common"
	"github.com/joseph-ayodele/tradedocs/internal/extract"
	"github.com/joseph-ayodele/tradedocs/internal/feedback"
	"github.com/joseph-ayodele/tradedocs/internal/session"
)

// handleUpload extracts an uploaded document and leaves its flow on the Review page.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, common.InvalidInputError(fmt.Sprintf("file exceeds %d MB", s.maxUploadBytes>>20)))
			return
		}
		s.writeError(w, r, common.InvalidInputError("request must be multipart/form-data"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, common.InvalidInputError("No file uploaded"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, common.InvalidInputError("could not read uploaded file"))
		return
	}

	mimeType := constants.NormalizeMIME(header.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = constants.MIMEFromExt(filepath.Ext(header.Filename))
	}
	// unknown hints are rejected by the extractor, after the MIME check
	docType := constants.DocType(r.FormValue("documentType"))
	if dt, ok := constants.Canonicalize(string(docType)); ok {
		docType = dt
	}

	flow := s.deps.Sessions.Create()
	if _, err := s.deps.Sessions.Update(flow.ID, func(f *session.Flow) error {
		return f.Transition(session.Upload)
	}); err != nil {
		s.writeError(w, r, err)
		return
	}

	doc, err := s.deps.Pipeline.Extract(r.Context(), extract.Request{
		Data:     data,
		MIMEType: mimeType,
		DocType:  docType,
		Filename: header.Filename,
	})
	if err != nil {
		s.deps.Sessions.Delete(flow.ID)
		s.writeError(w, r, err)
		return
	}

	flow, err = s.deps.Sessions.Update(flow.ID, func(f *session.Flow) error {
		f.DocType = doc.DocType
		f.Filename = header.Filename
		f.Extraction = &doc
		return f.Transition(session.Review)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("documents.extracted", "id", flow.ID, "doc_type", doc.DocType, "fields", len(doc.Fields))
	writeSuccess(w, http.StatusCreated, flow, nil)
}

// documentID returns the {id} path value, which must be a flow UUID.
func documentID(r *http.Request) (string, error) {
	id := r.PathValue("id")
	return id, common.NewValidator().Field("id", id, common.UUID).Err()
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	flow, err := s.deps.Sessions.Get(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, flow, nil)
}

type processRequest struct {
	// Fields overrides extracted values; an empty value removes the field.
	Fields map[string]string `json:"fields"`
}

// handleProcess runs the agent stages over the (possibly edited) extraction.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req processRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	flow, err := s.deps.Sessions.Get(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !session.CanTransition(flow.Page, session.Feedback) || flow.Extraction == nil {
		s.writeError(w, r, fmt.Errorf("%w: %s -> %s", session.ErrIllegalTransition, flow.Page, session.Feedback))
		return
	}

	doc := *flow.Extraction
	doc.Fields = applyEdits(doc.Fields, req.Fields)

	res := s.deps.Pipeline.RunExtracted(r.Context(), doc)

	flow, err = s.deps.Sessions.Update(id, func(f *session.Flow) error {
		if err := f.Transition(session.Feedback); err != nil {
			return err
		}
		f.Result = &res
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rec := feedback.Record{
		ID:        id,
		DocType:   flow.DocType,
		Filename:  flow.Filename,
		Result:    res,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.deps.Feedback.Save(r.Context(), rec); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("documents.validated", "id", id, "degraded", res.Degraded, "elapsed_ms", res.ElapsedMS)
	writeSuccess(w, http.StatusOK, res, map[string]any{"id": id, "page": flow.Page})
}

// handleFeedback returns the stored bundle and sends the flow back Home.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.deps.Feedback.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.deps.Sessions.Update(id, func(f *session.Flow) error {
		return f.Transition(session.Home)
	}); err != nil && !errors.Is(err, common.ErrNotFound) {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, rec, nil)
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, r, common.InvalidInputError("limit must be a positive integer"))
			return
		}
		limit = n
	}
	recs, err := s.deps.Feedback.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, recs, nil)
}

func applyEdits(fields extract.Fields, edits map[string]string) extract.Fields {
	out := fields.Clone()
	for k, v := range edits {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if strings.TrimSpace(v) == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}
