package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joseph-ayodele/tradedocs/internal/common"
	"github.com/joseph-ayodele/tradedocs/internal/session"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	codeUnavailable = "UNAVAILABLE"
)

type errorBody struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Response string `json:"response"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Warn("http.write_failed", "error", err)
	}
}

// writeSuccess emits {"status":"success","response":response} plus extras.
func writeSuccess(w http.ResponseWriter, status int, response any, extras map[string]any) {
	body := map[string]any{"status": statusSuccess, "response": response}
	for k, v := range extras {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// writeError maps err onto the error envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, session.ErrIllegalTransition) {
		err = common.InvalidInputError(err.Error())
	}
	status := common.HTTPStatus(err)
	msg := common.MessageOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("http.error", "path", r.URL.Path, "req_id", common.RequestIDFromContext(r.Context()), "error", err)
	} else {
		s.logger.Info("http.rejected", "path", r.URL.Path, "code", common.CodeOf(err), "msg", msg)
	}
	writeJSON(w, status, errorBody{Status: statusError, Code: common.CodeOf(err), Response: msg})
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return common.InvalidInputError("request body must be valid JSON")
	}
	return nil
}
