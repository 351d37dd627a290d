package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/panbanda/tsqlgraph/internal/output"
	"github.com/panbanda/tsqlgraph/internal/service/analysis"
	"github.com/panbanda/tsqlgraph/pkg/analyzer/callgraph"
)

var printer = message.NewPrinter(language.English)

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if !s.decode(w, r, schemaAnalyze, &req) {
		return
	}
	rep, err := s.svc.Analyze(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, rep)
}

func (s *Server) handleCallGraph(w http.ResponseWriter, r *http.Request) {
	var req analysis.CallGraphRequest
	if !s.decode(w, r, schemaCallGraph, &req) {
		return
	}
	rep, err := s.svc.CallGraph(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, rep)
}

func (s *Server) handleCallers(w http.ResponseWriter, r *http.Request) {
	var req analysis.CallersRequest
	if !s.decode(w, r, schemaCallers, &req) {
		return
	}
	rep, err := s.svc.Callers(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, rep)
}

func (s *Server) handleTerms(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if !s.decode(w, r, schemaTerms, &req) {
		return
	}
	rep, err := s.svc.Terms(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, rep)
}

// decode reads a size-limited body, validates it against the named schema
// and unmarshals it into dst. On failure the response is already written.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeStatus(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		s.writeStatus(w, r, http.StatusBadRequest, "reading request body: "+err.Error())
		return false
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		s.writeStatus(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	if err := s.schemas[schema].Validate(inst); err != nil {
		s.writeStatus(w, r, http.StatusBadRequest, validationMessage(err))
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		s.writeStatus(w, r, http.StatusBadRequest, "invalid request: "+err.Error())
		return false
	}
	return true
}

// validationMessage flattens a schema error to its leaf causes.
func validationMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			msgs = append(msgs, fmt.Sprintf("at %q: %s",
				"/"+strings.Join(e.InstanceLocation, "/"), e.ErrorKind.LocalizedString(printer)))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return "invalid request: " + strings.Join(msgs, "; ")
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var limit *callgraph.BatchLimitError
	switch {
	case errors.As(err, &limit):
		s.writeStatus(w, r, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.writeStatus(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		s.writeStatus(w, r, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeStatus(w http.ResponseWriter, r *http.Request, status int, msg string) {
	body, err := output.MarshalJSON(errorBody{Error: msg})
	if err != nil {
		http.Error(w, msg, status)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeJSON writes v with an ETag over the encoded body. Encoding is
// deterministic, so equal responses share a tag.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := output.MarshalJSON(v)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("encoding response: %w", err))
		return
	}
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(body)
}
