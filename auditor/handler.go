package auditor

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/pageaudit/internal/safeurl"
	"github.com/hazyhaar/pageaudit/report"
)

// Handler returns the HTTP API:
//
//	POST /api/audits       run audits ({"url": ...} or {"urls": [...]})
//	GET  /api/audits       list stored runs (?url=, ?limit=)
//	GET  /api/audits/{id}  one stored report (?format=json|html|markdown)
//	GET  /health
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(headToGet, apiHeaders, maxBody(maxRequestBody), requestID(s.logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/audits", func(r chi.Router) {
		r.Post("/", s.handleRun)
		r.Get("/", s.handleList)
		r.Get("/{id}", s.handleGet)
	})
	return r
}

func (s *Service) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	reps, err := s.Run(r.Context(), req)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	if len(reps) == 1 && len(req.URLs) == 0 {
		writeReport(w, http.StatusCreated, reps[0], format)
		return
	}
	writeJSON(w, http.StatusCreated, reps)
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.List(r.Context(), ListRequest{
		URL:   r.URL.Query().Get("url"),
		Limit: queryInt(r, "limit", 50),
	})
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rep, err := s.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeReport(w, http.StatusOK, rep, format)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoStore):
		return http.StatusServiceUnavailable
	case errors.Is(err, safeurl.ErrSSRF), errors.Is(err, safeurl.ErrScheme):
		return http.StatusForbidden
	case errors.Is(err, errBadRequest), errors.Is(err, safeurl.ErrInvalid):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeReport(w http.ResponseWriter, code int, rep *report.Report, f report.Format) {
	var buf bytes.Buffer
	if err := report.Render(&buf, rep, f); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.WriteHeader(code)
	w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}
