// Package couchtest provides an in-memory CouchDB stand-in for tests.
package couchtest

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const (
	User     = "admin"
	Password = "secret"
)

// Server serves the subset of the CouchDB API used by couchtransfer.
type Server struct {
	*httptest.Server

	// FailBulk, when set, decides whether a _bulk_docs request is rejected with HTTP 500.
	FailBulk func(docs []json.RawMessage) bool

	mu        sync.Mutex
	databases map[string][]json.RawMessage
	requests  []string
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{databases: map[string][]json.RawMessage{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Host returns the host the server listens on.
func (s *Server) Host() string {
	u, _ := url.Parse(s.URL)
	host, _, _ := net.SplitHostPort(u.Host)
	return host
}

// Port returns the port the server listens on.
func (s *Server) Port() string {
	u, _ := url.Parse(s.URL)
	_, port, _ := net.SplitHostPort(u.Host)
	return port
}

// Seed creates db holding docs.
func (s *Server) Seed(db string, docs []json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.databases[db] = append([]json.RawMessage(nil), docs...)
}

// Documents returns a copy of the documents stored in db and whether db exists.
func (s *Server) Documents(db string) ([]json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.databases[db]
	return append([]json.RawMessage(nil), docs...), ok
}

// Requests returns "METHOD path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	s.mu.Unlock()

	if user, pass, ok := r.BasicAuth(); !ok || user != User || pass != Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "reason": "Name or password is incorrect."})
		return
	}

	db, rest, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	switch {
	case rest == "" && r.Method == http.MethodGet:
		s.info(w, db)
	case rest == "" && r.Method == http.MethodPut:
		s.create(w, db)
	case rest == "_all_docs" && r.Method == http.MethodGet:
		s.allDocs(w, r, db)
	case rest == "_bulk_docs" && r.Method == http.MethodPost:
		s.bulkDocs(w, r, db)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "reason": "missing"})
	}
}

func (s *Server) info(w http.ResponseWriter, db string) {
	s.mu.Lock()
	docs, ok := s.databases[db]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "reason": "Database does not exist."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"db_name": db, "doc_count": len(docs)})
}

func (s *Server) create(w http.ResponseWriter, db string) {
	s.mu.Lock()
	_, exists := s.databases[db]
	if !exists {
		s.databases[db] = nil
	}
	s.mu.Unlock()
	if exists {
		writeJSON(w, http.StatusPreconditionFailed, map[string]string{"error": "file_exists", "reason": "The database could not be created, the file already exists."})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
}

func (s *Server) allDocs(w http.ResponseWriter, r *http.Request, db string) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = int(^uint(0) >> 1)
	}
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))

	s.mu.Lock()
	docs, ok := s.databases[db]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "reason": "Database does not exist."})
		return
	}

	rows := []map[string]any{}
	for i := skip; i < len(docs) && i-skip < limit; i++ {
		rows = append(rows, map[string]any{"id": fmt.Sprint(i), "key": fmt.Sprint(i), "doc": docs[i]})
	}
	writeJSON(w, http.StatusOK, map[string]any{"total_rows": len(docs), "offset": skip, "rows": rows})
}

func (s *Server) bulkDocs(w http.ResponseWriter, r *http.Request, db string) {
	var req struct {
		NewEdits *bool             `json:"new_edits"`
		Docs     []json.RawMessage `json:"docs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Docs == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "reason": "Missing JSON list of 'docs'"})
		return
	}
	if req.NewEdits == nil || *req.NewEdits {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "reason": "expected new_edits=false"})
		return
	}
	if s.FailBulk != nil && s.FailBulk(req.Docs) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "unknown_error", "reason": "injected failure"})
		return
	}

	s.mu.Lock()
	_, ok := s.databases[db]
	if ok {
		s.databases[db] = append(s.databases[db], req.Docs...)
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "reason": "Database does not exist."})
		return
	}
	writeJSON(w, http.StatusCreated, []any{})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
