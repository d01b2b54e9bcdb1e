// Package httpapi implements the HTTP browsing surface (C9): a small
// go-chi router exposing the voicemail list, recording downloads, row
// deletion, and contact maintenance over the same store the SIP/RTP
// core writes to.
//
// Grounded on flowpbx's internal/pushgw/server.go: same router
// construction, same JSON envelope/error-writing helpers, same
// route-parameter-to-handler wiring.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/phunks/voicemail/internal/store"
)

// Server holds the HTTP browsing surface's dependencies.
type Server struct {
	router *chi.Mux
	store  *store.Store
	assets http.FileSystem
}

// NewServer builds the HTTP browsing surface with all routes mounted.
// assets, if non-nil, is served at the root for index.html/css/js; a
// nil assets serves only the /api routes.
func NewServer(st *store.Store, assets http.FileSystem) *Server {
	s := &Server{
		router: chi.NewRouter(),
		store:  st,
		assets: assets,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.Route("/api", func(r chi.Router) {
		r.Get("/all", s.handleAll)
		r.Get("/voice/{id}", s.handleVoice)
		r.Get("/del/{id}", s.handleDel)
		r.Put("/mod", s.handleMod)
	})

	if s.assets != nil {
		fileServer := http.FileServer(s.assets)
		r.Handle("/*", fileServer)
	}
}

// handleAll handles GET /api/all: the voicemail list joined with
// contact display names.
func (s *Server) handleAll(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List(r.Context())
	if err != nil {
		slog.Error("httpapi: listing voicemail failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleVoice handles GET /api/voice/{id}: streams the trimmed
// recording as audio/basic with a download filename.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	data, err := s.store.ReadVoice(r.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "recording not found")
			return
		}
		slog.Error("httpapi: reading voicemail failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "audio/basic")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%d.au"`, id))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Debug("httpapi: writing voicemail response failed", "id", id, "error", err)
	}
}

// handleDel handles GET /api/del/{id}: deletes the row and returns the
// refreshed list.
func (s *Server) handleDel(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := s.store.Delete(r.Context(), id); err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "recording not found")
			return
		}
		slog.Error("httpapi: deleting voicemail failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	entries, err := s.store.List(r.Context())
	if err != nil {
		slog.Error("httpapi: listing voicemail after delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// modRequest is the PUT /api/mod request body: an empty name deletes
// the contact, otherwise it's upserted.
type modRequest struct {
	Tel  string `json:"tel"`
	Name string `json:"name"`
}

// handleMod handles PUT /api/mod.
func (s *Server) handleMod(w http.ResponseWriter, r *http.Request) {
	var req modRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if req.Tel == "" {
		writeError(w, http.StatusBadRequest, "tel is required")
		return
	}

	var err error
	if req.Name == "" {
		err = s.store.DeleteContact(r.Context(), req.Tel)
	} else {
		err = s.store.UpsertContact(r.Context(), req.Tel, req.Name)
	}
	if err != nil {
		slog.Error("httpapi: updating contact failed", "tel", req.Tel, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, modRequest{Tel: req.Tel, Name: req.Name})
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// envelope is the standard response wrapper, matching the convention
// the rest of this module's ambient HTTP stack uses.
type envelope struct {
	Data any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Data: data}); err != nil {
		slog.Error("httpapi: encoding json response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Error: msg}); err != nil {
		slog.Error("httpapi: encoding json error response failed", "error", err)
	}
}

const maxRequestBodySize = 1 << 20

func readJSON(r *http.Request, dst any) string {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return "invalid request body"
	}
	if dec.More() {
		return "request body must contain a single json object"
	}
	return ""
}
