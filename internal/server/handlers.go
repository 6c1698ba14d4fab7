package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ivlev/stitchpreview/internal/composition"
	"github.com/ivlev/stitchpreview/internal/director"
	"github.com/ivlev/stitchpreview/internal/poster"
	"github.com/ivlev/stitchpreview/internal/progress"
	"github.com/ivlev/stitchpreview/internal/resolver"
	"github.com/ivlev/stitchpreview/internal/sequencer"
	"github.com/ivlev/stitchpreview/internal/source"
)

type sessionResponse struct {
	ID          string `json:"id"`
	Composition string `json:"composition"`
	State       string `json:"state"`
	Outcome     string `json:"outcome"`
	Cause       string `json:"cause,omitempty"`
}

type openRequest struct {
	Composition string `json:"composition"`
}

// frameResponse adds the playable locator of each column's active scene.
type frameResponse struct {
	sequencer.FrameState
	Media []string `json:"media"`
}

type errorResponse struct {
	Error string `json:"error"`
	State string `json:"state,omitempty"`
}

func (s *Server) listCompositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON", "")
			return
		}
	}
	id := req.Composition
	if id == "" {
		id = s.defaultID
	}

	comp, err := s.registry.Lookup(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error()+" (known: "+strings.Join(s.registry.IDs(), ", ")+")", "")
		return
	}

	inst, err := comp.Open(s.ctx, s.fetcher, s.logger)
	if err != nil {
		s.logger.Error().Err(err).Str("composition", id).Msg("failed to open session")
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	for _, gone := range s.sessions.add(inst) {
		s.logger.Info().Str("session", gone).Msg("session evicted")
	}
	s.logger.Info().Str("session", inst.ID()).Str("composition", comp.ID).Int("open", s.sessions.count()).Msg("session opened")

	writeJSON(w, http.StatusCreated, describe(inst))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, describe(inst))
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(mux.Vars(r)["id"]) {
		writeError(w, http.StatusNotFound, "session not found", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getLayout(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	layout, err := inst.Layout()
	if err != nil {
		writeInstanceError(w, inst, err)
		return
	}
	writeJSON(w, http.StatusOK, layout)
}

func (s *Server) getCues(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	layout, err := inst.Layout()
	if err != nil {
		writeInstanceError(w, inst, err)
		return
	}
	comp := inst.Composition()
	w.Header().Set("Content-Type", "application/yaml")
	if err := director.EncodeCueSheet(w, director.Build(comp.ID, comp.FPS, layout)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write cue sheet")
	}
}

// getTimeline returns the resolved timeline, or a single track with ?track=.
func (s *Server) getTimeline(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	desc, err := inst.Timeline()
	if err != nil {
		writeInstanceError(w, inst, err)
		return
	}
	if name := r.URL.Query().Get("track"); name != "" {
		track, found := desc.Track(name)
		if !found {
			writeError(w, http.StatusNotFound, "track not found: "+name, "")
			return
		}
		writeJSON(w, http.StatusOK, track)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) getFrame(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	frame, err := strconv.Atoi(mux.Vars(r)["frame"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid frame", "")
		return
	}
	state, err := inst.Frame(frame)
	if err != nil {
		writeInstanceError(w, inst, err)
		return
	}

	resp := frameResponse{FrameState: state, Media: make([]string, len(state.Columns))}
	for i, c := range state.Columns {
		if c.Active {
			resp.Media[i] = s.media.Resolve(c.Scene.Scene.VideoFile)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getPoster(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	frame, err := strconv.Atoi(mux.Vars(r)["frame"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid frame", "")
		return
	}
	layout, err := inst.Layout()
	if err != nil {
		writeInstanceError(w, inst, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := poster.Encode(w, layout, frame); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write poster")
	}
}

// serveManifest proxies the manifest through the configured fetcher, so the
// same document is served whether it lives on disk, over HTTP or in S3.
func (s *Server) serveManifest(w http.ResponseWriter, r *http.Request) {
	data, err := s.fetcher.Fetch(r.Context())
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.Warn().Err(err).Str("manifest", s.fetcher.Location()).Msg("manifest unavailable")
		http.Error(w, "manifest unavailable", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// serveProgress serves the phase report written by a concurrent render.
func (s *Server) serveProgress(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(filepath.Join(s.progress, progress.ProgressFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		s.logger.Warn().Err(err).Str("dir", s.progress).Msg("progress unavailable")
		http.Error(w, "progress unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*composition.Instance, bool) {
	inst, ok := s.sessions.get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "session not found", "")
	}
	return inst, ok
}

func describe(inst *composition.Instance) sessionResponse {
	outcome, cause := inst.Outcome()
	resp := sessionResponse{
		ID:          inst.ID(),
		Composition: inst.Composition().ID,
		State:       inst.State().String(),
		Outcome:     outcome.String(),
	}
	if cause != nil {
		resp.Cause = cause.Error()
	}
	return resp
}

func writeInstanceError(w http.ResponseWriter, inst *composition.Instance, err error) {
	switch {
	case errors.Is(err, composition.ErrNotReady):
		writeError(w, http.StatusConflict, err.Error(), inst.State().String())
	case errors.Is(err, resolver.ErrAbandoned):
		writeError(w, http.StatusGone, err.Error(), inst.State().String())
	default:
		writeError(w, http.StatusInternalServerError, err.Error(), "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, state string) {
	writeJSON(w, status, errorResponse{Error: msg, State: state})
}
