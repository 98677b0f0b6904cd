package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/respcache/pkg/models"
)

type lookupRequest struct {
	ModelID string        `json:"model_id"`
	Params  models.Params `json:"params"`
}

type addEntryRequest struct {
	ModelID   string        `json:"model_id"`
	Responses []string      `json:"responses"`
	Params    models.Params `json:"params"`
}

type statsResponse struct {
	Totals models.CacheStats     `json:"totals"`
	Models []models.ModelSummary `json:"models"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	totals, err := s.store.Stats(r.Context())
	if err != nil {
		s.internalError(w, "stats", err)
		return
	}
	summaries, err := s.store.Summaries(r.Context())
	if err != nil {
		s.internalError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Totals: totals, Models: summaries})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ModelID == "" {
		writeError(w, http.StatusBadRequest, "model_id is required")
		return
	}

	responses, ok, err := s.store.GetEntry(r.Context(), req.ModelID, req.Params)
	if err != nil {
		if errors.Is(err, models.ErrInvalidParameterType) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.internalError(w, "lookup", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "miss")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"responses": responses})
}

func (s *Server) addEntry(w http.ResponseWriter, r *http.Request) {
	var req addEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ModelID == "" {
		writeError(w, http.StatusBadRequest, "model_id is required")
		return
	}
	if len(req.Responses) == 0 {
		writeError(w, http.StatusBadRequest, "responses must not be empty")
		return
	}

	if err := s.store.AddEntry(r.Context(), req.ModelID, req.Responses, req.Params); err != nil {
		if errors.Is(err, models.ErrInvalidParameterType) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.internalError(w, "add entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

// clear accepts model_id, created_before and accessed_before query
// parameters. Times are RFC3339.
func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ClearFilter{ModelID: q.Get("model_id")}

	var err error
	if filter.CreatedBefore, err = parseTimeParam(q.Get("created_before")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid created_before: must be RFC3339 format")
		return
	}
	if filter.AccessedBefore, err = parseTimeParam(q.Get("accessed_before")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid accessed_before: must be RFC3339 format")
		return
	}

	deleted, err := s.store.Clear(r.Context(), filter)
	if err != nil {
		s.internalError(w, "clear", err)
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{Deleted: deleted, Filters: echoFilter(filter)})
}

// clearFilters echoes only the filters that were set.
type clearFilters struct {
	ModelID        string     `json:"model_id,omitempty"`
	CreatedBefore  *time.Time `json:"created_before,omitempty"`
	AccessedBefore *time.Time `json:"accessed_before,omitempty"`
}

type clearResponse struct {
	Deleted int64        `json:"deleted"`
	Filters clearFilters `json:"filters"`
}

func echoFilter(f models.ClearFilter) clearFilters {
	out := clearFilters{ModelID: f.ModelID}
	if !f.CreatedBefore.IsZero() {
		t := f.CreatedBefore.UTC()
		out.CreatedBefore = &t
	}
	if !f.AccessedBefore.IsZero() {
		t := f.AccessedBefore.UTC()
		out.AccessedBefore = &t
	}
	return out
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 10<<20))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, models.ErrInvalidParameterType) {
			writeError(w, http.StatusBadRequest, err.Error())
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.Error(op+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, op+" failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
