package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sweeney/attention-sensor/internal/attention"
	"github.com/sweeney/attention-sensor/internal/capture"
	"github.com/sweeney/attention-sensor/internal/recommend"
	"github.com/sweeney/attention-sensor/internal/store"
)

const maxBodyBytes = 64 << 10

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.CurrentSample())
}

type startRequest struct {
	Target *attention.Rect `json:"target"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if t := req.Target; t != nil && (t.Width <= 0 || t.Height <= 0) {
		writeError(w, http.StatusBadRequest, "target must have positive size")
		return
	}

	target := req.Target
	if target == nil {
		target = s.target
	}
	if err := s.sim.Start(r.Context(), target, nil); err != nil {
		var cerr *capture.Error
		if errors.As(err, &cerr) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sim.CurrentSample())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.sim.Stop()
	writeJSON(w, http.StatusOK, s.sim.CurrentSample())
}

type recommendRequest struct {
	UserID  string   `json:"userId"`
	Score   *float64 `json:"attentionScore"`
	Context string   `json:"context"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var body recommendRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	req := recommend.Request{UserID: body.UserID, Context: body.Context}
	if body.Score != nil {
		req.Score = *body.Score
	} else {
		req.Score = s.sim.CurrentSample().Score
	}

	res, err := s.recs.Recommend(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if data, err := json.Marshal(res.Suggestion); err != nil {
		s.logger.Warn("recommendation not recorded", zap.Error(err))
	} else {
		s.store.Append(store.Record{UserID: req.UserID, Type: "recommendation", Data: data})
	}
	if res.Fallback {
		s.logger.Debug("served fallback recommendation", zap.String("user_id", req.UserID))
	}
	writeJSON(w, http.StatusOK, res)
}

type eventRequest struct {
	UserID string          `json:"userId"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var body eventRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(body.UserID) == "" || strings.TrimSpace(body.Type) == "" {
		writeError(w, http.StatusBadRequest, "userId and type are required")
		return
	}

	rec := s.store.Append(store.Record{UserID: body.UserID, Type: body.Type, Data: body.Data})
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{UserID: q.Get("userId"), Type: q.Get("type")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	writeJSON(w, http.StatusOK, s.store.List(f))
}

func (s *Server) eventID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.eventID(w, r)
	if !ok {
		return
	}
	rec, err := s.store.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.eventID(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(id); errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
