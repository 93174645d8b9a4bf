package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"credit-scoring/internal/common"
	"credit-scoring/internal/scoring"
	"credit-scoring/internal/storage"

	"github.com/rs/zerolog/log"
)

const (
	// defaultDecisionWindow is how far back /decisions looks without a start.
	defaultDecisionWindow = time.Hour
	defaultDecisionLimit  = 1000
	maxDecisionLimit      = 10000
)

type errorBody struct {
	Detail string `json:"detail"`
}

type decisionsBody struct {
	Start     time.Time                `json:"start"`
	End       time.Time                `json:"end"`
	Summary   storage.Summary          `json:"summary"`
	Decisions []scoring.DecisionRecord `json:"decisions"`
	Truncated bool                     `json:"truncated"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Health())
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Meta(r.Context()))
}

// handleBoom is a deliberate fault for exercising error monitoring.
func (s *Server) handleBoom(w http.ResponseWriter, r *http.Request) {
	log.Error().
		Str("request_id", scoring.RequestIDFrom(r.Context())).
		Msg("simulated failure on /boom")
	writeDetail(w, http.StatusInternalServerError, common.ErrMsgBoom)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, common.MaxRequestBytes)

	ctx, cancel := context.WithTimeout(r.Context(), s.predictTimeout)
	defer cancel()

	res, err := s.svc.ScoreJSON(ctx, body)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case scoring.IsValidationError(err):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, scoring.ErrPrediction):
		writeDetail(w, http.StatusInternalServerError, common.ErrMsgPredictFailed)
	default:
		log.Error().Err(err).Str("request_id", scoring.RequestIDFrom(r.Context())).Msg("unexpected scoring error")
		writeDetail(w, http.StatusInternalServerError, common.ErrMsgInternal)
	}
}

// handleDecisions lists logged decisions in [start, end]. Both bounds are
// optional RFC 3339 timestamps; the default window is the last hour. The
// summary covers the whole window while at most limit records are listed.
func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	end := time.Now().UTC()
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "end must be an RFC 3339 timestamp")
			return
		}
		end = t
	}
	start := end.Add(-defaultDecisionWindow)
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "start must be an RFC 3339 timestamp")
			return
		}
		start = t
	}
	if start.After(end) {
		writeDetail(w, http.StatusUnprocessableEntity, "start must not be after end")
		return
	}
	limit := defaultDecisionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxDecisionLimit {
			writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("limit must be an integer between 1 and %d", maxDecisionLimit))
			return
		}
		limit = n
	}

	win, err := s.decisions.QueryDecisions(start, end, limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to read decision log")
		writeDetail(w, http.StatusInternalServerError, common.ErrMsgInternal)
		return
	}

	writeJSON(w, http.StatusOK, decisionsBody{
		Start:     start,
		End:       end,
		Summary:   win.Summary,
		Decisions: win.Decisions,
		Truncated: win.Truncated,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeDetail(w, http.StatusNotFound, common.ErrMsgNotFound)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeDetail(w, http.StatusMethodNotAllowed, common.ErrMsgMethodNotAllow)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to write response body")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}
