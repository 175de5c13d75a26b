package evald

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/converter-eval/internal/metrics"
	"github.com/GoSim-25-26J-441/converter-eval/internal/scoring"
	"github.com/GoSim-25-26J-441/converter-eval/internal/store"
	"github.com/GoSim-25-26J-441/converter-eval/pkg/logger"
)

// maxScoreBody bounds POST /v1/score request bodies
const maxScoreBody = 64 << 20

type HTTPServer struct {
	mux     *http.ServeMux
	store   store.Recorder
	metrics *metrics.Collector
	scoring scoring.Options
}

func NewHTTPServer(recorder store.Recorder, collector *metrics.Collector, opts scoring.Options) *HTTPServer {
	s := &HTTPServer{
		mux:     http.NewServeMux(),
		store:   recorder,
		metrics: collector,
		scoring: opts,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/evaluations", s.handleEvaluations)
	s.mux.HandleFunc("/v1/evaluations/", s.handleEvaluationByID)
	s.mux.HandleFunc("/v1/score", s.handleScore)
	if collector != nil {
		s.mux.Handle("/metrics", collector.Handler())
	}

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleEvaluations handles GET /v1/evaluations?limit=n
func (s *HTTPServer) handleEvaluations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no evaluation store configured")
		return
	}

	limit := store.DefaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 1000 {
				limit = 1000
			}
		}
	}

	recs, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []*store.Record{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"evaluations": recs,
		"count":       len(recs),
	})
}

// handleEvaluationByID handles GET /v1/evaluations/{id}
func (s *HTTPServer) handleEvaluationByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/evaluations/")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "evaluation ID is required")
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no evaluation store configured")
		return
	}

	rec, ok, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "evaluation not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"evaluation": rec})
}

// handleScore handles POST /v1/score with the ScoreLog document as JSON
func (s *HTTPServer) handleScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxScoreBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body: "+err.Error())
		return
	}

	req := &structpb.Struct{}
	if err := protojson.Unmarshal(body, req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	resp, score, err := scoreStruct(req, s.scoring)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.metrics.ObserveRemoteScore(metrics.TransportHTTP, score)

	out, err := protojson.Marshal(resp)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Debug("log scored (HTTP)", "score", score)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		logger.Error("failed to write score response", "error", err)
	}
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
