package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"corrboard/internal/dashboard"
	"corrboard/internal/domain"
	"corrboard/internal/store"
)

// Ranker produces correlation reports.
type Ranker interface {
	Run(ctx context.Context, p dashboard.Params) (*dashboard.Report, error)
}

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// Server serves the correlation API.
type Server struct {
	ranker Ranker
	runs   store.RunStore // nil disables the history routes
	log    *slog.Logger
}

// NewServer creates a Server. runs may be nil.
func NewServer(ranker Ranker, runs store.RunStore, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{ranker: ranker, runs: runs, log: log.With("component", "httpapi")}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/correlations", s.handleCorrelations)
	mux.HandleFunc("GET /api/correlations/chart.png", s.handleChart)
	if s.runs != nil {
		mux.HandleFunc("GET /api/runs", s.handleListRuns)
		mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	}
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

// StatusFor maps a ranking error to an HTTP status: bad parameters are 400,
// data conditions that leave nothing to rank are 422, anything else is an
// upstream failure.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNeedTwoAssets),
		errors.Is(err, domain.ErrNoData),
		errors.Is(err, domain.ErrInsufficientData),
		errors.Is(err, domain.ErrEmptyMatrix):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// parseParams reads ranking parameters from the query string.
func parseParams(r *http.Request) (dashboard.Params, error) {
	q := r.URL.Query()
	p := dashboard.Params{
		Tickers:   q.Get("tickers"),
		Timeframe: q.Get("timeframe"),
		Method:    q.Get("method"),
		Lag:       q.Get("lag"),
	}
	if v := q.Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("%w: top %q", domain.ErrInvalidParams, v)
		}
		p.TopN = dashboard.ClampTopN(n)
	}
	return p, nil
}

func (s *Server) rank(w http.ResponseWriter, r *http.Request) (*dashboard.Report, bool) {
	p, err := parseParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	rep, err := s.ranker.Run(r.Context(), p)
	if err != nil {
		status := StatusFor(err)
		if status >= 500 {
			s.log.Error("ranking failed", "tickers", p.Tickers, "error", err)
		}
		writeError(w, status, err.Error())
		return nil, false
	}
	return rep, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleCorrelations(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.rank(w, r)
	if !ok {
		return
	}
	writeJSON(w, rep)
}

// handleChart renders the top pairs as PNG; lagged=true charts the lagged
// pairs instead.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.rank(w, r)
	if !ok {
		return
	}
	pairs := rep.Pairs
	title := fmt.Sprintf("Top %d correlated pairs (%s, %s)", rep.TopN, rep.Timeframe.Name, rep.Method)
	if lagged, _ := strconv.ParseBool(r.URL.Query().Get("lagged")); lagged {
		if rep.LaggedMatrix == nil {
			writeError(w, http.StatusUnprocessableEntity, "no lagged correlations for this request")
			return
		}
		pairs = rep.LaggedPairs
		title = fmt.Sprintf("Top %d lagged pairs (lag %s)", rep.TopN, rep.Lag)
	}

	png, err := dashboard.RenderPairsChart(title, pairs)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Write(png)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.log.Error("listing runs", "error", err)
		writeError(w, http.StatusInternalServerError, "listing runs failed")
		return
	}
	resp := RunsResponse{Count: len(runs), Runs: make([]RunSummaryJSON, len(runs))}
	for i, run := range runs {
		resp.Runs[i] = toRunSummary(run)
	}
	writeJSON(w, resp)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	run, err := s.runs.GetRun(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.log.Error("loading run", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "loading run failed")
		return
	}
	writeJSON(w, run)
}
