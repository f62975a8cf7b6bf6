package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"tradeflow/internal/domain"
	"tradeflow/internal/ledger"
	"tradeflow/internal/pipeline"
	"tradeflow/internal/refdata"
	"tradeflow/internal/store"
	"tradeflow/internal/util"
)

// TraceHeader carries the request's trace id. Submissions without one get a
// generated id; the header is always echoed on the response.
const TraceHeader = "X-Trace-Id"

// Server serves the order pipeline HTTP API.
type Server struct {
	orchestrator *pipeline.Orchestrator
	outcomes     store.OutcomeStore
	ledger       *ledger.Ledger
	ref          *refdata.Service
	metrics      *pipeline.Metrics
	log          *slog.Logger
}

// NewServer creates the API server.
func NewServer(orchestrator *pipeline.Orchestrator, outcomes store.OutcomeStore, led *ledger.Ledger, ref *refdata.Service, metrics *pipeline.Metrics, log *slog.Logger) *Server {
	return &Server{
		orchestrator: orchestrator,
		outcomes:     outcomes,
		ledger:       led,
		ref:          ref,
		metrics:      metrics,
		log:          log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/orders", s.handleSubmit(domain.WorkflowStandard))
	mux.HandleFunc("POST /api/v1/orders/institutional", s.handleSubmit(domain.WorkflowInstitutional))
	mux.HandleFunc("POST /api/v1/orders/algo", s.handleSubmit(domain.WorkflowAlgorithmic))
	mux.HandleFunc("GET /api/v1/orders/{id}", s.handleGetOrder)
	mux.HandleFunc("GET /api/v1/orders", s.handleListOrders)
	mux.HandleFunc("GET /api/v1/prices/{symbol}", s.handleGetPrice)
	mux.HandleFunc("GET /api/v1/positions", s.handlePositions)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /{$}", s.handleHealth)
}

// Handler returns an http.Handler with trace and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(traceMiddleware(mux))
}

// traceMiddleware propagates the inbound trace id (or generates one) through
// the request context and echoes it on the response.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			traceID = util.NewTraceID()
		}
		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(util.WithTraceID(r.Context(), traceID)))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+TraceHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// outcomeStatus maps a terminal outcome to an HTTP status: executed orders
// are 200, rejections 422, and infrastructure failures 502.
func outcomeStatus(outcome *domain.OrderOutcome) int {
	switch outcome.Status {
	case domain.StatusRejected:
		return http.StatusUnprocessableEntity
	case domain.StatusError:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}

func (s *Server) handleSubmit(workflow domain.Workflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Symbol == "" || req.Side == "" {
			writeError(w, http.StatusBadRequest, "symbol and side are required")
			return
		}
		req.Symbol = strings.ToUpper(req.Symbol)
		req.Side = strings.ToUpper(req.Side)

		outcome := s.orchestrator.Process(r.Context(), req.toOrder(), workflow)
		writeJSON(w, outcomeStatus(outcome), outcome)
	}
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	outcome, err := s.outcomes.GetOutcome(r.Context(), id)
	if err != nil {
		s.log.Error("reading outcome", "order_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read order")
		return
	}
	if outcome == nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	status := domain.OrderStatus(strings.ToUpper(r.URL.Query().Get("status")))
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	outcomes, err := s.outcomes.ListOutcomes(r.Context(), status, limit)
	if err != nil {
		s.log.Error("listing outcomes", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if outcomes == nil {
		outcomes = []domain.OrderOutcome{}
	}
	writeJSON(w, http.StatusOK, OrderListResponse{Orders: outcomes, Count: len(outcomes)})
}

func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))

	meta, ok := s.ref.Metadata(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol")
		return
	}
	price, _ := s.ref.BasePrice(symbol)
	writeJSON(w, http.StatusOK, PriceResponse{
		Symbol:        symbol,
		Price:         price,
		Exchange:      meta.Exchange,
		Sector:        meta.Sector,
		Tradeable:     meta.Tradeable,
		FeedAvailable: s.ref.FeedAvailable(symbol),
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: "tradeflow"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}
