package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"StableCore/internal/fixed"
	"StableCore/internal/ingestion"
	"StableCore/internal/observability"
	"StableCore/internal/persistence"
	"StableCore/internal/projection"
	"StableCore/internal/query"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server wraps the gRPC server (health + reflection) and the HTTP/JSON API.
// The HTTP side is a grpc-gateway ServeMux with handlers registered via
// HandlePath, so path templates and error shapes match the gateway
// conventions downstream tooling expects.
type Server struct {
	grpcServer    *grpc.Server
	httpServer    *http.Server
	grpcAddr      string
	httpAddr      string
	healthChecker *observability.HealthChecker
	deps          *ServerDeps
}

// ServerDeps holds all dependencies needed by the API handlers.
type ServerDeps struct {
	DB            *sql.DB
	QueryService  *query.QueryService
	IngestService *ingestion.GRPCIngestService
	SnapshotMgr   *persistence.SnapshotManager
	TradeHistory  *projection.TradeHistoryProjection
	StartTime     time.Time
	HealthChecker *observability.HealthChecker
}

// NewServer creates the gRPC and HTTP servers.
func NewServer(grpcAddr, httpAddr string, deps *ServerDeps) *Server {
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// Reflection for grpcurl / grpcui
	reflection.Register(grpcServer)

	return &Server{
		grpcServer:    grpcServer,
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		healthChecker: deps.HealthChecker,
		deps:          deps,
	}
}

// StartGRPC starts the gRPC server (blocking).
func (s *Server) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: gRPC server shutting down...")
		s.grpcServer.GracefulStop()
	}()

	log.Printf("INFO: gRPC server listening on %s", s.grpcAddr)
	return s.grpcServer.Serve(lis)
}

// StartHTTP starts the HTTP/JSON API (blocking).
func (s *Server) StartHTTP(ctx context.Context) error {
	mux := runtime.NewServeMux()

	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{"GET", "/v1/balances/{account_path}", s.handleAccountBalances},
		{"GET", "/v1/balances/{account_path}/{asset}", s.handleBalance},
		{"GET", "/v1/backing", s.handleBacking},
		{"GET", "/v1/journals/{account_path}", s.handleJournalHistory},
		{"GET", "/v1/trades/{account_path}", s.handleTradeHistory},
		{"GET", "/v1/events", s.handleEvents},
		{"GET", "/v1/admin/integrity", s.handleVerifyIntegrity},
		{"GET", "/v1/admin/eventlog", s.handleEventLogInfo},
		{"POST", "/v1/admin/rebuild-projections", s.handleRebuildProjections},
		{"POST", "/v1/ingest/deposit", s.handleInjectDeposit},
		{"POST", "/v1/ingest/withdraw", s.handleInjectWithdraw},
		{"POST", "/v1/ingest/price", s.handleInjectPrice},
		{"POST", "/v1/ingest/seize", s.handleInjectSeize},
		{"POST", "/v1/admin/switch-basket", s.handleSwitchBasket},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.handler); err != nil {
			return fmt.Errorf("register %s %s: %w", r.method, r.pattern, err)
		}
	}

	httpMux := http.NewServeMux()
	if s.healthChecker != nil {
		httpMux.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
		httpMux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	} else {
		httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"status":"ok"}`)
		})
	}
	httpMux.Handle("/", mux)

	s.httpServer = &http.Server{
		Addr:    s.httpAddr,
		Handler: httpMux,
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: HTTP API shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("INFO: HTTP API listening on %s", s.httpAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ============================================================================
// Query handlers
// ============================================================================

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	accountPath := pathParams["account_path"]
	asset := pathParams["asset"]
	if accountPath == "" || asset == "" {
		writeError(w, http.StatusBadRequest, "account_path and asset are required")
		return
	}

	bal, err := s.deps.QueryService.GetBalance(r.Context(), accountPath, asset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("get balance: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (s *Server) handleAccountBalances(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	accountPath := pathParams["account_path"]
	if accountPath == "" {
		writeError(w, http.StatusBadRequest, "account_path is required")
		return
	}

	balances, err := s.deps.QueryService.GetAccountBalances(r.Context(), accountPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("get balances: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"balances": balances})
}

func (s *Server) handleBacking(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	backing, err := s.deps.QueryService.GetBacking(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("get backing: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, backing)
}

func (s *Server) handleJournalHistory(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	accountPath := pathParams["account_path"]
	if accountPath == "" {
		writeError(w, http.StatusBadRequest, "account_path is required")
		return
	}

	limit := queryInt(r, "limit", 100)
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var afterSeq *int64
	if after := queryInt64(r, "after_sequence", 0); after > 0 {
		afterSeq = &after
	}

	entries, err := s.deps.QueryService.GetJournalHistory(r.Context(), accountPath, limit, afterSeq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("get journals: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"journals": entries})
}

func (s *Server) handleTradeHistory(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	accountPath := pathParams["account_path"]
	if accountPath == "" {
		writeError(w, http.StatusBadRequest, "account_path is required")
		return
	}

	limit := queryInt(r, "limit", 100)
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	if s.deps.TradeHistory == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"trades": []struct{}{}})
		return
	}
	entries := s.deps.TradeHistory.QueryByAccount(accountPath, limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{"trades": entries})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	from := queryInt64(r, "from_sequence", 0)
	limit := queryInt(r, "limit", 100)
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	events, err := s.deps.QueryService.GetEvents(r.Context(), from, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("get events: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// ============================================================================
// Admin handlers
// ============================================================================

func (s *Server) handleVerifyIntegrity(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	report, err := s.deps.QueryService.VerifyIntegrity(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("verify integrity: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleEventLogInfo(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	latestSeq, err := s.deps.SnapshotMgr.GetLatestSequence(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("get latest sequence: %v", err))
		return
	}
	uptime := time.Since(s.deps.StartTime)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"last_sequence":  latestSeq,
		"uptime_seconds": int64(uptime.Seconds()),
	})
}

func (s *Server) handleRebuildProjections(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	if err := projection.RebuildProjections(r.Context(), s.deps.DB); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("rebuild failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"started": true})
}

// ============================================================================
// Ingest handlers (admin/manual injection; NATS is the high-volume path)
// ============================================================================

func (s *Server) handleInjectDeposit(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	var req struct {
		ToAccount string `json:"to_account"`
		Asset     string `json:"asset"`
		Amount    string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}

	amount, err := fixed.FromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parse amount: %v", err))
		return
	}

	if err := s.deps.IngestService.InjectDeposit(r.Context(), req.ToAccount, req.Asset, amount); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"accepted": true})
}

func (s *Server) handleInjectWithdraw(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	var req struct {
		FromAccount string `json:"from_account"`
		Asset       string `json:"asset"`
		Amount      string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}

	amount, err := fixed.FromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parse amount: %v", err))
		return
	}

	if err := s.deps.IngestService.InjectWithdraw(r.Context(), req.FromAccount, req.Asset, amount); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"accepted": true})
}

func (s *Server) handleInjectPrice(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	var req struct {
		Unit          string `json:"unit"`
		TargetPerRef  string `json:"target_per_ref"`
		RefPerTok     string `json:"ref_per_tok"`
		PriceSequence int64  `json:"price_sequence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}

	targetPerRef, err := fixed.FromString(req.TargetPerRef)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parse target_per_ref: %v", err))
		return
	}
	refPerTok, err := fixed.FromString(req.RefPerTok)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parse ref_per_tok: %v", err))
		return
	}

	if err := s.deps.IngestService.InjectPrice(r.Context(), req.Unit, targetPerRef, refPerTok, req.PriceSequence); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"accepted": true})
}

func (s *Server) handleInjectSeize(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	var req struct {
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}

	amount, err := fixed.FromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parse amount: %v", err))
		return
	}

	if err := s.deps.IngestService.InjectSeize(r.Context(), amount); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"accepted": true})
}

func (s *Server) handleSwitchBasket(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	var req struct {
		GovSeq int64 `json:"gov_seq"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}

	if err := s.deps.IngestService.InjectBasketSwitch(r.Context(), req.GovSeq); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"accepted": true})
}

// ============================================================================
// Helpers
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("WARN: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func queryInt64(r *http.Request, key string, def int64) int64 {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
