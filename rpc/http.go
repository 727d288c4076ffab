package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/netutil"

	"landledger/core"
	"landledger/observability"
	"landledger/observability/logging"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

// ServerConfig carries the transport knobs for the JSON-RPC server.
type ServerConfig struct {
	JWTSecret         string
	RatePerSecond     float64
	RateBurst         int
	MaxConns          int
	IdempotencyPath   string
	TrustProxyHeaders bool
}

// Server exposes the node over JSON-RPC 2.0 on "/", a websocket event stream
// on "/ws/events", Prometheus metrics on "/metrics" and a liveness probe on
// "/healthz".
type Server struct {
	node    *core.Node
	auditor AuditRunner
	history EventHistory
	log     *slog.Logger

	jwtSecret         []byte
	limits            *rateLimiters
	idempotency       *IdempotencyStore
	trustProxyHeaders bool
	maxConns          int

	handlers map[string]handlerFunc
	httpSrv  *http.Server
}

type handlerFunc func(r *http.Request, req *RPCRequest) (interface{}, error)

// rpcError carries the full wire-level error a handler wants written.
type rpcError struct {
	status  int
	code    int
	message string
	data    interface{}
}

func (e *rpcError) Error() string { return e.message }

func invalidParams(err error) *rpcError {
	return &rpcError{status: http.StatusBadRequest, code: codeInvalidParams, message: err.Error()}
}

// NewServer builds the RPC server. The auditor may be nil, in which case the
// audit methods report the feature as unavailable.
func NewServer(node *core.Node, auditor AuditRunner, logger *slog.Logger, cfg ServerConfig) (*Server, error) {
	if node == nil {
		return nil, fmt.Errorf("rpc: node required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:              node,
		auditor:           auditor,
		log:               logger.With("component", "rpc"),
		jwtSecret:         []byte(strings.TrimSpace(cfg.JWTSecret)),
		limits:            newRateLimiters(cfg.RatePerSecond, cfg.RateBurst),
		trustProxyHeaders: cfg.TrustProxyHeaders,
		maxConns:          cfg.MaxConns,
	}
	if path := strings.TrimSpace(cfg.IdempotencyPath); path != "" {
		store, err := OpenIdempotencyStore(path)
		if err != nil {
			return nil, err
		}
		s.idempotency = store
	}
	s.registerHandlers()
	return s, nil
}

func (s *Server) registerHandlers() {
	s.handlers = map[string]handlerFunc{
		"assets_register":    s.handleAssetsRegister,
		"assets_mint":        s.handleAssetsMint,
		"assets_transfer":    s.handleAssetsTransfer,
		"assets_balanceOf":   s.handleAssetsBalanceOf,
		"assets_get":         s.handleAssetsGet,
		"assets_list":        s.handleAssetsList,
		"assets_setActive":   s.handleAssetsSetActive,
		"assets_setVerified": s.handleAssetsSetVerified,
		"assets_unfreeze":    s.handleAssetsUnfreeze,

		"market_list":         s.handleMarketList,
		"market_buy":          s.handleMarketBuy,
		"market_cancel":       s.handleMarketCancel,
		"market_get":          s.handleMarketGet,
		"market_openListings": s.handleMarketOpenListings,
		"market_setFeePolicy": s.handleMarketSetFeePolicy,
		"market_feePolicy":    s.handleMarketFeePolicy,

		"revenue_deposit":           s.handleRevenueDeposit,
		"revenue_claim":             s.handleRevenueClaim,
		"revenue_claimBatch":        s.handleRevenueClaimBatch,
		"revenue_claimable":         s.handleRevenueClaimable,
		"revenue_pool":              s.handleRevenuePool,
		"revenue_emergencyWithdraw": s.handleRevenueEmergencyWithdraw,
		"revenue_setPolicy":         s.handleRevenueSetPolicy,

		"bank_balance":  s.handleBankBalance,
		"bank_transfer": s.handleBankTransfer,
		"bank_mint":     s.handleBankMint,

		"system_pause":       s.handleSystemPause,
		"system_resume":      s.handleSystemResume,
		"system_pauses":      s.handleSystemPauses,
		"system_grantRole":   s.handleSystemGrantRole,
		"system_revokeRole":  s.handleSystemRevokeRole,
		"system_roleMembers": s.handleSystemRoleMembers,

		"events_list":    s.handleEventsList,
		"events_byAsset": s.handleEventsByAsset,

		"audit_run":    s.handleAuditRun,
		"audit_latest": s.handleAuditLatest,
	}
}

// mutatingMethods honour the X-Idempotency-Key header. Read-only methods do
// not need replay protection.
var mutatingMethods = map[string]bool{
	"assets_register": true, "assets_mint": true, "assets_transfer": true,
	"assets_setActive": true, "assets_setVerified": true, "assets_unfreeze": true,
	"market_list": true, "market_buy": true, "market_cancel": true, "market_setFeePolicy": true,
	"revenue_deposit": true, "revenue_claim": true, "revenue_claimBatch": true,
	"revenue_emergencyWithdraw": true, "revenue_setPolicy": true,
	"bank_transfer": true, "bank_mint": true,
	"system_pause": true, "system_resume": true,
	"system_grantRole": true, "system_revokeRole": true,
}

// Router assembles the HTTP mux. Exposed for tests that drive the server
// through httptest.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/", s.handle)
	r.Get("/ws/events", s.handleEventsWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return otelhttp.NewHandler(r, "rpc")
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen on %s: %w", addr, err)
	}
	if s.maxConns > 0 {
		listener = netutil.LimitListener(listener, s.maxConns)
	}
	s.httpSrv = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("serving JSON-RPC", "addr", listener.Addr().String())
	if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the idempotency store.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}
	if closeErr := s.idempotency.Close(); err == nil {
		err = closeErr
	}
	return err
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to method handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()
	w.Header().Set("Content-Type", "application/json")

	clientIP, err := s.resolveClientIP(r)
	if err != nil {
		writeError(w, http.StatusForbidden, nil, codeInvalidRequest, "invalid client address", nil)
		return
	}
	if !s.limits.Allow(clientIP) {
		observability.ModuleMetrics().RecordThrottle("rpc", "rate_limit")
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	handler, ok := s.handlers[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
		return
	}
	if adminMethods[req.Method] {
		if authErr := s.requireAuth(r); authErr != nil {
			s.log.Warn("admin method rejected",
				"method", req.Method,
				logging.MaskField("authorization", r.Header.Get("Authorization")))
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}

	module, method := splitMethod(req.Method)
	status := s.dispatch(w, r, req, handler)
	observability.ModuleMetrics().Observe(module, method, status, time.Since(started))
}

// dispatch executes the handler with idempotency replay and returns the HTTP
// status that was written.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest, handler handlerFunc) int {
	idemKey := strings.TrimSpace(r.Header.Get("X-Idempotency-Key"))
	useIdempotency := s.idempotency != nil && idemKey != "" && mutatingMethods[req.Method]

	if useIdempotency {
		stored, found, err := s.idempotency.Lookup(idemKey, req.Method)
		if err != nil {
			if errors.Is(err, errIdempotencyMethodMismatch) {
				writeError(w, http.StatusConflict, req.ID, codeDuplicateKey, err.Error(), nil)
				return http.StatusConflict
			}
			s.log.Error("idempotency lookup failed", "error", err)
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "idempotency store unavailable", nil)
			return http.StatusInternalServerError
		}
		if found {
			var result interface{}
			if err := json.Unmarshal(stored, &result); err == nil {
				writeResult(w, req.ID, result)
				return http.StatusOK
			}
		}
	}

	result, err := handler(r, req)
	if err != nil {
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) {
			writeError(w, rpcErr.status, req.ID, rpcErr.code, rpcErr.message, rpcErr.data)
			return rpcErr.status
		}
		status, code := mapError(err)
		message := err.Error()
		if status == http.StatusInternalServerError {
			s.log.Error("handler failed", "method", req.Method, "error", err)
			message = "internal error"
		}
		writeError(w, status, req.ID, code, message, nil)
		return status
	}

	if useIdempotency {
		if encoded, marshalErr := json.Marshal(result); marshalErr == nil {
			if storeErr := s.idempotency.Store(idemKey, req.Method, encoded); storeErr != nil {
				s.log.Error("idempotency store failed", "error", storeErr)
			}
		}
	}
	writeResult(w, req.ID, result)
	return http.StatusOK
}

func splitMethod(full string) (string, string) {
	if idx := strings.Index(full, "_"); idx > 0 {
		return full[:idx], full[idx+1:]
	}
	return "rpc", full
}
