package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tolelom/purgechain/internal/logger"
	"github.com/tolelom/purgechain/internal/metrics"
)

const maxBodyBytes = 1 << 20

// Server is a JSON-RPC 2.0 HTTP server. JSON-RPC is served at POST /rpc;
// /healthz and /metrics sit beside it.
type Server struct {
	handler   *Handler
	addr      string
	authToken string // empty → no auth required
	srv       *http.Server
	router    chi.Router
}

// NewServer creates a Server on addr. If authToken is non-empty, every
// RPC request must carry a matching "Authorization: Bearer <token>" header.
func NewServer(addr string, handler *Handler, authToken string) *Server {
	s := &Server{handler: handler, addr: addr, authToken: authToken}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/rpc", s.handleRPC)
		r.Post("/", s.handleRPC)
	})
	s.router = r

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Router returns the HTTP handler, for mounting or tests.
func (s *Server) Router() http.Handler { return s.router }

// Start binds the port synchronously (so callers know immediately if binding
// fails) then serves requests in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	slog.Info("rpc listening", "addr", ln.Addr().String())
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("rpc server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server, waiting up to 5 seconds for
// in-flight requests to complete.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = logger.GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" && r.Header.Get("Authorization") != "Bearer "+s.authToken {
			logger.FromContext(r.Context()).Warn("rpc auth rejected", "remote", r.RemoteAddr)
			writeJSON(w, errResponse(nil, CodeUnauthorized, "unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"status": "ok", "height": s.handler.bc.Height()})
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, errResponse(nil, CodeInvalidRequest, err.Error()))
		return
	}
	reqs, batch, err := parseBody(body)
	if err != nil {
		writeJSON(w, errResponse(nil, CodeParseError, err.Error()))
		return
	}

	log := logger.FromContext(r.Context())
	out := make([]Response, len(reqs))
	for i, req := range reqs {
		if req.JSONRPC != "2.0" {
			out[i] = errResponse(req.ID, CodeInvalidRequest, "jsonrpc must be '2.0'")
			continue
		}
		out[i] = s.handler.Dispatch(req)
		if e := out[i].Error; e != nil {
			log.Debug("rpc error", "method", req.Method, "code", e.Code, "error", e.Message)
		}
	}
	if batch {
		writeJSON(w, out)
		return
	}
	writeJSON(w, out[0])
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
