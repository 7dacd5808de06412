// Package server is the HTTP development facade standing in for the host
// wallet's plugin dispatcher: origins obtain a token, then POST RPC calls.
package server

import (
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/EthSign/keychain-snap/internal/audit"
	"github.com/EthSign/keychain-snap/internal/auth"
	"github.com/EthSign/keychain-snap/internal/rpc"
)

type Config struct {
	JWTIssuer string
	TokenTTL  time.Duration
}

func (c *Config) setDefaults() {
	if c.JWTIssuer == "" {
		c.JWTIssuer = "keychain-snap-dev"
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 15 * time.Minute
	}
}

type Server struct {
	cfg Config

	mux        *http.ServeMux
	signer     *auth.JWTSigner
	dispatcher *rpc.Dispatcher
	trail      *audit.Log
	logger     *log.Logger

	rlTokenIP *multiLimiter
	rlRPC     *multiLimiter
}

func New(cfg Config, dispatcher *rpc.Dispatcher, trail *audit.Log) (*Server, error) {
	cfg.setDefaults()

	priv, _, err := auth.GenerateEd25519()
	if err != nil {
		return nil, err
	}

	perWindow := func(n int, window time.Duration) float64 { return float64(n) / window.Seconds() }

	s := &Server{
		cfg:        cfg,
		mux:        http.NewServeMux(),
		signer:     auth.NewJWTSigner(priv, cfg.JWTIssuer, cfg.TokenTTL),
		dispatcher: dispatcher,
		trail:      trail,
		logger:     log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile),
		rlTokenIP:  newMultiLimiter(rate.Limit(perWindow(10, time.Minute)), 10, time.Hour),
		rlRPC:      newMultiLimiter(rate.Limit(perWindow(60, time.Minute)), 20, time.Hour),
	}
	s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Printf("panic: %v", rec)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}()

	s.addDefaultHeaders(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	path := r.URL.Path
	if strings.HasPrefix(path, "/api/") && !s.isPublic(path) {
		auth.AuthRequired(s.signer)(s.mux).ServeHTTP(w, r)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler { return s }

func (s *Server) isPublic(path string) bool {
	switch path {
	case "/health", "/api/health", "/api/token":
		return true
	default:
		return false
	}
}

func (s *Server) addDefaultHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
}
