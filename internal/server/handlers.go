package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/EthSign/keychain-snap/internal/auth"
	"github.com/EthSign/keychain-snap/internal/rpc"
)

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/token", s.handleToken)
	s.mux.HandleFunc("/api/rpc", s.handleRPC)
	s.mux.HandleFunc("/api/audit", s.handleAudit)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleToken hands an origin its bearer token. In production the host
// wallet vouches for origins; here possession of the facade is the trust
// boundary, rate limits keep it from being a nuisance.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.rlTokenIP.allow(getClientIP(r)) {
		tooMany(w, 60)
		return
	}
	var req struct {
		Origin string `json:"origin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Origin == "" {
		http.Error(w, "origin required", http.StatusBadRequest)
		return
	}
	token, exp, err := s.signer.IssueToken(req.Origin)
	if err != nil {
		http.Error(w, "token issue failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"token": token, "expires_at": exp})
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "no auth context", http.StatusUnauthorized)
		return
	}
	if !s.rlRPC.allow(claims.Origin) {
		tooMany(w, 10)
		return
	}

	var req struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Method == "" {
		http.Error(w, "method required", http.StatusBadRequest)
		return
	}

	reqID := uuid.NewString()
	out, err := s.dispatcher.Handle(r.Context(), claims.Origin, req.Method, req.Params)
	if err != nil {
		s.logger.Printf("rpc %s origin=%s method=%s: %v", reqID, claims.Origin, req.Method, err)
		switch {
		case errors.Is(err, rpc.ErrUnknownMethod), errors.Is(err, rpc.ErrMissingParam):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, rpc.ErrAccessDenied):
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, map[string]any{"id": reqID, "result": out})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.trail == nil {
		writeJSON(w, []any{})
		return
	}
	if err := s.trail.Verify(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.trail.Entries())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

func tooMany(w http.ResponseWriter, retryAfterSeconds int) {
	if retryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	http.Error(w, "too many requests", http.StatusTooManyRequests)
}
