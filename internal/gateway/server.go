// Package gateway exposes the world over HTTP: a websocket endpoint for
// game clients, a status endpoint for launchers and dashboards, and an
// authenticated admin surface that feeds the console command queue.
package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	world "github.com/WOW112/jingdianwow2"
	"github.com/WOW112/jingdianwow2/internal/telemetry"
	"github.com/WOW112/jingdianwow2/logging"
)

const commandTimeout = 5 * time.Second

// MetricsSource exposes the counter snapshot served at /metrics.
type MetricsSource interface {
	Snapshot() map[string]uint64
}

// LogTailSource exposes the recent-event buffer served at /admin/logs.
type LogTailSource interface {
	Events() []logging.Event
}

type Config struct {
	// JWTSecret signs session tickets. When empty the gateway runs in
	// open mode and trusts plain query parameters; only suitable for
	// local development.
	JWTSecret string

	// AdminToken guards the /admin routes. Empty disables them.
	AdminToken string

	Metrics MetricsSource
	LogTail LogTailSource
}

type Server struct {
	world    *world.World
	cfg      Config
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewServer(w *world.World, cfg Config, logger telemetry.Logger) *Server {
	return &Server{
		world:  w,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/connect", s.handleConnect)

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/command", s.handleCommand)
		r.Get("/logs", s.handleLogs)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.world.Status())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := map[string]uint64{}
	if s.cfg.Metrics != nil {
		snapshot = s.cfg.Metrics.Snapshot()
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleLogs serves the newest buffered events, oldest first, so an
// operator can inspect the recent stream without shell access.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.cfg.LogTail == nil {
		writeError(w, http.StatusNotFound, "log tail not configured")
		return
	}
	events := s.cfg.LogTail.Events()
	if events == nil {
		events = []logging.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// handleConnect authenticates the request, upgrades it, and hands the
// socket to the world as a pending session. Admission, queueing, and
// displacement of an older holder all happen on the world goroutine.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	accountID, security, err := s.authenticate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("[gateway] upgrade failed for account %d: %v", accountID, err)
		}
		return
	}

	c := newClient(uuid.NewString(), conn, s.logger)
	go c.readPump()

	s.world.Enqueue(world.NewSession(accountID, security, c))
}

func (s *Server) authenticate(r *http.Request) (uint32, world.Security, error) {
	if s.cfg.JWTSecret == "" {
		return openModeIdentity(r)
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		auth := r.Header.Get("Authorization")
		trimmed := strings.TrimPrefix(auth, "Bearer ")
		if trimmed != auth {
			token = trimmed
		}
	}
	if token == "" {
		return 0, 0, errInvalidToken
	}

	claims, err := parseSessionToken(token, s.cfg.JWTSecret)
	if err != nil {
		return 0, 0, errInvalidToken
	}
	return claims.AccountID, world.Security(claims.Security), nil
}

func openModeIdentity(r *http.Request) (uint32, world.Security, error) {
	account, err := strconv.ParseUint(r.URL.Query().Get("account"), 10, 32)
	if err != nil || account == 0 {
		return 0, 0, errInvalidToken
	}
	security := world.SecurityPlayer
	if raw := r.URL.Query().Get("security"); raw != "" {
		tier, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			return 0, 0, errInvalidToken
		}
		security = world.Security(tier)
	}
	return uint32(account), security, nil
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken == "" {
			writeError(w, http.StatusServiceUnavailable, "admin token not configured")
			return
		}

		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if token == "" || token == auth {
			writeError(w, http.StatusUnauthorized, "missing admin token")
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			writeError(w, http.StatusForbidden, "invalid admin token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

type commandRequest struct {
	Line string `json:"line"`
}

type commandResponse struct {
	ID     string `json:"id"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

type commandResult struct {
	output string
	err    error
}

// handleCommand runs one console line through the world's command queue
// and waits for the cycle that executes it.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if strings.TrimSpace(req.Line) == "" {
		writeError(w, http.StatusBadRequest, "empty command")
		return
	}

	done := make(chan commandResult, 1)
	id, ok := s.world.QueueCommand(req.Line, r.RemoteAddr, func(output string, err error) {
		done <- commandResult{output: output, err: err}
	})
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "command queue full")
		return
	}

	select {
	case res := <-done:
		resp := commandResponse{ID: id, Output: res.output}
		if res.err != nil {
			resp.Error = res.err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	case <-time.After(commandTimeout):
		writeError(w, http.StatusGatewayTimeout, "command timed out")
	case <-r.Context().Done():
	}
}
