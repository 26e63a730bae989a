package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spec-kit/oms-chat/internal/auth"
	"github.com/spec-kit/oms-chat/internal/chat"
	"github.com/spec-kit/oms-chat/internal/config"
	apperrors "github.com/spec-kit/oms-chat/pkg/util/errorutil"
)

// Server exposes the chat gateway over websockets.
type Server struct {
	gateway    *chat.Gateway
	cfg        config.ChatConfig
	logger     *zap.Logger
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// NewServer builds the websocket listener for the gateway.
func NewServer(cfg config.ChatConfig, gateway *chat.Gateway, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{gateway: gateway, cfg: cfg, logger: logger}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the chi router serving the websocket endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.serveWS)
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "chat": s.gateway.Stats()})
	})
	return r
}

// ListenAndServe blocks serving websocket traffic.
func (s *Server) ListenAndServe() error {
	s.logger.Info("chat websocket listener starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and closes every live session.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.gateway.Shutdown(ctx))
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	principal, err := s.gateway.Authenticate(r.Context(), auth.CredentialFromRequest(r))
	if err != nil {
		derr := apperrors.ToDomainError(err)
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": map[string]any{"code": apperrors.CodeUnauthorized, "message": derr.Message},
		})
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.logger.Debug("websocket upgrade failed", zap.String("user_id", principal.ID), zap.Error(err))
		return
	}

	conn := newConnection(ws, s.cfg.SendBuffer)
	go conn.writePump()

	session := s.gateway.Attach(principal, conn)
	defer func() {
		s.gateway.Disconnect(session)
		conn.closeWith(websocket.CloseNormalClosure, "session closed")
	}()

	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.logger.Debug("websocket read failed",
					zap.String("user_id", principal.ID),
					zap.String("connection_id", session.ID()),
					zap.Error(err))
			}
			return
		}
		s.gateway.HandleFrame(r.Context(), session, data)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("chat http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// originChecker accepts any origin when none are configured. Requests without
// an Origin header come from non-browser clients and are allowed.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(strings.ToLower(origin), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(strings.ToLower(origin), "/")]
		return ok
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
