// Package server exposes the check pipeline over HTTP and WebSocket.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/acheong08/pyextras/internal/logger"
	"github.com/acheong08/pyextras/internal/report"
)

// maxBodySize bounds POST /check bodies
const maxBodySize = 1 << 20

// Server serves /health, /check and /ws
type Server struct {
	config   *Config
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader
}

// New creates a server
func New(config *Config, l *zap.SugaredLogger) *Server {
	if l == nil {
		l = logger.Nop()
	}
	return &Server{
		config: config,
		logger: l,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/check", s.handleCheck)
	mux.HandleFunc("/ws", s.serveWs)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleCheck runs the pipeline on the request body. The response is the
// JSON report with 200 when it has no errors and 422 otherwise. A manifest
// that cannot be parsed is a 400, an index failure a 502.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(body) > maxBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, "pyproject.toml too large")
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty body")
		return
	}

	req := &CheckPayload{
		Pyproject: string(body),
		Index:     r.URL.Query().Get("index") == "1",
	}

	pipeline := NewPipeline(s.config, &logSender{logger: s.logger}, s.logger)
	rep, err := pipeline.Run(r.Context(), req)
	if errors.Is(err, ErrIndexLookup) {
		s.logger.Warnw("index lookup failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := http.StatusOK
	if rep.HasErrors() {
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := report.WriteJSON(w, rep); err != nil {
		s.logger.Warnw("failed to write report", "error", err)
	}
}

func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("failed to upgrade connection", "error", err)
		return
	}

	client := newClient(conn, s.config, s.logger)
	client.logger.Info("client connected")

	go client.writePump()
	go client.readPump()
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorPayload{Message: message})
}

// logSender is a ProgressSender for requests without a live connection
type logSender struct {
	logger *zap.SugaredLogger
}

func (s *logSender) SendMessage(msg Message) {}

func (s *logSender) SendLog(message, level string) {}

func (s *logSender) SendProgress(percent int, stage, message string) {
	s.logger.Debugw(message, "stage", stage, "percent", percent)
}

func (s *logSender) SendError(message string, err error) {
	s.logger.Errorw(message, "error", err)
}
