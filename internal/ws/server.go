package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades charge-point HTTP connections to WebSockets. The charge
// point identifier is the trailing segment of the request path, /ocpp/{id}.
type Server struct {
	manager      *Manager
	processor    MessageProcessor
	logger       *zap.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

// NewServer builds the charge-point WebSocket endpoint.
func NewServer(manager *Manager, processor MessageProcessor, writeTimeout time.Duration, logger *zap.Logger) *Server {
	return &Server{
		manager:      manager,
		processor:    processor,
		logger:       logger,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is the HTTP handler for /ocpp/{chargePointId}.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	chargePointID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/ocpp/"), "/")
	if chargePointID == "" {
		http.Error(w, "charge point id is required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	var connection *Connection
	connection = NewConnection(chargePointID, conn, s.processor, s.writeTimeout, s.logger, func(string) {
		s.manager.Remove(connection)
		cancel()
	})
	s.manager.Add(connection)

	go connection.Start(ctx)
	s.logger.Info("charge point connected", zap.String("charge_point_id", chargePointID))
}
