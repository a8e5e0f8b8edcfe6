package api

import (
	"net/http"

	"github.com/NotCoffee418/waveform_explorer/pkg/logging"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// handleWebSocket answers each WindowRequest on the connection with one WindowResponse,
// in the order the requests arrive.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	logger := s.logger.With("session", uuid.NewString())
	ctx := logging.WithLogger(r.Context(), logger)
	logger.Infof("WebSocket client connected from %s", r.RemoteAddr)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnf("WebSocket error: %v", err)
			} else {
				logger.Infof("Connection closed: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			logger.Debugf("Received unexpected message type: %d", messageType)
			continue
		}

		var resp *WindowResponse
		var req WindowRequest
		if err := json.Unmarshal(message, &req); err != nil {
			resp = &WindowResponse{Error: badRequest("invalid window request: %v", err).Error()}
		} else if win, err := s.resolveWindow(ctx, &req); err != nil {
			if statusFor(err) >= http.StatusInternalServerError {
				logger.Errorf("window request failed: %v", err)
			}
			resp = &WindowResponse{
				RequestID:         req.RequestID,
				ObservationTypeID: req.ObservationTypeID,
				SourceLocation:    req.SourceLocation,
				Error:             err.Error(),
			}
		} else {
			resp = NewWindowResponse(req.RequestID, win)
		}

		if err := conn.WriteMessage(websocket.TextMessage, resp.ToJsonBytes()); err != nil {
			logger.Warnf("Failed to write window response: %v", err)
			return
		}
	}
}
