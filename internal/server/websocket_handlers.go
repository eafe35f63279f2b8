package server

import (
	"context"
	"encoding/json"
	"log"

	"agora/internal/middleware"
	"agora/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler upgrades the connection and attaches it to the activity
// hub. A user may hold multiple connections; targeted events fan out to all
// of them. When the last connection drops, presence transitions to offline
// after the grace window.
func (s *Server) WebsocketHandler() fiber.Handler {
	wsLogger := observability.NewWSLogger(s.hub.Name())

	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()

		userIDVal := conn.Locals(middleware.LocalUserID)
		userID, ok := userIDVal.(string)
		if !ok || userID == "" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			wsLogger.LogError(ctx, userID, err, "register")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		wsLogger.LogConnect(ctx, userID)

		// No IncomingHandler: inbound frames only refresh presence, clients
		// cannot inject events.

		// Connected ack with the current unread count so the client can badge
		// without a follow-up request.
		if count, cerr := s.notifications.UnreadCount(ctx, userID); cerr == nil {
			ack := map[string]interface{}{
				"type":    "connected",
				"payload": map[string]interface{}{"user_id": userID, "unread_count": count},
			}
			if ackJSON, jerr := json.Marshal(ack); jerr == nil {
				client.TrySend(ackJSON)
			}
		}

		go client.WritePump()
		client.ReadPump()

		wsLogger.LogDisconnect(ctx, userID, "read pump closed")
		if !s.hub.IsConnected(userID) {
			log.Printf("user %s fully disconnected", userID)
		}
	})
}
