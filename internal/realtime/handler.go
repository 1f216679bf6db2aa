package realtime

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/devsync-app/devsync/internal/constants"
	"github.com/devsync-app/devsync/internal/logging"
)

// Handler upgrades authenticated HTTP requests to websocket connections and
// hands them to the hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler builds the websocket endpoint. allowedOrigin restricts which
// browser origins may connect; "*" disables the check.
func NewHandler(hub *Hub, allowedOrigin string) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

// Serve handles GET /ws. RequireAuth runs first, so the user ID is already
// in the request context.
func (h *Handler) Serve(c *gin.Context) {
	userID := c.GetUint64(constants.ContextKeyUserID)
	if userID == 0 {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn().Err(err).Uint64("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, userID)
	if !h.hub.RegisterClient(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
