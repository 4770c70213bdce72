package api

import (
	"net/http"

	"conflux/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The chat stream is same-host UI traffic; auth lives on the wallet side.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type inboundChatFrame struct {
	Content string `json:"content"`
}

// handleChatWS upgrades the connection, replays history through the hub and
// then feeds user frames into the responder until the peer goes away.
func (r *Router) handleChatWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("chat: websocket upgrade failed: %v", err)
		return
	}
	peer := r.ChatHub.Join(conn)
	defer func() {
		r.ChatHub.Leave(peer)
		conn.Close()
	}()

	for {
		var frame inboundChatFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debugf("chat: peer read error: %v", err)
			}
			return
		}
		if frame.Content == "" {
			continue
		}
		if r.Responder != nil {
			r.Responder.HandleUserMessage(c.Request.Context(), frame.Content)
		}
	}
}
