package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/weplay-app/weplay-backend/internal/pkg/middleware"
	"github.com/weplay-app/weplay-backend/internal/pkg/utils"
	"github.com/weplay-app/weplay-backend/internal/pkg/ws"
)

type wsHandler struct {
	manager   *Manager
	upgrader  websocket.Upgrader
	queueSize int
}

// RegisterRoutes exposes the socket endpoint. Anonymous sockets may watch games but
// cannot mutate them. An empty allowedOrigin accepts any origin.
func RegisterRoutes(
	rg *gin.RouterGroup,
	manager *Manager,
	auth *middleware.Authenticator,
	allowedOrigin string,
	queueSize int,
) {
	handler := &wsHandler{
		manager:   manager,
		queueSize: queueSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || origin == allowedOrigin
			},
		},
	}

	rg.GET("/ws", auth.OptionalAuthToken, handler.serveWs)
}

func (wsh *wsHandler) serveWs(c *gin.Context) {
	socket, err := wsh.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Error upgrading websocket connection")
		return
	}

	conn := ws.NewConnection(uuid.NewString(), socket, wsh.queueSize)
	if principal, ok := utils.GetPrincipal(c); ok {
		conn.UserId = principal.UserId
		conn.Username = principal.Username
	}

	wsh.manager.Serve(conn)
}
