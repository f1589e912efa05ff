package http

import (
	"net"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// WSHandler upgrades HTTP connections and runs the chat protocol over them.
// Every binary WebSocket message carries exactly what a TCP client would write
// in one call: the username, then one record per message.
type WSHandler struct {
	conns ConnServer
	log   *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(conns ConnServer, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{conns: conns, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	nc := &wsConn{
		Conn: websocket.NetConn(ctx, conn, websocket.MessageBinary),
		ws:   conn,
	}

	h.log.Debug().Str("remote_addr", r.RemoteAddr).Msg("ws client connected")
	h.conns.ServeConn(ctx, nc)
}

// wsConn closes without waiting for the peer's close frame. The registry
// closes connections while holding its lock.
type wsConn struct {
	net.Conn
	ws *websocket.Conn
}

func (c *wsConn) Close() error {
	return c.ws.CloseNow()
}
