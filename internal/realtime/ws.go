package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS 控制台标签页的 websocket 入口
// 查询参数 notifications=unsupported 表示该设备没有系统通知能力
func (h *Hub) ServeWS(ctx context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.Warn("websocket 升级失败", zap.Error(err))
			return
		}

		supported := c.Query("notifications") != "unsupported"
		session := h.Open(c.Request.Context(), supported)

		go session.Run(ctx)
		go writePump(conn, session, h.log)
		go func() {
			readPump(conn, session, h.log)
			h.Close(session)
		}()
	}
}

// readPump 读取标签页消息并投递到会话
func readPump(conn *websocket.Conn, s *Session, log *zap.Logger) {
	defer conn.Close()

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("websocket 异常断开", zap.String("session_id", s.ID()), zap.Error(err))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Warn("无法解析标签页消息", zap.String("session_id", s.ID()), zap.Error(err))
			continue
		}
		s.HandleClient(env)
	}
}

// writePump 把会话输出写到连接，并定时 ping
func writePump(conn *websocket.Conn, s *Session, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case env := <-s.Outbound():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				log.Warn("写入标签页失败", zap.String("session_id", s.ID()), zap.Error(err))
				return
			}
		case <-s.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
