package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Louie-KC/chat/internal/auth"
	"github.com/Louie-KC/chat/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 64 << 10
)

// Backend 是连接在每条入站消息上调用的业务入口。
type Backend interface {
	// Authorize 确认会话仍然有效且用户仍是房间成员，返回用户名。
	Authorize(ctx context.Context, sessionID, userID, roomID uint) (string, error)
	// Send 持久化消息并向房间广播。
	Send(ctx context.Context, roomID, userID uint, body string) error
	// Publish 广播不需要持久化的事件，例如正在输入。
	Publish(roomID uint, payload []byte)
}

type Client struct {
	room      *RoomHub
	conn      *websocket.Conn
	send      chan []byte
	backend   Backend
	userID    uint
	sessionID uint
	uname     string
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type InboundMessage struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	IsTyping bool   `json:"is_typing"`
}

// Serve 使用一次性票据完成握手，票据由已鉴权的 REST 接口签发。
func Serve(h *Hub, backend Backend, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := auth.ParseTicket(c.Query("ticket"), secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid ticket"})
			return
		}
		uname, err := backend.Authorize(c.Request.Context(), claims.SessionID, claims.UserID, claims.RoomID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		rh := h.GetRoom(claims.RoomID)
		client := &Client{
			room:      rh,
			conn:      conn,
			send:      make(chan []byte, 256),
			backend:   backend,
			userID:    claims.UserID,
			sessionID: claims.SessionID,
			uname:     uname,
		}
		rh.register <- client

		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.room.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var in InboundMessage
		if err := json.Unmarshal(data, &in); err != nil || in.Content == "" && in.Type != "typing" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		// 成员身份与会话可能在连接期间失效，每条消息都重新确认。
		if _, err := c.backend.Authorize(ctx, c.sessionID, c.userID, c.room.roomID); err != nil {
			cancel()
			log.Info().Uint("user_id", c.userID).Uint("room_id", c.room.roomID).Msg("ws: authorization revoked")
			break
		}
		if in.Type == "typing" {
			cancel()
			evt := map[string]interface{}{"type": "typing", "room_id": c.room.roomID, "user_id": c.userID, "username": c.uname, "is_typing": in.IsTyping}
			if b, err := json.Marshal(evt); err == nil {
				c.backend.Publish(c.room.roomID, b)
			}
			continue
		}
		err = c.backend.Send(ctx, c.room.roomID, c.userID, in.Content)
		cancel()
		if err != nil {
			log.Warn().Err(err).Uint("user_id", c.userID).Uint("room_id", c.room.roomID).Msg("ws: send")
			continue
		}
		metrics.WsMessagesTotal.Inc()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			_ = w.Close()
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
