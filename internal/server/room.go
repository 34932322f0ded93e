package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/Louie-KC/chat/internal/auth"

	"github.com/gin-gonic/gin"
)

const defaultPageSize = 50

type roomNameReq struct {
	RoomName string `json:"room_name"`
}

func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.ListForUser(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondError(c, "list rooms", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// CreateRoom 创建房间，创建者自动成为成员。
func (h *Handler) CreateRoom(c *gin.Context) {
	var req roomNameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}
	room, err := h.rooms.Create(c.Request.Context(), req.RoomName, auth.GetUserID(c))
	if err != nil {
		respondError(c, "create room", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": room.ID, "name": room.Name})
}

func (h *Handler) RenameRoom(c *gin.Context) {
	var req roomNameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}
	ctx := c.Request.Context()
	if err := h.rooms.Rename(ctx, roomID(c), req.RoomName); err != nil {
		respondError(c, "rename room", err)
		return
	}
	room, err := h.rooms.Get(ctx, roomID(c))
	if err != nil {
		respondError(c, "get room", err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.rooms.ListMembers(c.Request.Context(), roomID(c))
	if err != nil {
		respondError(c, "list members", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// ManageMember 添加或移除房间成员，目标用户可以按 id 或用户名指定。
func (h *Handler) ManageMember(c *gin.Context) {
	var req struct {
		UserID   uint   `json:"user_id"`
		Username string `json:"username"`
		Action   string `json:"action"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}
	ctx := c.Request.Context()
	target := req.UserID
	if target == 0 {
		if strings.TrimSpace(req.Username) == "" {
			badPayload(c)
			return
		}
		u, err := h.users.FindByUsername(ctx, strings.TrimSpace(req.Username))
		if err != nil {
			respondError(c, "find member", err)
			return
		}
		target = u.ID
	}

	var err error
	switch strings.ToLower(req.Action) {
	case "add":
		err = h.rooms.AddMember(ctx, roomID(c), target)
	case "remove":
		err = h.rooms.RemoveMember(ctx, roomID(c), target)
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}
	if err != nil {
		respondError(c, "manage member", err)
		return
	}
	ok(c)
}

// Messages 按 offset/limit 读取最近的消息窗口，结果按时间正序返回。
func (h *Handler) Messages(c *gin.Context) {
	offset, ok1 := queryInt(c, "offset", 0)
	limit, ok2 := queryInt(c, "limit", defaultPageSize)
	if !ok1 || !ok2 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "offset and limit must be integers"})
		return
	}
	msgs, err := h.msgs.ReadWindow(c.Request.Context(), roomID(c), offset, limit)
	if err != nil {
		respondError(c, "read messages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}
	msg, err := h.msgs.Append(c.Request.Context(), roomID(c), auth.GetUserID(c), req.Content)
	if err != nil {
		respondError(c, "send message", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// Ticket 为 WebSocket 握手签发短期票据，令牌本身不出现在 URL 中。
func (h *Handler) Ticket(c *gin.Context) {
	ttl := time.Duration(h.cfg.TicketTTLSeconds) * time.Second
	t, err := auth.IssueTicket(h.cfg.JWTSecret, auth.GetUserID(c), roomID(c), auth.GetSessionID(c), ttl)
	if err != nil {
		respondError(c, "issue ticket", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": t, "expires_in": h.cfg.TicketTTLSeconds})
}
