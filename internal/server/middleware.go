package server

import (
	"net/http"
	"strconv"

	"github.com/Louie-KC/chat/internal/auth"
	"github.com/Louie-KC/chat/internal/metrics"

	"github.com/gin-gonic/gin"
)

const ctxRoomID = "roomID"

// requireUser 解析 Bearer token，失败时直接中断请求。
func (h *Handler) requireUser(c *gin.Context) {
	tok, ok := auth.ParseBearer(c.GetHeader("Authorization"))
	if !ok {
		metrics.AuthFailuresTotal.WithLabelValues("missing").Inc()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	sess, err := h.tokens.Resolve(c.Request.Context(), tok)
	if err != nil {
		respondError(c, "resolve token", err)
		return
	}
	auth.SetSession(c, sess.UserID, sess.ID, sess.Token)
	c.Next()
}

// requireMember 在每个房间请求上重新确认成员身份。
func (h *Handler) requireMember(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	if err := h.rooms.RequireMember(c.Request.Context(), uint(id), auth.GetUserID(c)); err != nil {
		respondError(c, "check membership", err)
		return
	}
	c.Set(ctxRoomID, uint(id))
	c.Next()
}

func roomID(c *gin.Context) uint {
	if v, ok := c.Get(ctxRoomID); ok {
		if id, ok2 := v.(uint); ok2 {
			return id
		}
	}
	return 0
}
