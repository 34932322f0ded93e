package server

import (
	"net/http"
	"strings"

	"github.com/Louie-KC/chat/internal/auth"
	"github.com/Louie-KC/chat/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) SearchUsers(c *gin.Context) {
	users, err := h.users.Search(c.Request.Context(), auth.GetUserID(c), c.Query("term"))
	if err != nil {
		respondError(c, "search users", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) Associations(c *gin.Context) {
	sum, err := h.assoc.Summary(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondError(c, "associations", err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// Associate 设置或删除当前用户指向另一用户的关系。
func (h *Handler) Associate(c *gin.Context) {
	var req struct {
		OtherUserID     uint   `json:"other_user_id"`
		AssociationType string `json:"association_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.OtherUserID == 0 {
		badPayload(c)
		return
	}
	ctx := c.Request.Context()
	uid := auth.GetUserID(c)

	var err error
	switch kind := strings.ToLower(req.AssociationType); kind {
	case "remove":
		err = h.assoc.Remove(ctx, uid, req.OtherUserID)
	case models.AssociationFriend, models.AssociationBlock:
		err = h.assoc.Set(ctx, uid, req.OtherUserID, kind)
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown association type"})
		return
	}
	if err != nil {
		respondError(c, "associate", err)
		return
	}
	ok(c)
}
