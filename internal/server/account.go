package server

import (
	"net/http"
	"strings"

	"github.com/Louie-KC/chat/internal/auth"
	"github.com/Louie-KC/chat/internal/metrics"
	"github.com/Louie-KC/chat/internal/service"

	"github.com/gin-gonic/gin"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register 处理用户注册请求。
func (h *Handler) Register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}
	user, err := h.users.Register(c.Request.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		respondError(c, "register", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": user.ID, "username": user.Username})
}

// Login 校验密码并签发新的会话令牌。用户不存在与密码错误返回相同的响应。
func (h *Handler) Login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}
	ctx := c.Request.Context()
	user, err := h.users.Verify(ctx, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		switch service.KindOf(err) {
		case service.KindValidation, service.KindNotFound:
			metrics.LoginsTotal.WithLabelValues("failure").Inc()
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid credentials"})
		default:
			respondError(c, "login", err)
		}
		return
	}
	token, err := h.tokens.Issue(ctx, user.ID, c.Request.UserAgent())
	if err != nil {
		respondError(c, "issue token", err)
		return
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, gin.H{"user_id": user.ID, "username": user.Username, "token": token})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c)
		return
	}
	if err := h.users.ChangePassword(c.Request.Context(), auth.GetUserID(c), req.OldPassword, req.NewPassword); err != nil {
		respondError(c, "change password", err)
		return
	}
	ok(c)
}

// Logout 只吊销当前请求使用的令牌。
func (h *Handler) Logout(c *gin.Context) {
	if err := h.tokens.Revoke(c.Request.Context(), auth.GetUserID(c), auth.GetToken(c)); err != nil {
		respondError(c, "logout", err)
		return
	}
	ok(c)
}

func (h *Handler) Tokens(c *gin.Context) {
	list, err := h.tokens.List(c.Request.Context(), auth.GetUserID(c), auth.GetToken(c))
	if err != nil {
		respondError(c, "list tokens", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": list})
}

// ClearTokens 吊销该用户的全部令牌，包括当前令牌。
func (h *Handler) ClearTokens(c *gin.Context) {
	if err := h.tokens.RevokeAll(c.Request.Context(), auth.GetUserID(c)); err != nil {
		respondError(c, "clear tokens", err)
		return
	}
	ok(c)
}
