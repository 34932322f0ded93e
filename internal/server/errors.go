package server

import (
	"net/http"

	"github.com/Louie-KC/chat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func statusFor(k service.Kind) int {
	switch k {
	case service.KindValidation, service.KindNotFound, service.KindConflict:
		return http.StatusBadRequest
	case service.KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError 是业务错误到 HTTP 响应的唯一出口；存储错误只记日志，不向客户端暴露细节。
func respondError(c *gin.Context, op string, err error) {
	kind := service.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("op", op).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": service.Message(err)})
}
