package server

import (
	"net/http"
	"strconv"

	"github.com/Louie-KC/chat/internal/config"
	"github.com/Louie-KC/chat/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	cfg    config.Config
	db     *gorm.DB
	users  *service.UserService
	tokens *service.TokenService
	rooms  *service.RoomService
	msgs   *service.MessageService
	assoc  *service.AssociationService
}

func NewHandler(cfg config.Config, db *gorm.DB, users *service.UserService, tokens *service.TokenService,
	rooms *service.RoomService, msgs *service.MessageService, assoc *service.AssociationService) *Handler {
	return &Handler{cfg: cfg, db: db, users: users, tokens: tokens, rooms: rooms, msgs: msgs, assoc: assoc}
}

func ok(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func badPayload(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
}

// queryInt 读取非必填的整数查询参数。
func queryInt(c *gin.Context, key string, def int) (int, bool) {
	v := c.Query(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

// Health 检查数据库连通性。
func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	ok(c)
}
