package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Louie-KC/chat/internal/auth"
	"github.com/Louie-KC/chat/internal/config"
	"github.com/Louie-KC/chat/internal/metrics"
	"github.com/Louie-KC/chat/internal/mw"
	"github.com/Louie-KC/chat/internal/service"
	"github.com/Louie-KC/chat/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Services 是路由依赖的业务层集合，main 与测试共用同一套构造逻辑。
type Services struct {
	Users  *service.UserService
	Tokens *service.TokenService
	Rooms  *service.RoomService
	Msgs   *service.MessageService
	Assoc  *service.AssociationService
}

// NewServices 构造业务层。notify 为空时直接使用本地 hub。
func NewServices(cfg config.Config, db *gorm.DB, hub *ws.Hub, notify service.Notifier) *Services {
	if notify == nil {
		notify = hub
	}
	return &Services{
		Users:  service.NewUserService(db, auth.NewHasher(auth.DefaultParams)),
		Tokens: service.NewTokenService(db, time.Duration(cfg.SessionTTLHours)*time.Hour),
		Rooms:  service.NewRoomService(db, hub, notify),
		Msgs:   service.NewMessageService(db, notify, cfg.MaxMessageLength),
		Assoc:  service.NewAssociationService(db),
	}
}

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, db *gorm.DB, hub *ws.Hub, svc *Services, notify service.Notifier) *gin.Engine {
	if notify == nil {
		notify = hub
	}
	h := NewHandler(cfg, db, svc.Users, svc.Tokens, svc.Rooms, svc.Msgs, svc.Assoc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.RequestLogger())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env, cfg.CORSOrigins))
	r.Use(mw.RateLimit(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", h.Health)

	account := api.Group("/account")
	account.POST("/register", h.Register)
	account.POST("/login", h.Login)

	// 需要 Bearer Token 的业务接口。
	acct := account.Group("", h.requireUser)
	acct.POST("/change-password", h.ChangePassword)
	acct.POST("/logout", h.Logout)
	acct.GET("/tokens", h.Tokens)
	acct.POST("/clear-tokens", h.ClearTokens)

	chat := api.Group("/chat", h.requireUser)
	chat.GET("/rooms", h.ListRooms)
	chat.POST("/create-room", h.CreateRoom)

	member := chat.Group("/:id", h.requireMember)
	member.PUT("/change-name", h.RenameRoom)
	member.GET("/members", h.ListMembers)
	member.PUT("/manage-user", h.ManageMember)
	member.GET("/messages", h.Messages)
	member.POST("/messages", h.SendMessage)
	member.POST("/ticket", h.Ticket)

	user := api.Group("/user", h.requireUser)
	user.GET("/search", h.SearchUsers)
	user.GET("/associations", h.Associations)
	user.POST("/associate", h.Associate)

	backend := &streamBackend{tokens: svc.Tokens, users: svc.Users, rooms: svc.Rooms, msgs: svc.Msgs, notify: notify}
	r.GET("/ws", ws.Serve(hub, backend, cfg.JWTSecret))

	serveWeb(r, cfg.WebDir)
	return r
}

// serveWeb 在 WebDir 存在 index.html 时托管前端，未知路径回退到 index.html。
func serveWeb(r *gin.Engine, dir string) {
	if dir == "" {
		return
	}
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		return
	}
	r.NoRoute(func(c *gin.Context) {
		rel := strings.TrimPrefix(filepath.Clean("/"+c.Request.URL.Path), "/")
		if strings.HasPrefix(rel, "api/") || rel == "ws" {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if rel == "" {
			c.File(index)
			return
		}
		target := filepath.Join(dir, rel)
		if fi, err := os.Stat(target); err == nil && !fi.IsDir() {
			c.File(target)
			return
		}
		if strings.Contains(rel, ".") {
			c.Status(http.StatusNotFound)
			return
		}
		c.File(index)
	})
}
