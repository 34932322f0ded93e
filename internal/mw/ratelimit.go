package mw

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// limiterStore 按 key 保存令牌桶，空闲超过 ttl 的条目由 go-cache 自动回收。
type limiterStore struct {
	mu    sync.Mutex
	cache *cache.Cache
	r     rate.Limit
	b     int
}

func newLimiterStore(r rate.Limit, burst int, ttl time.Duration) *limiterStore {
	return &limiterStore{cache: cache.New(ttl, ttl/2), r: r, b: burst}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get(key); ok {
		lim := v.(*rate.Limiter)
		// 刷新过期时间
		s.cache.SetDefault(key, lim)
		return lim
	}
	lim := rate.NewLimiter(s.r, s.b)
	s.cache.SetDefault(key, lim)
	return lim
}

// RateLimit 返回一个基于 IP+路径的令牌桶限速中间件。
func RateLimit(r rate.Limit, burst int) gin.HandlerFunc {
	store := newLimiterStore(r, burst, 2*time.Minute)
	return func(c *gin.Context) {
		ip := clientIP(c.Request.RemoteAddr)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if !store.get(ip + "|" + path).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
