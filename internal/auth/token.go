package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrMalformedToken = errors.New("auth: malformed token")

// NewToken 生成 128 位随机会话令牌。
func NewToken() (uuid.UUID, error) {
	return uuid.NewRandom()
}

// ParseToken 把 bearer 值解析为 UUID，返回规范化的字符串形式。
func ParseToken(s string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", ErrMalformedToken
	}
	return id.String(), nil
}

// ParseBearer 从 Authorization 头中取出 token，格式不对时返回 false。
func ParseBearer(authz string) (string, bool) {
	if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(authz[len("Bearer "):])
	return tok, tok != ""
}

// TicketClaims 绑定 WebSocket 连接的用户、房间与会话。
type TicketClaims struct {
	UserID    uint `json:"uid"`
	RoomID    uint `json:"rid"`
	SessionID uint `json:"sid"`
	jwt.RegisteredClaims
}

func IssueTicket(secret string, userID, roomID, sessionID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TicketClaims{
		UserID:    userID,
		RoomID:    roomID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ParseTicket(tokenStr, secret string) (*TicketClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &TicketClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*TicketClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid ticket")
}

const (
	ctxUserID    = "userID"
	ctxSessionID = "sessionID"
	ctxToken     = "token"
)

// SetSession 记录鉴权中间件解析出的会话信息。
func SetSession(c *gin.Context, userID, sessionID uint, token string) {
	c.Set(ctxUserID, userID)
	c.Set(ctxSessionID, sessionID)
	c.Set(ctxToken, token)
}

func GetUserID(c *gin.Context) uint {
	if v, ok := c.Get(ctxUserID); ok {
		if id, ok2 := v.(uint); ok2 {
			return id
		}
	}
	return 0
}

func GetSessionID(c *gin.Context) uint {
	if v, ok := c.Get(ctxSessionID); ok {
		if id, ok2 := v.(uint); ok2 {
			return id
		}
	}
	return 0
}

func GetToken(c *gin.Context) string {
	return c.GetString(ctxToken)
}
