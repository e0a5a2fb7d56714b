package handler

import (
	"net/http"
	"strings"
	"time"
	"zone-router/model"
	"zone-router/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims JWT 载荷
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
	Message   string    `json:"message"`
}

// Login 处理用户登录, 用户来自配置文件
func (s *Server) Login(c *gin.Context) {
	if !s.cfg.Auth.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "未启用认证"})
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数错误"})
		return
	}

	// 查找用户并验证密码
	user := s.findUser(req.Username)
	if user == nil || !utils.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户名或密码错误"})
		return
	}

	tokenString, expiresAt, err := IssueToken([]byte(s.cfg.Auth.JWTSecret), user, s.cfg.Auth.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成 Token 失败"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     tokenString,
		Username:  user.Username,
		ExpiresAt: expiresAt,
		Message:   "登录成功",
	})
}

func (s *Server) findUser(username string) *model.User {
	for i := range s.cfg.Auth.Users {
		if s.cfg.Auth.Users[i].Username == username {
			return &s.cfg.Auth.Users[i]
		}
	}
	return nil
}

// IssueToken 生成 HS256 签名的 Token
func IssueToken(secret []byte, user *model.User, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "zone-router",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	return signed, expiresAt, err
}

// AuthMiddleware JWT 认证中间件
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "未提供 Token"})
			return
		}
		// 移除 "Bearer " 前缀
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效的 Token"})
			return
		}

		// 将用户信息存入上下文
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireRole 要求已认证用户具有指定角色
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "权限不足"})
			return
		}
		c.Next()
	}
}

// Refresh 重新加载全部数据源并原子替换快照
// 加载失败时旧快照继续服务, 返回 503
func (s *Server) Refresh(c *gin.Context) {
	if s.loader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "未配置数据源", "reason": "data_source_unavailable"})
		return
	}
	if err := s.planner.Refresh(c.Request.Context(), s.loader); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "reason": model.ErrorKind(err)})
		return
	}
	c.JSON(http.StatusOK, s.stats(s.planner.Snapshot()))
}
