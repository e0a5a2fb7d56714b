// Package handler 路径规划 HTTP 接口
package handler

import (
	"log/slog"
	"net/http"
	"slices"
	"time"
	"zone-router/config"
	"zone-router/model"
	"zone-router/planner"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server 持有接口依赖
type Server struct {
	planner *planner.Planner
	loader  *planner.Loader // 为 nil 时不支持刷新
	cfg     config.Config
	logger  *slog.Logger
}

// NewServer 创建接口服务
func NewServer(p *planner.Planner, loader *planner.Loader, cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{planner: p, loader: loader, cfg: cfg, logger: logger}
}

// Router 配置路由
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(s.logger), CORS(s.cfg.Server.CORSOrigins))

	// 健康检查
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"status":  "ok",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API 路由组
	api := r.Group("/api")
	{
		// 公开接口 (无需认证)
		api.POST("/login", s.Login)
		api.POST("/route", s.PlanRoute)
		api.GET("/profiles", s.Profiles)
		api.GET("/zones", s.Zones)
		api.GET("/network/stats", s.Stats)
		api.GET("/nodes/nearest", s.NearestNode)

		// 管理接口, 启用认证时需要管理员 Token
		admin := api.Group("/admin")
		if s.cfg.Auth.Enabled() {
			admin.Use(AuthMiddleware([]byte(s.cfg.Auth.JWTSecret)), RequireRole(model.RoleAdmin))
		}
		admin.POST("/refresh", s.Refresh)
	}
	return r
}

// RequestID 为每个请求分配 X-Request-ID (客户端提供时沿用)
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger 用 slog 记录访问日志
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.InfoContext(c.Request.Context(), "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("request_id", c.GetString("request_id")))
	}
}

// CORS 跨域中间件
func CORS(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0 || slices.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case slices.Contains(origins, origin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
