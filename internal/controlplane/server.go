// Package controlplane 提供策略运行时的 HTTP 管理面：
// 查看策略状态与持仓、触发初始化/启动/停止/重载。
// 只做管理入口，行情与交易回报一律走事件总线。
package controlplane

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gofut/internal/engine"
	"github.com/betbot/gofut/internal/oms"
)

// Config 管理面配置
type Config struct {
	Listen string `json:"listen"` // 如 ":8800"，留空则不启动
}

// Server 管理面服务
type Server struct {
	cfg    Config
	engine *engine.Engine
	book   *oms.OrderBook
	srv    *http.Server
	log    *logrus.Entry
}

// New 创建管理面
func New(cfg Config, eng *engine.Engine, book *oms.OrderBook) *Server {
	return &Server{
		cfg:    cfg,
		engine: eng,
		book:   book,
		log:    logrus.WithField("component", "controlplane"),
	}
}

// Router 组装路由
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/strategies", s.handleStrategiesList)
	api.GET("/positions", s.handlePositions)
	api.GET("/orders", s.handleOrders)
	api.GET("/stop_orders", s.handleStopOrders)
	api.POST("/breaker/halt", s.handleBreakerHalt)
	api.POST("/breaker/resume", s.handleBreakerResume)

	strategy := api.Group("/strategies/:name")
	strategy.POST("/init", s.handleInit)
	strategy.POST("/start", s.handleStart)
	strategy.POST("/stop", s.handleStop)
	strategy.POST("/reload", s.handleReload)

	return r
}

// Start 异步监听；Listen 为空直接跳过
func (s *Server) Start() error {
	if s.cfg.Listen == "" {
		return nil
	}
	s.srv = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		s.log.Infof("管理面已监听 %s", s.cfg.Listen)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("管理面退出: %v", err)
		}
	}()
	return nil
}

// Close 优雅停机
func (s *Server) Close() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"classes": engine.RegisteredClasses(),
		"time":    time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleStrategiesList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": s.engine.Strategies()})
}

func (s *Server) handlePositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": s.book.GetAllPositions()})
}

func (s *Server) handleOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orders": s.book.GetAllOrders()})
}

func (s *Server) handleStopOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stop_orders": s.engine.StopOrders()})
}

func (s *Server) handleInit(c *gin.Context) {
	name := c.Param("name")
	if err := s.engine.InitStrategy(name, false); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "action": "init"})
}

func (s *Server) handleStart(c *gin.Context) {
	name := c.Param("name")
	if err := s.engine.StartStrategy(name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "action": "start"})
}

func (s *Server) handleStop(c *gin.Context) {
	name := c.Param("name")
	if err := s.engine.StopStrategy(name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "action": "stop"})
}

// reloadRequest 重载请求体，setting 缺省沿用原配置
type reloadRequest struct {
	Setting map[string]interface{} `json:"setting"`
}

func (s *Server) handleReload(c *gin.Context) {
	name := c.Param("name")
	var req reloadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := s.engine.ReloadStrategy(name, req.Setting); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "action": "reload"})
}

func (s *Server) handleBreakerHalt(c *gin.Context) {
	s.engine.Breaker().Halt()
	s.log.Warn("⛔ 管理接口触发人工熔断")
	c.JSON(http.StatusOK, gin.H{"halted": true})
}

func (s *Server) handleBreakerResume(c *gin.Context) {
	s.engine.Breaker().Resume()
	s.log.Info("管理接口恢复发单")
	c.JSON(http.StatusOK, gin.H{"halted": false})
}
