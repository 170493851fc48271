// Package server 路由配置与核心基础设施
//
// 本文件定义 HTTP API 路由，将请求分发到各领域独立包。
// 仍保留在本包的模块：
//   - websocket.go: WebSocket 任务事件网关
//   - metrics.go: Prometheus 指标
package server

import (
	"net/http"

	"workerbee/internal/apiserver/auth"
	"workerbee/internal/apiserver/httpx"
	"workerbee/internal/apiserver/task"
	"workerbee/internal/apiserver/user"
	"workerbee/internal/shared/eventbus"
	"workerbee/internal/shared/storage"
)

// Handler API 处理器
//
// Handler 是所有 HTTP API 的入口，负责：
//   - 路由请求到各领域包的处理器
//   - 管理存储层连接
//   - 协调事件总线和 WebSocket 网关
type Handler struct {
	store storage.PersistentStore // 持久化业务数据
	bus   eventbus.TaskEventBus   // 任务变更事件流（WebSocket 推送）

	authConfig     auth.Config
	strictStatus   bool
	allowedOrigins []string

	// 内部组件
	taskGateway *TaskGateway // WebSocket 任务事件网关
	metrics     *Metrics     // Prometheus 指标
}

// Options Handler 的可选配置
type Options struct {
	AuthConfig     auth.Config
	StrictStatus   bool
	AllowedOrigins []string // 空列表表示放行全部来源
}

// NewHandler 创建 Handler 实例
func NewHandler(store storage.PersistentStore, bus eventbus.TaskEventBus, opts Options) *Handler {
	if bus == nil {
		bus = eventbus.NewNoop()
	}
	h := &Handler{
		store:          store,
		bus:            bus,
		authConfig:     opts.AuthConfig,
		strictStatus:   opts.StrictStatus,
		allowedOrigins: opts.AllowedOrigins,
	}
	h.metrics = NewMetrics("workerbee")
	h.taskGateway = NewTaskGateway(bus, h.metrics)
	return h
}

// Gateway 返回 WebSocket 任务事件网关
func (h *Handler) Gateway() *TaskGateway {
	return h.taskGateway
}

// GetMetrics 返回指标实例
func (h *Handler) GetMetrics() *Metrics {
	return h.metrics
}

// Health 健康检查接口
//
// 路由: GET /health
//
// 用于负载均衡器和监控系统检查服务状态。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查:
//   - GET /health - 服务健康检查
//
// 认证 (Auth):
//   - POST /auth/register - 用户注册
//   - POST /auth/login    - 用户登录（5 次失败锁定 2 小时）
//   - GET  /auth/verify   - 令牌校验
//
// 任务管理 (Task):
//   - GET    /tasks            - 列出任务（过滤/排序/截断）
//   - POST   /tasks            - 创建任务
//   - GET    /tasks/stats/user - 当前用户统计
//   - GET    /tasks/{id}       - 获取任务详情
//   - PUT    /tasks/{id}       - 更新任务
//   - DELETE /tasks/{id}       - 删除任务
//
// 用户目录 (User):
//   - GET /users - 活跃用户列表
//
// WebSocket:
//   - GET /ws/tasks - 实时任务事件推送
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)

	// Prometheus 指标端点
	mux.Handle("GET /metrics", MetricsHandler())

	// Auth 接口
	authSvc := auth.NewService(h.store, h.authConfig)
	authHandler := auth.NewHandler(authSvc)
	authHandler.RegisterRoutes(mux)

	// Task 接口
	taskSvc := task.NewService(h.store, h.bus, h.strictStatus)
	taskHandler := task.NewHandler(taskSvc)
	taskHandler.RegisterRoutes(mux)

	// User 接口
	userHandler := user.NewHandler(h.store)
	userHandler.RegisterRoutes(mux)

	// 应用指标中间件到 REST API
	apiHandler := h.metrics.MetricsMiddleware(mux)

	// 应用认证中间件
	authedHandler := auth.Middleware(h.authConfig)(apiHandler)

	// 应用 CORS 中间件
	corsHandler := corsMiddleware(h.allowedOrigins)(authedHandler)

	// 创建顶层路由，WebSocket 绕过 metrics 中间件（避免 http.Hijacker 问题）
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /ws/tasks", h.taskGateway.HandleWebSocket)
	topMux.Handle("/", corsHandler)

	return topMux
}

// corsMiddleware 添加 CORS 头支持跨域请求
//
// origins 为空时放行全部来源（开发环境）。
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case len(allowed) == 0:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
