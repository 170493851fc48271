package task

import (
	"encoding/json"
	"net/http"
	"strconv"

	"workerbee/internal/apiserver/auth"
	"workerbee/internal/apiserver/httpx"
)

// Handler 任务 HTTP 处理器
type Handler struct {
	svc *Service
}

// NewHandler 创建任务处理器
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册任务相关路由
//
// /tasks/stats/user 与 /tasks/{id} 不冲突：Go 1.22 mux 按最具体
// 模式匹配，字面段优先于通配段。
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /tasks", h.List)
	mux.HandleFunc("POST /tasks", h.Create)
	mux.HandleFunc("GET /tasks/stats/user", h.StatsForUser)
	mux.HandleFunc("GET /tasks/{id}", h.Get)
	mux.HandleFunc("PUT /tasks/{id}", h.Update)
	mux.HandleFunc("DELETE /tasks/{id}", h.Delete)
}

// List 任务列表
//
// 路由: GET /tasks?status=&priority=&search=&limit=&sortBy=&sortOrder=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := DefaultListLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n // <=0 表示不截断
	}

	opts := ListOptions{
		Status:    q.Get("status"),
		Priority:  q.Get("priority"),
		Search:    q.Get("search"),
		Limit:     limit,
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}

	result, err := h.svc.List(r.Context(), opts)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

// Get 单个任务
//
// 路由: GET /tasks/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

// Create 创建任务
//
// 路由: POST /tasks
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.svc.Create(r.Context(), user.ID, in)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, view)
}

// Update 更新任务
//
// 路由: PUT /tasks/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var p Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.svc.Update(r.Context(), user.ID, r.PathValue("id"), &p)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view)
}

// Delete 删除任务
//
// 路由: DELETE /tasks/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	if err := h.svc.Delete(r.Context(), user.ID, r.PathValue("id")); err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "task deleted")
}

// StatsForUser 当前用户的任务统计
//
// 路由: GET /tasks/stats/user
func (h *Handler) StatsForUser(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	stats, err := h.svc.StatsForUser(r.Context(), user.ID)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}
