// Package user 用户目录接口：任务分配时的用户选择列表
package user

import (
	"errors"
	"net/http"

	"workerbee/internal/apiserver/httpx"
	"workerbee/internal/shared/apperr"
	"workerbee/internal/shared/storage"
)

// Handler 用户 HTTP 处理器
type Handler struct {
	store storage.UserStore
}

// NewHandler 创建用户处理器
func NewHandler(store storage.UserStore) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册用户相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /users", h.List)
}

// List 活跃用户列表
//
// 路由: GET /users?search=
//
// 返回的 User 序列化时自动剥离密码哈希和锁定簿记（json:"-"）。
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			httpx.WriteAppError(w, apperr.Wrap(apperr.KindUpstream, "storage backend unavailable, try again later", err))
			return
		}
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}
