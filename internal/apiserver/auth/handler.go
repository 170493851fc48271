package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"workerbee/internal/apiserver/httpx"
	"workerbee/internal/shared/model"
)

// Handler 认证 HTTP 处理器
type Handler struct {
	svc *Service
}

// NewHandler 创建认证处理器
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/register", h.Register)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("GET /auth/verify", h.Verify)
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type loginRequest struct {
	// 新客户端发 identifier，旧客户端发 username 或 email，三者等价
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (r *loginRequest) identifier() string {
	for _, v := range []string{r.Identifier, r.Username, r.Email} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type authResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// ============================================================================
// Handlers
// ============================================================================

// Register 用户注册
//
// 路由: POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, authResponse{User: user, Token: token})
}

// Login 用户登录
//
// 路由: POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := h.svc.Login(r.Context(), LoginInput{
		Identifier: req.identifier(),
		Password:   req.Password,
	})
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authResponse{User: user, Token: token})
}

// Verify 校验令牌并返回当前用户
//
// 路由: GET /auth/verify
//
// 公开路由之外的接口由中间件统一鉴权，本接口单独解析令牌，
// 供前端启动时恢复会话使用。
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "missing authorization header")
		return
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	user, err := h.svc.Verify(r.Context(), parts[1])
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}
