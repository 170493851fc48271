// Package server 路由与 WebSocket 网关集成测试
//
// 使用内存存储和进程内事件总线走完整 HTTP 栈：
//   - 路由装配与公开/受保护路由划分
//   - 统一响应信封
//   - CORS 预检
//   - WebSocket 事件广播与发起者跳过
//
// Prometheus 指标注册在默认 Registry 上，Handler 在包内只创建一次。
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workerbee/internal/apiserver/auth"
	"workerbee/internal/shared/eventbus"
	"workerbee/internal/shared/storage/memstore"
)

var (
	testOnce    sync.Once
	testHandler *Handler
	testBus     *eventbus.Local
	testServer  *httptest.Server
	testCancel  context.CancelFunc
)

// testEnv 返回共享的测试服务器（promauto 只允许注册一次）
func testEnv(t *testing.T) (*httptest.Server, *eventbus.Local) {
	t.Helper()
	testOnce.Do(func() {
		testBus = eventbus.NewLocal()
		testHandler = NewHandler(memstore.NewStore(), testBus, Options{
			AuthConfig: auth.Config{JWTSecret: "test-secret", TokenTTL: time.Hour},
		})
		testServer = httptest.NewServer(testHandler.Router())

		var ctx context.Context
		ctx, testCancel = context.WithCancel(context.Background())
		go testHandler.Gateway().Run(ctx)
	})
	return testServer, testBus
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func postJSON(t *testing.T, url, token string, body interface{}) (*http.Response, envelope) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func getJSON(t *testing.T, url, token string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

// registerUser 注册新用户并返回其 ID 和令牌
func registerUser(t *testing.T, baseURL, username string) (string, string) {
	t.Helper()
	resp, env := postJSON(t, baseURL+"/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, env.Success)

	var data struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.User.ID)
	require.NotEmpty(t, data.Token)
	return data.User.ID, data.Token
}

func TestHealth(t *testing.T) {
	srv, _ := testEnv(t)

	resp, env := getJSON(t, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"status":"ok"`)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv, _ := testEnv(t)

	resp, env := getJSON(t, srv.URL+"/tasks", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, "missing authorization header", env.Message)
}

func TestRegisterLoginAndTaskFlow(t *testing.T) {
	srv, _ := testEnv(t)
	userID, token := registerUser(t, srv.URL, "flow_user")

	// 登录
	resp, env := postJSON(t, srv.URL+"/auth/login", "", map[string]string{
		"username": "flow_user",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)

	// 创建任务
	resp, env = postJSON(t, srv.URL+"/tasks", token, map[string]string{
		"title":    "Wire up the dashboard",
		"priority": "high",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, env.Success)

	var created struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		Completed  bool   `json:"completed"`
		AssignedTo struct {
			ID string `json:"id"`
		} `json:"assigned_to"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "pending", created.Status)
	assert.False(t, created.Completed)
	assert.Equal(t, userID, created.AssignedTo.ID)

	// 列表
	resp, env = getJSON(t, srv.URL+"/tasks?search=dashboard", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Tasks []json.RawMessage `json:"tasks"`
		Total int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 1, list.Total)

	// 详情
	resp, _ = getJSON(t, srv.URL+"/tasks/"+created.ID, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListUsersStripsSensitiveFields(t *testing.T) {
	srv, _ := testEnv(t)
	_, token := registerUser(t, srv.URL, "directory_user")

	resp, env := getJSON(t, srv.URL+"/users", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(env.Data), "password")
	assert.NotContains(t, string(env.Data), "login_attempts")
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := testEnv(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/tasks", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestCORSConfiguredOrigins(t *testing.T) {
	mw := corsMiddleware([]string{"https://app.example.com"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	t.Run("allowed origin echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, req)
		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin gets no header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

// dialWS 连接任务事件 WebSocket
func dialWS(t *testing.T, baseURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws/tasks"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWSMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) (map[string]interface{}, error) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	var msg map[string]interface{}
	err := conn.ReadJSON(&msg)
	return msg, err
}

func TestWebSocketBroadcast(t *testing.T) {
	srv, bus := testEnv(t)

	conn := dialWS(t, srv.URL)
	time.Sleep(50 * time.Millisecond) // 等连接注册进网关

	err := bus.PublishTaskEvent(context.Background(), &eventbus.TaskEvent{
		Type:      eventbus.EventTaskCreated,
		TaskID:    "tsk-broadcast",
		ActorID:   "usr-someone-else",
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)

	msg, err := readWSMessage(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, eventbus.EventTaskCreated, msg["type"])

	data, ok := msg["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "tsk-broadcast", data["task_id"])
}

func TestWebSocketSkipsActor(t *testing.T) {
	srv, bus := testEnv(t)

	actor := dialWS(t, srv.URL)
	other := dialWS(t, srv.URL)

	require.NoError(t, actor.WriteJSON(map[string]string{"type": "join", "user_id": "usr-actor"}))
	time.Sleep(50 * time.Millisecond) // 等 join 消息被处理

	err := bus.PublishTaskEvent(context.Background(), &eventbus.TaskEvent{
		Type:      eventbus.EventTaskUpdated,
		TaskID:    "tsk-echo",
		ActorID:   "usr-actor",
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)

	// 旁观者收到事件
	msg, err := readWSMessage(t, other, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, eventbus.EventTaskUpdated, msg["type"])

	// 发起者不收到回显
	_, err = readWSMessage(t, actor, 300*time.Millisecond)
	assert.Error(t, err)
}

func TestWebSocketPingPong(t *testing.T) {
	srv, _ := testEnv(t)

	conn := dialWS(t, srv.URL)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	msg, err := readWSMessage(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "pong", msg["type"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := testEnv(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouterUnknownLimit(t *testing.T) {
	srv, _ := testEnv(t)
	_, token := registerUser(t, srv.URL, fmt.Sprintf("limit_user_%d", time.Now().UnixNano()))

	resp, env := getJSON(t, srv.URL+"/tasks?limit=abc", token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "limit must be an integer", env.Message)
}
