// Package sheetstore 实现基于电子表格网关的 PersistentStore
//
// 旧部署把任务和用户落在一张在线表格里，前面挡了一层脚本网关：
// 所有操作走同一个 HTTP 端点，动作名放在 action 参数里，响应统一为
// {success, data, message} 信封。表格单元格的类型并不稳定（行号 id、
// completed 布尔、被整个塞进去的用户对象），codec.go 负责在解码时
// 把这些历史形状折叠为统一的 model 记录。
//
// 网关慢且偶尔超时，默认 30 秒请求超时；网络错误、超时与非 2xx
// 响应统一翻译为 storage.ErrUnavailable，上层映射为可重试的 503。
package sheetstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"workerbee/internal/shared/storage"
)

// DefaultTimeout 网关请求超时
const DefaultTimeout = 30 * time.Second

// Client 表格网关 HTTP 客户端
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient 创建网关客户端
//
// baseURL: 网关端点，如 "https://script.example.com/exec"
// apiKey: 随每个请求携带的共享密钥，空串表示网关未启用鉴权
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// envelope 网关响应信封
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// get 执行查询类动作，结果解码到 out（可为 nil）
func (c *Client) get(ctx context.Context, action string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("action", action)
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("sheetstore: build request: %w", err)
	}
	return c.do(req, action, out)
}

// post 执行写入类动作，payload 序列化为请求体，结果解码到 out（可为 nil）
func (c *Client) post(ctx context.Context, action string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"action":  action,
		"key":     c.apiKey,
		"payload": payload,
	})
	if err != nil {
		return fmt.Errorf("sheetstore: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sheetstore: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, action, out)
}

func (c *Client) do(req *http.Request, action string, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		// 超时/连接失败都折叠为后端不可用
		return fmt.Errorf("sheetstore: %s: %w: %v", action, storage.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("sheetstore: %s: read response: %w", action, storage.ErrUnavailable)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sheetstore: %s: gateway returned %d: %w", action, resp.StatusCode, storage.ErrUnavailable)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("sheetstore: %s: malformed envelope: %w", action, storage.ErrUnavailable)
	}
	if !env.Success {
		// 网关把"找不到行"也报成 success=false，按消息区分
		if looksLikeNotFound(env.Message) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("sheetstore: %s: gateway error: %s: %w", action, env.Message, storage.ErrUnavailable)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("sheetstore: %s: decode data: %w", action, err)
		}
	}
	return nil
}

// looksLikeNotFound 网关没有结构化错误码，只能按消息文本识别
func looksLikeNotFound(msg string) bool {
	switch msg {
	case "not found", "task not found", "user not found", "row not found":
		return true
	}
	return false
}
