// WebSocket 任务事件网关
//
// 网关向所有已连接的客户端推送任务变更事件，前端据此刷新列表，
// 不必轮询。发起变更的客户端自己不会收到回显。
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"workerbee/internal/shared/eventbus"
)

// upgrader WebSocket 升级器配置
//
// CheckOrigin 当前允许所有来源，生产环境应限制。
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// writeDeadline 单次写操作的超时
const writeDeadline = 10 * time.Second

// wsClient 单个 WebSocket 连接
//
// gorilla/websocket 的连接不支持并发写，广播和 ping 都要经过 writeMu。
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu     sync.RWMutex
	userID string // join 消息之后才有值
}

func (c *wsClient) setUserID(id string) {
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
}

func (c *wsClient) getUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *wsClient) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteJSON(v)
}

func (c *wsClient) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// TaskGateway WebSocket 任务事件网关
//
// 职责：
//   - 管理 WebSocket 连接
//   - 订阅事件总线上的任务变更事件
//   - 将事件广播给所有客户端（跳过事件发起者自己的连接）
type TaskGateway struct {
	bus     eventbus.TaskEventBus
	metrics *Metrics

	mu      sync.RWMutex
	clients map[*wsClient]bool
}

// NewTaskGateway 创建任务事件网关
func NewTaskGateway(bus eventbus.TaskEventBus, metrics *Metrics) *TaskGateway {
	return &TaskGateway{
		bus:     bus,
		metrics: metrics,
		clients: make(map[*wsClient]bool),
	}
}

// Run 订阅事件总线并把事件广播给所有连接
//
// 阻塞直到 ctx 取消，应在独立 goroutine 中调用。
func (g *TaskGateway) Run(ctx context.Context) error {
	events, err := g.bus.SubscribeTaskEvents(ctx)
	if err != nil {
		return err
	}

	log.Printf("[ws] task gateway subscribed to event bus")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			g.broadcast(event)
		}
	}
}

// HandleWebSocket 处理 WebSocket 连接请求
//
// 路由: GET /ws/tasks
//
// 推送消息格式：
//
//	{"type": "task-created"|"task-updated"|"task-deleted", "data": {...}}
//
// 客户端消息：
//
//	加入：{"type": "join", "user_id": "usr-xxx"} -> 之后该用户自己触发的事件不回显
//	心跳：{"type": "ping"} -> 响应 {"type": "pong"}
func (g *TaskGateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}
	defer conn.Close()

	client := &wsClient{conn: conn}
	g.addClient(client)
	defer g.removeClient(client)

	log.Printf("[ws] client connected from %s", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go g.readPump(client, cancel)

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			if err := client.ping(); err != nil {
				return
			}
		}
	}
}

// addClient 添加客户端连接
func (g *TaskGateway) addClient(c *wsClient) {
	g.mu.Lock()
	g.clients[c] = true
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.WSConnectionsActive.Inc()
	}
}

// removeClient 移除客户端连接
func (g *TaskGateway) removeClient(c *wsClient) {
	g.mu.Lock()
	delete(g.clients, c)
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.WSConnectionsActive.Dec()
	}
}

// readPump 读取客户端消息
//
// 在独立 goroutine 中运行，处理 join 和心跳消息；
// 连接关闭时取消上下文。
func (g *TaskGateway) readPump(client *wsClient, cancel context.CancelFunc) {
	defer cancel()
	conn := client.conn
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		if g.metrics != nil {
			g.metrics.WSMessagesTotal.WithLabelValues("inbound").Inc()
		}

		var req struct {
			Type   string `json:"type"`
			UserID string `json:"user_id"`
		}
		if json.Unmarshal(msg, &req) != nil {
			continue
		}

		switch req.Type {
		case "join":
			client.setUserID(req.UserID)
			log.Printf("[ws] client joined as user %s", req.UserID)
		case "ping":
			client.writeJSON(map[string]string{"type": "pong"})
		}
	}
}

// broadcast 把事件推送给所有客户端，跳过发起者自己的连接
func (g *TaskGateway) broadcast(event *eventbus.TaskEvent) {
	g.mu.RLock()
	clients := make([]*wsClient, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.RUnlock()

	if g.metrics != nil {
		g.metrics.TaskEventsTotal.WithLabelValues(event.Type).Inc()
	}

	msg := map[string]interface{}{
		"type": event.Type,
		"data": map[string]interface{}{
			"task_id":   event.TaskID,
			"task":      event.Task,
			"timestamp": event.Timestamp,
		},
	}

	for _, c := range clients {
		if event.ActorID != "" && c.getUserID() == event.ActorID {
			continue
		}
		if err := c.writeJSON(msg); err != nil {
			log.Printf("[ws] broadcast error: %v", err)
			continue
		}
		if g.metrics != nil {
			g.metrics.WSMessagesTotal.WithLabelValues("outbound").Inc()
		}
	}
}
