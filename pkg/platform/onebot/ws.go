package onebot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Caller 执行 OneBot 动作并返回响应中的 data。
type Caller interface {
	Call(ctx context.Context, action string, params interface{}) (json.RawMessage, error)
}

// CallerFunc 便于以函数实现 Caller。
type CallerFunc func(ctx context.Context, action string, params interface{}) (json.RawMessage, error)

// Call 实现 Caller。
func (f CallerFunc) Call(ctx context.Context, action string, params interface{}) (json.RawMessage, error) {
	return f(ctx, action, params)
}

// EventHandler 处理一条上报事件。
type EventHandler func(ctx context.Context, ev *Event)

// WSClient 是一条正向 WebSocket 连接。
// 动作请求通过 echo 与响应配对；事件在独立 goroutine 中交给 EventHandler，
// 因此 handler 内可以安全地再次调用 Call。
type WSClient struct {
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex // gorilla/websocket 不允许并发写
	mu      sync.Mutex
	waiters map[string]chan APIResponse

	closed    chan struct{}
	closeOnce sync.Once
}

// DialWS 连接 OneBot 实现端，accessToken 非空时以 Bearer 方式携带。
func DialWS(ctx context.Context, url, accessToken string, logger *zap.Logger) (*WSClient, error) {
	if url == "" {
		return nil, errors.New("onebot ws url is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	header := http.Header{}
	if accessToken != "" {
		header.Set("Authorization", "Bearer "+accessToken)
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	return &WSClient{
		conn:    conn,
		logger:  logger,
		waiters: make(map[string]chan APIResponse),
		closed:  make(chan struct{}),
	}, nil
}

// Call 发送动作并等待对应 echo 的响应。需要 Run 正在读取连接。
func (c *WSClient) Call(ctx context.Context, action string, params interface{}) (json.RawMessage, error) {
	echo := uuid.NewString()
	ch := make(chan APIResponse, 1)

	c.mu.Lock()
	c.waiters[echo] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiters, echo)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(APIRequest{Action: action, Params: params, Echo: echo})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", action, err)
	}

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write %s request: %w", action, err)
	}

	select {
	case resp := <-ch:
		if err := resp.Err(action); err != nil {
			return nil, err
		}
		return resp.Data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrClosed
	}
}

// Run 持续读取连接，直到连接断开或 ctx 结束。返回后连接已关闭。
func (c *WSClient) Run(ctx context.Context, handle EventHandler) error {
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.closed:
		}
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		c.dispatch(ctx, data, handle)
	}
}

// Close 关闭连接并唤醒所有等待中的 Call。
func (c *WSClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// dispatch 区分动作响应与事件：事件必带 post_type，响应没有。
func (c *WSClient) dispatch(ctx context.Context, data []byte, handle EventHandler) {
	var probe struct {
		PostType string `json:"post_type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		c.logger.Warn("drop malformed frame", zap.Error(err))
		return
	}

	if probe.PostType == "" {
		var resp APIResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Warn("drop malformed response", zap.Error(err))
			return
		}
		c.mu.Lock()
		ch := c.waiters[resp.Echo]
		c.mu.Unlock()
		if ch == nil {
			c.logger.Debug("response without waiter", zap.String("echo", resp.Echo))
			return
		}
		select {
		case ch <- resp:
		default:
		}
		return
	}

	ev, err := ParseEvent(data)
	if err != nil {
		c.logger.Warn("drop malformed event", zap.Error(err))
		return
	}
	if ev.PostType == PostTypeMetaEvent {
		c.logger.Debug("meta event", zap.String("type", ev.MetaEventType))
	}
	if handle != nil {
		go handle(ctx, ev)
	}
}

// WSConnector 维护到 OneBot 的正向 WebSocket 连接，断线后按间隔重连。
// 它本身实现 Caller，始终转发到当前连接。
type WSConnector struct {
	url         string
	accessToken string
	interval    time.Duration
	logger      *zap.Logger

	mu      sync.RWMutex
	current *WSClient
}

// NewWSConnector 创建连接器。interval<=0 时断线即退出，不重连。
func NewWSConnector(url, accessToken string, interval time.Duration, logger *zap.Logger) *WSConnector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSConnector{
		url:         url,
		accessToken: accessToken,
		interval:    interval,
		logger:      logger,
	}
}

// Call 实现 Caller。
func (w *WSConnector) Call(ctx context.Context, action string, params interface{}) (json.RawMessage, error) {
	w.mu.RLock()
	client := w.current
	w.mu.RUnlock()
	if client == nil {
		return nil, ErrNotConnected
	}
	return client.Call(ctx, action, params)
}

// Run 建立连接并阻塞读取事件，断线后重连，直到 ctx 结束。
func (w *WSConnector) Run(ctx context.Context, handle EventHandler) error {
	for {
		client, err := DialWS(ctx, w.url, w.accessToken, w.logger)
		if err != nil {
			w.logger.Warn("onebot connect failed", zap.String("url", w.url), zap.Error(err))
		} else {
			w.logger.Info("onebot connected", zap.String("url", w.url))
			w.setCurrent(client)
			err = client.Run(ctx, handle)
			w.setCurrent(nil)
			if ctx.Err() == nil {
				w.logger.Warn("onebot disconnected", zap.Error(err))
			}
		}

		if ctx.Err() != nil {
			return nil
		}
		if w.interval <= 0 {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.interval):
		}
	}
}

func (w *WSConnector) setCurrent(c *WSClient) {
	w.mu.Lock()
	w.current = c
	w.mu.Unlock()
}
