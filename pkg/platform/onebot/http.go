package onebot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPClient 通过 OneBot HTTP API 执行动作：POST {baseURL}/{action}。
type HTTPClient struct {
	client *resty.Client
}

// NewHTTPClient 创建 HTTP 动作客户端。timeout<=0 时使用 10 秒。
func NewHTTPClient(baseURL, accessToken string, timeout time.Duration) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, errors.New("onebot http url is empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if accessToken != "" {
		client.SetAuthToken(accessToken)
	}
	return &HTTPClient{client: client}, nil
}

// Call 实现 Caller。
func (c *HTTPClient) Call(ctx context.Context, action string, params interface{}) (json.RawMessage, error) {
	req := c.client.R().SetContext(ctx)
	if params != nil {
		req.SetBody(params)
	}

	resp, err := req.Post("/" + action)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", action, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("call %s: http status %d: %s", action, resp.StatusCode(), resp.String())
	}

	var out APIResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", action, err)
	}
	if err := out.Err(action); err != nil {
		return nil, err
	}
	return out.Data, nil
}
