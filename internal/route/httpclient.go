package route

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/network/standard"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Doer 发送 HTTP 请求，*client.Client 满足该接口
type Doer interface {
	DoDeadline(ctx context.Context, req *protocol.Request, resp *protocol.Response, deadline time.Time) error
}

// NewHTTPClient 创建访问外部地图服务的 hertz 客户端，走标准库网络栈以支持 TLS
func NewHTTPClient(timeout time.Duration) (*client.Client, error) {
	return client.NewClient(
		client.WithDialer(standard.NewDialer()),
		client.WithTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}),
		client.WithDialTimeout(3*time.Second),
		client.WithClientReadTimeout(timeout),
		client.WithMaxConnsPerHost(64),
	)
}

// StatusError 外部服务返回非 2xx
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Status)
}

func getJSON(ctx context.Context, doer Doer, url string, headers map[string]string, dest interface{}) error {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.SetMethod(consts.MethodGet)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	if err := doer.DoDeadline(ctx, req, resp, deadline); err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return &StatusError{URL: url, Status: status}
	}

	if err := json.Unmarshal(resp.Body(), dest); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
