package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
)

// HTTPName is the transport label used in logs and metrics
const HTTPName = "http"

// ComputePath is the compute endpoint served by the API
const ComputePath = "/api/v1/metrics"

// RequestIDHeader carries the request id over HTTP
const RequestIDHeader = "X-Request-ID"

// maxResponseBytes bounds how much of a reply body is read
const maxResponseBytes = 256 << 20

// HTTPClient posts computations to a graphmetrics API server. Progress is not
// delivered over this transport; servers stream it separately as events.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  logging.Logger
	obs     observer
}

// NewHTTPClient creates a client for the server at baseURL. A non-empty token
// is sent as a bearer credential.
func NewHTTPClient(baseURL, token string, timeout time.Duration, opts Options) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout, Transport: httpTransport(opts)},
		logger:  opts.logger(HTTPName),
		obs:     observer{name: HTTPName, metrics: opts.Metrics},
	}
}

func httpTransport(opts Options) http.RoundTripper {
	if opts.TLS == nil {
		return http.DefaultTransport
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSClientConfig = opts.TLS
	return t
}

// Name implements Client
func (c *HTTPClient) Name() string { return HTTPName }

// remoteError mirrors the API's error body
type remoteError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Compute implements Client
func (c *HTTPClient) Compute(ctx context.Context, requestID string, request engine.Request, _ engine.ProgressFunc) (*engine.Result, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ComputePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.obs.failed("send")
		return nil, fmt.Errorf("post %s: %w", ComputePath, err)
	}
	defer resp.Body.Close()
	c.obs.sent(MsgComputeMetrics, len(body))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.obs.failed("recv")
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.obs.received(MsgMetricsError, len(data))
		var re remoteError
		if json.Unmarshal(data, &re) == nil && re.Message != "" {
			return nil, fmt.Errorf("%w: %d %s: %s", ErrRemote, resp.StatusCode, re.Error, re.Message)
		}
		return nil, fmt.Errorf("%w: status %d", ErrRemote, resp.StatusCode)
	}
	c.obs.received(MsgMetricsDone, len(data))

	var result engine.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.obs.failed("decode")
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	c.logger.Debug("remote computation finished", logging.RequestID(requestID), logging.NodeCount(len(result.NodeMetrics)))
	return &result, nil
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
