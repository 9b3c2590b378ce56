package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-graphmetrics/pkg/auth"
	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
	"github.com/dd0wney/cluso-graphmetrics/pkg/gateway"
	"github.com/dd0wney/cluso-graphmetrics/pkg/metrics"
	"github.com/dd0wney/cluso-graphmetrics/pkg/snapshot"
)

const triangleJSON = `{
	"nodes": [{"id": "a"}, {"id": "b"}, {"id": "c"}],
	"links": [
		{"source": "a", "target": "b", "weight": 2},
		{"source": "b", "target": "c"},
		{"source": "c", "target": "a"}
	]
}`

// blockingRunner holds computations until released
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 4), release: make(chan struct{})}
}

func (r *blockingRunner) Name() string { return "blocking" }

func (r *blockingRunner) Run(ctx context.Context, _ string, req engine.Request, progress engine.ProgressFunc) (*engine.Result, error) {
	r.started <- struct{}{}
	select {
	case <-r.release:
		return engine.Compute(ctx, req, engine.WithProgress(progress))
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type testEnv struct {
	server  *Server
	handler http.Handler
	gateway *gateway.Gateway
	metrics *metrics.Registry
}

func setupServer(t *testing.T, runner gateway.Runner, gwOpts []gateway.Option, opts ...Option) *testEnv {
	t.Helper()

	if runner == nil {
		runner = gateway.NewInProcessRunner()
	}
	store, err := snapshot.NewStore("")
	require.NoError(t, err)
	reg := metrics.NewRegistry()

	gw := gateway.New(runner, append([]gateway.Option{gateway.WithStore(store), gateway.WithMetrics(reg)}, gwOpts...)...)
	t.Cleanup(gw.Close)

	s, err := NewServer(gw, append([]Option{WithMetrics(reg), WithHeartbeat(50 * time.Millisecond)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return &testEnv{server: s, handler: s.Handler(), gateway: gw, metrics: reg}
}

func (e *testEnv) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp
}

// TestCompute_ThenLatest tests a computation and the snapshot it leaves
func TestCompute_ThenLatest(t *testing.T) {
	env := setupServer(t, nil, nil)

	rr := env.do(http.MethodGet, LatestPath, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(http.MethodPost, ComputePath, triangleJSON, map[string]string{"X-Request-ID": "run-1"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "run-1", rr.Header().Get("X-Request-ID"))

	var result engine.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Len(t, result.NodeMetrics, 3)
	assert.Len(t, result.Communities, 3)
	assert.Len(t, result.EdgeFlags, 3)
	assert.Equal(t, 2.0, result.NodeMetrics["a"].DegreeOutW)

	rr = env.do(http.MethodGet, LatestPath, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var latest LatestResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &latest))
	assert.Equal(t, "run-1", latest.RequestID)
	assert.Equal(t, uint64(1), latest.Seq)
	assert.Equal(t, result.ModularityQ, latest.Result.ModularityQ)
}

// TestCompute_BadRequests tests the 4xx answers of the compute endpoint
func TestCompute_BadRequests(t *testing.T) {
	env := setupServer(t, nil, nil, WithMaxBodyBytes(512))

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"nodes": [`, http.StatusBadRequest},
		{"resolution too large", `{"nodes": [{"id": "a"}], "louvainResolution": 1e6}`, http.StatusBadRequest},
		{"negative resolution", `{"nodes": [{"id": "a"}], "louvainResolution": -1}`, http.StatusBadRequest},
		{"body too large", `{"nodes": [` + strings.Repeat(`{"id": "n"},`, 100) + `{"id": "z"}]}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodPost, ComputePath, tt.body, nil)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			resp := decodeError(t, rr)
			assert.Equal(t, tt.want, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}

	_, ok := env.gateway.Latest()
	assert.False(t, ok, "rejected requests must not produce a snapshot")
}

// TestCompute_MethodNotAllowed tests the method-scoped routes
func TestCompute_MethodNotAllowed(t *testing.T) {
	env := setupServer(t, nil, nil)
	rr := env.do(http.MethodGet, ComputePath, "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

// TestCompute_Busy tests the reject policy answering 429
func TestCompute_Busy(t *testing.T) {
	runner := newBlockingRunner()
	env := setupServer(t, runner, []gateway.Option{gateway.WithPolicy(gateway.PolicyReject)})

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- env.do(http.MethodPost, ComputePath, triangleJSON, nil) }()

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first computation did not start")
	}

	rr := env.do(http.MethodPost, ComputePath, triangleJSON, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	close(runner.release)
	select {
	case rr := <-first:
		assert.Equal(t, http.StatusOK, rr.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("first computation did not finish")
	}
}

// TestCompute_ClientGone tests that a vanished client cancels its computation
func TestCompute_ClientGone(t *testing.T) {
	runner := newBlockingRunner()
	env := setupServer(t, runner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, ComputePath, strings.NewReader(triangleJSON)).WithContext(ctx)
	rr := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		env.handler.ServeHTTP(rr, req)
		close(done)
	}()

	<-runner.started
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return after cancel")
	}
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

// TestAuth tests bearer token enforcement and role checks
func TestAuth(t *testing.T) {
	jwtManager, err := auth.NewJWTManager("test-secret-key-must-be-at-least-32-characters-long", "graphmetrics", time.Minute)
	require.NoError(t, err)
	env := setupServer(t, nil, nil, WithAuth(jwtManager))

	operator, err := jwtManager.GenerateToken("ingest", auth.RoleOperator)
	require.NoError(t, err)
	viewer, err := jwtManager.GenerateToken("dashboard", auth.RoleViewer)
	require.NoError(t, err)

	bearer := func(token string) map[string]string {
		return map[string]string{"Authorization": "Bearer " + token}
	}

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, ComputePath, triangleJSON, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, ComputePath, triangleJSON, bearer("garbage")).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, ComputePath, triangleJSON, bearer(viewer)).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, LatestPath, "", bearer(viewer)).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, ComputePath, triangleJSON, bearer(operator)).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, LatestPath, "", bearer(viewer)).Code)

	// health and metrics stay open
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, LivePath, "", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, MetricsPath, "", nil).Code)

	// graphql enforces the compute role inside the resolver
	mutation := `{"query": "mutation { computeMetrics(input: {nodes: [{id: \"a\"}], links: []}) { modularityQ } }"}`
	rr := env.do(http.MethodPost, GraphQLPath, mutation, bearer(viewer))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), errForbidden.Error())

	rr = env.do(http.MethodPost, GraphQLPath, mutation, bearer(operator))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), `"errors"`)
}

// TestGraphQL_Latest tests the GraphQL route through the middleware chain
func TestGraphQL_Latest(t *testing.T) {
	env := setupServer(t, nil, nil)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, ComputePath, triangleJSON, map[string]string{"X-Request-ID": "gql-1"}).Code)

	rr := env.do(http.MethodPost, GraphQLPath, `{"query": "{ latest { requestId result { modularityQ } } }"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"requestId":"gql-1"`)
}

// TestHealthAndMetrics tests the operational routes
func TestHealthAndMetrics(t *testing.T) {
	env := setupServer(t, nil, nil)

	for _, path := range []string{HealthPath, LivePath, ReadyPath, VersionPath} {
		assert.Equal(t, http.StatusOK, env.do(http.MethodGet, path, "", nil).Code, path)
	}

	env.do(http.MethodPost, ComputePath, triangleJSON, nil)
	rr := env.do(http.MethodGet, MetricsPath, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "graphmetrics_http_requests_total")
	assert.Contains(t, body, `path="/api/v1/metrics"`)
	assert.Contains(t, body, "graphmetrics_compute_requests_total")
}

// TestCORS_Preflight tests that preflight requests are answered before routing
func TestCORS_Preflight(t *testing.T) {
	env := setupServer(t, nil, nil, WithCORS(corsFor("http://localhost:5173")))

	rr := env.do(http.MethodOptions, ComputePath, "", map[string]string{
		"Origin":                        "http://localhost:5173",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}

// TestEvents_StreamEndsWithDone tests the per-request progress stream
func TestEvents_StreamEndsWithDone(t *testing.T) {
	runner := newBlockingRunner()
	env := setupServer(t, runner, nil)
	ts := httptest.NewServer(env.handler)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + EventsPath + "?request=stream-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	computed := make(chan int, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodPost, ts.URL+ComputePath, strings.NewReader(triangleJSON))
		req.Header.Set("X-Request-ID", "stream-1")
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			computed <- 0
			return
		}
		res.Body.Close()
		computed <- res.StatusCode
	}()
	<-runner.started
	close(runner.release)

	var events []gateway.Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev gateway.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.True(t, last.Done)
	assert.Equal(t, "stream-1", last.RequestID)
	assert.Greater(t, len(events), 1, "expected progress events before the final one")
	assert.Equal(t, http.StatusOK, <-computed)
}
