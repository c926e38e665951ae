package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/valyala/fasthttp"

	"rpc-gateway/internal/config"
	"rpc-gateway/internal/gateway"
	"rpc-gateway/internal/metrics"
	"rpc-gateway/internal/resolve"
)

func TestHandleRPCRecordsMetrics(t *testing.T) {
	svc, m := newService(t)

	rec := httptest.NewRecorder()
	svc.HandleRPC(rec, httptest.NewRequest(http.MethodGet, "/rpc/status.get", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != `{"result":{"data":{"healthy":true}}}` {
		t.Fatalf("body = %s", got)
	}

	rec = httptest.NewRecorder()
	svc.HandleRPC(rec, httptest.NewRequest(http.MethodGet, "/rpc/unknown.path", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("nethttp", "200")); got != 1 {
		t.Fatalf("200 requests = %v", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("nethttp", "404")); got != 1 {
		t.Fatalf("404 requests = %v", got)
	}
	if got := testutil.ToFloat64(m.ProcedureErrors.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("procedure errors = %v", got)
	}
	if got := testutil.ToFloat64(m.MalformedResults); got != 0 {
		t.Fatalf("malformed results = %v", got)
	}
}

func TestHandleRPCSetsRequestIDFromContext(t *testing.T) {
	svc, _ := newService(t)

	req := httptest.NewRequest(http.MethodGet, "/rpc/status.get", nil)
	req = req.WithContext(gateway.ContextWithRequestID(req.Context(), "req-42"))
	rec := httptest.NewRecorder()
	svc.HandleRPC(rec, req)

	if got := rec.Header().Get("x-request-id"); got != "req-42" {
		t.Fatalf("x-request-id = %q", got)
	}
}

func TestHandleFastHTTPRecordsMetricsAndRequestID(t *testing.T) {
	svc, m := newService(t)

	var fctx fasthttp.RequestCtx
	fctx.Request.SetRequestURI("/rpc/status.get")
	fctx.Request.Header.Set("x-request-id", "req-fast")
	svc.HandleFastHTTP(&fctx)

	if got := fctx.Response.StatusCode(); got != http.StatusOK {
		t.Fatalf("status = %d", got)
	}
	if got := string(fctx.Response.Header.Peek("x-request-id")); got != "req-fast" {
		t.Fatalf("x-request-id = %q", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("fasthttp", "200")); got != 1 {
		t.Fatalf("fasthttp 200 requests = %v", got)
	}
}

func TestResponseHeadersAcceptAnySpelling(t *testing.T) {
	cfg := validConfig(t)
	cfg.ResponseHeaders = map[string]string{
		"Cache-Control": "max-age=60",
		"x-served-by":   "rpc-gateway",
	}
	rt, err := gateway.NewRouter(cfg)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	svc := gateway.NewService(cfg, rt, metrics.New(nil), slog.New(slog.NewTextHandler(io.Discard, nil)))

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		svc.HandleRPC(rec, httptest.NewRequest(http.MethodGet, "/rpc/unknown.path", nil))
		if got := rec.Header().Values("Cache-Control"); len(got) != 1 || got[0] != "no-store" {
			t.Fatalf("run %d: error cache-control = %v", i, got)
		}

		rec = httptest.NewRecorder()
		svc.HandleRPC(rec, httptest.NewRequest(http.MethodGet, "/rpc/status.get", nil))
		if got := rec.Header().Values("Cache-Control"); len(got) != 1 || got[0] != "max-age=60" {
			t.Fatalf("run %d: cache-control = %v", i, got)
		}
		if got := rec.Header().Get("X-Served-By"); got != "rpc-gateway" {
			t.Fatalf("run %d: x-served-by = %q", i, got)
		}
	}
}

func TestHandleProceduresRejectsPost(t *testing.T) {
	svc, _ := newService(t)

	rec := httptest.NewRecorder()
	svc.HandleProcedures(rec, httptest.NewRequest(http.MethodPost, "/procedures", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != http.MethodGet {
		t.Fatalf("allow = %q", got)
	}
}

func TestNewRouterFromConfig(t *testing.T) {
	cfg := validConfig(t)
	rt, err := gateway.NewRouter(cfg)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}

	proc, ok := rt.Procedure("status.get")
	if !ok {
		t.Fatalf("status.get not registered")
	}
	out, err := proc.Call(context.Background(), resolve.Call{Path: "status.get", Type: resolve.ProcedureQuery})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	raw, _ := json.Marshal(out)
	if string(raw) != `{"healthy":true}` {
		t.Fatalf("result = %s", raw)
	}

	echo, ok := rt.Procedure("echo")
	if !ok || echo.Type() != resolve.ProcedureMutation {
		t.Fatalf("echo should be registered as a mutation")
	}
}

func TestNewRouterRejectsUnencodableResult(t *testing.T) {
	cfg := validConfig(t)
	cfg.Procedures[0].Result = map[string]any{"bad": func() {}}
	if _, err := gateway.NewRouter(cfg); err == nil || !strings.Contains(err.Error(), "encode result") {
		t.Fatalf("expected encode error, got %v", err)
	}
}

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Endpoint: "/rpc",
		Procedures: []config.Procedure{
			{Path: "status.get", Result: map[string]any{"healthy": true}},
			{Path: "echo", Type: config.TypeMutation, Kind: config.KindEcho},
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	return cfg
}

func newService(t *testing.T) (*gateway.Service, *metrics.Metrics) {
	t.Helper()
	cfg := validConfig(t)
	rt, err := gateway.NewRouter(cfg)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	m := metrics.New(nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return gateway.NewService(cfg, rt, m, logger), m
}
