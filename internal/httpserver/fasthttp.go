package httpserver

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	apierrors "rpc-gateway/internal/errors"
	"rpc-gateway/internal/gateway"
)

// FastServer serves the same routes as Server on top of fasthttp.
type FastServer struct {
	addr   string
	server *fasthttp.Server
}

func NewFast(addr string, logger *slog.Logger, service *gateway.Service, opts Options) *FastServer {
	return &FastServer{
		addr: addr,
		server: &fasthttp.Server{
			Handler:      NewFastHandler(logger, service, opts),
			Name:         "rpc-gateway",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

func NewFastHandler(logger *slog.Logger, service *gateway.Service, opts Options) fasthttp.RequestHandler {
	healthz := fasthttpadaptor.NewFastHTTPHandler(http.HandlerFunc(healthzHandler))
	procedures := fasthttpadaptor.NewFastHTTPHandler(http.HandlerFunc(service.HandleProcedures))
	var metrics fasthttp.RequestHandler
	if opts.Metrics != nil {
		metrics = fasthttpadaptor.NewFastHTTPHandler(opts.Metrics)
	}
	prefix := opts.Endpoint + "/"
	limiter := newLimiterPool(opts.RateLimit)

	route := func(fctx *fasthttp.RequestCtx) {
		path := string(fctx.Path())
		switch {
		case path == "/healthz":
			healthz(fctx)
		case path == "/metrics" && metrics != nil:
			metrics(fctx)
		case path == "/procedures":
			procedures(fctx)
		case strings.HasPrefix(path, prefix):
			service.HandleFastHTTP(fctx)
		default:
			apierrors.WriteFastHTTP(fctx, apierrors.CodeNotFound, "path is not served by this gateway", "")
		}
	}

	return func(fctx *fasthttp.RequestCtx) {
		start := time.Now()
		requestID := strings.TrimSpace(string(fctx.Request.Header.Peek("x-request-id")))
		if requestID == "" {
			requestID = generateRequestID()
		}
		fctx.Request.Header.Set("x-request-id", requestID)
		fctx.Response.Header.Set("x-request-id", requestID)

		if limiter != nil && !limiter.Allow(fctx.RemoteIP().String()) {
			fctx.Response.Header.Set("Retry-After", "1")
			apierrors.WriteFastHTTP(fctx, apierrors.CodeTooManyRequests, "rate limit exceeded", "")
		} else {
			route(fctx)
		}

		logger.Info(
			"http request",
			"method", string(fctx.Method()),
			"path", string(fctx.Path()),
			"status", fctx.Response.StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID,
		)
	}
}

func (s *FastServer) ListenAndServe() error {
	return s.server.ListenAndServe(s.addr)
}

func (s *FastServer) Serve(ln net.Listener) error {
	return s.server.Serve(ln)
}

// Shutdown waits for open connections to finish or ctx to end, whichever
// comes first.
func (s *FastServer) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- s.server.Shutdown()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
