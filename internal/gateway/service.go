package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/valyala/fasthttp"

	"rpc-gateway/internal/adapter"
	"rpc-gateway/internal/catalog"
	"rpc-gateway/internal/config"
	apierrors "rpc-gateway/internal/errors"
	"rpc-gateway/internal/metrics"
	"rpc-gateway/internal/pipeline"
	"rpc-gateway/internal/resolve"
)

type contextKey struct{}

var requestIDKey contextKey

const (
	platformNetHTTP  = "nethttp"
	platformFastHTTP = "fasthttp"
)

// RequestContext is the value procedures receive as their call context.
type RequestContext struct {
	RequestID  string
	RemoteAddr string
	UserAgent  string
}

type Service struct {
	cfg      *config.Config
	router   *pipeline.Router
	http     *adapter.Handler
	fast     *adapter.Handler
	metrics  *metrics.Metrics
	logger   *slog.Logger
	loadedAt time.Time
}

func NewService(cfg *config.Config, router *pipeline.Router, m *metrics.Metrics, logger *slog.Logger) *Service {
	s := &Service{
		cfg:      cfg,
		router:   router,
		metrics:  m,
		logger:   logger,
		loadedAt: time.Now(),
	}
	s.http = adapter.New(s.adapterOptions(platformNetHTTP))
	s.fast = adapter.New(s.adapterOptions(platformFastHTTP))
	return s
}

func (s *Service) adapterOptions(platform string) adapter.Options {
	return adapter.Options{
		Endpoint:      s.cfg.Endpoint,
		Router:        s.router,
		Pipeline:      resolve.PipelineFunc(pipeline.Resolve),
		CreateContext: s.createContext,
		Batching:      resolve.BatchingConfig{Enabled: s.cfg.Batching.Enabled},
		ResponseMeta:  s.responseMeta,
		OnError:       s.onError,
		OnComplete: func(o adapter.Outcome) {
			if errors.Is(o.Err, adapter.ErrMalformedResult) {
				s.metrics.MalformedResults.Inc()
			}
			s.metrics.ObserveRequest(platform, o.Status, o.Started)
		},
		Logger: s.logger,
	}
}

// NewRouter registers the configured procedures.
func NewRouter(cfg *config.Config) (*pipeline.Router, error) {
	rt := pipeline.NewRouter()
	for _, proc := range cfg.Procedures {
		fn, err := procedureFunc(proc)
		if err != nil {
			return nil, err
		}
		register := rt.Query
		if proc.Type == config.TypeMutation {
			register = rt.Mutation
		}
		if err := register(proc.Path, fn); err != nil {
			return nil, fmt.Errorf("register procedure: %w", err)
		}
	}
	return rt, nil
}

func procedureFunc(proc config.Procedure) (pipeline.ProcedureFunc, error) {
	switch proc.Kind {
	case config.KindEcho:
		return func(_ context.Context, call resolve.Call) (any, error) {
			return call.Input, nil
		}, nil
	default:
		result, err := json.Marshal(proc.Result)
		if err != nil {
			return nil, fmt.Errorf("procedure %s: encode result: %w", proc.Path, err)
		}
		return func(context.Context, resolve.Call) (any, error) {
			return json.RawMessage(result), nil
		}, nil
	}
}

func (s *Service) HandleRPC(w http.ResponseWriter, r *http.Request) {
	s.http.ServeHTTP(w, r)
}

func (s *Service) HandleFastHTTP(fctx *fasthttp.RequestCtx) {
	s.fast.ServeFastHTTP(fctx)
}

func (s *Service) HandleProcedures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		apierrors.Write(w, apierrors.CodeMethodNotSupported, "method not allowed", "", requestIDFromContext(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(catalog.BuildListResponse(s.cfg, s.loadedAt)); err != nil {
		s.logger.Error("failed to encode procedures response", "error", err, "request_id", requestIDFromContext(r.Context()))
		apierrors.Write(w, apierrors.CodeInternal, "failed to encode response", "", requestIDFromContext(r.Context()))
	}
}

func (s *Service) HandleUnsupported(w http.ResponseWriter, r *http.Request) {
	apierrors.Write(w, apierrors.CodeNotFound, "path is not served by this gateway", "", requestIDFromContext(r.Context()))
}

func (s *Service) createContext(ctx context.Context, opts adapter.CreateContextOptions) (any, error) {
	id := requestIDFromContext(ctx)
	if id == "" {
		id = requestID(opts.Req)
	}
	if id != "" {
		opts.ResHeaders.Set("x-request-id", id)
	}
	return &RequestContext{
		RequestID:  id,
		RemoteAddr: opts.Req.RemoteAddr,
		UserAgent:  opts.Req.UserAgent(),
	}, nil
}

func (s *Service) responseMeta(in resolve.ResponseMetaInput) resolve.ResponseMeta {
	headers := make(map[string]resolve.HeaderValue, len(s.cfg.ResponseHeaders)+1)
	for _, name := range slices.Sorted(maps.Keys(s.cfg.ResponseHeaders)) {
		headers[http.CanonicalHeaderKey(name)] = resolve.Single(s.cfg.ResponseHeaders[name])
	}
	if len(in.Errors) > 0 {
		headers["Cache-Control"] = resolve.Single("no-store")
	}
	return resolve.ResponseMeta{Headers: headers}
}

func (s *Service) onError(ev resolve.ErrorEvent) {
	label := "unknown"
	if _, ok := s.router.Procedure(ev.Path); ok {
		label = ev.Path
	}
	s.metrics.ProcedureErrors.WithLabelValues(label).Inc()

	attrs := []any{"error", ev.Err, "path", ev.Path, "type", string(ev.Type)}
	if ev.Req != nil {
		attrs = append(attrs, "method", ev.Req.Method, "url", ev.Req.URL.Path, "request_id", requestID(ev.Req))
	}
	s.logger.Warn("procedure failed", attrs...)
}

func requestIDFromContext(ctx context.Context) string {
	v := ctx.Value(requestIDKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// requestID prefers the id carried by the context. fasthttp requests carry
// it as a header instead, since their context is the fasthttp RequestCtx.
func requestID(r *http.Request) string {
	if id := requestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("x-request-id")
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}
