package adapter

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"sync"
	"time"

	apierrors "rpc-gateway/internal/errors"
	"rpc-gateway/internal/resolve"
)

// ErrMalformedResult is returned when the pipeline does not produce a Head
// followed by a Chunk.
var ErrMalformedResult = errors.New("malformed resolution result")

// SingleShot is the assembly policy used by Handle: the Head and the first
// Chunk are pulled, anything after that is abandoned unread.
const SingleShot = 2

type CreateContextOptions struct {
	Req        *http.Request
	ResHeaders http.Header
}

type CreateContextFunc func(ctx context.Context, opts CreateContextOptions) (any, error)

type Options struct {
	// Endpoint is the path prefix the handler is mounted under, e.g. "/api/trpc".
	Endpoint      string
	Router        resolve.Router
	Pipeline      resolve.Pipeline
	CreateContext CreateContextFunc
	Batching      resolve.BatchingConfig
	ResponseMeta  resolve.ResponseMetaFunc
	OnError       func(resolve.ErrorEvent)
	// OnComplete is called once per request served by ServeHTTP or
	// ServeFastHTTP, after the response has been written.
	OnComplete func(Outcome)
	Logger     *slog.Logger
}

// Outcome reports how one request served by the Handler ended. Req is nil
// when the platform request could not be converted.
type Outcome struct {
	Req     *http.Request
	Status  int
	Started time.Time
	Err     error
}

type Handler struct {
	opts Options
}

func New(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Handler{opts: opts}
}

func (h *Handler) Handle(r *http.Request) (*Response, error) {
	return Handle(r, h.opts)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	res, err := h.Handle(r)
	if err != nil {
		requestID := w.Header().Get("x-request-id")
		h.logFailure(err, r.Method, r.URL.Path, requestID)
		apierrors.Write(w, apierrors.CodeInternal, "failed to resolve request", DispatchPath(r.URL.Path, h.opts.Endpoint), requestID)
		h.complete(Outcome{Req: r, Status: http.StatusInternalServerError, Started: started, Err: err})
		return
	}
	res.WriteTo(w)
	h.complete(Outcome{Req: r, Status: res.statusCode(), Started: started})
}

func (h *Handler) logFailure(err error, method, path, requestID string) {
	h.opts.Logger.Error("rpc adapter failed", "error", err, "method", method, "path", path, "request_id", requestID)
}

func (h *Handler) complete(o Outcome) {
	if h.opts.OnComplete != nil {
		h.opts.OnComplete(o)
	}
}

// Handle resolves one platform request through opts.Pipeline and assembles
// the platform response from the Head and the first Chunk.
func Handle(r *http.Request, opts Options) (*Response, error) {
	if opts.Pipeline == nil {
		return nil, fmt.Errorf("adapter: no pipeline configured")
	}

	resHeaders := make(http.Header)
	req, err := Normalize(r)
	if err != nil {
		return nil, err
	}

	createContext := sync.OnceValues(func() (any, error) {
		if opts.CreateContext == nil {
			return nil, nil
		}
		return opts.CreateContext(r.Context(), CreateContextOptions{Req: r, ResHeaders: resHeaders})
	})

	seq := opts.Pipeline.Resolve(r.Context(), resolve.Args{
		Request: req,
		CreateContext: func(context.Context) (any, error) {
			return createContext()
		},
		Path:         DispatchPath(r.URL.Path, opts.Endpoint),
		Router:       opts.Router,
		Batching:     opts.Batching,
		ResponseMeta: opts.ResponseMeta,
		OnError: func(ev resolve.ErrorEvent) {
			if opts.OnError == nil {
				return
			}
			ev.Req = r
			opts.OnError(ev)
		},
	})

	head, chunk, err := pullSingleShot(seq)
	if err != nil {
		return nil, err
	}
	return Assemble(head, chunk, resHeaders), nil
}

func pullSingleShot(seq resolve.Sequence) (resolve.Head, resolve.Chunk, error) {
	if seq == nil {
		return resolve.Head{}, resolve.Chunk{}, fmt.Errorf("%w: pipeline returned no sequence", ErrMalformedResult)
	}
	next, stop := iter.Pull2(iter.Seq2[resolve.Part, error](seq))
	defer stop()

	parts := make([]resolve.Part, 0, SingleShot)
	for len(parts) < SingleShot {
		p, err, ok := next()
		if !ok {
			return resolve.Head{}, resolve.Chunk{}, fmt.Errorf("%w: sequence ended after %d part(s)", ErrMalformedResult, len(parts))
		}
		if err != nil {
			return resolve.Head{}, resolve.Chunk{}, fmt.Errorf("resolve: %w", err)
		}
		parts = append(parts, p)
	}

	head, ok := parts[0].(resolve.Head)
	if !ok {
		return resolve.Head{}, resolve.Chunk{}, fmt.Errorf("%w: first part is %T, want Head", ErrMalformedResult, parts[0])
	}
	chunk, ok := parts[1].(resolve.Chunk)
	if !ok {
		return resolve.Head{}, resolve.Chunk{}, fmt.Errorf("%w: second part is %T, want Chunk", ErrMalformedResult, parts[1])
	}
	return head, chunk, nil
}
