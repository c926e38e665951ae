package adapter

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	apierrors "rpc-gateway/internal/errors"
)

// FromFastHTTP converts a fasthttp request into the *http.Request the
// adapter works on. The body is copied because fasthttp reuses its buffers
// once the handler returns.
func FromFastHTTP(ctx context.Context, fctx *fasthttp.RequestCtx) (*http.Request, error) {
	body := append([]byte(nil), fctx.PostBody()...)
	r, err := http.NewRequestWithContext(ctx, string(fctx.Method()), string(fctx.RequestURI()), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("convert fasthttp request: %w", err)
	}

	fctx.Request.Header.VisitAll(func(k, v []byte) {
		r.Header.Add(string(k), string(v))
	})
	r.Host = string(fctx.Host())
	r.RemoteAddr = fctx.RemoteAddr().String()
	r.RequestURI = string(fctx.RequestURI())
	r.ContentLength = int64(len(body))
	return r, nil
}

// ServeFastHTTP runs the request with fctx as its context, so server
// shutdown reaches the pipeline.
func (h *Handler) ServeFastHTTP(fctx *fasthttp.RequestCtx) {
	started := time.Now()
	requestID := string(fctx.Response.Header.Peek("x-request-id"))
	path := DispatchPath(string(fctx.Path()), h.opts.Endpoint)

	r, err := FromFastHTTP(fctx, fctx)
	if err != nil {
		h.logFailure(err, string(fctx.Method()), string(fctx.Path()), requestID)
		apierrors.WriteFastHTTP(fctx, apierrors.CodeBadRequest, "invalid request", path)
		h.complete(Outcome{Status: http.StatusBadRequest, Started: started, Err: err})
		return
	}

	res, err := h.Handle(r)
	if err != nil {
		h.logFailure(err, r.Method, r.URL.Path, requestID)
		apierrors.WriteFastHTTP(fctx, apierrors.CodeInternal, "failed to resolve request", path)
		h.complete(Outcome{Req: r, Status: http.StatusInternalServerError, Started: started, Err: err})
		return
	}
	res.WriteFastHTTP(fctx)
	h.complete(Outcome{Req: r, Status: res.statusCode(), Started: started})
}

func (res *Response) WriteFastHTTP(fctx *fasthttp.RequestCtx) {
	for k, values := range res.Header {
		if isHopByHopHeader(k) || strings.EqualFold(k, "Content-Length") {
			continue
		}
		if strings.EqualFold(k, "Content-Type") {
			if len(values) > 0 {
				fctx.SetContentType(values[len(values)-1])
			}
			continue
		}
		fctx.Response.Header.Del(k)
		for _, v := range values {
			fctx.Response.Header.Add(k, v)
		}
	}
	fctx.SetStatusCode(res.statusCode())
	fctx.SetBody(res.Body)
}
