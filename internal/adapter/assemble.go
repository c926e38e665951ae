package adapter

import (
	"maps"
	"net/http"
	"slices"
	"strings"

	"rpc-gateway/internal/resolve"
)

// Response is the platform response built from one resolution.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// MergeHeaders writes head headers into sink. Single values replace what the
// sink holds under that name, multi values are appended in order and
// undefined values are skipped. Names are applied in sorted order so that
// two spellings of one header always resolve the same way.
func MergeHeaders(sink http.Header, headers map[string]resolve.HeaderValue) {
	for _, name := range slices.Sorted(maps.Keys(headers)) {
		value := headers[name]
		if !value.Defined() {
			continue
		}
		if !value.IsMulti() {
			sink.Set(name, value.Values()[0])
			continue
		}
		for _, v := range value.Values() {
			sink.Add(name, v)
		}
	}
}

func Assemble(head resolve.Head, chunk resolve.Chunk, sink http.Header) *Response {
	MergeHeaders(sink, head.Headers)
	return &Response{
		Status: head.Status,
		Header: sink,
		Body:   chunk.Payload,
	}
}

func (res *Response) WriteTo(w http.ResponseWriter) {
	copyResponseHeaders(w.Header(), res.Header)
	w.WriteHeader(res.statusCode())
	if len(res.Body) > 0 {
		_, _ = w.Write(res.Body)
	}
}

// statusCode treats an unset status as 200.
func (res *Response) statusCode() int {
	if res.Status == 0 {
		return http.StatusOK
	}
	return res.Status
}

// copyResponseHeaders replaces, per name, whatever dst already holds.
func copyResponseHeaders(dst, src http.Header) {
	for k, values := range src {
		if isHopByHopHeader(k) || strings.EqualFold(k, "Content-Length") {
			continue
		}
		dst.Del(k)
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}

func isHopByHopHeader(key string) bool {
	switch strings.ToLower(key) {
	case "connection", "proxy-connection", "keep-alive", "proxy-authenticate", "proxy-authorization", "te", "trailer", "transfer-encoding", "upgrade":
		return true
	default:
		return false
	}
}
