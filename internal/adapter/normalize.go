package adapter

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"rpc-gateway/internal/resolve"
)

const contentTypeJSON = "application/json"

// Normalize converts a platform request into the pipeline's request model.
// The body is only read when content-type is exactly application/json; a
// repeated content-type is judged by its last value, as in Headers.
func Normalize(r *http.Request) (resolve.Request, error) {
	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) == 0 {
			continue
		}
		headers[strings.ToLower(name)] = values[len(values)-1]
	}

	body := ""
	if headers["content-type"] == contentTypeJSON && r.Body != nil {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return resolve.Request{}, fmt.Errorf("read request body: %w", err)
		}
		body = string(raw)
	}

	return resolve.Request{
		Method:  r.Method,
		Query:   r.URL.Query(),
		Headers: headers,
		Body:    body,
	}, nil
}

// DispatchPath strips the endpoint prefix and its trailing separator from
// urlPath. An endpoint given without a leading slash is anchored at the root.
func DispatchPath(urlPath, endpoint string) string {
	if endpoint != "" && !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	n := len(endpoint) + 1
	if len(urlPath) < n {
		return ""
	}
	return urlPath[n:]
}
