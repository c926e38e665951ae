package apierrors

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/valyala/fasthttp"
)

const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotSupported = "METHOD_NOT_SUPPORTED"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeInternal           = "INTERNAL_SERVER_ERROR"
)

// jsonRPCCodes mirrors the numeric codes RPC clients expect next to the
// symbolic one.
var jsonRPCCodes = map[string]int{
	CodeBadRequest:         -32600,
	CodeNotFound:           -32004,
	CodeMethodNotSupported: -32005,
	CodeTooManyRequests:    -32029,
	CodeInternal:           -32603,
}

type Envelope struct {
	Error Inner `json:"error"`
}

type Inner struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Data    Data   `json:"data"`
}

type Data struct {
	Code       string `json:"code"`
	HTTPStatus int    `json:"httpStatus"`
	Path       string `json:"path,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
}

// StatusForCode maps a symbolic error code to its HTTP status.
func StatusForCode(code string) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotSupported:
		return http.StatusMethodNotAllowed
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func New(code, message, path, requestID string) Envelope {
	if strings.TrimSpace(message) == "" {
		message = "request failed"
	}
	rpcCode, ok := jsonRPCCodes[code]
	if !ok {
		code = CodeInternal
		rpcCode = jsonRPCCodes[CodeInternal]
	}
	return Envelope{
		Error: Inner{
			Message: message,
			Code:    rpcCode,
			Data: Data{
				Code:       code,
				HTTPStatus: StatusForCode(code),
				Path:       path,
				RequestID:  requestID,
			},
		},
	}
}

func Marshal(code, message, path, requestID string) []byte {
	body, err := json.Marshal(New(code, message, path, requestID))
	if err != nil {
		return []byte(`{"error":{"message":"failed to marshal error","code":-32603,"data":{"code":"INTERNAL_SERVER_ERROR","httpStatus":500}}}`)
	}
	return body
}

func Write(w http.ResponseWriter, code, message, path, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusForCode(code))
	_, _ = w.Write(Marshal(code, message, path, requestID))
}

// WriteFastHTTP is Write for fasthttp. The request id is taken from the
// x-request-id response header when one has been set.
func WriteFastHTTP(fctx *fasthttp.RequestCtx, code, message, path string) {
	requestID := string(fctx.Response.Header.Peek("x-request-id"))
	fctx.SetContentType("application/json")
	fctx.SetStatusCode(StatusForCode(code))
	fctx.SetBody(Marshal(code, message, path, requestID))
}
