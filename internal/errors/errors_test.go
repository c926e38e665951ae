package apierrors_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/valyala/fasthttp"

	apierrors "rpc-gateway/internal/errors"
)

func TestWriteRendersEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	apierrors.Write(rec, apierrors.CodeNotFound, "no procedure found", "users.get", "req-1")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("content-type = %q", got)
	}

	var env apierrors.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Error.Message != "no procedure found" || env.Error.Code != -32004 {
		t.Fatalf("error = %+v", env.Error)
	}
	if env.Error.Data.Code != apierrors.CodeNotFound || env.Error.Data.HTTPStatus != http.StatusNotFound || env.Error.Data.Path != "users.get" || env.Error.Data.RequestID != "req-1" {
		t.Fatalf("data = %+v", env.Error.Data)
	}
}

func TestNewFallsBackToInternal(t *testing.T) {
	env := apierrors.New("SOMETHING_ELSE", " ", "", "")
	if env.Error.Data.Code != apierrors.CodeInternal || env.Error.Data.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("data = %+v", env.Error.Data)
	}
	if env.Error.Message != "request failed" {
		t.Fatalf("message = %q", env.Error.Message)
	}
}

func TestWriteFastHTTPUsesResponseRequestID(t *testing.T) {
	var fctx fasthttp.RequestCtx
	fctx.Response.Header.Set("x-request-id", "req-9")
	apierrors.WriteFastHTTP(&fctx, apierrors.CodeTooManyRequests, "slow down", "")

	if got := fctx.Response.StatusCode(); got != http.StatusTooManyRequests {
		t.Fatalf("status = %d", got)
	}
	if got := string(fctx.Response.Header.ContentType()); got != "application/json" {
		t.Fatalf("content-type = %q", got)
	}
	var env apierrors.Envelope
	if err := json.Unmarshal(fctx.Response.Body(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error.Data.RequestID != "req-9" || env.Error.Data.Code != apierrors.CodeTooManyRequests || env.Error.Message != "slow down" {
		t.Fatalf("envelope = %+v", env)
	}
}
