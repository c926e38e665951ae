// Package pipeline is a small resolution pipeline over a Router. It answers
// single and batched calls with JSON result or error envelopes, one Head and
// one Chunk per request.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"

	apierrors "rpc-gateway/internal/errors"
	"rpc-gateway/internal/resolve"
)

// Error is a procedure failure carrying a symbolic code from the
// apierrors package.
type Error struct {
	Code    string
	Message string
	Err     error
}

func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

type resultEnvelope struct {
	Result resultData `json:"result"`
}

type resultData struct {
	Data any `json:"data"`
}

type callResult struct {
	status int
	body   json.RawMessage
	err    error
}

// Resolve is a resolve.PipelineFunc. Work starts on the first pull.
func Resolve(ctx context.Context, args resolve.Args) resolve.Sequence {
	return func(yield func(resolve.Part, error) bool) {
		status, body, meta := run(ctx, args)
		head := resolve.Head{
			Status: status,
			Headers: map[string]resolve.HeaderValue{
				"Content-Type": resolve.Single("application/json"),
			},
		}
		if args.ResponseMeta != nil {
			override := args.ResponseMeta(meta)
			if override.Status != 0 {
				head.Status = override.Status
			}
			// Names are canonicalized so an override replaces the default
			// entry instead of sitting next to it under another spelling.
			for _, name := range slices.Sorted(maps.Keys(override.Headers)) {
				head.Headers[http.CanonicalHeaderKey(name)] = override.Headers[name]
			}
		}
		if !yield(head, nil) {
			return
		}
		yield(resolve.Chunk{Index: 0, Payload: body}, nil)
	}
}

func run(ctx context.Context, args resolve.Args) (int, []byte, resolve.ResponseMetaInput) {
	req := args.Request
	meta := resolve.ResponseMetaInput{}

	typ, ok := procedureTypeForMethod(req.Method)
	if !ok {
		res := failure(args, "", "", nil, nil, NewError(apierrors.CodeMethodNotSupported, "unsupported HTTP method "+req.Method))
		meta.Errors = []error{res.err}
		return res.status, res.body, meta
	}
	meta.Type = typ

	isBatch := req.Query.Get("batch") == "1"
	if isBatch && !args.Batching.Enabled {
		res := failure(args, typ, args.Path, nil, nil, NewError(apierrors.CodeBadRequest, "batching is not enabled on this server"))
		meta.Errors = []error{res.err}
		return res.status, res.body, meta
	}

	paths := []string{args.Path}
	if isBatch {
		paths = strings.Split(args.Path, ",")
	}
	meta.Paths = paths

	raw := req.Body
	if typ == resolve.ProcedureQuery {
		raw = req.Query.Get("input")
	}
	inputs, err := splitInputs(raw, len(paths), isBatch)
	if err != nil {
		res := failure(args, typ, args.Path, nil, nil, &Error{Code: apierrors.CodeBadRequest, Message: "invalid input", Err: err})
		meta.Errors = []error{res.err}
		return res.status, res.body, meta
	}

	c := &caller{args: args}
	results := make([]callResult, len(paths))
	for i, path := range paths {
		results[i] = c.call(ctx, typ, path, inputs[i])
		if results[i].err != nil {
			meta.Errors = append(meta.Errors, results[i].err)
		}
	}
	meta.Ctx = c.value

	if !isBatch {
		return results[0].status, results[0].body, meta
	}

	items := make([]json.RawMessage, len(results))
	for i, res := range results {
		items[i] = res.body
	}
	body, err := json.Marshal(items)
	if err != nil {
		res := failure(args, typ, args.Path, nil, c.value, &Error{Code: apierrors.CodeInternal, Message: "failed to encode batch", Err: err})
		return res.status, res.body, meta
	}
	return batchStatus(results), body, meta
}

// caller creates the request context on the first call that reaches a
// procedure and reuses it for the rest of the batch.
type caller struct {
	args    resolve.Args
	created bool
	value   any
	err     error
}

func (c *caller) context(ctx context.Context) (any, error) {
	if !c.created {
		c.created = true
		if c.args.CreateContext != nil {
			c.value, c.err = c.args.CreateContext(ctx)
		}
	}
	return c.value, c.err
}

func (c *caller) call(ctx context.Context, typ resolve.ProcedureType, path string, input json.RawMessage) callResult {
	if c.args.Router == nil {
		return failure(c.args, typ, path, input, nil, NewError(apierrors.CodeNotFound, "no procedure found on path \""+path+"\""))
	}
	proc, ok := c.args.Router.Procedure(path)
	if !ok {
		return failure(c.args, typ, path, input, nil, NewError(apierrors.CodeNotFound, "no procedure found on path \""+path+"\""))
	}
	if proc.Type() != typ {
		return failure(c.args, typ, path, input, nil, NewError(apierrors.CodeMethodNotSupported, fmt.Sprintf("%s is a %s, not a %s", path, proc.Type(), typ)))
	}

	value, err := c.context(ctx)
	if err != nil {
		return failure(c.args, typ, path, input, nil, &Error{Code: apierrors.CodeInternal, Message: "failed to create context", Err: err})
	}

	data, err := proc.Call(ctx, resolve.Call{Path: path, Type: typ, Input: input, Ctx: value})
	if err != nil {
		return failure(c.args, typ, path, input, value, err)
	}

	body, err := json.Marshal(resultEnvelope{Result: resultData{Data: data}})
	if err != nil {
		return failure(c.args, typ, path, input, value, &Error{Code: apierrors.CodeInternal, Message: "failed to encode result", Err: err})
	}
	return callResult{status: http.StatusOK, body: body}
}

func failure(args resolve.Args, typ resolve.ProcedureType, path string, input json.RawMessage, ctxValue any, err error) callResult {
	if args.OnError != nil {
		args.OnError(resolve.ErrorEvent{Err: err, Type: typ, Path: path, Input: input, Ctx: ctxValue})
	}

	code, message := apierrors.CodeInternal, err.Error()
	var perr *Error
	if errors.As(err, &perr) {
		code = perr.Code
		message = perr.Message
	}
	return callResult{
		status: apierrors.StatusForCode(code),
		body:   apierrors.Marshal(code, message, path, ""),
		err:    err,
	}
}

func procedureTypeForMethod(method string) (resolve.ProcedureType, bool) {
	switch method {
	case http.MethodGet, http.MethodHead:
		return resolve.ProcedureQuery, true
	case http.MethodPost:
		return resolve.ProcedureMutation, true
	default:
		return "", false
	}
}

// splitInputs returns one raw input per call. Batched input is an object
// keyed by call index.
func splitInputs(raw string, n int, isBatch bool) ([]json.RawMessage, error) {
	inputs := make([]json.RawMessage, n)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return inputs, nil
	}
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("input is not valid JSON")
	}
	if !isBatch {
		inputs[0] = json.RawMessage(raw)
		return inputs, nil
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &keyed); err != nil {
		return nil, fmt.Errorf("batch input must be an object keyed by call index: %w", err)
	}
	for i := range inputs {
		inputs[i] = keyed[strconv.Itoa(i)]
	}
	return inputs, nil
}

func batchStatus(results []callResult) int {
	status := results[0].status
	for _, res := range results[1:] {
		if res.status != status {
			return http.StatusMultiStatus
		}
	}
	return status
}
