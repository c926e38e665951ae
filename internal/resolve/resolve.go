// Package resolve holds the transport-agnostic model shared by the HTTP
// adapter and any resolution pipeline it drives.
package resolve

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/url"
)

type ProcedureType string

const (
	ProcedureQuery    ProcedureType = "query"
	ProcedureMutation ProcedureType = "mutation"
)

// Request is the normalized form of a platform request. It is built once
// by the adapter and never modified afterwards.
type Request struct {
	Method  string
	Query   url.Values
	Headers map[string]string
	Body    string
}

// HeaderValue is an optional header entry: undefined (the zero value), a
// single value or an ordered list of values.
type HeaderValue struct {
	values []string
	multi  bool
}

func Single(v string) HeaderValue {
	return HeaderValue{values: []string{v}}
}

func Multi(vs ...string) HeaderValue {
	return HeaderValue{values: append([]string(nil), vs...), multi: true}
}

func (h HeaderValue) Defined() bool {
	return h.multi || len(h.values) > 0
}

func (h HeaderValue) IsMulti() bool {
	return h.multi
}

func (h HeaderValue) Values() []string {
	return append([]string(nil), h.values...)
}

// Part is one element of a resolution sequence: a Head followed by one or
// more Chunks.
type Part interface {
	part()
}

type Head struct {
	Status  int
	Headers map[string]HeaderValue
}

type Chunk struct {
	Index   int
	Payload []byte
}

func (Head) part()  {}
func (Chunk) part() {}

// Sequence is lazy, finite and cannot be restarted. Consumers pull from it
// with iter.Pull2 and may stop early.
type Sequence iter.Seq2[Part, error]

type Call struct {
	Path  string
	Type  ProcedureType
	Input json.RawMessage
	Ctx   any
}

type Procedure interface {
	Type() ProcedureType
	Call(ctx context.Context, call Call) (any, error)
}

type Router interface {
	Procedure(path string) (Procedure, bool)
}

type BatchingConfig struct {
	Enabled bool
}

// ErrorEvent describes a failure observed inside the pipeline. Req is set by
// the adapter to the original platform request before the event reaches the
// caller.
type ErrorEvent struct {
	Err   error
	Type  ProcedureType
	Path  string
	Input json.RawMessage
	Ctx   any
	Req   *http.Request
}

type ResponseMetaInput struct {
	Paths  []string
	Type   ProcedureType
	Ctx    any
	Errors []error
}

type ResponseMeta struct {
	Status  int
	Headers map[string]HeaderValue
}

type ResponseMetaFunc func(ResponseMetaInput) ResponseMeta

// Args is everything a pipeline receives for one request.
type Args struct {
	Request       Request
	CreateContext func(ctx context.Context) (any, error)
	Path          string
	Router        Router
	Batching      BatchingConfig
	ResponseMeta  ResponseMetaFunc
	OnError       func(ErrorEvent)
}

type Pipeline interface {
	Resolve(ctx context.Context, args Args) Sequence
}

type PipelineFunc func(ctx context.Context, args Args) Sequence

func (f PipelineFunc) Resolve(ctx context.Context, args Args) Sequence {
	return f(ctx, args)
}

// Parts returns a sequence that yields the given parts in order.
func Parts(parts ...Part) Sequence {
	return func(yield func(Part, error) bool) {
		for _, p := range parts {
			if !yield(p, nil) {
				return
			}
		}
	}
}
