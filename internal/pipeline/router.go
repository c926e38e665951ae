package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"rpc-gateway/internal/resolve"
)

type ProcedureFunc func(ctx context.Context, call resolve.Call) (any, error)

type procedure struct {
	typ resolve.ProcedureType
	fn  ProcedureFunc
}

func (p procedure) Type() resolve.ProcedureType { return p.typ }

func (p procedure) Call(ctx context.Context, call resolve.Call) (any, error) {
	return p.fn(ctx, call)
}

// Router is a flat path -> procedure table. It is built before serving and
// read-only afterwards.
type Router struct {
	procs map[string]procedure
}

func NewRouter() *Router {
	return &Router{procs: make(map[string]procedure)}
}

func (rt *Router) Query(path string, fn ProcedureFunc) error {
	return rt.Register(path, resolve.ProcedureQuery, fn)
}

func (rt *Router) Mutation(path string, fn ProcedureFunc) error {
	return rt.Register(path, resolve.ProcedureMutation, fn)
}

func (rt *Router) Register(path string, typ resolve.ProcedureType, fn ProcedureFunc) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("procedure path is required")
	}
	if strings.Contains(path, ",") {
		return fmt.Errorf("procedure path %q must not contain ','", path)
	}
	if fn == nil {
		return fmt.Errorf("procedure %s has no handler", path)
	}
	switch typ {
	case resolve.ProcedureQuery, resolve.ProcedureMutation:
	default:
		return fmt.Errorf("procedure %s has unknown type %q", path, typ)
	}
	if _, exists := rt.procs[path]; exists {
		return fmt.Errorf("duplicate procedure: %s", path)
	}
	rt.procs[path] = procedure{typ: typ, fn: fn}
	return nil
}

func (rt *Router) Procedure(path string) (resolve.Procedure, bool) {
	p, ok := rt.procs[path]
	if !ok {
		return nil, false
	}
	return p, true
}

func (rt *Router) Paths() []string {
	paths := make([]string, 0, len(rt.procs))
	for path := range rt.procs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
