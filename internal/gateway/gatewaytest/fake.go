// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/evanofslack/ovh-reconcile/internal/gateway"
)

type Call struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Handler answers one call. The returned value is JSON round-tripped into the
// caller's output, like the real client does.
type Handler func(call Call) (any, error)

type Fake struct {
	mu     sync.Mutex
	routes map[string]Handler
	calls  []Call
}

func New() *Fake {
	return &Fake{routes: make(map[string]Handler)}
}

func key(method, path string) string {
	return method + " " + path
}

func (f *Fake) On(method, path string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[key(method, path)] = h
}

// Reply answers every call on the route with v.
func (f *Fake) Reply(method, path string, v any) {
	f.On(method, path, func(Call) (any, error) { return v, nil })
}

func (f *Fake) Fail(method, path string, err error) {
	f.On(method, path, func(Call) (any, error) { return nil, err })
}

// Sequence answers successive calls with successive values; the last value repeats.
func (f *Fake) Sequence(method, path string, vs ...any) {
	n := 0
	f.On(method, path, func(Call) (any, error) {
		v := vs[min(n, len(vs)-1)]
		n++
		return v, nil
	})
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Mutations returns every POST, PUT and DELETE call in order.
func (f *Fake) Mutations() []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Method != http.MethodGet {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) Count(method, path string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func (f *Fake) Get(ctx context.Context, path string, query url.Values, out any) error {
	return f.do(ctx, Call{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (f *Fake) Post(ctx context.Context, path string, body, out any) error {
	return f.do(ctx, Call{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (f *Fake) Put(ctx context.Context, path string, body, out any) error {
	return f.do(ctx, Call{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (f *Fake) Delete(ctx context.Context, path string, out any) error {
	return f.do(ctx, Call{Method: http.MethodDelete, Path: path}, out)
}

func (f *Fake) do(ctx context.Context, call Call, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	h, ok := f.routes[key(call.Method, call.Path)]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &gateway.Error{Method: call.Method, Path: call.Path, Err: err}
	}
	if !ok {
		return &gateway.Error{Method: call.Method, Path: call.Path, Err: fmt.Errorf("unexpected call")}
	}

	v, err := h(call)
	if err != nil {
		return &gateway.Error{Method: call.Method, Path: call.Path, Err: err}
	}
	if out == nil || v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
