// Package gateway defines the remote resource boundary used by the
// reconciler: synchronous GET/POST/PUT/DELETE calls against hierarchical
// OVH API paths.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// ErrNotFound is wrapped by implementations when the remote resource does not exist.
var ErrNotFound = errors.New("resource not found")

type Gateway interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error
}

// Error carries the originating call of a failed remote operation.
type Error struct {
	Method string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to call OVH API: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a not-found answer from the remote API.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Path joins escaped segments into an API path, e.g. Path("dedicated", "server", name).
func Path(segments ...string) string {
	p := ""
	for _, s := range segments {
		p += "/" + url.PathEscape(s)
	}
	return p
}
