package ovh

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	goovh "github.com/ovh/go-ovh/ovh"

	"github.com/evanofslack/ovh-reconcile/internal/gateway"
	"github.com/evanofslack/ovh-reconcile/internal/metrics"
)

type mockClient struct {
	urls []string
	err  error
}

func (m *mockClient) GetWithContext(ctx context.Context, u string, resType interface{}) error {
	m.urls = append(m.urls, "GET "+u)
	return m.err
}

func (m *mockClient) PostWithContext(ctx context.Context, u string, reqBody, resType interface{}) error {
	m.urls = append(m.urls, "POST "+u)
	return m.err
}

func (m *mockClient) PutWithContext(ctx context.Context, u string, reqBody, resType interface{}) error {
	m.urls = append(m.urls, "PUT "+u)
	return m.err
}

func (m *mockClient) DeleteWithContext(ctx context.Context, u string, resType interface{}) error {
	m.urls = append(m.urls, "DELETE "+u)
	return m.err
}

func TestGetEncodesQuery(t *testing.T) {
	client := &mockClient{}
	g := NewWithClient(client, 0, metrics.New(false))

	query := url.Values{}
	query.Set("fieldType", "A")
	query.Set("subDomain", "internal.bar")
	var out []int64
	if err := g.Get(context.Background(), "/domain/zone/example.com/record", query, &out); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := "GET /domain/zone/example.com/record?fieldType=A&subDomain=internal.bar"
	if len(client.urls) != 1 || client.urls[0] != want {
		t.Errorf("urls = %v, want [%s]", client.urls, want)
	}
}

func TestNotFoundTranslation(t *testing.T) {
	client := &mockClient{err: &goovh.APIError{Code: http.StatusNotFound, Message: "The requested object does not exist"}}
	g := NewWithClient(client, 0, metrics.New(false))

	err := g.Get(context.Background(), "/ip/192.0.2.1/reverse/192.0.2.1", nil, nil)
	if !gateway.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) || gwErr.Method != http.MethodGet {
		t.Errorf("expected gateway error with method context, got %v", err)
	}
}

func TestOtherErrorsKeepContext(t *testing.T) {
	client := &mockClient{err: &goovh.APIError{Code: http.StatusForbidden, Message: "This call has not been granted"}}
	g := NewWithClient(client, 0, metrics.New(false))

	err := g.Delete(context.Background(), "/me/installationTemplate/foo", nil)
	if err == nil {
		t.Fatal("Expected error but got none")
	}
	if gateway.IsNotFound(err) {
		t.Error("403 must not be reported as not found")
	}
	var apiErr *goovh.APIError
	if !errors.As(err, &apiErr) {
		t.Errorf("expected wrapped APIError, got %v", err)
	}
}

func TestLimiterHonorsContext(t *testing.T) {
	client := &mockClient{}
	g := NewWithClient(client, 1, metrics.New(false))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// The first token is available, so only exhaust it before checking cancellation.
	_ = g.Post(context.Background(), "/dedicated/server/sv1/reboot", nil, nil)
	if err := g.Post(ctx, "/dedicated/server/sv1/reboot", nil, nil); err == nil {
		t.Fatal("expected limiter wait to fail on cancelled context")
	}
	if len(client.urls) != 1 {
		t.Errorf("expected 1 call to reach client, got %d", len(client.urls))
	}
}
