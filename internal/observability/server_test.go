package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestServer_Endpoints(t *testing.T) {
	ready := false
	s := NewServer(":0", func() bool { return ready })

	tests := []struct {
		path   string
		ready  bool
		status int
	}{
		{"/healthz", false, http.StatusOK},
		{"/readyz", false, http.StatusServiceUnavailable},
		{"/readyz", true, http.StatusOK},
		{"/metrics", false, http.StatusOK},
	}
	for _, tt := range tests {
		ready = tt.ready
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.status {
			t.Errorf("%s (ready=%v): expected %d, got %d", tt.path, tt.ready, tt.status, rec.Code)
		}
	}
}

func TestUnaryServerInterceptor_PassesThrough(t *testing.T) {
	interceptor := UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	resp, err := interceptor(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "resp", nil
	})
	if err != nil || resp != "resp" {
		t.Errorf("expected handler result, got %v %v", resp, err)
	}

	want := status.Error(codes.NotFound, "unknown service")
	_, err = interceptor(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Errorf("expected handler error, got %v", err)
	}
}

func TestStreamServerInterceptor_PassesThrough(t *testing.T) {
	interceptor := StreamServerInterceptor()
	info := &grpc.StreamServerInfo{FullMethod: "/grpc.health.v1.Health/Watch"}

	called := false
	err := interceptor(nil, nil, info, func(srv interface{}, stream grpc.ServerStream) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Errorf("expected handler to run, called=%v err=%v", called, err)
	}
}
