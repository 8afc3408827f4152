package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPChecker_StatusOK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	chk := NewHTTPChecker(2 * time.Second)
	out := chk.Check(context.Background(), s.URL)
	if !out.Reachable {
		t.Fatalf("want reachable, got %+v", out)
	}
	if out.StatusCode != 200 {
		t.Fatalf("want status 200, got %d", out.StatusCode)
	}
	if out.Reason != "" {
		t.Fatalf("want empty reason, got %q", out.Reason)
	}
	if !strings.HasPrefix(out.Message, "200") {
		t.Fatalf("want message to start with 200, got %q", out.Message)
	}
	if out.LatencyMS < 0 {
		t.Fatalf("latency should be >= 0, got %f", out.LatencyMS)
	}
}

func TestHTTPChecker_OnlyExact200IsReachable(t *testing.T) {
	for _, code := range []int{201, 204, 304, 404, 500, 503} {
		code := code
		t.Run(http.StatusText(code), func(t *testing.T) {
			s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
			}))
			defer s.Close()

			out := NewHTTPChecker(2*time.Second).Check(context.Background(), s.URL)
			if out.Reachable {
				t.Fatalf("status %d must be unreachable, got %+v", code, out)
			}
			if out.StatusCode != code {
				t.Fatalf("want status %d, got %d", code, out.StatusCode)
			}
			if out.Reason != ReasonStatus {
				t.Fatalf("want reason %q, got %q", ReasonStatus, out.Reason)
			}
		})
	}
}

func TestHTTPChecker_TimeoutIsUnreachable(t *testing.T) {
	// Server sleeps longer than client timeout
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer s.Close()

	chk := NewHTTPChecker(50 * time.Millisecond)
	out := chk.Check(context.Background(), s.URL)
	if out.Reachable {
		t.Fatalf("want unreachable due to timeout, got %+v", out)
	}
	if out.StatusCode != 0 {
		t.Fatalf("want status 0 on transport error, got %d", out.StatusCode)
	}
	if out.Reason != ReasonTimeout {
		t.Fatalf("want reason %q, got %q (%s)", ReasonTimeout, out.Reason, out.Message)
	}
}

func TestHTTPChecker_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	out := NewHTTPChecker(time.Second).Check(context.Background(), "http://"+addr)
	if out.Reachable {
		t.Fatalf("want unreachable, got %+v", out)
	}
	if out.Reason != ReasonConnect {
		t.Fatalf("want reason %q, got %q (%s)", ReasonConnect, out.Reason, out.Message)
	}
}

func TestHTTPChecker_BadURL(t *testing.T) {
	out := NewHTTPChecker(time.Second).Check(context.Background(), "://nope")
	if out.Reachable || out.Reason != ReasonRequest {
		t.Fatalf("want request failure, got %+v", out)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, ReasonTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}, ReasonDNS},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, ReasonConnect},
		{"other", errors.New("malformed HTTP response"), ReasonProtocol},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Classify(c.err); got != c.want {
				t.Fatalf("Classify(%v) = %q, want %q", c.err, got, c.want)
			}
		})
	}
}
