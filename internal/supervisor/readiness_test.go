package supervisor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitReadySucceedsAfterRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("Expected /health probe, got %s", r.URL.Path)
		}
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewHTTPReadinessChecker(10*time.Millisecond, 5*time.Second)
	if err := checker.WaitReady(context.Background(), server.URL); err != nil {
		t.Fatalf("WaitReady returned error: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got < 3 {
		t.Errorf("Expected at least 3 probes, got %d", got)
	}
}

func TestWaitReadyStopsImmediatelyWhenHealthy(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewHTTPReadinessChecker(500*time.Millisecond, 10*time.Second)
	start := time.Now()
	if err := checker.WaitReady(context.Background(), server.URL); err != nil {
		t.Fatalf("WaitReady returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("Expected an immediate return on a healthy backend, took %v", elapsed)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected exactly 1 probe, got %d", got)
	}
}

func TestWaitReadyDeadlineExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	checker := NewHTTPReadinessChecker(10*time.Millisecond, 200*time.Millisecond)
	err := checker.WaitReady(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected an error when the backend never becomes ready")
	}
	if !strings.Contains(err.Error(), "never became ready") {
		t.Errorf("Expected a clear deadline error, got %v", err)
	}
}

func TestWaitReadyUnreachableBackend(t *testing.T) {
	checker := NewHTTPReadinessChecker(10*time.Millisecond, 200*time.Millisecond)
	err := checker.WaitReady(context.Background(), "http://127.0.0.1:1")
	if err == nil {
		t.Fatal("Expected an error for an unreachable backend")
	}
}

func TestFixedDelayChecker(t *testing.T) {
	checker := &FixedDelayChecker{Delay: 100 * time.Millisecond}
	start := time.Now()
	if err := checker.WaitReady(context.Background(), "http://127.0.0.1:1"); err != nil {
		t.Fatalf("WaitReady returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("Expected at least the configured delay, got %v", elapsed)
	}
}

func TestFixedDelayCheckerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker := &FixedDelayChecker{Delay: time.Hour}
	if err := checker.WaitReady(ctx, ""); err == nil {
		t.Error("Expected a cancellation error")
	}
}
