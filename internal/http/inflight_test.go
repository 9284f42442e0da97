package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestInFlightTracker_Count(t *testing.T) {
	var tracker InFlightTracker
	tracker.Increment()
	tracker.Increment()
	tracker.Decrement()
	if got := tracker.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestInFlightTracker_WaitForZero(t *testing.T) {
	tests := []struct {
		name    string
		pending int
		release time.Duration
		timeout time.Duration
		wantErr error
	}{
		{name: "already idle", pending: 0, timeout: 50 * time.Millisecond},
		{name: "drains before deadline", pending: 2, release: 10 * time.Millisecond, timeout: time.Second},
		{name: "deadline first", pending: 1, release: time.Second, timeout: 20 * time.Millisecond, wantErr: context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tracker InFlightTracker
			for i := 0; i < tt.pending; i++ {
				tracker.Increment()
			}
			if tt.pending > 0 {
				timer := time.AfterFunc(tt.release, func() {
					for i := 0; i < tt.pending; i++ {
						tracker.Decrement()
					}
				})
				defer timer.Stop()
			}

			ctx, cancel := context.WithTimeout(context.Background(), tt.timeout)
			defer cancel()
			err := tracker.WaitForZero(ctx, 2*time.Millisecond)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("WaitForZero() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMetricsMiddleware_TracksInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	}))

	base := InFlightCount()
	done := make(chan struct{})
	go func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/forecast/refresh", nil))
		close(done)
	}()

	<-entered
	if got := InFlightCount() - base; got != 1 {
		t.Errorf("in flight during request = %d, want 1", got)
	}
	close(release)
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := WaitForInFlight(ctx, 2*time.Millisecond); err != nil {
		t.Errorf("WaitForInFlight() = %v", err)
	}
}
