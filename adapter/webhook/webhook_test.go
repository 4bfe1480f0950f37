package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justapithecus/skylink/adapter"
	"github.com/justapithecus/skylink/iox"
	"github.com/justapithecus/skylink/types"
)

func testEvent() *types.TransferEvent {
	return &types.TransferEvent{
		SchemaVersion: types.JournalSchemaVersion,
		EventID:       "evt-001",
		SystemID:      1,
		ComponentID:   1,
		Kind:          types.TransferKindRename,
		Path:          "old.txt",
		NewPath:       "new.txt",
		Outcome:       types.OutcomeCompleted,
		OpenedAt:      time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
		ClosedAt:      time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
	}
}

// fastConfig keeps retry backoff short in tests.
func fastConfig(url string, retries int) Config {
	return Config{URL: url, Retries: retries, Timeout: 5 * time.Second, Backoff: time.Millisecond}
}

func TestPublish_Success(t *testing.T) {
	var received types.TransferEvent
	var eventHeader string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		eventHeader = r.Header.Get(EventHeader)
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a, err := New(fastConfig(ts.URL, 0))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if received.EventID != "evt-001" {
		t.Errorf("expected evt-001, got %s", received.EventID)
	}
	if received.NewPath != "new.txt" {
		t.Errorf("expected new.txt, got %s", received.NewPath)
	}
	if eventHeader != adapter.EventType {
		t.Errorf("expected %s header %q, got %q", EventHeader, adapter.EventType, eventHeader)
	}
}

func TestPublish_CustomHeaders(t *testing.T) {
	var authHeader string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	cfg := fastConfig(ts.URL, 0)
	cfg.Headers = map[string]string{"Authorization": "Bearer test-token"}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if authHeader != "Bearer test-token" {
		t.Errorf("expected Bearer test-token, got %s", authHeader)
	}
}

func TestPublish_RetriesOnFailure(t *testing.T) {
	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a, err := New(fastConfig(ts.URL, 3))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish should succeed after retries: %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()
	defer close(release)

	a, err := New(Config{URL: ts.URL, Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	if err := a.Publish(ctx, testEvent()); err == nil {
		t.Fatal("expected error on canceled context")
	}
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, adapter.ErrNoURL) {
		t.Fatalf("expected ErrNoURL, got %v", err)
	}
}

func TestNew_RejectsNegativeRetries(t *testing.T) {
	if _, err := New(Config{URL: "http://example.com", Retries: -1}); err == nil {
		t.Fatal("expected error for negative retries")
	}
}

func TestNew_DefaultTimeout(t *testing.T) {
	a, err := New(Config{URL: "http://example.com"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.config.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout %v, got %v", DefaultTimeout, a.config.Timeout)
	}
}

func TestPublish_StatusHandling(t *testing.T) {
	tests := []struct {
		code         int
		wantErr      bool
		wantAttempts int32
	}{
		{http.StatusOK, false, 1},
		{http.StatusAccepted, false, 1},
		{http.StatusNoContent, false, 1},
		// 4xx must not retry
		{http.StatusBadRequest, true, 1},
		{http.StatusUnauthorized, true, 1},
		{http.StatusNotFound, true, 1},
		// 5xx retries: 1 initial + 2 retries
		{http.StatusInternalServerError, true, 3},
		{http.StatusBadGateway, true, 3},
		{http.StatusServiceUnavailable, true, 3},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			var attempts atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				attempts.Add(1)
				w.WriteHeader(tt.code)
			}))
			defer ts.Close()

			a, err := New(fastConfig(ts.URL, 2))
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			defer iox.DiscardClose(a)

			err = a.Publish(t.Context(), testEvent())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Publish error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var statusErr *StatusError
				if !errors.As(err, &statusErr) || statusErr.Code != tt.code {
					t.Errorf("expected StatusError %d, got %v", tt.code, err)
				}
			}
			if got := attempts.Load(); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
		})
	}
}
