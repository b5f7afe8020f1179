package datafetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetJSONStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType string
	}{
		{"rate limited", http.StatusTooManyRequests, "slow down", "RateLimit"},
		{"server error", http.StatusInternalServerError, "boom", "API"},
		{"not found", http.StatusNotFound, "missing", "API"},
		{"malformed body", http.StatusOK, "not json", "API"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			var dest map[string]any
			err := getJSON(context.Background(), server.Client(), "Test", server.URL, &dest)
			if err == nil {
				t.Fatal("expected an error")
			}

			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FetchError, got %T", err)
			}
			if fe.ErrorType() != tt.wantType {
				t.Errorf("ErrorType = %q, want %q", fe.ErrorType(), tt.wantType)
			}
		})
	}
}

func TestGetJSONSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"stat":"OK"}`))
	}))
	defer server.Close()

	var dest struct {
		Stat string `json:"stat"`
	}
	if err := getJSON(context.Background(), server.Client(), "Test", server.URL, &dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dest.Stat != "OK" {
		t.Errorf("decoded stat = %q", dest.Stat)
	}
}

func TestGetJSONTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := &http.Client{Timeout: 20 * time.Millisecond}

	var dest map[string]any
	err := getJSON(context.Background(), client, "Test", server.URL, &dest)

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.ErrorType() != "Timeout" {
		t.Errorf("ErrorType = %q, want Timeout", fe.ErrorType())
	}
}
