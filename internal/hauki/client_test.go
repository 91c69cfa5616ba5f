package hauki

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchRulesDecodesPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/resources/7/opening_hours" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("start_date"); got != "2024-05-06" {
			t.Errorf("unexpected start_date %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"hash": "abc123",
			"spans": [
				{"start": "2024-05-06T09:00:00Z", "end": "2024-05-06T17:00:00Z"},
				{"start": "2024-05-07T09:00:00Z", "end": "2024-05-07T09:00:00Z"},
				{"start": "2024-05-08T09:00:00Z", "end": "2024-05-08T12:00:00Z"}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	from := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	rules, err := client.FetchRules(context.Background(), 7, from, from.AddDate(0, 0, 30))
	if err != nil {
		t.Fatalf("FetchRules: %v", err)
	}
	if rules.Hash != "abc123" {
		t.Fatalf("expected hash abc123, got %q", rules.Hash)
	}
	if len(rules.Spans) != 2 {
		t.Fatalf("expected empty span dropped, got %+v", rules.Spans)
	}
	if !rules.Spans[0].Start.Equal(time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first span %+v", rules.Spans[0])
	}
}

func TestFetchRulesStatusFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.FetchRules(context.Background(), 7, time.Now(), time.Now().AddDate(0, 0, 30))
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestFetchRulesDecodeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hash": `))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.FetchRules(context.Background(), 7, time.Now(), time.Now().AddDate(0, 0, 30))
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestFetchRulesTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, 50*time.Millisecond)
	_, err := client.FetchRules(context.Background(), 7, time.Now(), time.Now().AddDate(0, 0, 30))
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable on timeout, got %v", err)
	}
}
