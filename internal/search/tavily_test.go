package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestTavily(t *testing.T, handler http.HandlerFunc) *TavilyProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewTavilyProvider("NEWSJACKER_TEST_UNSET_KEY", 0)
	p.apiKey = "tvly-test"
	p.endpoint = srv.URL
	p.client = srv.Client()
	return p
}

func TestTavilySearch(t *testing.T) {
	p := newTestTavily(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tvly-test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		var req tavilyRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Query != "eco packaging" || req.MaxResults != 3 || req.TimeRange != "day" || req.Topic != "news" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Write([]byte(`{"results":[
			{"title":"A","url":"https://a.com","content":"alpha","published_date":"2026-03-01T10:00:00Z","source":"Reuters"},
			{"title":"B","url":"https://b.com","content":"beta","hostname":"b.com"},
			42
		]}`))
	})

	got, err := p.Search(context.Background(), "eco packaging", 3, DefaultWindow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results (bad item skipped), got %d", len(got))
	}
	if got[0].Source != "Reuters" || got[1].Hostname != "b.com" {
		t.Errorf("unexpected results: %+v", got)
	}
}

func TestTavilyAbsentOrNonArrayResults(t *testing.T) {
	for _, body := range []string{`{}`, `{"results":null}`, `{"results":"nope"}`, `{"results":{"a":1}}`} {
		p := newTestTavily(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		got, err := p.Search(context.Background(), "q", 3, DefaultWindow)
		if err != nil {
			t.Errorf("body %s: expected no error, got %v", body, err)
		}
		if len(got) != 0 {
			t.Errorf("body %s: expected zero results, got %d", body, len(got))
		}
	}
}

func TestTavilyNonJSONIsMalformed(t *testing.T) {
	p := newTestTavily(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway</html>`))
	})
	_, err := p.Search(context.Background(), "q", 3, DefaultWindow)

	var malformed *MalformedDataError
	if !errors.As(err, &malformed) {
		t.Errorf("expected *MalformedDataError, got %v", err)
	}
}

func TestTavilyHTTPError(t *testing.T) {
	p := newTestTavily(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid key"}`))
	})
	_, err := p.Search(context.Background(), "q", 3, DefaultWindow)
	if err == nil {
		t.Fatal("expected error")
	}
	var malformed *MalformedDataError
	if errors.As(err, &malformed) {
		t.Error("expected HTTP errors to be provider failures, not malformed data")
	}
}

func TestTimeRange(t *testing.T) {
	if timeRange(DefaultWindow) != "day" {
		t.Errorf("expected day, got %s", timeRange(DefaultWindow))
	}
	if timeRange(3*DefaultWindow) != "week" {
		t.Errorf("expected week, got %s", timeRange(3*DefaultWindow))
	}
}
