package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/JakeWhiteArchitecture/fileuzi/internal/filing"
)

func doRequest(t *testing.T, s *Server, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealthNeedsNoAuth(t *testing.T) {
	s := NewServerWithConfig(filing.NewBroadcaster(), ServerConfig{Token: "secret"})
	rec := doRequest(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["status"] != "ok" {
		t.Fatalf("unexpected health body %q err %v", rec.Body.String(), err)
	}
}

func TestOperationsRequiresToken(t *testing.T) {
	s := NewServerWithConfig(filing.NewBroadcaster(), ServerConfig{Token: "secret"})

	rec := doRequest(t, s, http.MethodGet, "/v1/operations", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	rec = doRequest(t, s, http.MethodGet, "/v1/operations", "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}
	rec = doRequest(t, s, http.MethodGet, "/v1/operations", "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
}

func TestOperationsReturnsRecentEvents(t *testing.T) {
	events := filing.NewBroadcaster()
	events.Publish(filing.Event{Kind: filing.EventFiled, Path: "/p/a.pdf"})
	events.Publish(filing.Event{Kind: filing.EventSuperseded, Path: "/p/b.pdf"})
	s := NewServer(events)

	rec := doRequest(t, s, http.MethodGet, "/v1/operations", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Operations []filing.Event `json:"operations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(body.Operations) != 2 || body.Operations[1].Path != "/p/b.pdf" {
		t.Fatalf("unexpected operations %+v", body.Operations)
	}
}

func TestOperationsLimitQuery(t *testing.T) {
	events := filing.NewBroadcaster()
	for i := 0; i < 5; i++ {
		events.Publish(filing.Event{Kind: filing.EventFiled, Path: "/p/a.pdf"})
	}
	s := NewServer(events)

	rec := doRequest(t, s, http.MethodGet, "/v1/operations?limit=2", "")
	var body struct {
		Operations []filing.Event `json:"operations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(body.Operations) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(body.Operations))
	}

	rec = doRequest(t, s, http.MethodGet, "/v1/operations?limit=nope", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	s := NewServer(filing.NewBroadcaster())
	rec := doRequest(t, s, http.MethodGet, "/v1/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not_found") {
		t.Fatalf("unexpected error body %q", rec.Body.String())
	}
}

func TestEventStreamForwardsEvents(t *testing.T) {
	events := filing.NewBroadcaster()
	s := NewServer(events)
	ts := httptest.NewServer(s)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events/stream"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The subscription is registered during the handshake, but give the
	// handler a beat before publishing.
	time.Sleep(50 * time.Millisecond)
	events.Publish(filing.Event{Kind: filing.EventFiled, Path: "/p/a.pdf", Detail: "fresh write"})

	kind, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if kind != websocket.MessageText {
		t.Fatalf("expected text frame, got %v", kind)
	}
	var ev filing.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if ev.Kind != filing.EventFiled || ev.Path != "/p/a.pdf" {
		t.Fatalf("unexpected event %+v", ev)
	}
}
