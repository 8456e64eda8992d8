package relay

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newRelay(t *testing.T, backend string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(backend, nil, zap.NewNop()).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func TestPreflight(t *testing.T) {
	srv := newRelay(t, "http://backend.invalid")
	for _, origin := range []string{"", "https://app.example"} {
		req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/gas?path=/student/submit", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
			req.Header.Set("Access-Control-Request-Method", "POST")
			req.Header.Set("Access-Control-Request-Headers", "content-type")
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("options: %v", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("origin %q: expected 204, got %d", origin, resp.StatusCode)
		}
		if resp.Header.Get("Access-Control-Allow-Origin") != "*" ||
			resp.Header.Get("Access-Control-Allow-Methods") != "GET,POST,OPTIONS" ||
			resp.Header.Get("Access-Control-Allow-Headers") != "Content-Type" {
			t.Fatalf("origin %q: unexpected CORS headers %v", origin, resp.Header)
		}
	}
}

func TestForwardPassesQueryBodyAndEchoesStatus(t *testing.T) {
	var gotQuery url.Values
	var gotBody, gotMethod, gotType string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, `{"ok":false,"message":"no permission"}`)
	}))
	defer backend.Close()
	srv := newRelay(t, backend.URL+"/exec?deployment=abc")

	resp, err := http.Post(srv.URL+"/api/gas?path=/admin/group-table&admin_token=t0k&group_name=g1", "application/json", strings.NewReader(`{"a":1}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusTeapot || string(body) != `{"ok":false,"message":"no permission"}` {
		t.Fatalf("expected echoed status and body, got %d %s", resp.StatusCode, body)
	}
	if resp.Header.Get("Content-Type") != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get(HeaderRequestID) == "" {
		t.Fatalf("expected a generated request id")
	}
	if gotQuery.Get("path") != "/admin/group-table" || gotQuery.Get("admin_token") != "t0k" || gotQuery.Get("group_name") != "g1" || gotQuery.Get("deployment") != "abc" {
		t.Fatalf("unexpected forwarded query %v", gotQuery)
	}
	if gotMethod != http.MethodPost || gotBody != `{"a":1}` || gotType != "application/json" {
		t.Fatalf("unexpected forwarded request %s %q %q", gotMethod, gotBody, gotType)
	}
}

func TestForwardGetHasNoBody(t *testing.T) {
	var gotLen int64 = -2
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLen = r.ContentLength
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer backend.Close()
	srv := newRelay(t, backend.URL)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/gas?path=/x", nil)
	req.Header.Set(HeaderRequestID, "fixed-id")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if gotLen != 0 {
		t.Fatalf("expected no body on GET, got length %d", gotLen)
	}
	if resp.Header.Get(HeaderRequestID) != "fixed-id" {
		t.Fatalf("expected incoming request id echoed, got %q", resp.Header.Get(HeaderRequestID))
	}
}

func TestForwardUpstreamFailureIs502(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backendURL := backend.URL
	backend.Close()
	srv := newRelay(t, backendURL)

	resp, err := http.Post(srv.URL+"/api/gas?path=/x", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["ok"] != false || out["message"] != "fetch to backend failed" || out["detail"] == "" {
		t.Fatalf("unexpected failure body %v", out)
	}
}

func TestPing(t *testing.T) {
	for _, backend := range []string{"", "https://backend.example"} {
		srv := newRelay(t, backend)
		resp, err := http.Get(srv.URL + "/api/ping")
		if err != nil {
			t.Fatalf("ping: %v", err)
		}
		var out pingResponse
		_ = json.NewDecoder(resp.Body).Decode(&out)
		_ = resp.Body.Close()
		if !out.OK || out.Message != "pong" || out.HasBackend != (backend != "") {
			t.Fatalf("unexpected ping %+v for backend %q", out, backend)
		}
	}
}

func TestTargetURLWithoutBackend(t *testing.T) {
	if _, err := TargetURL("", url.Values{}); err != ErrNoBackend {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}
}
