package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type captured struct {
	method string
	path   string
	query  string
	body   string
}

func newTestServer(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		got.method = r.Method
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.body = string(raw)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMergeSendsSourceIDs(t *testing.T) {
	srv, got := newTestServer(t, http.StatusOK, `{"story":{"id":"dst"}}`)

	out, err := execute(t, "merge", "--server", srv.URL, "--tenant", "news", "dst", "a", "b")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got.method != http.MethodPost || got.path != "/api/v1/tenants/news/stories/dst/merge" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	var body map[string][]string
	if err := json.Unmarshal([]byte(got.body), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if strings.Join(body["source_ids"], ",") != "a,b" {
		t.Fatalf("source_ids = %v", body["source_ids"])
	}
	if !strings.Contains(out, `"id": "dst"`) {
		t.Fatalf("output = %s", out)
	}
}

func TestRemovePassesIncludeComments(t *testing.T) {
	srv, got := newTestServer(t, http.StatusOK, `{"story":null}`)

	if _, err := execute(t, "remove", "--server", srv.URL, "--tenant", "news", "--include-comments", "s1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got.method != http.MethodDelete || got.path != "/api/v1/tenants/news/stories/s1" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	if got.query != "includeComments=true" {
		t.Fatalf("query = %q", got.query)
	}
}

func TestCloseReportsServerErrors(t *testing.T) {
	srv, got := newTestServer(t, http.StatusNotFound, `{"error":"TENANT_NOT_FOUND","message":"tenant not found"}`)

	out, err := execute(t, "close", "--server", srv.URL, "--tenant", "ghost", "s1")
	if err == nil {
		t.Fatalf("expected error for 404")
	}
	if got.path != "/api/v1/tenants/ghost/stories/s1/close" {
		t.Fatalf("path = %s", got.path)
	}
	if !strings.Contains(out, "TENANT_NOT_FOUND") {
		t.Fatalf("output = %s", out)
	}
}

func TestFindRequiresTenantAndSelector(t *testing.T) {
	if _, err := execute(t, "find", "--server", "http://127.0.0.1:1", "--tenant", "news"); err == nil {
		t.Fatalf("expected error without --id or --url")
	}
	if _, err := execute(t, "find", "--server", "http://127.0.0.1:1", "--tenant", "", "--id", "s1"); err == nil {
		t.Fatalf("expected error without --tenant")
	}
}
