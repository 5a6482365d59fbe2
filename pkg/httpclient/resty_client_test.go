package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRestyClientSendsUserAgentAndHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	}))
	defer srv.Close()

	client := NewRestyClient(Options{Timeout: time.Second, UserAgent: "test-agent"})
	resp, err := client.Get(context.Background(), srv.URL, map[string]string{"Accept": "text/html"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode() != http.StatusTeapot || string(resp.Body()) != "hi" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode(), resp.Body())
	}
	if resp.Header("Content-Type") != "text/html" {
		t.Fatalf("content type = %q", resp.Header("Content-Type"))
	}
	if gotUA != "test-agent" || gotAccept != "text/html" {
		t.Fatalf("headers not sent: ua=%q accept=%q", gotUA, gotAccept)
	}
}
