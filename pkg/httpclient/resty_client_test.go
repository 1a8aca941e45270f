package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestRestyClientSendsJSONWithQueryAndAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.URL.Query().Get("type"); got != "json" {
			t.Errorf("query type = %q", got)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			t.Errorf("basic auth = %q/%q ok=%v", user, pass, ok)
		}
		if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("content type = %q", ct)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["url"] != "http://example.com" {
			t.Errorf("body url = %q", body["url"])
		}
		w.Header().Set("X-Reply", "yes")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := NewRestyClient(2*time.Second).Do(context.Background(), &Request{
		Method:    http.MethodPost,
		URL:       srv.URL + "/submit",
		Query:     url.Values{"type": {"json"}},
		JSON:      map[string]string{"url": "http://example.com"},
		BasicAuth: &BasicAuth{Username: "key", Password: "secret"},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusCreated || !resp.OK() {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Reply") != "yes" {
		t.Fatalf("missing response header")
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Fatalf("body = %s", resp.Body)
	}
}

func TestRestyClientMultipartDropsJSONContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/form-data") {
			t.Errorf("content type = %q", ct)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := r.FormValue("options"); got != `{"priority":"0"}` {
			t.Errorf("options field = %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "sample.bin" || string(data) != "payload" {
			t.Errorf("file = %s %q", hdr.Filename, data)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	_, err := NewRestyClient(0).Do(context.Background(), &Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Header: header,
		Form:   url.Values{"options": {`{"priority":"0"}`}},
		Files:  []File{{Field: "file", Name: "sample.bin", Reader: strings.NewReader("payload")}},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
}

func TestRestyClientNon2xxIsNotATransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	resp, err := NewRestyClient(time.Second).Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.OK() || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestRestyClientRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := NewRestyClient(0).Do(context.Background(), &Request{
		Method:  http.MethodGet,
		URL:     srv.URL,
		Timeout: 50 * time.Millisecond,
	})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestRestyClientDefaultTimeoutAppliesWithoutRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := NewRestyClient(50*time.Millisecond).Do(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    srv.URL,
	})
	if err == nil {
		t.Fatalf("expected default timeout to apply")
	}
}

func TestRestyClientRequestTimeoutExtendsDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := NewRestyClient(50*time.Millisecond).Do(context.Background(), &Request{
		Method:  http.MethodGet,
		URL:     srv.URL,
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("request timeout must replace the default, got %v", err)
	}
	if !resp.OK() {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
