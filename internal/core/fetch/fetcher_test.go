package fetch

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

// stubValidator accepts everything (up to failAfter calls) and records the
// URLs it was asked about, so tests can observe redirect re-validation.
type stubValidator struct {
	outcome   *Outcome
	calls     []string
	failAfter int // 0 means never fail
	failErr   error
}

func (s *stubValidator) Validate(ctx context.Context, rawURL string) (*Outcome, error) {
	s.calls = append(s.calls, rawURL)
	if s.failAfter > 0 && len(s.calls) > s.failAfter {
		return nil, s.failErr
	}
	return s.outcome, nil
}

func serverValidator(t *testing.T, srv *httptest.Server) *stubValidator {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}
	ip := net.ParseIP(u.Hostname())
	if ip == nil {
		t.Fatalf("server host %q is not an IP literal", u.Hostname())
	}
	return &stubValidator{outcome: &Outcome{IP: ip, Hostname: "origin.test"}}
}

func newTestFetcher(t *testing.T, v URLValidator, policy Policy) *Fetcher {
	t.Helper()
	transport := NewTransport()
	t.Cleanup(transport.Close)
	return NewFetcher(v, transport, policy, nil)
}

func TestDownloadSuccess(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := newTestFetcher(t, serverValidator(t, srv), DefaultPolicy())
	body, err := f.Download(srv.URL + "/leaf.png")
	if err != nil {
		t.Fatalf("Download error: %v", err)
	}
	if !bytes.Equal(body, payload) {
		t.Errorf("body mismatch: got %d bytes, expected %d identical bytes", len(body), len(payload))
	}
}

func TestDownloadSendsHostHeaderNotHostname(t *testing.T) {
	var gotHost string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, serverValidator(t, srv), DefaultPolicy())
	if _, err := f.Download(srv.URL + "/x.jpg"); err != nil {
		t.Fatalf("Download error: %v", err)
	}
	if gotHost != "origin.test" {
		t.Errorf("Host header = %q, expected origin.test", gotHost)
	}
}

func TestDownloadHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newTestFetcher(t, serverValidator(t, srv), DefaultPolicy())
	_, err := f.Download(srv.URL + "/missing.jpg")
	if err == nil {
		t.Fatal("expected error on 404")
	}
	var derr *DownloadError
	if !errors.As(err, &derr) {
		t.Fatalf("got %T, expected *DownloadError", err)
	}
	if derr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, expected 404", derr.StatusCode)
	}
	if !strings.Contains(derr.Error(), "404") {
		t.Errorf("error %q does not mention the status code", derr.Error())
	}
}

func TestDownloadContentTypePolicy(t *testing.T) {
	tests := []struct {
		contentType string
		wantErr     bool
	}{
		{"image/png", false},
		{"image/jpeg; charset=binary", false},
		{"IMAGE/JPEG", false},
		{"text/html", true},
		{"application/octet-stream", true},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = w.Write([]byte("data"))
			}))
			defer srv.Close()

			f := newTestFetcher(t, serverValidator(t, srv), DefaultPolicy())
			_, err := f.Download(srv.URL + "/x")
			if tt.wantErr && err == nil {
				t.Errorf("content type %q accepted, expected rejection", tt.contentType)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("content type %q rejected: %v", tt.contentType, err)
			}
		})
	}
}

func TestDownloadContentLengthPreflight(t *testing.T) {
	var bodyRequested bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", "20971520")
		w.WriteHeader(http.StatusOK)
		bodyRequested = true
	}))
	defer srv.Close()

	policy := DefaultPolicy()
	policy.MaxBytes = 10 * 1024 * 1024
	f := newTestFetcher(t, serverValidator(t, srv), policy)

	_, err := f.Download(srv.URL + "/big.png")
	if err == nil {
		t.Fatal("expected rejection of oversized declared length")
	}
	var derr *DownloadError
	if !errors.As(err, &derr) {
		t.Fatalf("got %T, expected *DownloadError", err)
	}
	if !strings.Contains(derr.Reason, "exceeds limit") {
		t.Errorf("reason = %q, expected mention of the limit", derr.Reason)
	}
	_ = bodyRequested
}

func TestDownloadStreamingSizeCap(t *testing.T) {
	// No Content-Length: the handler streams chunks until the client stops
	// reading, so only the mid-stream check can catch the overflow.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		flusher := w.(http.Flusher)
		chunk := bytes.Repeat([]byte{0x42}, 8*1024)
		for i := 0; i < 32; i++ {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			flusher.Flush()
		}
	}))
	defer srv.Close()

	policy := DefaultPolicy()
	policy.MaxBytes = 64 * 1024
	f := newTestFetcher(t, serverValidator(t, srv), policy)

	_, err := f.Download(srv.URL + "/stream.png")
	if err == nil {
		t.Fatal("expected rejection once the stream passed the limit")
	}
	var derr *DownloadError
	if !errors.As(err, &derr) {
		t.Fatalf("got %T, expected *DownloadError", err)
	}
	if !strings.Contains(derr.Reason, "exceeded size limit") {
		t.Errorf("reason = %q, expected mention of the size limit", derr.Reason)
	}
}

func TestDownloadWrapsValidationFailure(t *testing.T) {
	verr := &ValidationError{Reason: "hostname \"internal\" is in a private address range"}
	stub := &failingValidator{err: verr}

	f := newTestFetcher(t, stub, DefaultPolicy())
	_, err := f.Download("http://internal/x.jpg")
	if err == nil {
		t.Fatal("expected error when validation rejects the URL")
	}
	var derr *DownloadError
	if !errors.As(err, &derr) {
		t.Fatalf("got %T, expected *DownloadError", err)
	}
	var unwrapped *ValidationError
	if !errors.As(err, &unwrapped) {
		t.Fatal("validation cause was lost in wrapping")
	}
	if !strings.Contains(derr.Error(), "private address range") {
		t.Errorf("error %q does not preserve the validation reason", derr.Error())
	}
}

type failingValidator struct {
	err error
}

func (f *failingValidator) Validate(ctx context.Context, rawURL string) (*Outcome, error) {
	return nil, f.err
}

func TestDownloadRevalidatesRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a.png", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b.png", http.StatusFound)
	})
	mux.HandleFunc("/b.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("final"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	v := serverValidator(t, srv)
	f := newTestFetcher(t, v, DefaultPolicy())

	body, err := f.Download(srv.URL + "/a.png")
	if err != nil {
		t.Fatalf("Download error: %v", err)
	}
	if string(body) != "final" {
		t.Errorf("body = %q, expected redirect target content", body)
	}
	if len(v.calls) != 2 {
		t.Fatalf("validator called %d times, expected 2 (initial + redirect)", len(v.calls))
	}
	if !strings.Contains(v.calls[1], "/b.png") {
		t.Errorf("second validation %q was not the redirect target", v.calls[1])
	}
}

func TestDownloadRejectsUnsafeRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/hop", http.StatusFound)
	}))
	defer srv.Close()

	v := serverValidator(t, srv)
	v.failAfter = 1
	v.failErr = &ValidationError{Reason: "hostname resolves to 10.0.0.5 (private address)"}

	f := newTestFetcher(t, v, DefaultPolicy())
	_, err := f.Download(srv.URL + "/start")
	if err == nil {
		t.Fatal("expected rejection of the redirect target")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("validation cause not preserved, got %v", err)
	}
}

func TestDownloadCapsRedirectChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t, serverValidator(t, srv), DefaultPolicy())
	_, err := f.Download(srv.URL + "/loop")
	if err == nil {
		t.Fatal("expected failure on an endless redirect chain")
	}
	if !strings.Contains(err.Error(), "redirects") {
		t.Errorf("error %q does not mention the redirect cap", err.Error())
	}
}

func TestDownloadContextCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	f := newTestFetcher(t, serverValidator(t, srv), DefaultPolicy())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := f.DownloadContext(ctx, srv.URL+"/slow.png")
	if err == nil {
		t.Fatal("expected error after context timeout")
	}
	var derr *DownloadError
	if !errors.As(err, &derr) {
		t.Fatalf("got %T, expected *DownloadError", err)
	}
}
