package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	userAgent         = "Smart-Agriculture-Diagnosis/1.0"
	downloadChunkSize = 8 * 1024
	maxRedirects      = 5
)

// Policy bounds a download: which response types are acceptable and how many
// bytes may be transferred.
type Policy struct {
	AllowedContentTypes []string
	MaxBytes            int64
	Timeout             time.Duration
}

// DefaultPolicy returns the production defaults: 10 MiB, 30 seconds, common
// raster-image MIME types.
func DefaultPolicy() Policy {
	return Policy{
		AllowedContentTypes: []string{
			"image/jpeg", "image/jpg", "image/png",
			"image/gif", "image/webp", "image/bmp",
		},
		MaxBytes: 10 * 1024 * 1024,
		Timeout:  30 * time.Second,
	}
}

// Fetcher downloads remote resources from validated targets. The request is
// issued against the vetted IP with the original hostname carried in the Host
// header, so a changed DNS answer cannot redirect the connection.
type Fetcher struct {
	validator URLValidator
	transport *Transport
	client    *http.Client
	policy    Policy
	allowed   map[string]struct{}
	logger    *slog.Logger
}

// NewFetcher creates a Fetcher using the given pooled transport. The transport
// is shared; closing it is the caller's responsibility.
func NewFetcher(validator URLValidator, transport *Transport, policy Policy, logger *slog.Logger) *Fetcher {
	if policy.MaxBytes <= 0 {
		policy.MaxBytes = DefaultPolicy().MaxBytes
	}
	if policy.Timeout <= 0 {
		policy.Timeout = DefaultPolicy().Timeout
	}
	if len(policy.AllowedContentTypes) == 0 {
		policy.AllowedContentTypes = DefaultPolicy().AllowedContentTypes
	}
	if logger == nil {
		logger = slog.Default()
	}

	allowed := make(map[string]struct{}, len(policy.AllowedContentTypes))
	for _, ct := range policy.AllowedContentTypes {
		allowed[strings.ToLower(strings.TrimSpace(ct))] = struct{}{}
	}

	f := &Fetcher{
		validator: validator,
		transport: transport,
		policy:    policy,
		allowed:   allowed,
		logger:    logger,
	}
	f.client = &http.Client{
		Transport:     transport,
		Timeout:       policy.Timeout,
		CheckRedirect: f.checkRedirect,
	}
	return f
}

// Download fetches the resource at rawURL, blocking until completion.
func (f *Fetcher) Download(rawURL string) ([]byte, error) {
	return f.DownloadContext(context.Background(), rawURL)
}

// DownloadContext fetches the resource at rawURL, honoring ctx cancellation at
// every I/O boundary. Validation and policy outcomes are identical to Download.
func (f *Fetcher) DownloadContext(ctx context.Context, rawURL string) ([]byte, error) {
	outcome, err := f.validator.Validate(ctx, rawURL)
	if err != nil {
		return nil, &DownloadError{Reason: fmt.Sprintf("validation rejected URL: %v", err), Cause: err}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &DownloadError{Reason: fmt.Sprintf("malformed URL: %v", err), Cause: err}
	}
	rewriteTarget(u, outcome)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &DownloadError{Reason: fmt.Sprintf("build request: %v", err), Cause: err}
	}
	req.Host = outcome.Hostname
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.wrapRequestError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DownloadError{
			Reason:     fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	contentType := normalizeContentType(resp.Header.Get("Content-Type"))
	if _, ok := f.allowed[contentType]; !ok {
		return nil, &DownloadError{Reason: fmt.Sprintf("content type %q is not allowed", contentType)}
	}

	// Fail fast on a declared length before reading any body bytes. The
	// streaming check below remains authoritative since Content-Length may
	// be absent or wrong.
	if resp.ContentLength > f.policy.MaxBytes {
		return nil, &DownloadError{
			Reason: fmt.Sprintf("declared content length %d exceeds limit of %d bytes", resp.ContentLength, f.policy.MaxBytes),
		}
	}

	body, err := f.readCapped(resp)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("download completed",
		"hostname", outcome.Hostname, "ip", outcome.IP.String(), "bytes", len(body))
	return body, nil
}

// checkRedirect re-validates every redirect hop and rewrites it to its own
// vetted IP, capped at maxRedirects.
func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	outcome, err := f.validator.Validate(req.Context(), req.URL.String())
	if err != nil {
		return err
	}
	rewriteTarget(req.URL, outcome)
	req.Host = outcome.Hostname
	return nil
}

func (f *Fetcher) readCapped(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, downloadChunkSize)
	var total int64
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			total += int64(n)
			buf.Write(chunk[:n])
			if total > f.policy.MaxBytes {
				return nil, &DownloadError{
					Reason: fmt.Sprintf("response exceeded size limit of %d bytes", f.policy.MaxBytes),
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
				return nil, &DownloadError{
					Reason: fmt.Sprintf("download timed out after %s", f.policy.Timeout),
					Cause:  err,
				}
			}
			return nil, &DownloadError{Reason: fmt.Sprintf("read response body: %v", err), Cause: err}
		}
	}
	return buf.Bytes(), nil
}

func (f *Fetcher) wrapRequestError(err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return &DownloadError{Reason: fmt.Sprintf("redirect rejected: %v", verr), Cause: verr}
	}
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return &DownloadError{
			Reason: fmt.Sprintf("request timed out after %s", f.policy.Timeout),
			Cause:  err,
		}
	}
	return &DownloadError{Reason: fmt.Sprintf("request failed: %v", err), Cause: err}
}

// rewriteTarget replaces the URL host with the validated IP, preserving the
// original port or filling in the scheme default. The hostname travels only in
// the Host header afterwards.
func rewriteTarget(u *url.URL, outcome *Outcome) {
	port := u.Port()
	if port == "" {
		if strings.EqualFold(u.Scheme, "https") {
			port = "443"
		} else {
			port = "80"
		}
	}
	u.Host = net.JoinHostPort(outcome.IP.String(), port)
}

func normalizeContentType(value string) string {
	if i := strings.Index(value, ";"); i >= 0 {
		value = value[:i]
	}
	return strings.ToLower(strings.TrimSpace(value))
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
