package fetch

import "fmt"

// ValidationError reports a URL rejected before any network I/O to the target.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "URL validation failed: " + e.Reason
}

// DownloadError reports a failure during the download phase. When the failure
// originated in validation, Cause holds the ValidationError so callers can
// still distinguish security rejections from operational ones.
type DownloadError struct {
	Reason     string
	StatusCode int
	Cause      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed: %s", e.Reason)
}

func (e *DownloadError) Unwrap() error {
	return e.Cause
}
