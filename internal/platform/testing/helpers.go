package testing

import (
	"testing"
	"time"

	"smartagri-server-go/internal/platform/config"
	"smartagri-server-go/internal/platform/logging"
)

// SetupTestConfig returns a configuration suitable for unit tests: small
// limits, short timeouts, temp-dir paths.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Defaults()
	cfg.Server.Port = 0
	cfg.Database.Path = t.TempDir() + "/test.db"
	cfg.Fetch.MaxBytes = 1024 * 1024
	cfg.Fetch.Timeout = config.Duration(5 * time.Second)
	cfg.Fetch.DNSTimeout = config.Duration(time.Second)
	cfg.Queue.ResultTTL = config.Duration(time.Minute)
	cfg.Queue.Concurrency = 1
	cfg.RAG.IndexPath = t.TempDir() + "/index.json"
	return cfg
}

// SetupTestLogger returns a logger writing to stdout at debug level.
func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	logger, err := logging.New(logging.Config{Level: "DEBUG", Format: "text"})
	if err != nil {
		t.Fatalf("create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

// AssertNoError fails the test when err is non-nil.
func AssertNoError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err != nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("unexpected error: %v (%v)", err, msgAndArgs)
		}
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test when err is nil.
func AssertError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err == nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("expected an error (%v)", msgAndArgs)
		}
		t.Fatal("expected an error, got nil")
	}
}

// AssertEqual fails the test when expected != actual.
func AssertEqual(t *testing.T, expected, actual interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	if expected != actual {
		if len(msgAndArgs) > 0 {
			t.Fatalf("expected %v, got %v (%v)", expected, actual, msgAndArgs)
		}
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}
