package protocol

import (
	"testing"

	"github.com/doorkeeper/intercom/internal/errorcode"
)

func TestShouldRetryRateLimited(t *testing.T) {
	err := &StatusError{Status: errorcode.RateLimited}
	if !ShouldRetry(err) {
		t.Fatal("expected RateLimited to be retryable")
	}
}

func TestShouldRetryAuthFailed(t *testing.T) {
	err := &StatusError{Status: errorcode.AuthFailed}
	if ShouldRetry(err) {
		t.Fatal("expected AuthFailed to not be retryable")
	}
}

func TestMayHaveSucceededSuccess(t *testing.T) {
	err := &StatusError{Status: errorcode.Success}
	if !MayHaveSucceeded(err) {
		t.Fatal("expected Success status to report MayHaveSucceeded")
	}
}

func TestShouldRetryNil(t *testing.T) {
	if ShouldRetry(nil) {
		t.Fatal("expected nil error to not be retryable")
	}
}
