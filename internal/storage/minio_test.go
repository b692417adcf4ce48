package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/minio/minio-go/v7"
)

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "connection reset" }
func (fakeNetError) Timeout() bool   { return true }
func (fakeNetError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		name          string
		err           error
		wantTransient bool
	}{
		{"network error", fakeNetError{}, true},
		{"wrapped network error", fmt.Errorf("put: %w", fakeNetError{}), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"server error", minio.ErrorResponse{StatusCode: 503, Code: "SlowDown"}, true},
		{"throttled", minio.ErrorResponse{StatusCode: 429, Code: "TooManyRequests"}, true},
		{"access denied", minio.ErrorResponse{StatusCode: 403, Code: "AccessDenied"}, false},
		{"missing bucket", minio.ErrorResponse{StatusCode: 404, Code: "NoSuchBucket"}, false},
		{"unclassified", errors.New("reader closed"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classified := Classify(tc.err)
			if classified == nil {
				t.Fatal("Classify returned nil for non-nil error")
			}
			if got := IsTransient(classified); got != tc.wantTransient {
				t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.wantTransient)
			}
			if !errors.Is(classified, tc.err) && tc.name != "server error" && tc.name != "throttled" && tc.name != "access denied" && tc.name != "missing bucket" {
				t.Errorf("classified error does not wrap original")
			}
		})
	}

	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}
