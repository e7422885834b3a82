package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

func TestClassifyHTTP(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"unavailable", &StatusError{StatusCode: 503}, true, true},
		{"bad request", fmt.Errorf("wrapped: %w", &StatusError{StatusCode: 400}), false, false},
		{"cancelled", context.Canceled, false, false},
		{"plain", errors.New("decode failed"), false, true},
	}

	for _, tc := range cases {
		got := ClassifyHTTP(tc.err)
		if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
			t.Fatalf("%s: got %+v", tc.name, got)
		}
	}
}

func TestWrapTemporary(t *testing.T) {
	err := WrapTemporary("qdrant search", &StatusError{Service: "qdrant", StatusCode: 502, Status: "502 Bad Gateway"}, nil)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}

	permanent := &StatusError{Service: "qdrant", StatusCode: 404, Status: "404 Not Found"}
	if got := WrapTemporary("qdrant search", permanent, nil); domain.IsKind(got, domain.ErrTemporary) {
		t.Fatalf("404 must not be temporary: %v", got)
	}
}

func TestStatusErrorMessageIncludesBody(t *testing.T) {
	err := &StatusError{Service: "ollama", Operation: "embed", Status: "500 Internal Server Error", Body: " model missing \n"}
	if got := err.Error(); got != "ollama embed status: 500 Internal Server Error: model missing" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestWrapFailureTagsRejectedCredentials(t *testing.T) {
	for _, code := range []int{401, 403} {
		err := WrapFailure("qdrant search", fmt.Errorf("call: %w", &StatusError{StatusCode: code}), ClassifyHTTP)
		if !domain.IsKind(err, domain.ErrUnauthorized) || domain.IsKind(err, domain.ErrTemporary) {
			t.Fatalf("status %d: expected unauthorized only, got %v", code, err)
		}
	}

	err := WrapFailure("qdrant search", &StatusError{StatusCode: 502}, ClassifyHTTP)
	if !domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected temporary for 502, got %v", err)
	}
	if WrapFailure("op", nil, nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}
