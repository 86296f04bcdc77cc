package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:              http.StatusBadRequest,
		CodeUnauthorized:            http.StatusUnauthorized,
		CodeForbidden:               http.StatusForbidden,
		CodeNotFound:                http.StatusNotFound,
		CodeInsufficientStock:       http.StatusConflict,
		CodePaymentAlreadyExists:    http.StatusConflict,
		CodeInvalidStatusTransition: http.StatusUnprocessableEntity,
		CodeOrderClosed:             http.StatusUnprocessableEntity,
		CodeInvalidPaymentStatus:    http.StatusUnprocessableEntity,
		CodeInvalidCancelReason:     http.StatusBadRequest,
		CodeInternal:                http.StatusInternalServerError,
		CodeDependency:              http.StatusServiceUnavailable,
	}
	for code, status := range cases {
		if got := MetadataFor(code).HTTPStatus; got != status {
			t.Errorf("MetadataFor(%s).HTTPStatus = %d, want %d", code, got, status)
		}
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("BOGUS"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected fallback status %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap(CodeDependency, cause, "load order")
	if err.Unwrap() != cause {
		t.Fatal("expected cause to unwrap")
	}
	if err.Error() != "DEPENDENCY_ERROR: load order" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestAsThroughWrapping(t *testing.T) {
	inner := New(CodeInsufficientStock, "variant short")
	wrapped := fmt.Errorf("checkout: %w", inner)
	typed := As(wrapped)
	if typed == nil || typed.Code() != CodeInsufficientStock {
		t.Fatalf("expected typed error, got %v", typed)
	}
	if !HasCode(wrapped, CodeInsufficientStock) {
		t.Fatal("HasCode should see through wrapping")
	}
	if HasCode(wrapped, CodeNotFound) {
		t.Fatal("HasCode matched wrong code")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "bad input").WithDetails(map[string]string{"qty": "must be positive"})
	details, ok := err.Details().(map[string]string)
	if !ok || details["qty"] != "must be positive" {
		t.Fatalf("unexpected details: %v", err.Details())
	}
}
