package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestAuthenticationErrorCode(t *testing.T) {
	cases := map[AuthFailure]string{
		AuthNotFound:    "AUTH_NOT_FOUND",
		AuthExpired:     "AUTH_EXPIRED",
		AuthAlreadyUsed: "AUTH_ALREADY_USED",
		AuthBlocked:     "AUTH_BLOCKED",
	}
	for reason, want := range cases {
		err := &AuthenticationError{Reason: reason}
		if got := err.Code(); got != want {
			t.Errorf("Code() for %s = %s, want %s", reason, got, want)
		}
	}
}

func TestExternalServiceErrorUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := &ExternalServiceError{Service: "ai.extract", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to survive errors.Is")
	}
	if err.Code() != "EXTERNAL_SERVICE" {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestPersistenceErrorThroughWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("save coupon: %w", &PersistenceError{Op: "coupon.save", Err: cause})
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatal("expected PersistenceError via errors.As")
	}
	if pe.Op != "coupon.save" {
		t.Fatalf("unexpected op %s", pe.Op)
	}
}

func TestAmbiguousInputErrorCode(t *testing.T) {
	err := &AmbiguousInputError{Input: "superfarm"}
	if err.Code() != "AMBIGUOUS_INPUT" {
		t.Fatalf("unexpected code %s", err.Code())
	}
	var amb *AmbiguousInputError
	if !errors.As(fmt.Errorf("pick field: %w", err), &amb) {
		t.Fatal("expected AmbiguousInputError via errors.As")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "cost", Msg: "must be a number"}
	if err.Error() != "invalid cost: must be a number" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	bare := &ValidationError{Msg: "too long"}
	if bare.Error() != "invalid input: too long" {
		t.Fatalf("unexpected message %q", bare.Error())
	}
}
