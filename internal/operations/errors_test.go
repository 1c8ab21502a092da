package operations

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestLookupMapsNoRows(t *testing.T) {
	if err := lookup(nil, "Resource"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	err := lookup(fmt.Errorf("scan: %w", pgx.ErrNoRows), "Resource")
	if KindOf(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	var opErr *Error
	if !errors.As(err, &opErr) || opErr.Message != "Resource not found" {
		t.Fatalf("unexpected error %v", err)
	}
	if KindOf(lookup(errors.New("boom"), "Resource")) != KindInternal {
		t.Fatalf("expected internal kind")
	}
}

func TestValidateWrapsFieldErrors(t *testing.T) {
	type input struct {
		Name string `json:"name" validate:"required"`
	}
	err := validate(input{})
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation kind, got %v", err)
	}
	if err.(*Error).Message != "name is required" {
		t.Fatalf("unexpected message %q", err.(*Error).Message)
	}
}

func TestStorageUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("upload failed", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected storage error to unwrap to its cause")
	}
	if KindOf(fmt.Errorf("wrapped: %w", err)) != KindStorage {
		t.Fatalf("expected storage kind through wrapping")
	}
}

func TestLookupTreatsMalformedIDAsNotFound(t *testing.T) {
	err := lookup(&pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"}, "Forum")
	if KindOf(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
