package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Duplicate("dup"), http.StatusBadRequest},
		{NotFound("Lead"), http.StatusNotFound},
		{Unauthorized("no token"), http.StatusUnauthorized},
		{Forbidden("nope"), http.StatusForbidden},
		{Conflict("stale"), http.StatusConflict},
		{RateLimited("slow down"), http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("load lead: %w", NotFound("Lead")), http.StatusNotFound},
	}
	for _, tc := range cases {
		if got := Status(tc.err); got != tc.want {
			t.Fatalf("Status(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestMissingNamesFields(t *testing.T) {
	err := Missing("name", "category")
	if err.Kind != KindValidation {
		t.Fatalf("expected validation kind, got %v", err.Kind)
	}
	if len(err.Fields) != 2 || err.Fields[0].Field != "name" || err.Fields[1].Field != "category" {
		t.Fatalf("unexpected fields: %+v", err.Fields)
	}
	if err.Message != "Missing required fields: name, category" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
}

func TestWrapKeepsKind(t *testing.T) {
	cause := errors.New("no rows")
	err := NotFound("Package").Wrap(cause)
	if !Is(err, KindNotFound) {
		t.Fatalf("expected not found")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
}
