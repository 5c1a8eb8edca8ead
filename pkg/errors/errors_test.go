package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := ValidationError(CodeInvalidDateRange, "startDate", "2024-02-01")

	if err.Category != CategoryValidation {
		t.Errorf("expected category %s, got %s", CategoryValidation, err.Category)
	}
	if err.Code != CodeInvalidDateRange {
		t.Errorf("expected code %s, got %s", CodeInvalidDateRange, err.Code)
	}
	if err.Context["field"] != "startDate" {
		t.Errorf("expected field context, got %v", err.Context["field"])
	}
	if err.GetExitCode() != 2 {
		t.Errorf("expected exit code 2, got %d", err.GetExitCode())
	}
}

func TestUnauthorizedVsNotFoundExitCodes(t *testing.T) {
	nf := NotFoundError(CodeSessionNotFound, "session", "s-1")
	ua := UnauthorizedError("session", "s-1", "u-2")

	// Both categories map to the same exit code so existence does not leak
	// through process status either.
	if nf.GetExitCode() != ua.GetExitCode() {
		t.Errorf("not-found exit %d != unauthorized exit %d", nf.GetExitCode(), ua.GetExitCode())
	}
	if nf.Category == ua.Category {
		t.Error("categories must stay distinct for logging")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := MatchingError("automated_pass", cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected wrapped error to match its cause via errors.Is")
	}
	if err.Category != CategoryReconciliation {
		t.Errorf("expected reconciliation category, got %s", err.Category)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, CategoryStorage, CodeQueryFailed, "ignored") != nil {
		t.Error("wrapping nil must return nil")
	}
}

func TestAsServiceError(t *testing.T) {
	inner := NotFoundError(CodeRuleNotFound, "rule", "r-9")
	wrapped := fmt.Errorf("handler: %w", inner)

	se, ok := AsServiceError(wrapped)
	if !ok {
		t.Fatal("expected to extract ServiceError from chain")
	}
	if se.Code != CodeRuleNotFound {
		t.Errorf("expected code %s, got %s", CodeRuleNotFound, se.Code)
	}
}

func TestWrapIfNeeded(t *testing.T) {
	se := ValidationError(CodeMissingField, "bankTransactionId", nil)
	if got := WrapIfNeeded(se, CategoryInternal, CodeUnexpected, "x"); got != se {
		t.Error("existing ServiceError must pass through unchanged")
	}

	plain := stderrors.New("boom")
	got := WrapIfNeeded(plain, CategoryInternal, CodeUnexpected, "wrapped")
	if got.Category != CategoryInternal || got.Cause != plain {
		t.Errorf("plain error not wrapped correctly: %+v", got)
	}
}

func TestIsCategory(t *testing.T) {
	err := UnauthorizedError("session", "s-3", "u-1")
	if !IsCategory(err, CategoryUnauthorized) {
		t.Error("expected unauthorized category match")
	}
	if IsCategory(err, CategoryNotFound) {
		t.Error("unexpected not-found category match")
	}
	if IsCategory(stderrors.New("plain"), CategoryInternal) {
		t.Error("plain errors have no category")
	}
}
