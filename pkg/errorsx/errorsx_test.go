package errorsx

import "testing"

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonInvalidArgument)
	if Reason(err) != ReasonInvalidArgument {
		t.Fatalf("expected reason %s, got %s", ReasonInvalidArgument, Reason(err))
	}
	if !HasReason(err, ReasonInvalidArgument) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonServiceError)
	second := Wrap(first, ReasonInvalidArgument)
	if Reason(second) != ReasonServiceError {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
