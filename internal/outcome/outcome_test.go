package outcome

import (
	"strconv"
	"testing"
)

func TestFoldDispatchesEveryVariant(t *testing.T) {
	cases := Cases[int, string]{
		Success:   func(v int) string { return "ok:" + strconv.Itoa(v) },
		Failure:   func(reason string) string { return "fail:" + reason },
		Timeout:   func() string { return "timeout" },
		Cancelled: func() string { return "cancelled" },
	}
	tests := []struct {
		name string
		in   Outcome[int]
		want string
	}{
		{name: "success", in: Success(7), want: "ok:7"},
		{name: "failure", in: Failure[int]("bad input"), want: "fail:bad input"},
		{name: "timeout", in: Timeout[int](), want: "timeout"},
		{name: "cancelled", in: Cancelled[int](), want: "cancelled"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Fold(tc.in, cases); got != tc.want {
				t.Fatalf("Fold = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFoldPanicsOnMissingHandler(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for partial cases")
		}
	}()
	Fold(Success(1), Cases[int, int]{Success: func(v int) int { return v }})
}

func TestValueOnlyForSuccess(t *testing.T) {
	if v, ok := Success("x").Value(); !ok || v != "x" {
		t.Fatalf("Value = %q, %v", v, ok)
	}
	if _, ok := Timeout[string]().Value(); ok {
		t.Fatalf("timeout must not carry a value")
	}
	if got := Failure[string]("nope").Reason(); got != "nope" {
		t.Fatalf("Reason = %q", got)
	}
}

func TestMapPreservesVariant(t *testing.T) {
	double := func(v int) int { return v * 2 }
	if v, _ := Map(Success(4), double).Value(); v != 8 {
		t.Fatalf("mapped value = %d, want 8", v)
	}
	if k := Map(Failure[int]("x"), double).Kind(); k != KindFailure {
		t.Fatalf("kind = %v, want failure", k)
	}
	if k := Map(Cancelled[int](), double).Kind(); k != KindCancelled {
		t.Fatalf("kind = %v, want cancelled", k)
	}
}
