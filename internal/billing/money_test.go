package billing

import (
	"math"
	"testing"
)

func TestShortID(t *testing.T) {
	cases := map[string]string{
		"":                                     "",
		"abcd1234":                             "abcd1234",
		"6a1f3c1e-0000-4000-8000-0000000000ff": "6a1f…00ff",
		"طلبية-رقم-١٢٣٤":                       "طلبي…١٢٣٤",
	}
	for in, want := range cases {
		if got := ShortID(in); got != want {
			t.Errorf("ShortID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNullIfBlank(t *testing.T) {
	if NullIfBlank("   ") != nil {
		t.Fatal("blank should be nil")
	}
	if p := NullIfBlank("  Baghdad "); p == nil || *p != "Baghdad" {
		t.Fatalf("got %v", p)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(dec("5"), dec("0"), dec("3")); !got.Equal(dec("3")) {
		t.Fatalf("got %s", got)
	}
	if got := Clamp(dec("-1"), dec("0"), dec("3")); !got.IsZero() {
		t.Fatalf("got %s", got)
	}
}

func TestClampEmptyRange(t *testing.T) {
	if got := Clamp(dec("5"), dec("0"), dec("-3")); !got.IsZero() {
		t.Fatalf("got %s, want the lower bound", got)
	}
}

func TestNormalizeQtyOutOfRange(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
	}{
		{2.9, 2},
		{-1, 0},
		{math.NaN(), 0},
		{1e19, 0},
		{math.MaxInt64, 0},
		{1 << 62, 1 << 62},
	}
	for _, tc := range cases {
		if got := NormalizeQty(tc.in); got != tc.want {
			t.Errorf("NormalizeQty(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
