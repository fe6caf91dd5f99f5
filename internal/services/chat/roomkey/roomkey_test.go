package roomkey

import "testing"

func TestCanonicalIsOrderIndependent(t *testing.T) {
	t.Parallel()

	pairs := []struct {
		a, b int64
		want string
	}{
		{3, 7, "3_7"},
		{7, 3, "3_7"},
		{9, 10, "9_10"},
		{10, 9, "9_10"},
		{1, 2, "1_2"},
	}
	for _, pair := range pairs {
		if got := Canonical(pair.a, pair.b); got != pair.want {
			t.Fatalf("Canonical(%d, %d) = %q, want %q", pair.a, pair.b, got, pair.want)
		}
	}
}

func TestCanonicalSortsNumerically(t *testing.T) {
	t.Parallel()

	// Lexical ordering would put "10" before "9".
	if got := Canonical(10, 9); got != "9_10" {
		t.Fatalf("Canonical(10, 9) = %q, want %q", got, "9_10")
	}
}

func TestParseRoundTripsCanonicalKeys(t *testing.T) {
	t.Parallel()

	low, high, err := Parse("3_7")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if low != 3 || high != 7 {
		t.Fatalf("parse = (%d, %d), want (3, 7)", low, high)
	}
}

func TestParseRejectsMalformedKeys(t *testing.T) {
	t.Parallel()

	invalid := []string{
		"",
		"3",
		"3_",
		"_7",
		"3_7_9",
		"a_b",
		"3-7",
		"7_3",
		"3_3",
		"0_7",
	}
	for _, key := range invalid {
		if _, _, err := Parse(key); err == nil {
			t.Fatalf("Parse(%q) accepted, expected error", key)
		}
	}
}
