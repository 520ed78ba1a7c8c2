package warehousesync

import "testing"

func TestSanitize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ABC-123", "ABC-123"},
		{"  ABC-123  ", "ABC-123"},
		{"", ""},
		{"   ", ""},
		{"none", ""},
		{"None", ""},
		{"NULL", ""},
		{"n/a", ""},
		{"N/A", ""},
		{"na", ""},
		{"NA", ""},
		{"nab", "nab"},
	}
	for _, tc := range cases {
		if got := Sanitize(tc.in); got != tc.want {
			t.Fatalf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ABC-123", "ABC123"},
		{"abc 123", "ABC123"},
		{"a.b/c_1-2 3", "ABC123"},
		{"AB-100", "AB100"},
		{"none", ""},
		{"", ""},
		{"---", ""},
		{"  xy-9  ", "XY9"},
		{"äb-123", "ÄB123"},
		{"ÄB 123", "ÄB123"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"ABC-123", "ab c-1", "none", "", "ZZ_99/x"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestIsValidIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"ABC-123", true},
		{"x", true},
		{"", false},
		{"  ", false},
		{"none", false},
		{"N/A", false},
	}
	for _, tc := range cases {
		if got := IsValidIdentifier(tc.in); got != tc.want {
			t.Fatalf("IsValidIdentifier(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
