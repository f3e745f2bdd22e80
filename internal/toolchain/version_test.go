package toolchain

import (
	"errors"
	"testing"
)

// TestParseVersionValid tests accepted version string shapes
func TestParseVersionValid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Version
	}{
		{
			name:  "full triple",
			input: "5.3.0",
			want:  Version{Major: 5, Minor: 3, Patch: 0},
		},
		{
			name:  "major minor only",
			input: "5.3",
			want:  Version{Major: 5, Minor: 3, Patch: 0},
		},
		{
			name:  "flambda variant",
			input: "5.3.0+flambda",
			want:  Version{Major: 5, Minor: 3, Patch: 0},
		},
		{
			name:  "release candidate",
			input: "5.3.1~rc1",
			want:  Version{Major: 5, Minor: 3, Patch: 1},
		},
		{
			name:  "trailing description",
			input: "5.4.0 (default)",
			want:  Version{Major: 5, Minor: 4, Patch: 0},
		},
		{
			name:  "surrounding whitespace",
			input: "  4.14.2\n",
			want:  Version{Major: 4, Minor: 14, Patch: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVersion(tt.input)
			if err != nil {
				t.Fatalf("ParseVersion(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseVersion(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

// TestParseVersionInvalid tests that malformed version strings are rejected
func TestParseVersionInvalid(t *testing.T) {
	inputs := []string{
		"",
		"unknown",
		"v5.3.0",
		"5",
		"5.x.0",
		"5.3.0.1",
		"five.three",
		"-5.3.0",
		"5.-3.0",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := ParseVersion(input)
			if err == nil {
				t.Fatalf("ParseVersion(%q) expected error, got nil", input)
			}
			if !errors.Is(err, ErrUnparseableVersion) {
				t.Errorf("ParseVersion(%q) error = %v, want ErrUnparseableVersion", input, err)
			}
		})
	}
}

// TestVersionString tests rendering back to dotted form
func TestVersionString(t *testing.T) {
	v := Version{Major: 5, Minor: 3, Patch: 0}
	if v.String() != "5.3.0" {
		t.Errorf("String() = %q, want %q", v.String(), "5.3.0")
	}
	if v.Series() != "5.3" {
		t.Errorf("Series() = %q, want %q", v.Series(), "5.3")
	}
}

// TestVersionCompare tests lexicographic triple ordering
func TestVersionCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Version
		want int
	}{
		{"equal", Version{5, 3, 0}, Version{5, 3, 0}, 0},
		{"patch less", Version{5, 3, 0}, Version{5, 3, 1}, -1},
		{"minor greater", Version{5, 4, 0}, Version{5, 3, 9}, 1},
		{"major dominates", Version{4, 14, 2}, Version{5, 0, 0}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Compare(tt.b); got != tt.want {
				t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// TestVersionInSeries tests major.minor series membership
func TestVersionInSeries(t *testing.T) {
	v := Version{Major: 5, Minor: 3, Patch: 7}
	if !v.InSeries(5, 3) {
		t.Error("InSeries(5, 3) = false, want true")
	}
	if v.InSeries(5, 4) {
		t.Error("InSeries(5, 4) = true, want false")
	}
}
