// Package toolchain holds facts about the OCaml toolchain under test:
// version string parsing, target architecture spellings, and the
// environment workaround for the 5.3 garbage collector defect.
package toolchain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnparseableVersion indicates a version string that does not start with
// dotted numeric components.
var ErrUnparseableVersion = errors.New("toolchain: unparseable version string")

// Version is an OCaml compiler version as an ordered numeric triple.
// Comparison is lexicographic on (Major, Minor, Patch).
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses a compiler version string into its numeric triple.
// Accepted shapes are "5.3.0" and "5.3" (patch defaults to 0), with an
// optional suffix introduced by '+', '~', '-' or a space ("5.3.0+flambda",
// "5.3.0~rc1"). Anything else, including "unknown" or "v5.3.0", is an
// error; callers that gate policy decisions on the version must treat the
// error as disqualifying.
func ParseVersion(raw string) (Version, error) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "+~- "); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return Version{}, fmt.Errorf("%w: %q", ErrUnparseableVersion, raw)
	}

	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Version{}, fmt.Errorf("%w: %q", ErrUnparseableVersion, raw)
	}

	nums := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 31)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrUnparseableVersion, raw)
		}
		nums[i] = int(n)
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// String renders the full dotted triple, e.g. "5.3.0".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Series renders the major.minor pair, e.g. "5.3".
func (v Version) Series() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compare returns -1, 0, or 1 ordering v against o lexicographically on the
// numeric triple.
func (v Version) Compare(o Version) int {
	pairs := [3][2]int{
		{v.Major, o.Major},
		{v.Minor, o.Minor},
		{v.Patch, o.Patch},
	}
	for _, p := range pairs {
		if p[0] < p[1] {
			return -1
		}
		if p[0] > p[1] {
			return 1
		}
	}
	return 0
}

// InSeries reports whether v belongs to the given major.minor series.
func (v Version) InSeries(major, minor int) bool {
	return v.Major == major && v.Minor == minor
}
