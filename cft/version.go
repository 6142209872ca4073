package cft

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a full Chrome for Testing version ordinal, e.g. 135.0.7019.0.
// Unlike semver, Chrome versions always carry four components.
type Version struct {
	Major int
	Minor int
	Patch int
	Build int
}

// ParseVersion parses a dotted 4-part version string.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return Version{}, fmt.Errorf("invalid version %q: expected 4 components, got %d", s, len(parts))
	}
	nums := make([]int, 4)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version %q: bad component %q", s, part)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], Build: nums[3]}, nil
}

// String returns the dotted form of the version.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Patch, v.Build)
}

// Compare returns -1, 0 or 1 depending on whether v is ordered before, equal
// to, or after o. Components are compared most-significant first.
func (v Version) Compare(o Version) int {
	pairs := [4][2]int{
		{v.Major, o.Major},
		{v.Minor, o.Minor},
		{v.Patch, o.Patch},
		{v.Build, o.Build},
	}
	for _, p := range pairs {
		switch {
		case p[0] < p[1]:
			return -1
		case p[0] > p[1]:
			return 1
		}
	}
	return 0
}

// After reports whether v is strictly newer than o.
func (v Version) After(o Version) bool {
	return v.Compare(o) > 0
}

// MarshalText implements encoding.TextMarshaler so the version round-trips
// through the catalog JSON as its dotted string form.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
