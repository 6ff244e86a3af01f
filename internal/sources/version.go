// Package sources maps interpreter version requests onto concrete
// downloads and knows which interpreters are installed.
package sources

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// ReferenceImplementation is the only implementation pyrite runs its
// own tooling on.
const ReferenceImplementation = "cpython"

// Self-compatible interpreter window, inclusive.
const (
	selfMinMinor = 9
	selfMaxMinor = 12
)

// Version is a concrete interpreter version. Equality of String()
// defines on-disk identity.
type Version struct {
	Name   string
	Arch   string
	OS     string
	Major  uint
	Minor  uint
	Patch  uint
	Suffix string
}

// Number renders X.Y.Z plus the suffix.
func (v Version) Number() string {
	return fmt.Sprintf("%d.%d.%d%s", v.Major, v.Minor, v.Patch, v.Suffix)
}

// String renders the on-disk identifier, for example cpython@3.12.1.
func (v Version) String() string {
	return v.Name + "@" + v.Number()
}

// Full renders the version including its platform, for example
// cpython-x86_64-linux@3.12.1.
func (v Version) Full() string {
	name := v.Name
	for _, part := range []string{v.Arch, v.OS} {
		if part != "" {
			name += "-" + part
		}
	}
	return name + "@" + v.Number()
}

func (v Version) semver() *goversion.Version {
	parsed, err := goversion.NewVersion(v.Number())
	if err != nil {
		// Suffixes that go-version rejects sort as if absent.
		parsed = goversion.Must(goversion.NewVersion(fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)))
	}
	return parsed
}

// Compare orders versions by implementation name, then by version
// number with pre-release suffixes sorting before the release.
func (v Version) Compare(other Version) int {
	if c := strings.Compare(v.Name, other.Name); c != 0 {
		return c
	}
	if c := v.semver().Compare(other.semver()); c != 0 {
		return c
	}
	return strings.Compare(v.Suffix, other.Suffix)
}

// Request returns the concrete request that selects exactly v.
func (v Version) Request() VersionRequest {
	minor, patch := v.Minor, v.Patch
	return VersionRequest{
		Name:   v.Name,
		Arch:   v.Arch,
		OS:     v.OS,
		Major:  v.Major,
		Minor:  &minor,
		Patch:  &patch,
		Suffix: v.Suffix,
	}
}

// IsSelfCompatible reports whether pyrite can run its private
// environment on v.
func IsSelfCompatible(v Version) bool {
	return v.Name == ReferenceImplementation &&
		v.Major == 3 &&
		v.Minor >= selfMinMinor &&
		v.Minor <= selfMaxMinor
}

// VersionRequest is a possibly partial interpreter query.
type VersionRequest struct {
	Name   string
	Arch   string
	OS     string
	Major  uint
	Minor  *uint
	Patch  *uint
	Suffix string
}

// DefaultSelfToolchain is fetched when no compatible interpreter is
// installed.
var DefaultSelfToolchain = VersionRequest{
	Name:  ReferenceImplementation,
	Major: 3,
	Minor: uintPtr(12),
}

func uintPtr(v uint) *uint {
	return &v
}

// IsConcrete reports whether the request names exactly one version.
func (r VersionRequest) IsConcrete() bool {
	return r.Minor != nil && r.Patch != nil
}

// Concrete turns a concrete request into a Version. ok is false when
// the request leaves minor or patch open.
func (r VersionRequest) Concrete() (Version, bool) {
	if !r.IsConcrete() {
		return Version{}, false
	}
	name := r.Name
	if name == "" {
		name = ReferenceImplementation
	}
	return Version{
		Name:   name,
		Arch:   r.Arch,
		OS:     r.OS,
		Major:  r.Major,
		Minor:  *r.Minor,
		Patch:  *r.Patch,
		Suffix: r.Suffix,
	}, true
}

func (r VersionRequest) String() string {
	var b strings.Builder
	name := r.Name
	if name != "" || r.Arch != "" || r.OS != "" {
		if name == "" {
			name = ReferenceImplementation
		}
		b.WriteString(name)
		for _, part := range []string{r.Arch, r.OS} {
			if part != "" {
				b.WriteString("-" + part)
			}
		}
		b.WriteString("@")
	}
	b.WriteString(strconv.FormatUint(uint64(r.Major), 10))
	if r.Minor != nil {
		b.WriteString("." + strconv.FormatUint(uint64(*r.Minor), 10))
		if r.Patch != nil {
			b.WriteString("." + strconv.FormatUint(uint64(*r.Patch), 10))
		}
	}
	b.WriteString(r.Suffix)
	return b.String()
}

// Matches reports whether v satisfies every field the request sets.
// An empty name selects the reference implementation.
func (r VersionRequest) Matches(v Version) bool {
	name := r.Name
	if name == "" {
		name = ReferenceImplementation
	}
	switch {
	case name != v.Name:
		return false
	case r.Arch != "" && r.Arch != v.Arch:
		return false
	case r.OS != "" && r.OS != v.OS:
		return false
	case r.Major != v.Major:
		return false
	case r.Minor != nil && *r.Minor != v.Minor:
		return false
	case r.Patch != nil && *r.Patch != v.Patch:
		return false
	case r.Suffix != "" && r.Suffix != v.Suffix:
		return false
	}
	return true
}

var versionNumberRe = regexp.MustCompile(`^(\d+)(?:\.(\d+))?(?:\.(\d+))?([A-Za-z][A-Za-z0-9]*)?$`)

// ParseVersionRequest parses `[name[-arch[-os]]@]X[.Y[.Z]][suffix]`,
// for example `3.12`, `cpython@3.11.7` or
// `cpython-aarch64-macos@3.12.1`.
func ParseVersionRequest(s string) (VersionRequest, error) {
	var req VersionRequest
	number := strings.TrimSpace(s)
	if prefix, rest, ok := strings.Cut(number, "@"); ok {
		parts := strings.SplitN(prefix, "-", 3)
		req.Name = parts[0]
		if len(parts) > 1 {
			req.Arch = parts[1]
		}
		if len(parts) > 2 {
			req.OS = parts[2]
		}
		if req.Name == "" {
			return VersionRequest{}, fmt.Errorf("invalid version request %q: missing name", s)
		}
		number = rest
	}

	m := versionNumberRe.FindStringSubmatch(number)
	if m == nil {
		return VersionRequest{}, fmt.Errorf("invalid version request %q", s)
	}
	major, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return VersionRequest{}, fmt.Errorf("invalid version request %q: %w", s, err)
	}
	req.Major = uint(major)
	if m[2] != "" {
		minor, _ := strconv.ParseUint(m[2], 10, 32)
		req.Minor = uintPtr(uint(minor))
	}
	if m[3] != "" {
		patch, _ := strconv.ParseUint(m[3], 10, 32)
		req.Patch = uintPtr(uint(patch))
	}
	req.Suffix = m[4]
	return req, nil
}

// ParseVersion parses a concrete version such as cpython@3.12.1.
func ParseVersion(s string) (Version, error) {
	req, err := ParseVersionRequest(s)
	if err != nil {
		return Version{}, err
	}
	v, ok := req.Concrete()
	if !ok {
		return Version{}, fmt.Errorf("version %q is not concrete", s)
	}
	return v, nil
}
