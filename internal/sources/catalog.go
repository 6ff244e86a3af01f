package sources

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/replit/pyrite/internal/checksum"
	"github.com/replit/pyrite/internal/platform"
	"gopkg.in/yaml.v2"
)

//go:generate go run ./gencatalog -in catalog.in.yaml -out catalog.yaml

//go:embed catalog.yaml
var defaultCatalog []byte

// PythonDownload is an interpreter archive. SHA256 may be empty.
type PythonDownload struct {
	Version Version
	Libc    string
	URL     string
	SHA256  string
}

// HelperDownload is a helper release archive. SHA256 is always set.
// Strip is the number of leading path components to drop when
// unpacking.
type HelperDownload struct {
	Version string
	Arch    string
	OS      string
	Libc    string
	URL     string
	SHA256  string
	Strip   int
}

// UnknownVersionError is returned when nothing in the catalog
// satisfies a request.
type UnknownVersionError struct {
	Request VersionRequest
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("unknown version %s", e.Request)
}

// Catalog is the set of downloads available to a host.
type Catalog struct {
	Host    platform.Host
	Pythons []PythonDownload
	Helpers []HelperDownload
}

// CatalogFile is the YAML form of a catalog. catalog.in.yaml lists
// the downloads; the generator fills in digests and writes
// catalog.yaml.
type CatalogFile struct {
	Pythons []PythonEntry `yaml:"pythons"`
	Helpers []HelperEntry `yaml:"helpers"`
}

// PythonEntry is one interpreter archive of a CatalogFile.
type PythonEntry struct {
	Name    string `yaml:"name"`
	Arch    string `yaml:"arch"`
	OS      string `yaml:"os"`
	Libc    string `yaml:"libc,omitempty"`
	Version string `yaml:"version"`
	URL     string `yaml:"url"`
	SHA256  string `yaml:"sha256,omitempty"`
}

// HelperEntry is one helper release archive of a CatalogFile.
type HelperEntry struct {
	Version string `yaml:"version"`
	Arch    string `yaml:"arch"`
	OS      string `yaml:"os"`
	Libc    string `yaml:"libc,omitempty"`
	URL     string `yaml:"url"`
	SHA256  string `yaml:"sha256,omitempty"`
	Strip   *int   `yaml:"strip,omitempty"`
}

// Validate checks that every URL is HTTPS and every digest is well
// formed. Helper entries must carry a digest.
func (f *CatalogFile) Validate() error {
	for _, p := range f.Pythons {
		if !strings.HasPrefix(p.URL, "https://") {
			return fmt.Errorf("catalog entry %s is not https", p.URL)
		}
		if p.SHA256 != "" && !checksum.IsDigest(p.SHA256) {
			return fmt.Errorf("catalog entry %s has a malformed sha256 %q", p.URL, p.SHA256)
		}
	}
	for _, h := range f.Helpers {
		if !strings.HasPrefix(h.URL, "https://") {
			return fmt.Errorf("helper entry %s is not https", h.URL)
		}
		if h.SHA256 == "" {
			return fmt.Errorf("helper entry %s has no sha256", h.URL)
		}
		if !checksum.IsDigest(h.SHA256) {
			return fmt.Errorf("helper entry %s has a malformed sha256 %q", h.URL, h.SHA256)
		}
	}
	return nil
}

// Default returns the catalog compiled into pyrite.
func Default(host platform.Host) (*Catalog, error) {
	return Parse(defaultCatalog, host)
}

// Parse reads a catalog in the embedded YAML format.
func Parse(data []byte, host platform.Host) (*Catalog, error) {
	var file CatalogFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	c := &Catalog{Host: host}
	for _, p := range file.Pythons {
		v, err := ParseVersion(p.Name + "@" + p.Version)
		if err != nil {
			return nil, fmt.Errorf("invalid catalog entry %s: %w", p.URL, err)
		}
		v.Arch, v.OS = p.Arch, p.OS
		c.Pythons = append(c.Pythons, PythonDownload{
			Version: v,
			Libc:    p.Libc,
			URL:     p.URL,
			SHA256:  strings.ToLower(p.SHA256),
		})
	}
	for _, h := range file.Helpers {
		strip := 1
		if h.Strip != nil {
			strip = *h.Strip
		}
		c.Helpers = append(c.Helpers, HelperDownload{
			Version: h.Version,
			Arch:    h.Arch,
			OS:      h.OS,
			Libc:    h.Libc,
			URL:     h.URL,
			SHA256:  strings.ToLower(h.SHA256),
			Strip:   strip,
		})
	}
	return c, nil
}

func (c *Catalog) libcMatches(libc string) bool {
	return libc == "" || c.Host.Libc == "" || libc == c.Host.Libc
}

// withHostDefaults fills in the platform fields a request leaves open.
func (c *Catalog) withHostDefaults(req VersionRequest) VersionRequest {
	if req.Arch == "" {
		req.Arch = c.Host.Arch
	}
	if req.OS == "" {
		req.OS = c.Host.OS
	}
	return req
}

func (c *Catalog) matching(req VersionRequest) []PythonDownload {
	req = c.withHostDefaults(req)
	var matches []PythonDownload
	for _, p := range c.Pythons {
		if req.Matches(p.Version) && c.libcMatches(p.Libc) {
			matches = append(matches, p)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Version.Compare(matches[j].Version) > 0
	})
	return matches
}

// Resolve returns the newest download matching req on the host.
func (c *Catalog) Resolve(req VersionRequest) (PythonDownload, error) {
	matches := c.matching(req)
	if len(matches) == 0 {
		return PythonDownload{}, &UnknownVersionError{Request: req}
	}
	return matches[0], nil
}

// LatestMatching returns the newest version matching req.
func (c *Catalog) LatestMatching(req VersionRequest) (Version, bool) {
	matches := c.matching(req)
	if len(matches) == 0 {
		return Version{}, false
	}
	return matches[0].Version, true
}

// Available lists every version downloadable on the host, newest
// first.
func (c *Catalog) Available() []Version {
	seen := map[string]bool{}
	var versions []Version
	for _, p := range c.Pythons {
		if p.Version.Arch != c.Host.Arch || p.Version.OS != c.Host.OS || !c.libcMatches(p.Libc) {
			continue
		}
		if seen[p.Version.String()] {
			continue
		}
		seen[p.Version.String()] = true
		versions = append(versions, p.Version)
	}
	sortNewestFirst(versions)
	return versions
}

// ResolveHelper returns the helper release for the host.
func (c *Catalog) ResolveHelper() (HelperDownload, error) {
	var best *HelperDownload
	for i, h := range c.Helpers {
		if h.Arch != c.Host.Arch || h.OS != c.Host.OS || !c.libcMatches(h.Libc) {
			continue
		}
		if best == nil || helperNewer(h.Version, best.Version) {
			best = &c.Helpers[i]
		}
	}
	if best == nil {
		return HelperDownload{}, fmt.Errorf("no pinned helper download for %s", c.Host)
	}
	return *best, nil
}

func helperNewer(a, b string) bool {
	va, errA := ParseVersionRequest(a)
	vb, errB := ParseVersionRequest(b)
	if errA != nil || errB != nil {
		return a > b
	}
	ca, _ := va.Concrete()
	cb, _ := vb.Concrete()
	return ca.Compare(cb) > 0
}

func sortNewestFirst(versions []Version) {
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].Compare(versions[j]) > 0
	})
}
