package sources

import (
	"context"
	"fmt"
	"path"

	"github.com/replit/pyrite/internal/checksum"
	"github.com/replit/pyrite/internal/tui"
)

// SumsFile is the checksum listing published once per release
// directory.
const SumsFile = "SHA256SUMS"

// DigestFetcher downloads published checksum files.
type DigestFetcher interface {
	FetchAllow404(ctx context.Context, url string, output tui.CommandOutput) ([]byte, bool, error)
}

// FillDigests looks up the published digest of every entry in f that
// has none: first in the SHA256SUMS listing of the entry's release
// directory, then in the `<url>.sha256` file next to it. Interpreters
// nobody publishes a digest for are returned as missing. A helper
// without a published digest is an error.
func FillDigests(ctx context.Context, f *CatalogFile, fetcher DigestFetcher) (missing []string, err error) {
	listings := map[string]map[string]string{}
	lookup := func(url string) (string, error) {
		dir, name := path.Split(url)
		sums, ok := listings[dir]
		if !ok {
			data, found, err := fetcher.FetchAllow404(ctx, dir+SumsFile, tui.Quiet)
			if err != nil {
				return "", err
			}
			if found {
				if sums, err = checksum.ParseSums(data); err != nil {
					return "", fmt.Errorf("%s%s: %w", dir, SumsFile, err)
				}
			}
			listings[dir] = sums
		}
		if digest, ok := sums[name]; ok {
			return digest, nil
		}

		data, found, err := fetcher.FetchAllow404(ctx, url+".sha256", tui.Quiet)
		if err != nil || !found {
			return "", err
		}
		return checksum.ParseSidecar(data)
	}

	for i := range f.Pythons {
		p := &f.Pythons[i]
		if p.SHA256 != "" {
			continue
		}
		if p.SHA256, err = lookup(p.URL); err != nil {
			return nil, err
		}
		if p.SHA256 == "" {
			missing = append(missing, p.URL)
		}
	}
	for i := range f.Helpers {
		h := &f.Helpers[i]
		if h.SHA256 != "" {
			continue
		}
		if h.SHA256, err = lookup(h.URL); err != nil {
			return nil, err
		}
		if h.SHA256 == "" {
			return nil, fmt.Errorf("no digest published for helper %s", h.URL)
		}
	}
	return missing, f.Validate()
}
