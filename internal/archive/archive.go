// Package archive unpacks in-memory archives into a directory,
// dropping leading path components on the way.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Format is an archive container detected from magic bytes.
type Format int

const (
	Unknown Format = iota
	TarGz
	TarZst
	TarXz
	TarBz2
	Tar
	Zip
)

func (f Format) String() string {
	switch f {
	case TarGz:
		return "tar.gz"
	case TarZst:
		return "tar.zst"
	case TarXz:
		return "tar.xz"
	case TarBz2:
		return "tar.bz2"
	case Tar:
		return "tar"
	case Zip:
		return "zip"
	default:
		return "unknown"
	}
}

var ErrUnknownFormat = errors.New("unrecognized archive format")

// UnpackError wraps every failure raised while unpacking. The target
// directory is left as it was when the failure happened.
type UnpackError struct {
	Dir string
	Err error
}

func (e *UnpackError) Error() string {
	return fmt.Sprintf("failed to unpack into %s: %s", e.Dir, e.Err)
}

func (e *UnpackError) Unwrap() error {
	return e.Err
}

// Detect identifies the archive format of data.
func Detect(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, []byte{0x1f, 0x8b}):
		return TarGz
	case bytes.HasPrefix(data, []byte{0x28, 0xb5, 0x2f, 0xfd}):
		return TarZst
	case bytes.HasPrefix(data, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}):
		return TarXz
	case bytes.HasPrefix(data, []byte("BZh")):
		return TarBz2
	case bytes.HasPrefix(data, []byte("PK\x03\x04")), bytes.HasPrefix(data, []byte("PK\x05\x06")):
		return Zip
	case len(data) >= 262 && string(data[257:262]) == "ustar":
		return Tar
	default:
		return Unknown
	}
}

// Unpack extracts data into targetDir, discarding the first strip
// path components of every entry. targetDir is created if missing.
func Unpack(data []byte, targetDir string, strip int) error {
	if err := unpack(data, targetDir, strip); err != nil {
		return &UnpackError{Dir: targetDir, Err: err}
	}
	return nil
}

func unpack(data []byte, targetDir string, strip int) error {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return err
	}

	format := Detect(data)
	if format == Zip {
		return unpackZip(data, targetDir, strip)
	}

	var r io.Reader = bytes.NewReader(data)
	switch format {
	case TarGz:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case TarZst:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return fmt.Errorf("create zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	case TarXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return fmt.Errorf("create xz reader: %w", err)
		}
		r = xr
	case TarBz2:
		r = bzip2.NewReader(r)
	case Tar:
	default:
		return ErrUnknownFormat
	}
	return unpackTar(tar.NewReader(r), targetDir, strip)
}

// stripPath removes the leading components of an archive entry name.
// ok is false when nothing is left.
func stripPath(name string, strip int) (string, bool, error) {
	cleaned := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false, fmt.Errorf("illegal file path: %s", name)
	}
	if cleaned == "." {
		return "", false, nil
	}
	parts := strings.Split(cleaned, "/")
	if len(parts) <= strip {
		return "", false, nil
	}
	return path.Join(parts[strip:]...), true, nil
}

// destination joins an entry path onto root and rejects anything
// that would land outside of it, lexically or through a symlink
// unpacked earlier.
func destination(root, rel string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, filepath.Clean(root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal file path: %s", rel)
	}
	if err := checkParents(root, target); err != nil {
		return "", err
	}
	return target, nil
}

// checkLinkTarget walks linkname from the directory of link. Every
// step must stay inside root, and ".." may only lead the target: after
// a named component it would climb out of whatever that component
// resolves to, which may be a link unpacked before or after this one.
func checkLinkTarget(root, link, linkname string) error {
	if filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") {
		return fmt.Errorf("illegal absolute link %s -> %s", link, linkname)
	}
	root = filepath.Clean(root)
	cur := filepath.Dir(link)
	descended := false
	for _, part := range strings.Split(strings.ReplaceAll(linkname, `\`, "/"), "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			if descended {
				return fmt.Errorf("illegal link %s -> %s", link, linkname)
			}
			cur = filepath.Dir(cur)
		default:
			descended = true
			cur = filepath.Join(cur, part)
		}
		if cur != root && !strings.HasPrefix(cur, root+string(os.PathSeparator)) {
			return fmt.Errorf("illegal link %s -> %s", link, linkname)
		}
	}
	if cur == root {
		return fmt.Errorf("illegal link %s -> %s", link, linkname)
	}
	return nil
}

// checkParents rejects target when one of its parent directories
// below root is a symlink, so nothing is ever written through a link.
func checkParents(root, target string) error {
	rel, err := filepath.Rel(root, filepath.Dir(target))
	if err != nil {
		return err
	}
	if rel == "." {
		return nil
	}
	cur := filepath.Clean(root)
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("illegal file path %s: passes through link %s", target, cur)
		}
	}
	return nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}
	// A previous partial unpack may have left a link here.
	_ = os.Remove(target)
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0o200)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}
	return out.Close()
}

func symlink(root, target, linkname string) error {
	if err := checkLinkTarget(root, target, linkname); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}
	_ = os.Remove(target)
	if err := os.Symlink(linkname, target); err != nil {
		return fmt.Errorf("create symlink %s: %w", target, err)
	}
	return nil
}

func unpackTar(tr *tar.Reader, root string, strip int) error {
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		rel, ok, err := stripPath(header.Name, strip)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		target, err := destination(root, rel)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(header.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := symlink(root, target, header.Linkname); err != nil {
				return err
			}
		case tar.TypeLink:
			linkRel, ok, err := stripPath(header.Linkname, strip)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("illegal hardlink %s -> %s", header.Name, header.Linkname)
			}
			source, err := destination(root, linkRel)
			if err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Link(source, target); err != nil {
				return fmt.Errorf("create hardlink %s: %w", target, err)
			}
		default:
			// Devices, fifos and pax records carry nothing we need.
		}
	}
}

func unpackZip(data []byte, root string, strip int) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	for _, f := range zr.File {
		rel, ok, err := stripPath(f.Name, strip)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		target, err := destination(root, rel)
		if err != nil {
			return err
		}
		if err := unpackZipEntry(f, root, target); err != nil {
			return err
		}
	}
	return nil
}

func unpackZipEntry(f *zip.File, root, target string) error {
	mode := f.Mode()
	if mode.IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", target, err)
		}
		return nil
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	if mode&os.ModeSymlink != 0 {
		linkname, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("read link %s: %w", f.Name, err)
		}
		return symlink(root, target, string(linkname))
	}
	if mode.Perm() == 0 {
		mode = 0o644
	}
	return writeFile(target, rc, mode)
}
