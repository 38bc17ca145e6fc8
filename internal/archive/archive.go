// Package archive packs stash payloads as tar.gz.
package archive

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Pack archives the given paths (files or directories) relative to base.
// Hidden entries discovered while walking a directory are skipped unless
// includeHidden is set; explicitly listed paths are always included.
// Returns the archive and the number of regular files packed.
func Pack(base string, paths []string, level int, includeHidden bool) ([]byte, int, error) {
	if level < gzip.NoCompression || level > gzip.BestCompression {
		return nil, 0, fmt.Errorf("compression level must be in [0,9], got %d", level)
	}

	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, 0, err
	}
	tw := tar.NewWriter(gz)

	count := 0
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		full := p
		if !filepath.IsAbs(full) {
			full = filepath.Join(base, p)
		}
		info, err := os.Stat(full)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, 0, err
		}
		if info.IsDir() {
			n, err := packDir(tw, base, full, includeHidden)
			if err != nil {
				return nil, 0, err
			}
			count += n
			continue
		}
		if err := packFile(tw, base, full, info); err != nil {
			return nil, 0, err
		}
		count++
	}

	if err := tw.Close(); err != nil {
		return nil, 0, err
	}
	if err := gz.Close(); err != nil {
		return nil, 0, err
	}
	if count == 0 {
		return nil, 0, nil
	}
	return buf.Bytes(), count, nil
}

func packDir(tw *tar.Writer, base, dir string, includeHidden bool) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && !includeHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if err := packFile(tw, base, path, info); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

func packFile(tw *tar.Writer, base, path string, info fs.FileInfo) error {
	name, err := filepath.Rel(base, path)
	if err != nil {
		name = filepath.Base(path)
	}
	name = filepath.ToSlash(name)

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

// Unpack extracts an archive produced by Pack into dest. Member names that
// are absolute or escape dest are rejected. Returns the file count.
func Unpack(data []byte, dest string) (int, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	count := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, err
		}
		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return count, err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return count, err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return count, err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fs.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return count, err
			}
			if _, err := io.Copy(f, tr); err != nil {
				_ = f.Close()
				return count, err
			}
			if err := f.Close(); err != nil {
				return count, err
			}
			count++
		default:
			// symlinks and specials are not part of a stash payload
		}
	}
	return count, nil
}

func safeJoin(dest, name string) (string, error) {
	name = filepath.ToSlash(name)
	if name == "" || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("unsafe archive member %q", name)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe archive member %q", name)
	}
	return filepath.Join(dest, clean), nil
}
