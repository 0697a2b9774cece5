package artifact

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/sheenhq/workspace-gateway/internal/guard"
)

// Extractor unpacks a downloaded archive into a destination directory. The
// context carries the extraction deadline; implementations must stop and
// return its error once it expires.
type Extractor interface {
	Extract(ctx context.Context, archivePath, destDir string) error
}

// ExtractLimits bound what a single archive may expand into.
type ExtractLimits struct {
	MaxEntries   int
	MaxEntrySize int64
}

// TreeExtractor extracts zip, tar, tar.gz and tar.zst archives with
// traversal guards. Symlinks and other special entries inside archives are
// skipped entirely; extracted content is less trusted than the project root.
type TreeExtractor struct {
	Limits ExtractLimits
}

// NewTreeExtractor creates an extractor with the given limits.
func NewTreeExtractor(limits ExtractLimits) *TreeExtractor {
	return &TreeExtractor{Limits: limits}
}

// archive format magic numbers
var (
	magicZip  = []byte{0x50, 0x4b, 0x03, 0x04}
	magicGzip = []byte{0x1f, 0x8b}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Extract auto-detects the archive format by magic bytes and unpacks it.
func (e *TreeExtractor) Extract(ctx context.Context, archivePath, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	header := make([]byte, 4)
	n, _ := io.ReadFull(f, header)
	header = header[:n]
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind archive: %w", err)
	}

	switch {
	case bytes.HasPrefix(header, magicZip):
		return e.extractZip(ctx, f, destDir)
	case bytes.HasPrefix(header, magicGzip):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		return e.extractTar(ctx, gz, destDir)
	case bytes.HasPrefix(header, magicZstd):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		return e.extractTar(ctx, zr, destDir)
	default:
		// Plain tar has no leading magic; the reader rejects garbage.
		return e.extractTar(ctx, f, destDir)
	}
}

func (e *TreeExtractor) extractZip(ctx context.Context, f *os.File, destDir string) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}
	reader, err := zip.NewReader(f, info.Size())
	// Entries with traversal names surface as ErrInsecurePath; the reader is
	// still usable and safeDestPath drops the offending entries.
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("zip reader: %w", err)
	}

	count := 0
	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.Limits.MaxEntries > 0 && count >= e.Limits.MaxEntries {
			break
		}

		mode := file.FileInfo().Mode()
		if mode&os.ModeSymlink != 0 {
			continue
		}

		destPath, ok := safeDestPath(destDir, file.Name)
		if !ok {
			continue
		}

		if file.FileInfo().IsDir() {
			os.MkdirAll(destPath, 0o755)
			continue
		}
		if !mode.IsRegular() {
			continue
		}
		if e.Limits.MaxEntrySize > 0 && int64(file.UncompressedSize64) > e.Limits.MaxEntrySize {
			continue
		}

		src, err := file.Open()
		if err != nil {
			continue
		}
		if err := writeEntry(destPath, src, e.Limits.MaxEntrySize); err != nil {
			src.Close()
			return err
		}
		src.Close()
		count++
	}
	return nil
}

func (e *TreeExtractor) extractTar(ctx context.Context, r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			err = nil // safeDestPath drops the entry below
		}
		if err != nil {
			return fmt.Errorf("tar entry: %w", err)
		}
		if e.Limits.MaxEntries > 0 && count >= e.Limits.MaxEntries {
			break
		}

		destPath, ok := safeDestPath(destDir, header.Name)
		if !ok {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			os.MkdirAll(destPath, 0o755)
		case tar.TypeReg:
			if e.Limits.MaxEntrySize > 0 && header.Size > e.Limits.MaxEntrySize {
				continue
			}
			if err := writeEntry(destPath, tr, e.Limits.MaxEntrySize); err != nil {
				return err
			}
			count++
		default:
			// Symlinks, hardlinks, devices: never materialized.
		}
	}
	return nil
}

// safeDestPath joins an archive entry name onto destDir and rejects entries
// that would land outside it (zip-slip).
func safeDestPath(destDir, name string) (string, bool) {
	name = strings.TrimPrefix(filepath.ToSlash(name), "/")
	destPath := filepath.Join(destDir, filepath.FromSlash(name))
	if !guard.WithinBase(destDir, destPath) {
		return "", false
	}
	return destPath, true
}

// writeEntry copies one archive entry to disk, enforcing the per-entry size
// cap even when the header lied about the size.
func writeEntry(destPath string, src io.Reader, maxSize int64) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create parent: %w", err)
	}
	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	defer dst.Close()

	reader := src
	if maxSize > 0 {
		reader = io.LimitReader(src, maxSize+1)
	}
	written, err := io.Copy(dst, reader)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	if maxSize > 0 && written > maxSize {
		os.Remove(destPath)
		return fmt.Errorf("entry exceeds %d byte limit", maxSize)
	}
	return nil
}
