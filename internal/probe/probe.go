package probe

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/sheenhq/workspace-gateway/internal/shared/types"
)

// sniffLen is how many leading bytes are inspected for the binary heuristic.
const sniffLen = 1024

// Probe reports filesystem metadata for already-validated canonical paths.
// It holds no state and always reflects the current filesystem.
type Probe struct{}

// New creates a metadata probe.
func New() *Probe {
	return &Probe{}
}

// Stat returns a metadata snapshot for the given canonical path.
func (p *Probe) Stat(canonicalPath string) (types.FileMetadata, error) {
	info, err := os.Stat(canonicalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return types.FileMetadata{}, fmt.Errorf("stat %s: %w", canonicalPath, types.ErrNotFound)
		}
		return types.FileMetadata{}, fmt.Errorf("stat %s: %v", canonicalPath, err)
	}

	md := types.FileMetadata{
		Name:     info.Name(),
		Path:     canonicalPath,
		Size:     info.Size(),
		IsDir:    info.IsDir(),
		Modified: info.ModTime(),
	}

	if !info.IsDir() {
		md.Extension = filepath.Ext(canonicalPath)
		if info.Mode().IsRegular() && info.Size() > 0 {
			md.IsBinary = sniffBinary(canonicalPath)
			if mtype, err := mimetype.DetectFile(canonicalPath); err == nil {
				md.MIMEType = mtype.String()
			}
		}
	}

	return md, nil
}

// ValidateSize checks the stat size against max without reading content, so
// oversized reads are rejected before any bytes enter memory.
func (p *Probe) ValidateSize(canonicalPath string, max int64) error {
	info, err := os.Stat(canonicalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("stat %s: %w", canonicalPath, types.ErrNotFound)
		}
		return fmt.Errorf("stat %s: %v", canonicalPath, err)
	}
	if max > 0 && info.Size() > max {
		return fmt.Errorf("file is %d bytes, limit %d: %w", info.Size(), max, types.ErrTooLarge)
	}
	return nil
}

// sniffBinary classifies a file as binary if any null byte appears in its
// first sniffLen bytes. Unreadable files classify as binary: content that
// cannot be inspected must not be treated as safely renderable text.
func sniffBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return true
	}
	for _, b := range buf[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}
