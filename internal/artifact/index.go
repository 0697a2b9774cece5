package artifact

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/sheenhq/workspace-gateway/internal/guard"
	"github.com/sheenhq/workspace-gateway/internal/shared/types"
)

// indexTree walks an extracted artifact tree and builds its file index.
// Dotfiles, VCS/build-tool directories, and symlinks are skipped entirely;
// the walk stops once maxEntries is reached. Paths in the index are relative
// slash paths within the tree.
func indexTree(root string, maxEntries int) ([]types.FileMetadata, error) {
	skipDirs := guard.SkippedIndexDirs()

	// fastwalk invokes the callback from multiple goroutines.
	var mu sync.Mutex
	var files []types.FileMetadata

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if path == root {
			return nil
		}
		mu.Lock()
		full := maxEntries > 0 && len(files) >= maxEntries
		mu.Unlock()
		if full {
			return filepath.SkipAll
		}

		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") || skipDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		mu.Lock()
		files = append(files, types.FileMetadata{
			Name:      name,
			Path:      filepath.ToSlash(rel),
			Size:      info.Size(),
			IsDir:     false,
			Modified:  info.ModTime(),
			Extension: filepath.Ext(name),
		})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	if maxEntries > 0 && len(files) > maxEntries {
		files = files[:maxEntries]
	}
	return files, nil
}
