package fs

import (
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"biorag/internal/port"
)

// Walker lists the source documents under a root directory. Paths are
// matched relative to the root with doublestar patterns.
type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*.pdf", "**/*.txt"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

// Walk returns matching files sorted by path. A root naming a single file is
// returned as is, without pattern matching.
func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", root, err)
	}
	if !info.IsDir() {
		return []port.FileInfo{toFileInfo(root, info)}, nil
	}

	var files []port.FileInfo

	err = filepath.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && w.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !w.shouldInclude(relPath) || w.shouldExclude(relPath) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, toFileInfo(path, info))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}

func toFileInfo(path string, info os.FileInfo) port.FileInfo {
	return port.FileInfo{
		Path:    path,
		ModTime: info.ModTime().UnixNano(),
		Size:    info.Size(),
	}
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
