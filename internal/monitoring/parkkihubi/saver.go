package parkkihubi

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileSaver persists a downloaded export body. Save returns the path the
// file ended up at and the number of bytes written.
type FileSaver interface {
	Save(filename string, body io.Reader) (string, int64, error)
}

// DirSaver writes exports into a single directory. It never overwrites:
// name collisions get a numeric suffix before the extension.
type DirSaver struct {
	dir string
}

// NewDirSaver creates a DirSaver rooted at dir. The directory is created
// on first save.
func NewDirSaver(dir string) *DirSaver {
	return &DirSaver{dir: dir}
}

// Save writes body under the suggested name, reduced to a safe base name
// first since it originates from a response header.
func (s *DirSaver) Save(filename string, body io.Reader) (string, int64, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", 0, fmt.Errorf("create download dir: %w", err)
	}

	f, path, err := s.create(sanitizeFilename(filename))
	if err != nil {
		return "", 0, err
	}

	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("write export file: %w", err)
	}

	return path, n, nil
}

// create opens the first free path for name inside the directory, trying
// name, then stem_1.ext, stem_2.ext and so on. O_EXCL keeps concurrent
// saves from racing onto the same path.
func (s *DirSaver) create(name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}

		path := filepath.Join(s.dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) {
			return nil, "", fmt.Errorf("create export file: %w", err)
		}
	}
}

// sanitizeFilename strips any path components from a server-suggested name.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "export.csv"
	}
	return name
}
