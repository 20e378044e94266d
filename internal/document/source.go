package document

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Source lists bid files and makes them available on local disk.
type Source interface {
	// List returns supported file names in sorted order.
	List(ctx context.Context) ([]string, error)
	// Fetch returns a local path for name. cleanup removes any temporary
	// copy and must always be called.
	Fetch(ctx context.Context, name string) (localPath string, cleanup func(), err error)
	// String describes the location for logs and run records.
	String() string
}

// NewSource picks a Source for location: ftp:// URLs use FTP, anything else
// is a local directory.
func NewSource(location string) (Source, error) {
	if strings.HasPrefix(strings.ToLower(location), "ftp://") {
		return NewFTPSource(location, FTPOptions{})
	}
	return NewDirSource(location)
}

// DirSource reads bid files from a local folder, non-recursively.
type DirSource struct {
	dir string
}

// NewDirSource creates a DirSource after checking dir exists.
func NewDirSource(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "document: open source %s", dir)
	}
	if !info.IsDir() {
		return nil, eris.Errorf("document: source %s is not a directory", dir)
	}
	return &DirSource{dir: dir}, nil
}

// List returns supported files in the folder. Subdirectories are skipped.
func (s *DirSource) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "document: list %s", s.dir)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Fetch returns the file's path in place.
func (s *DirSource) Fetch(_ context.Context, name string) (string, func(), error) {
	p := filepath.Join(s.dir, filepath.Base(name))
	if _, err := os.Stat(p); err != nil {
		return "", func() {}, eris.Wrapf(err, "document: fetch %s", name)
	}
	return p, func() {}, nil
}

func (s *DirSource) String() string {
	return s.dir
}
