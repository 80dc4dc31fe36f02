package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knowbase/sales-copilot/internal/core/ports"
)

// Source lists corpus documents from a local directory. An optional links
// file maps filenames to shareable URLs so answers can point at the
// canonical copy of a document instead of the local one.
type Source struct {
	dir   string
	links map[string]string
}

func New(dir string, links map[string]string) *Source {
	if links == nil {
		links = map[string]string{}
	}
	return &Source{dir: dir, links: links}
}

func (s *Source) List(_ context.Context) ([]ports.SourceFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir %s: %w", s.dir, err)
	}

	files := make([]ports.SourceFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		files = append(files, ports.SourceFile{
			Name: name,
			Path: filepath.Join(s.dir, name),
			Link: s.links[name],
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (s *Source) Open(_ context.Context, file ports.SourceFile) (io.ReadCloser, error) {
	f, err := os.Open(file.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file.Path, err)
	}
	return f, nil
}
