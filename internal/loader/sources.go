package loader

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// MaxDocumentSize caps a single run document read from an archive (64MB).
const MaxDocumentSize = 64 * 1024 * 1024

// DirSources returns one Source per *.json file under root, sorted by path.
// The run ID is the file's base name.
func DirSources(root string) ([]Source, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".json") {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(paths)

	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, Source{
			ID:   filepath.Base(p),
			Read: func() ([]byte, error) { return os.ReadFile(p) },
		})
	}
	return sources, nil
}

// ZipSources reads every *.json member of a ZIP archive into memory and
// returns one Source per member, sorted by member name.
func ZipSources(archive string) ([]Source, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer zr.Close()

	var sources []Source
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(path.Ext(f.Name), ".json") {
			continue
		}
		// macOS archives carry AppleDouble shadows of every file.
		if strings.HasPrefix(path.Base(f.Name), "._") {
			continue
		}

		id := path.Base(f.Name)
		data, rerr := readMember(f)
		sources = append(sources, Source{
			ID: id,
			Read: func() ([]byte, error) {
				return data, rerr
			},
		})
	}
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })
	return sources, nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxDocumentSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("member exceeds %d bytes", MaxDocumentSize)
	}
	return data, nil
}

// Sources picks DirSources or ZipSources based on what input points at.
func Sources(input string) ([]Source, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return DirSources(input)
	}
	if strings.EqualFold(filepath.Ext(input), ".zip") {
		return ZipSources(input)
	}
	if strings.EqualFold(filepath.Ext(input), ".json") {
		return []Source{{
			ID:   filepath.Base(input),
			Read: func() ([]byte, error) { return os.ReadFile(input) },
		}}, nil
	}
	return nil, fmt.Errorf("unsupported input %s: want a directory, .zip or .json", input)
}
