// Package document maps chunk indices onto the per-document source and
// output directories.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/valpere/novtran/internal/config"
)

var (
	// ErrNoSourceDir means the document has no source directory.
	ErrNoSourceDir = errors.New("source directory not found")

	// ErrChunkNotFound means no source file carries the requested index.
	ErrChunkNotFound = errors.New("chunk not found")
)

var digitsRe = regexp.MustCompile(`\d+`)

// Workspace locates the chunk files of one document. Source files are
// <SourceDir>/*<SourceExt>, numbered by the last run of digits in their
// name; outputs are <OutputDir>/<OutputPrefix><index, 5 digits><SourceExt>.
type Workspace struct {
	DocumentID   string
	SourceDir    string
	OutputDir    string
	OutputPrefix string
	SourceExt    string
}

// Open resolves the workspace of documentID under the configured roots and
// creates its output directory.
func Open(cfg *config.Config, documentID string) (*Workspace, error) {
	w := &Workspace{
		DocumentID:   documentID,
		SourceDir:    filepath.Join(cfg.Paths.SourceRoot, documentID),
		OutputDir:    filepath.Join(cfg.Paths.OutputRoot, documentID),
		OutputPrefix: cfg.OutputPrefix,
		SourceExt:    cfg.SourceExt,
	}
	if err := w.init(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Workspace) init() error {
	if w.SourceExt == "" {
		w.SourceExt = ".md"
	}
	info, err := os.Stat(w.SourceDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNoSourceDir, w.SourceDir)
	}
	if err := os.MkdirAll(w.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}

// ChunkIndex extracts the chunk number from a file name. ok is false when
// the name carries no digits.
func ChunkIndex(name string) (int, bool) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	all := digitsRe.FindAllString(stem, -1)
	if len(all) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(all[len(all)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// sourceFiles maps chunk index to file name. When two files share an index
// the lexically first one wins.
func (w *Workspace) sourceFiles() (map[int]string, error) {
	entries, err := os.ReadDir(w.SourceDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoSourceDir, w.SourceDir)
		}
		return nil, err
	}

	files := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), w.SourceExt) {
			continue
		}
		i, ok := ChunkIndex(e.Name())
		if !ok {
			continue
		}
		if _, dup := files[i]; !dup {
			files[i] = e.Name()
		}
	}
	return files, nil
}

// ChunkIndices returns every chunk index present in the source directory in
// ascending order.
func (w *Workspace) ChunkIndices() ([]int, error) {
	files, err := w.sourceFiles()
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(files))
	for i := range files {
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

// ReadChunk returns the source text of chunk index.
func (w *Workspace) ReadChunk(index int) (string, error) {
	files, err := w.sourceFiles()
	if err != nil {
		return "", err
	}
	name, ok := files[index]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrChunkNotFound, index)
	}
	data, err := os.ReadFile(filepath.Join(w.SourceDir, name))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// OutputPath returns where the translation of chunk index is written.
func (w *Workspace) OutputPath(index int) string {
	return filepath.Join(w.OutputDir, fmt.Sprintf("%s%05d%s", w.OutputPrefix, index, w.SourceExt))
}

// WriteOutput replaces the output file of chunk index atomically.
func (w *Workspace) WriteOutput(index int, text string) (string, error) {
	path := w.OutputPath(index)
	if err := writeFileAtomic(path, []byte(text)); err != nil {
		return "", fmt.Errorf("write output for chunk %d: %w", index, err)
	}
	return path, nil
}

// Outputs lists output file names in ascending order.
func (w *Workspace) Outputs() ([]string, error) {
	entries, err := os.ReadDir(w.OutputDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, w.OutputPrefix) || !strings.HasSuffix(name, w.SourceExt) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// LatestOutput returns the most recently modified output file. ok is false
// when there are no outputs.
func (w *Workspace) LatestOutput() (path string, ok bool, err error) {
	names, err := w.Outputs()
	if err != nil {
		return "", false, err
	}
	var newest time.Time
	for _, name := range names {
		p := filepath.Join(w.OutputDir, name)
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if !ok || info.ModTime().After(newest) {
			path, newest, ok = p, info.ModTime(), true
		}
	}
	return path, ok, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
