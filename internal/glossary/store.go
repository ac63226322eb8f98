package glossary

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/novtran/internal/logging"
)

// Store persists glossaries as three JSON files per document under dir.
// Files directly in dir act as the global defaults used to seed a new
// document.
type Store struct {
	dir    string
	logger *zap.Logger
}

func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{dir: dir, logger: logging.OrNop(logger)}
}

// DocumentDir is where a document's category files live.
func (s *Store) DocumentDir(documentID string) string {
	return filepath.Join(s.dir, documentID)
}

func (s *Store) path(documentID string, c Category) string {
	return filepath.Join(s.DocumentDir(documentID), c.FileName())
}

func (s *Store) defaultPath(c Category) string {
	return filepath.Join(s.dir, c.FileName())
}

// Load reads a document's glossary. A missing category file is seeded
// from the global default (or left empty) and written back at once; an
// unreadable or malformed file is renamed to <file>.corrupt-<unixms> and
// the category starts empty.
func (s *Store) Load(documentID string) (*Glossary, error) {
	if documentID == "" {
		return nil, errors.New("document id is required")
	}
	if err := os.MkdirAll(s.DocumentDir(documentID), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create glossary directory: %w", err)
	}

	g := New(documentID)
	seeded := false
	for _, c := range Categories {
		path := s.path(documentID, c)
		entries, err := readCategory(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			entries = s.seed(c)
			seeded = true
		case err != nil:
			backup, merr := moveAside(path)
			if merr != nil {
				return nil, fmt.Errorf("glossary file %s is unreadable (%v) and could not be moved aside: %w", path, err, merr)
			}
			s.logger.Warn("glossary file unreadable, starting empty",
				zap.String("document", documentID),
				zap.String("file", path),
				zap.String("backup", backup),
				zap.Error(err))
			entries = nil
			seeded = true
		}
		for _, e := range entries {
			g.reconcile(c, e)
		}
	}

	if seeded {
		if err := s.write(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// moveAside renames path out of the way so a later write cannot replace
// its contents.
func moveAside(path string) (string, error) {
	backup := fmt.Sprintf("%s.corrupt-%d", path, time.Now().UnixMilli())
	if err := os.Rename(path, backup); err != nil {
		return "", err
	}
	return backup, nil
}

func (s *Store) seed(c Category) []Entry {
	path := s.defaultPath(c)
	entries, err := readCategory(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("default glossary unreadable, ignoring",
				zap.String("file", path), zap.Error(err))
		}
		return nil
	}
	s.logger.Debug("seeding glossary from defaults",
		zap.String("category", c.String()), zap.Int("entries", len(entries)))
	return entries
}

// Save persists g as it currently stands.
func (s *Store) Save(g *Glossary) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return s.write(g)
}

// MergeSuggestions parses raw model output and reconciles it into g. The
// merge runs on a copy under g's write lock; the copy is persisted and only
// then published, so a failed write leaves g untouched.
func (s *Store) MergeSuggestions(g *Glossary, raw string) (Counts, error) {
	candidates := ParseAll(raw)
	if len(candidates) == 0 {
		s.logger.Info("no glossary suggestions recognised", zap.String("document", g.documentID))
		return Counts{}, nil
	}

	return s.apply(g, func(w *Glossary) (Counts, bool) {
		var counts Counts
		changed := false
		for _, c := range Categories {
			for _, e := range candidates[c] {
				added, ch := w.reconcile(c, e)
				if added {
					counts.inc(c)
				}
				changed = changed || ch
			}
		}
		return counts, changed
	})
}

// Add inserts or completes a single entry under the same rules as a merge.
func (s *Store) Add(g *Glossary, c Category, e Entry) (bool, error) {
	counts, err := s.apply(g, func(w *Glossary) (Counts, bool) {
		var counts Counts
		added, changed := w.reconcile(c, e)
		if added {
			counts.inc(c)
		}
		return counts, changed
	})
	return counts.Total() > 0, err
}

// Remove deletes the entry keyed by source.
func (s *Store) Remove(g *Glossary, c Category, source string) (bool, error) {
	removed := false
	_, err := s.apply(g, func(w *Glossary) (Counts, bool) {
		removed = w.remove(c, source)
		return Counts{}, removed
	})
	return removed && err == nil, err
}

func (s *Store) apply(g *Glossary, fn func(w *Glossary) (Counts, bool)) (Counts, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	work := g.cloneLocked()
	counts, changed := fn(work)
	if !changed {
		return counts, nil
	}
	if err := s.write(work); err != nil {
		return Counts{}, err
	}
	g.swapLocked(work)
	return counts, nil
}

// write stages every category in a temp file before renaming any of them,
// so a failure while encoding or writing leaves the old files in place.
func (s *Store) write(g *Glossary) error {
	dir := s.DocumentDir(g.documentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create glossary directory: %w", err)
	}

	temps := make(map[Category]string, numCategories)
	cleanup := func() {
		for _, t := range temps {
			os.Remove(t)
		}
	}

	for _, c := range Categories {
		entries := g.entries[c]
		if entries == nil {
			entries = []Entry{}
		}
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			cleanup()
			return fmt.Errorf("failed to encode %s: %w", c, err)
		}
		tmp, err := writeTemp(dir, c.FileName(), data)
		if err != nil {
			cleanup()
			return fmt.Errorf("failed to write %s: %w", c, err)
		}
		temps[c] = tmp
	}

	for _, c := range Categories {
		if err := os.Rename(temps[c], s.path(g.documentID, c)); err != nil {
			cleanup()
			return fmt.Errorf("failed to replace %s: %w", c, err)
		}
		delete(temps, c)
	}
	return nil
}

func writeTemp(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
