package document

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/valpere/novtran/internal"
)

// ManifestName is the file WriteSplit writes next to the chunk files.
const ManifestName = "index.yaml"

// Manifest describes a split document.
type Manifest struct {
	Source    string          `yaml:"source"`
	Language  string          `yaml:"language"`
	MaxChars  int             `yaml:"max_chars"`
	CreatedAt time.Time       `yaml:"created_at"`
	Chunks    []ManifestChunk `yaml:"chunks"`
}

type ManifestChunk struct {
	Index int    `yaml:"index"`
	File  string `yaml:"file"`
	Runes int    `yaml:"runes"`
}

// SplitFileName returns the name of chunk index of a split document.
func SplitFileName(base string, index int) string {
	return fmt.Sprintf("%s_%03d.md", base, index)
}

// WriteSplit writes each chunk to <dir>/<base>_NNN.md and the manifest to
// <dir>/index.yaml, returning the completed manifest.
func WriteSplit(dir, base string, chunks []internal.Chunk, m Manifest) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk directory: %w", err)
	}

	m.Chunks = m.Chunks[:0]
	for _, c := range chunks {
		name := SplitFileName(base, c.Index)
		if err := writeFileAtomic(filepath.Join(dir, name), []byte(c.Text)); err != nil {
			return nil, fmt.Errorf("write chunk %d: %w", c.Index, err)
		}
		m.Chunks = append(m.Chunks, ManifestChunk{
			Index: c.Index,
			File:  name,
			Runes: utf8.RuneCountInString(c.Text),
		})
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(filepath.Join(dir, ManifestName), data); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return &m, nil
}

// ReadManifest loads the manifest written by WriteSplit.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestName, err)
	}
	return &m, nil
}
