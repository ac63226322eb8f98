// Package glossary keeps the per-document terminology used to translate
// names and idioms consistently across independently translated chunks.
//
// A Glossary holds three ordered categories keyed by source term. Reads
// (Format, Entries, Stats) take a shared lock; every mutation goes through
// Store, which takes the exclusive lock, persists, then publishes.
package glossary

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

type Category int

const (
	Characters Category = iota
	ProperNouns
	CulturalExpressions

	numCategories = 3
)

// Categories lists every category in display order.
var Categories = []Category{Characters, ProperNouns, CulturalExpressions}

// EmptyText is rendered in place of an empty glossary so that prompt
// templates never carry a blank terminology block.
const EmptyText = "暂无术语"

func (c Category) String() string {
	switch c {
	case Characters:
		return "characters"
	case ProperNouns:
		return "proper_nouns"
	case CulturalExpressions:
		return "cultural_expressions"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// FileName is the per-category file inside a document's glossary directory.
func (c Category) FileName() string {
	switch c {
	case Characters:
		return "character.json"
	case ProperNouns:
		return "proper_nouns.json"
	default:
		return "cultural_expressions.json"
	}
}

// Heading is the section title used when rendering for prompts.
func (c Category) Heading() string {
	switch c {
	case Characters:
		return "人物"
	case ProperNouns:
		return "专有名词"
	default:
		return "文化表达"
	}
}

// ParseCategory accepts the String form and a few short spellings.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "characters", "character", "chars", "人物":
		return Characters, nil
	case "proper_nouns", "proper-nouns", "nouns", "noun", "专有名词":
		return ProperNouns, nil
	case "cultural_expressions", "cultural-expressions", "expressions", "expression", "文化表达":
		return CulturalExpressions, nil
	}
	return 0, fmt.Errorf("unknown glossary category %q", s)
}

// Entry is one glossary term. Aliases are kept for characters only.
type Entry struct {
	Source  string   `json:"source"`
	Target  string   `json:"target,omitempty"`
	Note    string   `json:"note,omitempty"`
	Aliases []string `json:"aliases,omitempty"`
}

// Counts tallies entries per category.
type Counts struct {
	Characters          int `json:"characters"`
	ProperNouns         int `json:"proper_nouns"`
	CulturalExpressions int `json:"cultural_expressions"`
}

func (c Counts) Total() int {
	return c.Characters + c.ProperNouns + c.CulturalExpressions
}

func (c *Counts) Add(other Counts) {
	c.Characters += other.Characters
	c.ProperNouns += other.ProperNouns
	c.CulturalExpressions += other.CulturalExpressions
}

func (c *Counts) inc(cat Category) {
	switch cat {
	case Characters:
		c.Characters++
	case ProperNouns:
		c.ProperNouns++
	case CulturalExpressions:
		c.CulturalExpressions++
	}
}

// CategoryStats summarises how much of a category is translated.
type CategoryStats struct {
	Category     Category
	Total        int
	Translated   int
	Untranslated int
}

type Glossary struct {
	mu         sync.RWMutex
	documentID string
	entries    [numCategories][]Entry
	index      [numCategories]map[string]int
}

// New returns an empty glossary for documentID.
func New(documentID string) *Glossary {
	g := &Glossary{documentID: documentID}
	for i := range g.index {
		g.index[i] = make(map[string]int)
	}
	return g
}

func (g *Glossary) DocumentID() string {
	return g.documentID
}

// Entries returns a copy of one category.
func (g *Glossary) Entries(c Category) []Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Entry, len(g.entries[c]))
	for i, e := range g.entries[c] {
		out[i] = e.clone()
	}
	return out
}

// Lookup finds an entry by source term.
func (g *Glossary) Lookup(c Category, source string) (Entry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	i, ok := g.index[c][normalizeKey(source)]
	if !ok {
		return Entry{}, false
	}
	return g.entries[c][i].clone(), true
}

// Len is the total number of entries across categories.
func (g *Glossary) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := 0
	for _, es := range g.entries {
		n += len(es)
	}
	return n
}

func (g *Glossary) Stats() []CategoryStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := make([]CategoryStats, 0, numCategories)
	for _, c := range Categories {
		s := CategoryStats{Category: c, Total: len(g.entries[c])}
		for _, e := range g.entries[c] {
			if e.Target != "" {
				s.Translated++
			}
		}
		s.Untranslated = s.Total - s.Translated
		stats = append(stats, s)
	}
	return stats
}

// Format renders the glossary as a reference block for prompts. Empty
// categories are omitted; an empty glossary renders as EmptyText.
func (g *Glossary) Format() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var b strings.Builder
	for _, c := range Categories {
		if len(g.entries[c]) == 0 {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("## 术语库\n")
		}
		fmt.Fprintf(&b, "\n### %s\n", c.Heading())
		for _, e := range g.entries[c] {
			b.WriteString(formatEntry(e))
			b.WriteByte('\n')
		}
	}
	if b.Len() == 0 {
		return EmptyText
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatEntry(e Entry) string {
	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(e.Source)
	if e.Target != "" {
		b.WriteString(" → ")
		b.WriteString(e.Target)
	}
	if len(e.Aliases) > 0 {
		fmt.Fprintf(&b, " [别名: %s]", strings.Join(e.Aliases, ", "))
	}
	if e.Note != "" {
		fmt.Fprintf(&b, " (%s)", e.Note)
	}
	return b.String()
}

// reconcile applies first-write-wins: an existing entry only gains missing
// target/note values and new aliases. It reports whether e was appended as
// a new entry and whether anything changed. The caller holds the write lock
// or owns g exclusively.
func (g *Glossary) reconcile(c Category, e Entry) (added, changed bool) {
	e = e.normalized(c)
	if e.Source == "" {
		return false, false
	}
	key := normalizeKey(e.Source)

	i, ok := g.index[c][key]
	if !ok {
		g.index[c][key] = len(g.entries[c])
		g.entries[c] = append(g.entries[c], e)
		return true, true
	}

	cur := &g.entries[c][i]
	if cur.Target == "" && e.Target != "" {
		cur.Target = e.Target
		changed = true
	}
	if cur.Note == "" && e.Note != "" {
		cur.Note = e.Note
		changed = true
	}
	for _, a := range e.Aliases {
		if !containsFold(cur.Aliases, a) && normalizeKey(a) != key {
			cur.Aliases = append(cur.Aliases, a)
			changed = true
		}
	}
	return false, changed
}

// remove deletes an entry by source and rebuilds the category index.
func (g *Glossary) remove(c Category, source string) bool {
	i, ok := g.index[c][normalizeKey(source)]
	if !ok {
		return false
	}
	g.entries[c] = append(g.entries[c][:i:i], g.entries[c][i+1:]...)
	g.index[c] = make(map[string]int, len(g.entries[c]))
	for j, e := range g.entries[c] {
		g.index[c][normalizeKey(e.Source)] = j
	}
	return true
}

// cloneLocked deep-copies entries and index. The caller holds a lock.
func (g *Glossary) cloneLocked() *Glossary {
	out := New(g.documentID)
	for c := range g.entries {
		out.entries[c] = make([]Entry, len(g.entries[c]))
		for i, e := range g.entries[c] {
			out.entries[c][i] = e.clone()
		}
		for k, v := range g.index[c] {
			out.index[c][k] = v
		}
	}
	return out
}

// swapLocked publishes other's contents into g. The caller holds the
// write lock.
func (g *Glossary) swapLocked(other *Glossary) {
	g.entries = other.entries
	g.index = other.index
}

func (e Entry) clone() Entry {
	if e.Aliases != nil {
		e.Aliases = append([]string(nil), e.Aliases...)
	}
	return e
}

func (e Entry) normalized(c Category) Entry {
	out := Entry{
		Source: norm.NFC.String(strings.TrimSpace(e.Source)),
		Target: norm.NFC.String(strings.TrimSpace(e.Target)),
		Note:   strings.TrimSpace(e.Note),
	}
	if c == Characters {
		for _, a := range e.Aliases {
			a = norm.NFC.String(strings.TrimSpace(a))
			if a != "" && !containsFold(out.Aliases, a) {
				out.Aliases = append(out.Aliases, a)
			}
		}
	}
	return out
}

func normalizeKey(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
