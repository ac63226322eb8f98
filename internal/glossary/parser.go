package glossary

import (
	"regexp"
	"strings"
)

// sectionMarkers are the accepted header spellings per category in
// glossary-update output.
var sectionMarkers = map[Category][]string{
	Characters:          {"更新人物", "人物更新"},
	ProperNouns:         {"更新专有名词", "专有名词更新"},
	CulturalExpressions: {"更新文化表达", "文化表达更新"},
}

var (
	bulletRe = regexp.MustCompile(`^(?:[-*•·]|\d+[.)、])\s*(.+)$`)

	// - SOURCE [→ TARGET] (别名: A, B)[: NOTE]
	aliasLineRe = regexp.MustCompile(`^([^:：()（）→]+?)(?:\s*(?:→|->)\s*([^:：()（）]+?))?\s*[(（]\s*别名\s*[:：]\s*([^)）]*)[)）]\s*(?:[:：]\s*(.*))?$`)

	// - SOURCE → TARGET [(REMARK)][: NOTE]
	arrowLineRe = regexp.MustCompile(`^([^→:：]+?)\s*(?:→|->)\s*([^:：()（）]+?)\s*(?:[(（]([^)）]*)[)）])?\s*(?:[:：]\s*(.*))?$`)

	// - SOURCE[: NOTE]
	plainLineRe = regexp.MustCompile(`^([^:：→]+?)\s*(?:[:：]\s*(.*))?$`)
)

// placeholders are bodies models write when they have nothing to report.
var placeholders = map[string]bool{
	"无": true, "暂无": true, "没有": true, "无新增": true, "无更新": true,
	"none": true, "n/a": true, "-": true,
}

// Parse extracts candidate entries for category from free-form model
// output. Only lines inside that category's section are considered; lines
// matching none of the accepted forms are skipped.
func Parse(raw string, category Category) []Entry {
	var out []Entry
	inSection := false

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if c, ok := headerCategory(line); ok {
			inSection = c == category
			continue
		}
		if !inSection {
			continue
		}
		m := bulletRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if e, ok := parseLine(m[1], category); ok {
			out = append(out, e)
		}
	}
	return out
}

// ParseAll runs Parse for every category.
func ParseAll(raw string) map[Category][]Entry {
	out := make(map[Category][]Entry, numCategories)
	for _, c := range Categories {
		if entries := Parse(raw, c); len(entries) > 0 {
			out[c] = entries
		}
	}
	return out
}

// headerCategory reports whether line is a recognised section header. A
// header is a markdown heading, a bold line, or a bare marker, optionally
// followed by a colon or a parenthetical.
func headerCategory(line string) (Category, bool) {
	if bulletRe.MatchString(line) && !strings.HasPrefix(line, "**") {
		return 0, false
	}
	title := strings.TrimLeft(line, "# ")
	title = strings.Trim(title, "*")
	title = strings.TrimSpace(title)
	for _, c := range Categories {
		for _, marker := range sectionMarkers[c] {
			if strings.HasPrefix(title, marker) {
				return c, true
			}
		}
	}
	return 0, false
}

func parseLine(body string, category Category) (Entry, bool) {
	body = strings.TrimSpace(body)

	var e Entry
	switch {
	case aliasLineRe.MatchString(body):
		m := aliasLineRe.FindStringSubmatch(body)
		e = Entry{Source: m[1], Target: m[2], Note: m[4]}
		if category == Characters {
			e.Aliases = splitAliases(m[3])
		}
	case arrowLineRe.MatchString(body):
		m := arrowLineRe.FindStringSubmatch(body)
		e = Entry{Source: m[1], Target: m[2], Note: joinNote(m[3], m[4])}
	case plainLineRe.MatchString(body):
		m := plainLineRe.FindStringSubmatch(body)
		e = Entry{Source: m[1], Note: m[2]}
	default:
		return Entry{}, false
	}

	e.Source = cleanTerm(e.Source)
	e.Target = cleanTerm(e.Target)
	e.Note = strings.TrimSpace(e.Note)
	if e.Source == "" || placeholders[strings.ToLower(e.Source)] {
		return Entry{}, false
	}
	return e, true
}

// joinNote folds a parenthesised remark after the target into the note.
func joinNote(remark, note string) string {
	remark, note = strings.TrimSpace(remark), strings.TrimSpace(note)
	switch {
	case remark == "":
		return note
	case note == "":
		return remark
	}
	return remark + "; " + note
}

func splitAliases(s string) []string {
	var out []string
	for _, a := range strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ',', '，', '、', ';', '；', '/':
			return true
		}
		return false
	}) {
		if a = cleanTerm(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// cleanTerm trims whitespace and inline markdown emphasis around a term.
func cleanTerm(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*`\"“”"))
}
