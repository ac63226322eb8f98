package glossary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Field spellings written by earlier versions of the glossary files, in
// order of preference. Only the load path knows about them.
var (
	legacySource = []string{"source", "name", "original", "korean_name", "korean_term", "korean_expression", "japanese_name", "term"}
	legacyTarget = []string{"target", "translated", "translation", "chinese_name", "chinese_term", "chinese_expression"}
	legacyNote   = []string{"note", "description", "explanation", "definition"}
	legacyAlias  = []string{"aliases", "alias"}
)

// readCategory loads one category file. Accepted shapes: a list of
// objects, a list of bare strings, or an object keyed by source term whose
// values are target strings or entry objects.
func readCategory(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("malformed glossary file: %w", err)
		}
		entries := make([]Entry, 0, len(items))
		for _, item := range items {
			if e, ok := decodeItem(item); ok {
				entries = append(entries, e)
			}
		}
		return entries, nil

	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("malformed glossary file: %w", err)
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		entries := make([]Entry, 0, len(m))
		for _, k := range keys {
			var target string
			if err := json.Unmarshal(m[k], &target); err == nil {
				entries = append(entries, Entry{Source: k, Target: target})
				continue
			}
			e, _ := decodeItem(m[k])
			e.Source = k
			entries = append(entries, e)
		}
		return entries, nil
	}
	return nil, fmt.Errorf("malformed glossary file: unexpected %q", data[0])
}

// decodeItem maps one legacy or current record onto Entry. A bare string
// is a source term with no translation yet.
func decodeItem(raw json.RawMessage) (Entry, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Entry{Source: s}, strings.TrimSpace(s) != ""
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Entry{}, false
	}
	e := Entry{
		Source:  pickString(fields, legacySource),
		Target:  pickString(fields, legacyTarget),
		Note:    pickString(fields, legacyNote),
		Aliases: pickList(fields, legacyAlias),
	}
	return e, e.Source != ""
}

func pickString(fields map[string]any, names []string) string {
	for _, n := range names {
		if v, ok := fields[n].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func pickList(fields map[string]any, names []string) []string {
	for _, n := range names {
		switch v := fields[n].(type) {
		case string:
			if list := splitAliases(v); len(list) > 0 {
				return list
			}
		case []any:
			var list []string
			for _, item := range v {
				if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
					list = append(list, strings.TrimSpace(s))
				}
			}
			if len(list) > 0 {
				return list
			}
		}
	}
	return nil
}
