// Package prompt loads the translation and glossary-update templates and
// fills their placeholders.
package prompt

import (
	"fmt"
	"os"
	"strings"
)

const (
	SourceText  = "{source_text}"
	Terminology = "{terminology}"
	TargetText  = "{target_text}"
)

// Placeholder spellings from older template files.
var legacyPlaceholders = map[string]string{
	"{korean_text}":  SourceText,
	"{chinese_text}": TargetText,
}

type Templates struct {
	translate string
	update    string
}

// Load reads both templates. Either file missing is an error: nothing can be
// translated without them.
func Load(translatePath, updatePath string) (*Templates, error) {
	translate, err := readTemplate(translatePath)
	if err != nil {
		return nil, err
	}
	update, err := readTemplate(updatePath)
	if err != nil {
		return nil, err
	}
	return New(translate, update)
}

// New builds Templates from in-memory text. The translation template must
// reference the source text; the update template must reference both the
// source and the translated text.
func New(translate, update string) (*Templates, error) {
	translate = upgrade(translate)
	update = upgrade(update)

	if !strings.Contains(translate, SourceText) {
		return nil, fmt.Errorf("translation template has no %s placeholder", SourceText)
	}
	if !strings.Contains(update, SourceText) || !strings.Contains(update, TargetText) {
		return nil, fmt.Errorf("glossary update template needs %s and %s", SourceText, TargetText)
	}
	return &Templates{translate: translate, update: update}, nil
}

func readTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt template %s: %w", path, err)
	}
	return string(data), nil
}

func upgrade(tmpl string) string {
	for old, cur := range legacyPlaceholders {
		tmpl = strings.ReplaceAll(tmpl, old, cur)
	}
	return tmpl
}

// Translation fills the translation template.
func (t *Templates) Translation(source, terminology string) string {
	return strings.NewReplacer(
		Terminology, terminology,
		SourceText, source,
	).Replace(t.translate)
}

// GlossaryUpdate fills the glossary-update template.
func (t *Templates) GlossaryUpdate(source, target, terminology string) string {
	return strings.NewReplacer(
		Terminology, terminology,
		SourceText, source,
		TargetText, target,
	).Replace(t.update)
}
