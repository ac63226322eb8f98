// Package detector identifies the language of a text sample. The set of
// candidate languages is kept small: a novel is either Korean or Japanese
// source, or Chinese (or stray English) output.
package detector

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// DefaultLanguages are the candidates used when New is called without any.
var DefaultLanguages = []lingua.Language{
	lingua.Korean,
	lingua.Japanese,
	lingua.Chinese,
	lingua.English,
}

type Detector struct {
	detector lingua.LanguageDetector
}

// New builds a detector restricted to langs. Building is expensive; reuse
// the instance.
func New(langs ...lingua.Language) *Detector {
	if len(langs) == 0 {
		langs = DefaultLanguages
	}
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(langs...).
		Build()

	return &Detector{detector: detector}
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if strings.TrimSpace(text) == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

// DetectISO returns the lower-case ISO 639-1 code of the detected language.
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// SourceLanguage picks the chunker language for a source sample: "ja" for
// Japanese, "zh" for Chinese, and "ko" for everything else.
func (d *Detector) SourceLanguage(sample string) string {
	code, ok := d.DetectISO(sample)
	if !ok {
		return "ko"
	}
	switch code {
	case "ja", "zh":
		return code
	}
	return "ko"
}
