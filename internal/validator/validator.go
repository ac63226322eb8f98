// Package validator checks that translated chunk text is written in the
// expected target language.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/valpere/novtran/internal/detector"
)

// minValidationLength is the rune count below which detection is too
// unreliable to act on.
const minValidationLength = 20

var ErrEmpty = errors.New("translation is empty")

// Validator wraps a shared language detector.
type Validator struct {
	det    *detector.Detector
	target string
}

// New returns a Validator expecting targetLang (ISO 639-1, e.g. "zh").
func New(det *detector.Detector, targetLang string) *Validator {
	if det == nil {
		det = detector.New()
	}
	return &Validator{det: det, target: strings.ToLower(targetLang)}
}

// Check returns nil when text looks like the target language. Short or
// ambiguous texts pass; a mismatch names both languages.
func (v *Validator) Check(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmpty
	}
	if v.target == "" || len([]rune(text)) < minValidationLength {
		return nil
	}

	detected, ok := v.det.DetectISO(text)
	if !ok {
		return nil
	}
	if detected != v.target {
		return fmt.Errorf("expected %s but detected %s", v.target, detected)
	}
	return nil
}
