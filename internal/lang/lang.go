package lang

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Code is a normalized lowercase language code such as "en" or "hi".
type Code string

// Auto marks a source language that should be resolved at runtime. It is
// never handed to a backend.
const Auto Code = "auto"

func (c Code) String() string { return string(c) }

// IsAuto reports whether the code still needs resolution.
func (c Code) IsAuto() bool { return c == Auto || c == "" }

// Normalize folds a caller-supplied identifier into the short code the
// backends understand: trimmed, lowercased, BCP-47 tags reduced to their
// base ("EN-us" -> "en", "fr-CA" -> "fr"). Empty input and "auto" map to
// the Auto sentinel.
func Normalize(raw string) (Code, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || s == string(Auto) {
		return Auto, nil
	}
	if _, ok := catalog[Code(s)]; ok {
		return Code(s), nil
	}
	s = strings.ReplaceAll(s, "_", "-")
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("unrecognized language %q", raw)
	}
	base, _ := tag.Base()
	return Code(base.String()), nil
}

// Resolve picks the concrete source language for a request. First match
// wins: an explicit request code, then the detected code, then fallback.
// The result is never Auto.
func Resolve(requested, detected, fallback Code) Code {
	if !requested.IsAuto() {
		return requested
	}
	if !detected.IsAuto() {
		return detected
	}
	return fallback
}

// Same reports whether two resolved codes name the same language. Exact
// equality on normalized codes, no locale or script fuzzing; this is what
// short-circuits translation.
func Same(a, b Code) bool {
	return !a.IsAuto() && a == b
}
