package domain

import (
	"fmt"
	"strings"
)

type Lang string

const (
	LangRU Lang = "ru"
	LangEN Lang = "en"
)

// RequiredLangs lists the languages every published localized field must
// carry. Extending the platform to a new language means appending here.
var RequiredLangs = []Lang{LangRU, LangEN}

// LocalizedText maps a language code to user-facing text. Use
// NewLocalizedText for values that must satisfy the required-language
// invariant before publication.
type LocalizedText map[Lang]string

func NewLocalizedText(values map[Lang]string) (LocalizedText, error) {
	lt := LocalizedText(values)
	if err := lt.Validate(); err != nil {
		return nil, err
	}
	return lt, nil
}

// Validate reports whether every required language has a non-empty entry.
func (lt LocalizedText) Validate() error {
	for _, lang := range RequiredLangs {
		if strings.TrimSpace(lt[lang]) == "" {
			return fmt.Errorf("missing %q translation", lang)
		}
	}
	return nil
}

// Get returns the text for lang, falling back to the first required language
// that has an entry.
func (lt LocalizedText) Get(lang Lang) string {
	if s, ok := lt[lang]; ok && s != "" {
		return s
	}
	for _, l := range RequiredLangs {
		if s, ok := lt[l]; ok && s != "" {
			return s
		}
	}
	return ""
}
