package domain

import (
	"fmt"
	"strings"
)

// Locale selects the language used for derived, human-readable strings.
type Locale string

// Supported locales.
const (
	LocaleEnglish    Locale = "en"
	LocalePortuguese Locale = "pt"
)

// nouns holds the singular/plural noun and the "x of y" connector for a locale.
type nouns struct {
	singular string
	plural   string
	of       string
}

var localeNouns = map[Locale]nouns{
	LocaleEnglish:    {singular: "quote", plural: "quotes", of: "of"},
	LocalePortuguese: {singular: "citação", plural: "citações", of: "de"},
}

// ParseLocale converts a config value into a Locale.
// Unknown values fall back to English.
func ParseLocale(s string) Locale {
	l := Locale(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := localeNouns[l]; ok {
		return l
	}

	return LocaleEnglish
}

// Statistics describes how many quotes are visible.
//
//	Statistics(LocaleEnglish, 2, 2)    == "2 quotes"
//	Statistics(LocaleEnglish, 1, 1)    == "1 quote"
//	Statistics(LocalePortuguese, 1, 2) == "1 de 2 citações"
//
// The singular noun is used only when the count is exactly 1. When the counts
// differ the noun agrees with the total.
func Statistics(locale Locale, filteredCount, totalCount int) string {
	n, ok := localeNouns[locale]
	if !ok {
		n = localeNouns[LocaleEnglish]
	}

	noun := n.plural
	if totalCount == 1 {
		noun = n.singular
	}

	if filteredCount == totalCount {
		return fmt.Sprintf("%d %s", totalCount, noun)
	}

	return fmt.Sprintf("%d %s %d %s", filteredCount, n.of, totalCount, noun)
}
