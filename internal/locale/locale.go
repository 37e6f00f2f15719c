// Package locale resolves the user-facing language and holds the message
// catalog for the two supported locales.
package locale

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	English    = "en"
	Indonesian = "id"
)

var (
	supported = []language.Tag{language.English, language.Indonesian}
	matcher   = language.NewMatcher(supported)
)

// Match picks the best supported locale for an Accept-Language style value.
// It returns "" when nothing in the header matches.
func Match(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return ""
	}
	return code(supported[idx])
}

// Normalize maps any tag onto a supported locale, defaulting to English.
func Normalize(v string) string {
	if m := Match(v); m != "" {
		return m
	}
	return English
}

// ForCountry returns the locale spoken by default in an ISO country.
func ForCountry(country string) string {
	if strings.EqualFold(country, "ID") {
		return Indonesian
	}
	return English
}

// Printer returns a message printer for locale.
func Printer(locale string) *message.Printer {
	if locale == Indonesian {
		return message.NewPrinter(language.Indonesian)
	}
	return message.NewPrinter(language.English)
}

func code(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}
