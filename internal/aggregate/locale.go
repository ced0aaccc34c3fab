package aggregate

import "time"

// Locale selects the month names used in monthly labels.
type Locale string

const (
	LocalePtBR Locale = "pt-BR"
	LocaleEn   Locale = "en"

	DefaultLocale = LocalePtBR
)

var monthAbbrevs = map[Locale][12]string{
	LocalePtBR: {"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"},
	LocaleEn:   {"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
}

// ValidLocale reports whether l has month names.
func ValidLocale(l Locale) bool {
	_, ok := monthAbbrevs[l]
	return ok
}

// MonthAbbrev returns the 3-letter month name, falling back to the default locale.
func (l Locale) MonthAbbrev(m time.Month) string {
	names, ok := monthAbbrevs[l]
	if !ok {
		names = monthAbbrevs[DefaultLocale]
	}
	return names[m-1]
}
