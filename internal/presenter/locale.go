// Package presenter formats amounts, dates, and durations for human-facing summaries.
package presenter

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Locale holds resolved formatting conventions for dates and numbers.
type Locale struct {
	tag     language.Tag
	printer *message.Printer
}

// DetectLocale resolves the user's locale from LC_ALL, LC_NUMERIC, then LANG.
// Falls back to en-US if nothing is set or parseable.
func DetectLocale() Locale {
	for _, key := range []string{"LC_ALL", "LC_NUMERIC", "LANG"} {
		if raw := os.Getenv(key); raw != "" {
			return NewLocale(raw)
		}
	}
	return NewLocale("")
}

// NewLocale creates a Locale from a POSIX locale string (e.g. "de_DE.UTF-8")
// or BCP 47 tag (e.g. "de-DE"). Returns en-US for empty or unparseable input.
func NewLocale(raw string) Locale {
	if idx := strings.IndexByte(raw, '.'); idx != -1 {
		raw = raw[:idx]
	}
	raw = strings.ReplaceAll(raw, "_", "-")

	tag, _ := language.Parse(raw)
	if tag == language.Und || raw == "C" || raw == "POSIX" {
		tag = language.AmericanEnglish
	}

	return Locale{
		tag:     tag,
		printer: message.NewPrinter(tag),
	}
}

// Tag returns the resolved language tag.
func (l Locale) Tag() language.Tag {
	return l.tag
}

// FormatNumber formats v with locale grouping and at most two decimals.
func (l Locale) FormatNumber(v float64) string {
	if v == float64(int64(v)) {
		return l.printer.Sprint(number.Decimal(int64(v)))
	}
	return l.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}

// FormatAmount formats a monetary amount with exactly two decimals followed
// by the upper-cased currency code: "1,234.50 USD".
func (l Locale) FormatAmount(v float64, currency string) string {
	s := l.printer.Sprint(number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	if currency == "" {
		return s
	}
	return s + " " + strings.ToUpper(currency)
}

// FormatOdds formats decimal betting odds with up to three decimals.
func (l Locale) FormatOdds(v float64) string {
	return l.printer.Sprint(number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(3)))
}

// FormatTime formats t as a locale-ordered date followed by a 24h clock time.
func (l Locale) FormatTime(t time.Time) string {
	return t.Format(l.dateLayout() + " 15:04:05")
}

// FormatUntil describes how far away t is from now, e.g. "in 50m" or "now".
func FormatUntil(t, now time.Time) string {
	d := t.Sub(now).Round(time.Second)
	switch {
	case d <= 0:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("in %ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	default:
		h := int(d.Hours())
		m := int(d.Minutes()) - h*60
		if m == 0 {
			return fmt.Sprintf("in %dh", h)
		}
		return fmt.Sprintf("in %dh%dm", h, m)
	}
}

func (l Locale) dateLayout() string {
	region, _ := l.tag.Region()
	if layout, ok := dateLayouts[region.String()]; ok {
		return layout
	}

	base, _ := l.tag.Base()
	if layout, ok := dateLayoutsByLang[base.String()]; ok {
		return layout
	}

	return layoutMDY
}

// Date layouts using Go's reference time.
const (
	layoutMDY    = "Jan 2, 2006"
	layoutDMY    = "2 Jan 2006"
	layoutYMD    = "2006-01-02"
	layoutDMYDot = "2. Jan 2006"
)

var dateLayouts = map[string]string{
	"US": layoutMDY,
	"PH": layoutMDY,

	"GB": layoutDMY,
	"AU": layoutDMY,
	"NZ": layoutDMY,
	"IE": layoutDMY,
	"IN": layoutDMY,
	"FR": layoutDMY,
	"ES": layoutDMY,
	"IT": layoutDMY,
	"BR": layoutDMY,
	"NL": layoutDMY,
	"MX": layoutDMY,
	"TR": layoutDMY,
	"SE": layoutDMY,

	"DE": layoutDMYDot,
	"AT": layoutDMYDot,
	"CH": layoutDMYDot,

	"JP": layoutYMD,
	"CN": layoutYMD,
	"KR": layoutYMD,
	"CA": layoutYMD,
}

var dateLayoutsByLang = map[string]string{
	"en": layoutMDY,
	"de": layoutDMYDot,
	"fr": layoutDMY,
	"es": layoutDMY,
	"it": layoutDMY,
	"pt": layoutDMY,
	"ja": layoutYMD,
	"zh": layoutYMD,
	"ko": layoutYMD,
}
