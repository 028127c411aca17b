package stencil

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter applies :format suffixes using the conventions of one locale
type Formatter struct {
	tag     language.Tag
	printer *message.Printer
}

// NewFormatter creates a formatter for a BCP-47 locale. Unparsable locales fall back to en-US.
func NewFormatter(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.AmericanEnglish
	}
	return &Formatter{tag: tag, printer: message.NewPrinter(tag)}
}

// Format renders v using format. When format does not apply to the value, the
// default stringification is used.
func (f *Formatter) Format(v Value, format string) string {
	format = strings.TrimSpace(format)
	if format == "" {
		return v.String()
	}

	switch strings.ToLower(format) {
	case "upper":
		return strings.ToUpper(v.String())
	case "lower":
		return strings.ToLower(v.String())
	case "trim":
		return strings.TrimSpace(v.String())
	}

	if isDatePattern(format) {
		if t, ok := asTime(v.Interface()); ok {
			return t.Format(dateLayout(format))
		}
	}

	if n, ok := toFloat(v.Interface()); ok {
		if s, ok := f.formatNumber(n, format); ok {
			return s
		}
	}
	return v.String()
}

// formatNumber handles N<d>, F<d>, P<d>, D and C [ISO]
func (f *Formatter) formatNumber(n float64, format string) (string, bool) {
	spec, code, _ := strings.Cut(format, " ")
	letter := unicode.ToUpper(rune(spec[0]))
	digits := -1
	if len(spec) > 1 {
		d, err := strconv.Atoi(spec[1:])
		if err != nil || d < 0 || d > 15 {
			return "", false
		}
		digits = d
	}
	scale := func(def int) number.Option {
		if digits < 0 {
			return number.Scale(def)
		}
		return number.Scale(digits)
	}

	switch letter {
	case 'N':
		return f.printer.Sprintf("%v", number.Decimal(n, scale(2))), true
	case 'F':
		return f.printer.Sprintf("%v", number.Decimal(n, scale(2), number.NoSeparator())), true
	case 'P':
		return f.printer.Sprintf("%v", number.Percent(n, scale(0))), true
	case 'D':
		return f.printer.Sprintf("%v", number.Decimal(n, number.Scale(0), number.NoSeparator())), true
	case 'C':
		unit, _ := currency.FromTag(f.tag)
		if code = strings.TrimSpace(code); code != "" {
			parsed, err := currency.ParseISO(code)
			if err != nil {
				return "", false
			}
			unit = parsed
		}
		// precision comes from the currency, digits are ignored
		return f.printer.Sprintf("%v", currency.Symbol(unit.Amount(n))), true
	}
	return "", false
}

// toFloat converts numeric host values
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// commonDateFormats are tried when a date pattern is applied to a string
var commonDateFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"01/02/2006 15:04:05",
	"2006/01/02",
	"02.01.2006",
	"2.1.2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// asTime returns v as a time when it is one or parses as a date string
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	case string:
		for _, layout := range commonDateFormats {
			if parsed, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func isDatePattern(format string) bool {
	for _, tok := range []string{"yy", "dd", "MM", "HH", "mm"} {
		if strings.Contains(format, tok) {
			return true
		}
	}
	return false
}

// dateTokens maps template date tokens to Go layout elements, longest first
var dateTokens = []struct{ token, layout string }{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"M", "1"},
	{"dddd", "Monday"},
	{"ddd", "Mon"},
	{"dd", "02"},
	{"d", "2"},
	{"HH", "15"},
	{"hh", "03"},
	{"h", "3"},
	{"mm", "04"},
	{"m", "4"},
	{"ss", "05"},
	{"s", "5"},
	{"tt", "PM"},
}

// dateLayout translates a pattern such as "dd.MM.yyyy HH:mm" to a Go layout
func dateLayout(pattern string) string {
	var sb strings.Builder
	for i := 0; i < len(pattern); {
		matched := false
		for _, dt := range dateTokens {
			if strings.HasPrefix(pattern[i:], dt.token) {
				sb.WriteString(dt.layout)
				i += len(dt.token)
				matched = true
				break
			}
		}
		if !matched {
			sb.WriteByte(pattern[i])
			i++
		}
	}
	return sb.String()
}
