package builder

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxSlugName bounds the name slice embedded in a slug
const maxSlugName = 48

// Slug derives the stable identifier for an event record. It is a pure
// function of (name, start, end): ISO start date, a -HHMM time component
// when the event genuinely spans multiple days, and an ascii-folded,
// hyphenated slice of the name.
func Slug(name string, start time.Time, end *time.Time) string {
	var b strings.Builder
	b.WriteString(start.Format("2006-01-02"))
	if end != nil && multiDay(start, *end) {
		b.WriteString(start.Format("-1504"))
	}
	b.WriteString("-")
	b.WriteString(slugify(name))
	return b.String()
}

// multiDay reports whether the event spans calendar days for real: the
// end falls on a later calendar day AND more than 12 hours after the
// start. A same-day evening event that overruns past midnight does not
// count.
func multiDay(start, end time.Time) bool {
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	sameDay := sy == ey && sm == em && sd == ed
	return !sameDay && end.Sub(start) > 12*time.Hour
}

var germanFolds = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss",
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func slugify(name string) string {
	s := germanFolds.Replace(name)
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	lastHyphen := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
		if b.Len() >= maxSlugName {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}
