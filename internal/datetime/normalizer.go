// Package datetime turns free-form Spanish date/time text into instants in a
// fixed local timezone.
//
// Resolution order (first match wins):
//
//  1. absolute date plus time ("2025-06-10 15:00", "10/06/2025 3pm", "10 de junio a las 15:30")
//  2. absolute date only, at 00:00 unless a time token appears elsewhere
//  3. relative day keyword (hoy, mañana, pasado mañana) plus any time token
//  4. bare time, applied to the current local day
package datetime

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/soyeahso/agendabot/internal/textfold"
)

// Layout is the display format used in summaries and notifications.
const Layout = "2006-01-02 15:04"

var months = map[string]time.Month{
	"enero": time.January, "febrero": time.February, "marzo": time.March,
	"abril": time.April, "mayo": time.May, "junio": time.June,
	"julio": time.July, "agosto": time.August, "septiembre": time.September,
	"setiembre": time.September, "octubre": time.October,
	"noviembre": time.November, "diciembre": time.December,
}

var (
	isoDateRe   = regexp.MustCompile(`\b(\d{4})[-/](\d{1,2})[-/](\d{1,2})t?`)
	slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	longDateRe  = regexp.MustCompile(`\b(\d{1,2})\s+de\s+(enero|febrero|marzo|abril|mayo|junio|julio|agosto|septiembre|setiembre|octubre|noviembre|diciembre)(?:\s+(?:de|del)\s+(\d{4}))?`)

	clockRe    = regexp.MustCompile(`\b(\d{1,2}):(\d{2})(?:\s*(am|pm)\b)?`)
	meridiemRe = regexp.MustCompile(`\b(\d{1,2})\s*(am|pm)\b`)
	hoursRe    = regexp.MustCompile(`\b(\d{1,2})\s*(?:h|hs|hrs|horas)\b`)
	aLasRe     = regexp.MustCompile(`\b(?:a\s+)?las?\s+(\d{1,2})\b`)

	amPhraseRe = regexp.MustCompile(`de\s+la\s+(manana|madrugada)`)
	pmPhraseRe = regexp.MustCompile(`de\s+la\s+(tarde|noche)`)

	pasadoRe = regexp.MustCompile(`\bpasado\s+manana\b`)
	mananaRe = regexp.MustCompile(`\bmanana\b`)
	hoyRe    = regexp.MustCompile(`\bhoy\b`)
)

// Normalizer resolves date/time text against a clock in a fixed location.
type Normalizer struct {
	loc *time.Location
	now func() time.Time
}

// New creates a Normalizer. A nil loc means time.Local; a nil now means time.Now.
func New(loc *time.Location, now func() time.Time) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Normalizer{loc: loc, now: now}
}

// Location returns the normalizer's timezone.
func (n *Normalizer) Location() *time.Location { return n.loc }

// Now returns the current instant in the normalizer's timezone.
func (n *Normalizer) Now() time.Time { return n.now().In(n.loc) }

// Normalize parses text into an instant. The boolean is false when nothing in
// the text could be read as a date or time; Normalize never panics.
func (n *Normalizer) Normalize(text string) (time.Time, bool) {
	s := prepare(text)
	if s == "" {
		return time.Time{}, false
	}
	now := n.Now()

	if y, m, d, rest, ok := findDate(s, now.Year()); ok {
		h, min, found, valid := findTime(rest)
		if found && !valid {
			return time.Time{}, false
		}
		return n.build(y, m, d, h, min)
	}

	if days, rest, ok := findRelative(s); ok {
		h, min, found, valid := findTime(rest)
		if found && !valid {
			return time.Time{}, false
		}
		base := now.AddDate(0, 0, days)
		return n.build(base.Year(), base.Month(), base.Day(), h, min)
	}

	if h, min, found, valid := findTime(s); found {
		if !valid {
			return time.Time{}, false
		}
		return n.build(now.Year(), now.Month(), now.Day(), h, min)
	}

	return time.Time{}, false
}

// ParseRange resolves a day or a span of days into a half-open range
// [from, to) of local midnights. Accepts "del X al Y", "X hasta Y" and any
// single expression Normalize understands.
func (n *Normalizer) ParseRange(text string) (from, to time.Time, ok bool) {
	s := prepare(text)
	for _, sep := range []string{" hasta el ", " hasta ", " al "} {
		i := strings.Index(s, sep)
		if i < 0 {
			continue
		}
		a, okA := n.Normalize(s[:i])
		b, okB := n.Normalize(s[i+len(sep):])
		if okA && okB {
			from = StartOfDay(a)
			to = StartOfDay(b).AddDate(0, 0, 1)
			if to.After(from) {
				return from, to, true
			}
		}
	}

	t, ok := n.Normalize(s)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	from = StartOfDay(t)
	return from, from.AddDate(0, 0, 1), true
}

// StartOfDay returns local midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (n *Normalizer) build(y int, m time.Month, d, h, min int) (time.Time, bool) {
	t := time.Date(y, m, d, h, min, 0, 0, n.loc)
	if t.Year() != y || t.Month() != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// prepare folds the text and rewrites meridiem spellings to plain am/pm.
func prepare(text string) string {
	s := textfold.Fold(text)
	s = strings.NewReplacer("a.m.", "am", "p.m.", "pm", "a. m.", "am", "p. m.", "pm").Replace(s)
	s = amPhraseRe.ReplaceAllString(s, " am")
	s = pmPhraseRe.ReplaceAllString(s, " pm")
	return s
}

// findDate looks for an absolute date and returns the text with the date removed.
func findDate(s string, currentYear int) (y int, m time.Month, d int, rest string, ok bool) {
	if loc := isoDateRe.FindStringSubmatchIndex(s); loc != nil {
		y = atoi(s[loc[2]:loc[3]])
		m = time.Month(atoi(s[loc[4]:loc[5]]))
		d = atoi(s[loc[6]:loc[7]])
		return y, m, d, cut(s, loc), true
	}
	if loc := longDateRe.FindStringSubmatchIndex(s); loc != nil {
		d = atoi(s[loc[2]:loc[3]])
		m = months[s[loc[4]:loc[5]]]
		y = currentYear
		if loc[6] >= 0 {
			y = atoi(s[loc[6]:loc[7]])
		}
		return y, m, d, cut(s, loc), true
	}
	if loc := slashDateRe.FindStringSubmatchIndex(s); loc != nil {
		d = atoi(s[loc[2]:loc[3]])
		m = time.Month(atoi(s[loc[4]:loc[5]]))
		y = currentYear
		if loc[6] >= 0 {
			y = atoi(s[loc[6]:loc[7]])
			if y < 100 {
				y += 2000
			}
		}
		return y, m, d, cut(s, loc), true
	}
	return 0, 0, 0, s, false
}

func findRelative(s string) (days int, rest string, ok bool) {
	if loc := pasadoRe.FindStringIndex(s); loc != nil {
		return 2, cut(s, loc), true
	}
	// "manana" left over after prepare() is the relative day, not the morning.
	if loc := mananaRe.FindStringIndex(s); loc != nil {
		return 1, cut(s, loc), true
	}
	if loc := hoyRe.FindStringIndex(s); loc != nil {
		return 0, cut(s, loc), true
	}
	return 0, s, false
}

// findTime looks for a clock token. found reports a token was present; valid
// reports it describes a real wall-clock time.
func findTime(s string) (h, min int, found, valid bool) {
	var ok bool
	if m := clockRe.FindStringSubmatch(s); m != nil {
		h, ok = applyMeridiem(atoi(m[1]), m[3])
		min = atoi(m[2])
		return h, min, true, ok && min < 60
	}
	if m := meridiemRe.FindStringSubmatch(s); m != nil {
		h, ok = applyMeridiem(atoi(m[1]), m[2])
		return h, 0, true, ok
	}
	if m := hoursRe.FindStringSubmatch(s); m != nil {
		h = atoi(m[1])
		return h, 0, true, h < 24
	}
	if m := aLasRe.FindStringSubmatch(s); m != nil {
		h = atoi(m[1])
		return h, 0, true, h < 24
	}
	return 0, 0, false, false
}

// applyMeridiem converts a 12-hour clock hour: 12am → 0, 12pm → 12.
func applyMeridiem(h int, meridiem string) (int, bool) {
	switch meridiem {
	case "am":
		if h < 1 || h > 12 {
			return 0, false
		}
		if h == 12 {
			return 0, true
		}
		return h, true
	case "pm":
		if h < 1 || h > 12 {
			return 0, false
		}
		if h == 12 {
			return 12, true
		}
		return h + 12, true
	default:
		return h, h < 24
	}
}

func cut(s string, loc []int) string {
	return s[:loc[0]] + " " + s[loc[1]:]
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
