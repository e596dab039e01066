// Package openinghours evaluates free-text weekly schedules ("Lun-Vie 9-18",
// "Vie 22-2, Sab 20-2") against an instant, answering whether a venue is
// open right now. Schedules are community-entered Spanish text, so the
// evaluator is maximally permissive: malformed pieces are skipped and a
// schedule with nothing parseable yields no opinion instead of "closed".
package openinghours

import (
	"regexp"
	"strings"
	"time"
)

// Status is the three-way outcome of an evaluation. Callers must render
// StatusUnknown as a neutral badge, never defaulting to open or closed.
type Status int

const (
	StatusUnknown Status = iota
	StatusClosed
	StatusOpen
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// rule is one parsed day+time clause. Never persisted; rebuilt from the raw
// schedule text on every evaluation.
type rule struct {
	days        [7]bool // 0=Sunday .. 6=Saturday
	openMinute  int     // minutes since local midnight
	closeMinute int     // closeMinute <= openMinute means the rule wraps past midnight
}

// matches reports whether the rule covers the given weekday and minute.
// A wrapping rule also covers the early hours of the following day: "Vie
// 22-2" keeps the venue open at Saturday 01:00 on Friday's rule.
func (r rule) matches(day, minute int) bool {
	if r.closeMinute <= r.openMinute {
		if r.days[day] && minute >= r.openMinute {
			return true
		}
		prev := (day + 6) % 7
		return r.days[prev] && minute < r.closeMinute
	}
	return r.days[day] && minute >= r.openMinute && minute < r.closeMinute
}

// Evaluator evaluates schedules against a reference civil clock. The venue
// directory serves a single market whose civil time is UTC-3 year round, so
// the default location is a fixed offset with no DST transitions; tests and
// future markets can inject another location.
type Evaluator struct {
	loc *time.Location
}

type Option func(*Evaluator)

// WithLocation overrides the reference location used to derive the local
// weekday and minute-of-day.
func WithLocation(loc *time.Location) Option {
	return func(e *Evaluator) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		loc: time.FixedZone("UTC-3", -3*60*60),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var (
	// "24", "24h", "24hs", "24 horas" as the entire schedule.
	alwaysOpenRe = regexp.MustCompile(`^24\s*(?:horas|hs|h)?$`)

	// Segments split on commas, semicolons, and the standalone word "y".
	segmentSplitRe = regexp.MustCompile(`[,;]|\s+y\s+`)

	// Two time expressions H[:MM][am|pm|hs|h] joined by a hyphen, an
	// en-dash, or the word "a".
	timeRangeRe = regexp.MustCompile(
		`(\d{1,2})(?::(\d{2}))?\s*(am|pm|hs|h)?\s*(?:-|–|\ba\b)\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm|hs|h)?`)

	// Day ranges: "lun-vie", "lun a vie".
	dayRangeSplitRe = regexp.MustCompile(`\s*(?:-|–|\s+a\s+|\ba\b)\s*`)
)

var dayIndex = map[string]int{
	"dom": 0, "domingo": 0, "domingos": 0,
	"lun": 1, "lunes": 1,
	"mar": 2, "martes": 2,
	"mie": 3, "mié": 3, "miercoles": 3, "miércoles": 3,
	"jue": 4, "jueves": 4,
	"vie": 5, "viernes": 5,
	"sab": 6, "sáb": 6, "sabado": 6, "sábado": 6, "sabados": 6, "sábados": 6,
}

// filler words dropped from day specifications ("lun a vie de 9 a 18").
var fillerWords = map[string]bool{
	"de": true, "el": true, "los": true, "las": true, "al": true,
}

// Evaluate decides whether the schedule keeps the venue open at the given
// instant. It returns StatusUnknown when nothing in the text could be
// parsed, StatusClosed when at least one rule parsed but none matched, and
// StatusOpen when any segment matches (segments OR together).
func (e *Evaluator) Evaluate(schedule string, now time.Time) Status {
	text := strings.ToLower(strings.TrimSpace(schedule))
	if text == "" {
		return StatusUnknown
	}
	if strings.Contains(text, "cerrado") {
		return StatusClosed
	}
	if alwaysOpenRe.MatchString(text) {
		return StatusOpen
	}

	local := now.In(e.loc)
	day := int(local.Weekday())
	minute := local.Hour()*60 + local.Minute()

	parsedAny := false
	for _, segment := range segmentSplitRe.Split(text, -1) {
		r, ok := parseSegment(segment)
		if !ok {
			// A malformed segment contributes no rule; the rest of the
			// schedule still evaluates.
			continue
		}
		parsedAny = true
		if r.matches(day, minute) {
			return StatusOpen
		}
	}

	if parsedAny {
		return StatusClosed
	}
	return StatusUnknown
}

// parseSegment extracts one rule from a comma/semicolon/"y" clause: a time
// range plus an optional day specification. ok is false when the segment
// has no recognizable time range or an unintelligible day spec.
func parseSegment(segment string) (rule, bool) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return rule{}, false
	}

	loc := timeRangeRe.FindStringSubmatchIndex(segment)
	if loc == nil {
		return rule{}, false
	}
	groups := timeRangeRe.FindStringSubmatch(segment)

	openMinute, ok := toMinutes(groups[1], groups[2], groups[3])
	if !ok {
		return rule{}, false
	}
	closeMinute, ok := toMinutes(groups[4], groups[5], groups[6])
	if !ok {
		return rule{}, false
	}

	r := rule{openMinute: openMinute, closeMinute: closeMinute}

	daySpec := strings.TrimSpace(segment[:loc[0]] + " " + segment[loc[1]:])
	if !parseDaySpec(daySpec, &r.days) {
		return rule{}, false
	}
	return r, true
}

// toMinutes converts an hour, optional minute, and optional suffix into
// minutes since midnight. "pm" adds twelve hours unless the hour already
// reads 12 or later; "12am" is midnight. Hour 24 folds onto 0 so "18-24"
// behaves as a wrap to midnight.
func toMinutes(hourStr, minuteStr, suffix string) (int, bool) {
	hour, ok := atoi(hourStr)
	if !ok || hour > 24 {
		return 0, false
	}
	minute := 0
	if minuteStr != "" {
		minute, ok = atoi(minuteStr)
		if !ok || minute > 59 {
			return 0, false
		}
	}

	switch suffix {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}

	return (hour*60 + minute) % 1440, true
}

// parseDaySpec fills days from the text left over once the time range is
// removed. An empty spec applies the rule to the whole week; otherwise a
// single day name or an "A-B"/"A a B" range is accepted, walking forward
// from A to B modulo 7 so "vie-lun" covers Fri, Sat, Sun, Mon.
func parseDaySpec(spec string, days *[7]bool) bool {
	tokens := make([]string, 0, 4)
	for _, tok := range strings.Fields(spec) {
		tok = strings.Trim(tok, ".:")
		if tok == "" || fillerWords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}

	if len(tokens) == 0 {
		for i := range days {
			days[i] = true
		}
		return true
	}

	parts := dayRangeSplitRe.Split(strings.Join(tokens, " "), -1)
	cleaned := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}

	switch len(cleaned) {
	case 1:
		idx, ok := dayIndex[cleaned[0]]
		if !ok {
			return false
		}
		days[idx] = true
		return true
	case 2:
		from, okFrom := dayIndex[cleaned[0]]
		to, okTo := dayIndex[cleaned[1]]
		if !okFrom || !okTo {
			return false
		}
		for d := from; ; d = (d + 1) % 7 {
			days[d] = true
			if d == to {
				break
			}
		}
		return true
	}
	return false
}

func atoi(s string) (int, bool) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, s != ""
}
