// Package timespan parses the date expressions participants use to propose
// event dates and renders the result as chat date tokens.
//
// Accepted forms:
//
//	2017-11-17                  full day
//	2017-11-17 16:00            one hour starting at 16:00
//	2017-11-17..2017-11-19      explicit range (full days when both sides are dates)
//	2017-11-17 14:00+2h30m      start plus a duration made of w/d/h/m/s tokens
//	2017-11-17T16:00+02:00      date-times may carry a Z or ±HH:MM offset
package timespan

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"planner/internal/model"
)

// Timespan is an immutable [start, end] pair plus a full-day flag.
// A Timespan produced from malformed input reports Valid() == false and its
// instants must not be relied upon.
type Timespan struct {
	start time.Time
	end   time.Time
	full  bool
	valid bool
	input string
}

// New builds a valid span from already-resolved instants.
func New(start, end time.Time, full bool) Timespan {
	return Timespan{start: start, end: end, full: full, valid: !end.Before(start)}
}

func invalid(input string) Timespan {
	return Timespan{input: input}
}

func (t Timespan) Start() time.Time { return t.start }
func (t Timespan) End() time.Time   { return t.end }
func (t Timespan) IsFullDay() bool  { return t.full }
func (t Timespan) Valid() bool      { return t.valid }

// Input returns the expression the span was parsed from, if any.
func (t Timespan) Input() string { return t.input }

// Location returns the zone the span was parsed or restored in.
func (t Timespan) Location() *time.Location { return t.start.Location() }

func (t Timespan) String() string {
	if !t.valid {
		return fmt.Sprintf("invalid(%q)", t.input)
	}
	if t.full {
		return t.start.Format("2006-01-02") + ".." + t.end.Format("2006-01-02")
	}
	return t.start.Format(time.RFC3339) + ".." + t.end.Format(time.RFC3339)
}

var (
	separatorRx = regexp.MustCompile(`\.+|\+`)
	durationRx  = regexp.MustCompile(`(?i)^(\d+[wdhms]\s*)+$`)
	durationTok = regexp.MustCompile(`(?i)(\d+)([wdhms])`)
)

// Parse resolves input in loc. It never fails; check Valid on the result.
func Parse(input string, loc *time.Location) Timespan {
	if loc == nil {
		loc = time.UTC
	}

	sep := findSeparator(input)
	if sep == nil {
		start, timed, ok := parseInstant(input, loc)
		if !ok {
			return invalid(input)
		}
		if timed {
			return parsed(input, start, start.Add(time.Hour), false)
		}
		return parsed(input, start, endOfDay(start), true)
	}

	first := input[:sep[0]]
	second := input[sep[1]:]
	if strings.TrimSpace(first) == "" || strings.TrimSpace(second) == "" {
		return invalid(input)
	}

	start, startTimed, ok := parseInstant(first, loc)
	if !ok {
		return invalid(input)
	}

	if input[sep[0]:sep[1]] == "+" {
		days, rest, ok := parseDuration(second)
		if !ok {
			return invalid(input)
		}
		if !startTimed && rest%(24*time.Hour) == 0 {
			end := start.AddDate(0, 0, days+int(rest/(24*time.Hour)))
			return parsed(input, start, endOfDay(end), true)
		}
		return parsed(input, start, start.AddDate(0, 0, days).Add(rest), false)
	}

	end, endTimed, ok := parseInstant(second, loc)
	if !ok {
		return invalid(input)
	}
	if !startTimed && !endTimed {
		return parsed(input, start, endOfDay(end), true)
	}
	return parsed(input, start, end, false)
}

// findSeparator locates the range or duration separator. A '+' not followed
// by a duration belongs to a UTC offset.
func findSeparator(input string) []int {
	for _, m := range separatorRx.FindAllStringIndex(input, -1) {
		if input[m[0]:m[1]] == "+" && !durationRx.MatchString(strings.TrimSpace(input[m[1]:])) {
			continue
		}
		return m
	}
	return nil
}

func parsed(input string, start, end time.Time, full bool) Timespan {
	if end.Before(start) {
		return invalid(input)
	}
	return Timespan{start: start, end: end, full: full, valid: true, input: input}
}

type layout struct {
	format string
	timed  bool
	zoned  bool
}

var layouts = buildLayouts()

func buildLayouts() []layout {
	dates := []string{"2006-01-02", "20060102", "2006-01"}
	clocks := []string{"15", "15:04", "15:04:05"}

	out := make([]layout, 0, len(dates)*(1+4*len(clocks)))
	for _, d := range dates {
		out = append(out, layout{format: d})
		for _, sep := range []string{"T", " "} {
			for _, c := range clocks {
				out = append(out,
					layout{format: d + sep + c, timed: true},
					layout{format: d + sep + c + "Z07:00", timed: true, zoned: true},
				)
			}
		}
	}
	return out
}

// parseInstant reads one ISO-8601 date or date-time. timed reports whether the
// value carried a time-of-day component.
func parseInstant(s string, loc *time.Location) (t time.Time, timed bool, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	for _, l := range layouts {
		var err error
		if l.zoned {
			t, err = time.Parse(l.format, s)
			t = t.In(loc)
		} else {
			t, err = time.ParseInLocation(l.format, s, loc)
		}
		if err == nil {
			return t, l.timed, true
		}
	}
	return time.Time{}, false, false
}

// parseDuration splits a token list like "1w2d3h" into calendar days and a
// sub-day remainder. Tokens of the same unit accumulate.
func parseDuration(s string) (days int, rest time.Duration, ok bool) {
	s = strings.TrimSpace(s)
	if !durationRx.MatchString(s) {
		return 0, 0, false
	}
	for _, m := range durationTok.FindAllStringSubmatch(s, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, 0, false
		}
		switch strings.ToLower(m[2]) {
		case "w":
			days += 7 * n
		case "d":
			days += n
		case "h":
			rest += time.Duration(n) * time.Hour
		case "m":
			rest += time.Duration(n) * time.Minute
		case "s":
			rest += time.Duration(n) * time.Second
		}
	}
	return days, rest, true
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// RenderStart renders the start of the span as a single date token.
func (t Timespan) RenderStart() string {
	if t.full {
		return dateToken(t.start)
	}
	return dateTimeToken(t.start)
}

// RenderRange renders the whole span. A full-day span within one day renders
// as its start alone; a timed span ending on its start day only repeats the
// end's time of day.
func (t Timespan) RenderRange() string {
	str := t.RenderStart()
	switch {
	case t.full:
		if !sameDay(t.start, t.end) {
			str += " to " + dateToken(t.end)
		}
	case sameDay(t.start, t.end):
		str += " to " + timeToken(t.end)
	default:
		str += " to " + dateTimeToken(t.end)
	}
	return str
}

func dateToken(t time.Time) string {
	return fmt.Sprintf("<!date^%d^{date}|%s>", t.Unix(), t.Format("2 January 2006"))
}

func dateTimeToken(t time.Time) string {
	return fmt.Sprintf("<!date^%d^{date_short} {time}|%s>", t.Unix(), t.Format("2 Jan 2006 3:04pm"))
}

func timeToken(t time.Time) string {
	return fmt.Sprintf("<!date^%d^{time}|%s>", t.Unix(), t.Format("03:04pm"))
}

// Payload converts the span to its persisted form.
func (t Timespan) Payload() model.TimespanPayload {
	return model.TimespanPayload{
		Start:    t.start.UnixMilli(),
		End:      t.end.UnixMilli(),
		Timezone: t.Location().String(),
		Full:     t.full,
	}
}

// FromPayload restores a span written by Payload.
func FromPayload(p model.TimespanPayload) (Timespan, error) {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return Timespan{}, fmt.Errorf("timespan: unknown timezone %q: %w", p.Timezone, err)
	}
	return New(time.UnixMilli(p.Start).In(loc), time.UnixMilli(p.End).In(loc), p.Full), nil
}

func (t Timespan) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Payload())
}

func (t *Timespan) UnmarshalJSON(data []byte) error {
	var p model.TimespanPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	ts, err := FromPayload(p)
	if err != nil {
		return err
	}
	*t = ts
	return nil
}
