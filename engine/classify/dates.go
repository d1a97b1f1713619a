package classify

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aditya01hpl/Inspectra/engine/domain"
)

var monthNums = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

const monthAlt = `jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec`

var (
	betweenIsoRe = regexp.MustCompile(`\bbetween\s+(\d{4}-\d{2}-\d{2})\s+and\s+(\d{4}-\d{2}-\d{2})\b`)
	prepIsoRe    = regexp.MustCompile(`\b(?:(after|since|before|until|from|on)\s+)?(\d{4}-\d{2}-\d{2})\b`)
	textualMDYRe = regexp.MustCompile(`\b(?:(after|since|before|until|from|on)\s+)?(` + monthAlt + `)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+((?:19|20)\d{2})\b`)
	textualDMYRe = regexp.MustCompile(`\b(?:(after|since|before|until|from|on)\s+)?(\d{1,2})(?:st|nd|rd|th)?\s+(` + monthAlt + `)[a-z]*\.?,?\s+((?:19|20)\d{2})\b`)
	monthYearRe  = regexp.MustCompile(`\b(?:(?:in|during)\s+)?(` + monthAlt + `)[a-z]*\.?\s+((?:19|20)\d{2})\b`)
	monthOnlyRe  = regexp.MustCompile(`\b(?:in|during)\s+(` + monthAlt + `)[a-z]*\b`)
	yearOnlyRe   = regexp.MustCompile(`\b(?:in|during|for)\s+((?:19|20)\d{2})\b`)
	lastNRe      = regexp.MustCompile(`\b(?:last|past)\s+(\d+)\s+(day|week|month)s?\b`)
)

// dateOps maps a captured preposition to the range operator it implies.
// An absent preposition means an exact-day match.
func dateOp(prep string) domain.Op {
	switch prep {
	case "after":
		return domain.OpGt
	case "since", "from":
		return domain.OpGte
	case "before":
		return domain.OpLt
	case "until":
		return domain.OpLte
	default:
		return domain.OpEq
	}
}

func dayString(t time.Time) string { return t.Format(domain.DateLayout) }

// extractDates pulls every date signal out of q: explicit dates with
// optional range prepositions, month and year ranges, and relative
// phrases resolved against now. Model years inside vehicle spans were
// consumed earlier and are skipped here.
func (x *extraction) extractDates(q string, now time.Time) {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	for _, loc := range betweenIsoRe.FindAllStringSubmatchIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		x.add(domain.Condition{Attr: domain.AttrDate, Op: domain.OpGte, Value: q[loc[2]:loc[3]]}, loc[0], loc[1])
		x.add(domain.Condition{Attr: domain.AttrDate, Op: domain.OpLte, Value: q[loc[4]:loc[5]]}, loc[0], loc[1])
	}

	for _, loc := range textualMDYRe.FindAllStringSubmatchIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		month := monthNums[q[loc[4]:loc[5]]]
		day, _ := strconv.Atoi(q[loc[6]:loc[7]])
		year, _ := strconv.Atoi(q[loc[8]:loc[9]])
		x.addDay(prepAt(q, loc), time.Date(year, month, day, 0, 0, 0, 0, time.UTC), loc[0], loc[1])
	}
	for _, loc := range textualDMYRe.FindAllStringSubmatchIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		day, _ := strconv.Atoi(q[loc[4]:loc[5]])
		month := monthNums[q[loc[6]:loc[7]]]
		year, _ := strconv.Atoi(q[loc[8]:loc[9]])
		x.addDay(prepAt(q, loc), time.Date(year, month, day, 0, 0, 0, 0, time.UTC), loc[0], loc[1])
	}

	for _, loc := range prepIsoRe.FindAllStringSubmatchIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		if _, err := domain.ParseDate(q[loc[4]:loc[5]]); err != nil {
			continue
		}
		x.add(domain.Condition{Attr: domain.AttrDate, Op: dateOp(prepAt(q, loc)), Value: q[loc[4]:loc[5]]}, loc[0], loc[1])
	}

	for _, loc := range monthYearRe.FindAllStringSubmatchIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		month := monthNums[q[loc[2]:loc[3]]]
		year, _ := strconv.Atoi(q[loc[4]:loc[5]])
		first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		x.addRange(first, first.AddDate(0, 1, 0), loc[0], loc[1])
	}

	for _, loc := range monthOnlyRe.FindAllStringSubmatchIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		month := monthNums[q[loc[2]:loc[3]]]
		// Without a year, take the most recent occurrence of the month.
		year := today.Year()
		if month > today.Month() {
			year--
		}
		first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		x.addRange(first, first.AddDate(0, 1, 0), loc[0], loc[1])
	}

	for _, loc := range yearOnlyRe.FindAllStringSubmatchIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		year, _ := strconv.Atoi(q[loc[2]:loc[3]])
		first := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		x.addRange(first, first.AddDate(1, 0, 0), loc[0], loc[1])
	}

	for _, loc := range lastNRe.FindAllStringSubmatchIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		n, _ := strconv.Atoi(q[loc[2]:loc[3]])
		var from time.Time
		switch q[loc[4]:loc[5]] {
		case "day":
			from = today.AddDate(0, 0, -n)
		case "week":
			from = today.AddDate(0, 0, -7*n)
		case "month":
			from = today.AddDate(0, -n, 0)
		}
		x.add(domain.Condition{Attr: domain.AttrDate, Op: domain.OpGte, Value: dayString(from)}, loc[0], loc[1])
	}

	x.extractRelativeDays(q, today)
}

// prepAt returns the captured preposition of a date match, or "".
func prepAt(q string, loc []int) string {
	if loc[2] < 0 {
		return ""
	}
	return q[loc[2]:loc[3]]
}

func (x *extraction) addDay(prep string, day time.Time, start, end int) {
	x.add(domain.Condition{Attr: domain.AttrDate, Op: dateOp(prep), Value: dayString(day)}, start, end)
}

func (x *extraction) addRange(from, to time.Time, start, end int) {
	x.add(domain.Condition{Attr: domain.AttrDate, Op: domain.OpGte, Value: dayString(from)}, start, end)
	x.add(domain.Condition{Attr: domain.AttrDate, Op: domain.OpLt, Value: dayString(to)}, start, end)
}

// relative day phrases, longest first so "last week" never half-matches
// inside "last weekend" style text.
func (x *extraction) extractRelativeDays(q string, today time.Time) {
	monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	firstOfYear := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	type relRule struct {
		phrase string
		conds  []domain.Condition
	}
	gte := func(t time.Time) domain.Condition {
		return domain.Condition{Attr: domain.AttrDate, Op: domain.OpGte, Value: dayString(t)}
	}
	lt := func(t time.Time) domain.Condition {
		return domain.Condition{Attr: domain.AttrDate, Op: domain.OpLt, Value: dayString(t)}
	}
	eq := func(t time.Time) domain.Condition {
		return domain.Condition{Attr: domain.AttrDate, Op: domain.OpEq, Value: dayString(t)}
	}

	rules := []relRule{
		{"last week", []domain.Condition{gte(today.AddDate(0, 0, -7))}},
		{"past week", []domain.Condition{gte(today.AddDate(0, 0, -7))}},
		{"this week", []domain.Condition{gte(monday)}},
		{"last month", []domain.Condition{gte(firstOfMonth.AddDate(0, -1, 0)), lt(firstOfMonth)}},
		{"this month", []domain.Condition{gte(firstOfMonth)}},
		{"last year", []domain.Condition{gte(firstOfYear.AddDate(-1, 0, 0)), lt(firstOfYear)}},
		{"this year", []domain.Condition{gte(firstOfYear)}},
		{"yesterday", []domain.Condition{eq(today.AddDate(0, 0, -1))}},
		{"today", []domain.Condition{eq(today)}},
	}

	for _, rule := range rules {
		for _, s := range findPhrase(q, rule.phrase) {
			if x.consumed(s.start, s.end) {
				continue
			}
			for _, c := range rule.conds {
				x.add(c, s.start, s.end)
			}
		}
	}
}

// findPhrase returns all word-bounded occurrences of phrase in q.
func findPhrase(q, phrase string) []span {
	var out []span
	idx := 0
	for {
		i := strings.Index(q[idx:], phrase)
		if i < 0 {
			return out
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordByte(q[start-1])
		afterOK := end == len(q) || !isWordByte(q[end])
		if beforeOK && afterOK {
			out = append(out, span{start, end})
		}
		idx = start + 1
	}
}
