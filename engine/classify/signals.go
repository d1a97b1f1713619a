package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aditya01hpl/Inspectra/engine/domain"
	"github.com/aditya01hpl/Inspectra/pkg/vehiclenlp"
)

// span marks a consumed byte range of the normalized question. Later
// extractors skip matches that overlap an earlier span, and the
// leftover text becomes the semantic residue.
type span struct{ start, end int }

// extraction accumulates structured signals found in one question.
type extraction struct {
	conds []domain.Condition
	spans []span

	count bool // "how many", "number of"
	list  bool // "list", "latest", "show all"
	open  bool // "tell me about", "describe", "why"

	fieldErr error // explicit reference to an unknown attribute
}

func (x *extraction) consumed(start, end int) bool {
	for _, s := range x.spans {
		if start < s.end && end > s.start {
			return true
		}
	}
	return false
}

func (x *extraction) mark(start, end int) {
	x.spans = append(x.spans, span{start, end})
}

// add records a condition unless an identical one is already present.
func (x *extraction) add(c domain.Condition, start, end int) {
	for _, have := range x.conds {
		if have.Attr == c.Attr && have.Op == c.Op && have.Value == c.Value {
			x.mark(start, end)
			return
		}
	}
	x.conds = append(x.conds, c)
	x.mark(start, end)
}

// attrSynonyms maps the words users write to canonical attribute names.
var attrSynonyms = map[string]string{
	"record":          domain.AttrID,
	"record_id":       domain.AttrID,
	"vehicle":         domain.AttrVIN,
	"vehicle_id":      domain.AttrVIN,
	"date":            domain.AttrDate,
	"timestamp":       domain.AttrDate,
	"inspection_date": domain.AttrDate,
	"type":            domain.AttrType,
	"location":        domain.AttrRamp,
	"damages":         domain.AttrDamageCount,
	"count":           domain.AttrDamageCount,
	"file":            domain.AttrSourceFile,
}

// mutationWords reject write-shaped requests outright; the engine is
// read-only.
var mutationWords = []string{
	"delete", "drop", "remove", "update", "insert", "truncate",
	"alter", "modify", "erase", "wipe", "overwrite",
}

// damageStems flag descriptive damage language that only the vector
// index can match. Matched by token prefix, so "scratch" covers
// "scratched" and "scratches".
var damageStems = []string{
	"scratch", "dent", "chip", "crack", "rust", "corro", "paint",
	"scuff", "gouge", "tear", "torn", "broke", "bent", "shatter",
	"leak", "stain", "miss", "loose", "misalign",
	"roof", "door", "hood", "bumper", "windshield", "wheel", "tire",
	"mirror", "panel", "fender", "trunk", "headlight", "taillight",
	"glass", "seat", "interior", "undercarriage", "brake", "wiper",
	"issue", "problem", "defect", "similar", "like",
}

// openPhrases mark explanation-seeking questions; with structured
// signals present they push the plan to the hybrid path.
var openPhrases = []string{
	"tell me about", "describe", "explain", "summarize", "summary",
	"overview", "what happened", "why ", "analyz", "analysis",
}

var countPhrases = []string{"how many", "count", "number of", "total"}

var listPhrases = []string{"list", "latest", "most recent", "recent", "show all", "all inspections"}

// fillerWords never carry retrieval meaning on their own; they are
// stripped when computing the semantic residue.
var fillerWords = map[string]bool{
	"a": true, "all": true, "an": true, "and": true, "any": true,
	"are": true, "at": true, "by": true, "can": true, "did": true,
	"do": true, "does": true, "find": true, "for": true, "from": true,
	"get": true, "give": true, "had": true, "has": true, "have": true,
	"how": true, "in": true, "inspected": true, "inspection": true,
	"inspections": true, "is": true, "it": true, "many": true,
	"me": true, "much": true, "number": true, "of": true, "on": true,
	"one": true, "or": true, "please": true, "record": true,
	"records": true, "show": true, "than": true, "that": true,
	"the": true, "there": true, "this": true, "to": true, "total": true,
	"vehicle": true, "vehicles": true, "was": true, "were": true,
	"what": true, "which": true, "who": true, "with": true,
	"count": true, "list": true, "car": true, "cars": true,
}

var (
	vinFullRe    = regexp.MustCompile(`\b[a-hj-npr-z0-9]{17}\b`)
	recordIDRe   = regexp.MustCompile(`\binsp[-_]\d+\b`)
	keywordVinRe = regexp.MustCompile(`\b(?:vin|vehicle)\s+#?([a-z0-9-]{4,17})\b`)
	bareTokenRe  = regexp.MustCompile(`\b[a-z0-9]{8,17}\b`)

	rampRe      = regexp.MustCompile(`\b(?:at\s+|on\s+)?(?:ramp|location)\s+(?:number\s+|no\.?\s+)?#?([a-z0-9-]+)`)
	bayRe       = regexp.MustCompile(`\bbay\s+(?:number\s+|no\.?\s+)?#?([a-z0-9-]+)`)
	railcarRe   = regexp.MustCompile(`\brailcar\s+(?:number\s+|no\.?\s+)?#?([a-z0-9-]+)`)
	inspectorRe = regexp.MustCompile(`\b(?:inspected\s+by|checked\s+by|inspector)\s+([a-z]+(?:\s+[a-z]+)?)`)
	typeRe      = regexp.MustCompile(`\b(receiving|final|quality|pre-delivery|transit)\s+inspections?`)
	fileRe      = regexp.MustCompile(`\b(?:from|in)\s+file\s+([\w.-]+)`)

	fieldOpRe  = regexp.MustCompile(`\b([a-z][a-z0-9_]*)\s*(>=|<=|=|>|<)\s*"?([\w.-]+)"?`)
	filterByRe = regexp.MustCompile(`\bfilter(?:ed)?\s+by\s+([a-z][a-z0-9_]*)`)
	whereIsRe  = regexp.MustCompile(`\bwhere\s+([a-z][a-z0-9_]*)\s+(?:is|equals)\s+"?([\w.-]+)"?`)

	moreDmgRe    = regexp.MustCompile(`\b(?:more\s+than|over|greater\s+than|above)\s+(\d+)\s+damages?\b`)
	atLeastDmgRe = regexp.MustCompile(`\bat\s+least\s+(\d+)\s+damages?\b`)
	lessDmgRe    = regexp.MustCompile(`\b(?:less\s+than|fewer\s+than|under|below)\s+(\d+)\s+damages?\b`)
	atMostDmgRe  = regexp.MustCompile(`\b(?:at\s+most|no\s+more\s+than|up\s+to)\s+(\d+)\s+damages?\b`)
	exactDmgRe   = regexp.MustCompile(`\b(?:exactly\s+)?(\d+)\s+damages?\b`)
	noDmgRe      = regexp.MustCompile(`\b(?:no|zero|without)\s+damages?\b`)
	anyDmgRe     = regexp.MustCompile(`\b(?:damaged|with\s+damages?|had\s+damages?|have\s+damages?|any\s+damages?)\b`)
)

// nameStops end an inspector-name capture; they show up when the regex
// grabs one word too many ("inspected by martinez on friday").
var nameStops = map[string]bool{
	"on": true, "at": true, "in": true, "last": true, "this": true,
	"during": true, "from": true, "for": true, "with": true,
	"found": true, "and": true, "or": true, "the": true, "before": true,
	"after": true, "since": true, "between": true, "who": true,
	"is": true, "was": true, "were": true,
}

// placeStops filter verb noise out of ramp/bay/railcar captures, since
// RE2 cannot look ahead past the keyword ("where bay is b4").
var placeStops = map[string]bool{
	"is": true, "was": true, "were": true, "equals": true, "equal": true,
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"of": true, "in": true, "at": true, "on": true, "with": true,
	"for": true, "to": true, "near": true, "by": true,
}

func isMutation(q string) bool {
	for _, w := range mutationWords {
		if containsWord(q, w) {
			return true
		}
	}
	return false
}

// containsWord reports whether q contains w as a whole word.
func containsWord(q, w string) bool {
	idx := 0
	for {
		i := strings.Index(q[idx:], w)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(w)
		beforeOK := start == 0 || !isWordByte(q[start-1])
		afterOK := end == len(q) || !isWordByte(q[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}

// extractVehicle records make/model mentions via the vehicle
// vocabulary. The matched span (including a model year) is consumed so
// the date extractor does not read a model year as an inspection date.
func (x *extraction) extractVehicle(q string) {
	for _, m := range vehiclenlp.Extract(q) {
		if x.consumed(m.Start, m.End) {
			continue
		}
		value := m.Model
		if value == "" {
			value = m.Make
		}
		x.add(domain.Condition{Attr: domain.AttrModel, Op: domain.OpContains, Value: strings.ToLower(value)}, m.Start, m.End)
	}
}

// extractIdentifiers finds record IDs, full VINs, and partial vehicle
// identifiers.
func (x *extraction) extractIdentifiers(q string) {
	for _, loc := range recordIDRe.FindAllStringIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		x.add(domain.Condition{Attr: domain.AttrID, Op: domain.OpEq, Value: strings.ToUpper(q[loc[0]:loc[1]])}, loc[0], loc[1])
	}
	for _, loc := range vinFullRe.FindAllStringIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		tok := q[loc[0]:loc[1]]
		if !mixedAlphanum(tok) {
			continue
		}
		x.add(domain.Condition{Attr: domain.AttrVIN, Op: domain.OpEq, Value: strings.ToUpper(tok)}, loc[0], loc[1])
	}
	for _, loc := range keywordVinRe.FindAllStringSubmatchIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		tok := q[loc[2]:loc[3]]
		if !mixedAlphanum(tok) {
			continue
		}
		x.add(domain.Condition{Attr: domain.AttrVIN, Op: domain.OpContains, Value: strings.ToUpper(tok)}, loc[0], loc[1])
	}
	// Bare mixed alphanumeric tokens of VIN-fragment length.
	for _, loc := range bareTokenRe.FindAllStringIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		tok := q[loc[0]:loc[1]]
		if !mixedAlphanum(tok) {
			continue
		}
		x.add(domain.Condition{Attr: domain.AttrVIN, Op: domain.OpContains, Value: strings.ToUpper(tok)}, loc[0], loc[1])
	}
}

func mixedAlphanum(tok string) bool {
	var hasLetter, hasDigit bool
	for i := 0; i < len(tok); i++ {
		switch {
		case tok[i] >= 'a' && tok[i] <= 'z':
			hasLetter = true
		case tok[i] >= '0' && tok[i] <= '9':
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

// extractPlaces handles ramp, bay, railcar, inspection type, inspector,
// and source file mentions.
func (x *extraction) extractPlaces(q string) {
	x.extractPlace(q, rampRe, domain.AttrRamp)
	x.extractPlace(q, bayRe, domain.AttrBay)
	x.extractPlace(q, railcarRe, domain.AttrRailcar)
	for _, loc := range typeRe.FindAllStringSubmatchIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		x.add(domain.Condition{Attr: domain.AttrType, Op: domain.OpContains, Value: q[loc[2]:loc[3]]}, loc[0], loc[1])
	}
	for _, loc := range fileRe.FindAllStringSubmatchIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		x.add(domain.Condition{Attr: domain.AttrSourceFile, Op: domain.OpContains, Value: q[loc[2]:loc[3]]}, loc[0], loc[1])
	}
	for _, loc := range inspectorRe.FindAllStringSubmatchIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		captured := q[loc[2]:loc[3]]
		name := trimNameStops(captured)
		if name == "" {
			continue
		}
		// The trimmed name may start past the capture ("inspector is
		// hartley"); consume through its actual end.
		end := loc[2] + strings.Index(captured, name) + len(name)
		x.add(domain.Condition{Attr: domain.AttrInspector, Op: domain.OpContains, Value: name}, loc[0], end)
	}
}

// extractPlace adds one contains condition per keyword match, skipping
// verb noise in value position.
func (x *extraction) extractPlace(q string, re *regexp.Regexp, attr string) {
	for _, loc := range re.FindAllStringSubmatchIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		value := q[loc[2]:loc[3]]
		if placeStops[value] {
			continue
		}
		x.add(domain.Condition{Attr: attr, Op: domain.OpContains, Value: value}, loc[0], loc[1])
	}
}

func trimNameStops(name string) string {
	words := strings.Fields(name)
	for len(words) > 0 && nameStops[words[0]] {
		words = words[1:]
	}
	for len(words) > 0 && nameStops[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// extractDamageCounts turns damage-count comparisons into numeric
// conditions. Order matters: comparative phrases consume their spans
// before the bare "N damages" form runs.
func (x *extraction) extractDamageCounts(q string) {
	type cmpRule struct {
		re *regexp.Regexp
		op domain.Op
	}
	rules := []cmpRule{
		{moreDmgRe, domain.OpGt},
		{atLeastDmgRe, domain.OpGte},
		{lessDmgRe, domain.OpLt},
		{atMostDmgRe, domain.OpLte},
		{exactDmgRe, domain.OpEq},
	}
	for _, rule := range rules {
		for _, loc := range rule.re.FindAllStringSubmatchIndex(q, -1) {
			if x.consumed(loc[0], loc[1]) {
				continue
			}
			n, err := strconv.Atoi(q[loc[2]:loc[3]])
			if err != nil {
				continue
			}
			x.add(domain.Condition{Attr: domain.AttrDamageCount, Op: rule.op, Value: strconv.Itoa(n)}, loc[0], loc[1])
		}
	}
	for _, loc := range noDmgRe.FindAllStringIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		x.add(domain.Condition{Attr: domain.AttrDamageCount, Op: domain.OpEq, Value: "0"}, loc[0], loc[1])
	}
	for _, loc := range anyDmgRe.FindAllStringIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		x.add(domain.Condition{Attr: domain.AttrDamageCount, Op: domain.OpGte, Value: "1"}, loc[0], loc[1])
	}
}

// extractFieldRefs handles explicit attribute syntax ("ramp = R1",
// "filter by engine_color", "where bay is 4"). A reference to an
// attribute outside the schema is an invalid-field error, recorded
// rather than silently dropped.
func (x *extraction) extractFieldRefs(q string) {
	for _, loc := range fieldOpRe.FindAllStringSubmatchIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		field := q[loc[2]:loc[3]]
		op := q[loc[4]:loc[5]]
		value := q[loc[6]:loc[7]]
		x.addFieldRef(field, op, value, loc[0], loc[1])
	}
	for _, loc := range whereIsRe.FindAllStringSubmatchIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		field := q[loc[2]:loc[3]]
		value := q[loc[4]:loc[5]]
		x.addFieldRef(field, "=", value, loc[0], loc[1])
	}
	for _, loc := range filterByRe.FindAllStringSubmatchIndex(q, -1) {
		if x.consumed(loc[0], loc[1]) {
			continue
		}
		field := q[loc[2]:loc[3]]
		if _, ok := resolveAttr(field); !ok {
			if !fillerWords[field] {
				x.noteInvalidField(field)
			}
		}
		// A bare "filter by ramp" names a known attribute without a
		// value; it is not a condition by itself.
		x.mark(loc[0], loc[1])
	}
}

func (x *extraction) addFieldRef(field, op, value string, start, end int) {
	attr, ok := resolveAttr(field)
	if !ok {
		// Everyday words in field position ("is k = 5 fine") are noise,
		// not attribute references.
		if !fillerWords[field] {
			x.noteInvalidField(field)
			x.mark(start, end)
		}
		return
	}
	cond := domain.Condition{Attr: attr.Name, Value: value}
	switch op {
	case ">":
		cond.Op = domain.OpGt
	case ">=":
		cond.Op = domain.OpGte
	case "<":
		cond.Op = domain.OpLt
	case "<=":
		cond.Op = domain.OpLte
	default:
		if attr.FreeText {
			cond.Op = domain.OpContains
		} else {
			cond.Op = domain.OpEq
		}
	}
	if attr.Name == domain.AttrID || attr.Name == domain.AttrVIN {
		cond.Value = strings.ToUpper(cond.Value)
	}
	x.add(cond, start, end)
}

func (x *extraction) noteInvalidField(field string) {
	if x.fieldErr == nil {
		x.fieldErr = domain.NewFieldError(field)
	}
}

// resolveAttr maps a user-written field name to a schema attribute.
func resolveAttr(field string) (domain.Attribute, bool) {
	name := field
	if canonical, ok := attrSynonyms[field]; ok {
		name = canonical
	}
	return domain.AttributeByName(name)
}

// extractMarkers sets the count/list/open flags from fixed phrase
// vocabularies and consumes the matched phrases, so they do not leak
// into the semantic residue.
func (x *extraction) extractMarkers(q string) {
	x.count = x.markPhrases(q, countPhrases)
	x.list = x.markPhrases(q, listPhrases)
	x.open = x.markPhrases(q, openPhrases)
}

func (x *extraction) markPhrases(q string, phrases []string) bool {
	found := false
	for _, p := range phrases {
		idx := 0
		for {
			i := strings.Index(q[idx:], p)
			if i < 0 {
				break
			}
			start := idx + i
			end := start + len(p)
			// Phrases may be stems ("analyz"), so only the left edge
			// needs a word boundary.
			if start == 0 || !isWordByte(q[start-1]) {
				found = true
				x.mark(start, end)
			}
			idx = start + 1
		}
	}
	return found
}

// residue returns the content words of q not covered by any consumed
// span and not in the filler vocabulary. A non-empty residue means the
// question carries meaning the structured filter did not capture.
func (x *extraction) residue(q string) []string {
	var b strings.Builder
	for i := 0; i < len(q); i++ {
		if x.consumed(i, i+1) {
			b.WriteByte(' ')
			continue
		}
		b.WriteByte(q[i])
	}
	var out []string
	for _, tok := range strings.Fields(b.String()) {
		tok = strings.Trim(tok, `.,!?"'()`)
		if tok == "" || fillerWords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// hasDamageLanguage reports whether any token carries descriptive
// damage vocabulary.
func hasDamageLanguage(tokens []string) bool {
	for _, tok := range tokens {
		for _, stem := range damageStems {
			if strings.HasPrefix(tok, stem) {
				return true
			}
		}
	}
	return false
}
