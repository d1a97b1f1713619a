package answer

import (
	"regexp"
	"strings"
)

// Policy decides whether generated text is grounded in the evidence corpus.
// Check returns the unsupported references, in first-seen order; an empty
// result means the answer passed. Policies must be deterministic — the check
// is an auditable gate, not a second model call.
type Policy interface {
	Check(answer, corpus string) []string
}

// ContainmentPolicy is the default groundedness check: any identifier-shaped
// token (letters and digits mixed, four or more characters) and any number of
// three or more digits in the answer must literally appear in the corpus,
// case-insensitively. One- and two-digit numbers are exempt; counts and
// ordinals that small are legitimately derived from the evidence.
type ContainmentPolicy struct{}

var tokenRe = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9-]*`)

func (ContainmentPolicy) Check(answer, corpus string) []string {
	lowerCorpus := strings.ToLower(corpus)
	seen := make(map[string]bool)
	var unsupported []string

	flag := func(tok string) {
		lower := strings.ToLower(tok)
		if seen[lower] {
			return
		}
		seen[lower] = true
		if !strings.Contains(lowerCorpus, lower) {
			unsupported = append(unsupported, tok)
		}
	}

	for _, tok := range tokenRe.FindAllString(answer, -1) {
		tok = strings.Trim(tok, "-")
		hasLetter, hasDigit, hasHyphen := scanToken(tok)
		switch {
		case hasLetter && hasDigit && len(tok) >= 4:
			flag(tok)
		case !hasLetter && !hasHyphen && hasDigit && len(tok) >= 3:
			flag(tok)
		case !hasLetter && hasHyphen:
			// Date-shaped: check each long numeric segment.
			for _, part := range strings.Split(tok, "-") {
				if len(part) >= 3 {
					flag(part)
				}
			}
		}
	}
	return unsupported
}

func scanToken(tok string) (hasLetter, hasDigit, hasHyphen bool) {
	for _, r := range tok {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r == '-':
			hasHyphen = true
		default:
			hasLetter = true
		}
	}
	return
}
