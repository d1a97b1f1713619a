package domain

// Answer is the final product of one orchestration run: the generated text,
// the evidence it was grounded on, and the groundedness outcome. Refusals are
// Answers too — Grounded is false and RefusalCode carries the taxonomy code —
// so callers can always distinguish "we don't know" from "something broke".
type Answer struct {
	Text     string      `json:"text"`
	Evidence EvidenceSet `json:"evidence"`
	Grounded bool        `json:"grounded"`
	// RefusalCode is empty for grounded answers, otherwise CodeNoEvidence
	// or CodeNotGrounded.
	RefusalCode string `json:"refusal_code,omitempty"`
	Model       string `json:"model,omitempty"`
	// Retried reports whether the groundedness retry fired.
	Retried bool `json:"retried,omitempty"`
}

// Refused reports whether this answer is a refusal rather than a grounded
// response.
func (a Answer) Refused() bool { return a.RefusalCode != "" }
