package domain

// PlanTag selects which retrieval paths an orchestration run executes.
type PlanTag string

const (
	PlanStructured PlanTag = "STRUCTURED"
	PlanSemantic   PlanTag = "SEMANTIC"
	PlanHybrid     PlanTag = "HYBRID"
)

// RetrievalPlan is the classifier's decision for one question. It is
// immutable once produced and consumed by exactly one orchestrator run.
type RetrievalPlan struct {
	Tag    PlanTag `json:"tag"`
	Filter Filter  `json:"filter,omitempty"`
	// Query is the text sent to the semantic path, usually the original
	// question.
	Query string `json:"query,omitempty"`
}

// HasStructured reports whether the plan runs the structured path. A
// STRUCTURED plan with an empty filter is a bounded match-all listing.
func (p RetrievalPlan) HasStructured() bool {
	return p.Tag == PlanStructured || (p.Tag == PlanHybrid && !p.Filter.Empty())
}

// HasSemantic reports whether the plan runs the semantic path.
func (p RetrievalPlan) HasSemantic() bool {
	return p.Tag == PlanSemantic || (p.Tag == PlanHybrid && p.Query != "")
}
