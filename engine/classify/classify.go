// Package classify decides, for each question, which retrieval paths
// to run. The decision is purely rule-based over fixed vocabularies
// and regex tables: structured signals (identifiers, dates, named
// attributes, count comparisons) build a filter, descriptive damage
// language routes to the vector index, and both together produce a
// hybrid plan. No model call is involved; the same question always
// yields the same plan for a fixed clock.
package classify

import (
	"fmt"
	"strings"
	"time"

	"github.com/aditya01hpl/Inspectra/engine/domain"
)

// Classifier builds retrieval plans. Safe for concurrent use.
type Classifier struct {
	// now resolves relative dates ("last week"); replaced in tests.
	now func() time.Time
}

// New returns a Classifier with the real clock.
func New() *Classifier {
	return &Classifier{now: time.Now}
}

// Classify maps a question to a retrieval plan.
//
// Questions that cannot yield any query fail with ErrPlanEmpty: empty
// input, pure filler, and write-shaped requests (the engine is
// read-only). An explicit reference to an attribute outside the schema
// fails with a FieldError before anything executes. When structured
// signals leave descriptive residue, the plan is hybrid rather than
// structured, so semantic evidence is never silently dropped.
func (c *Classifier) Classify(question string) (domain.RetrievalPlan, error) {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return domain.RetrievalPlan{}, fmt.Errorf("empty question: %w", domain.ErrPlanEmpty)
	}
	if isMutation(q) {
		return domain.RetrievalPlan{}, fmt.Errorf("records are read-only, modification requests cannot be planned: %w", domain.ErrPlanEmpty)
	}

	x := &extraction{}
	x.extractVehicle(q)
	x.extractIdentifiers(q)
	x.extractPlaces(q)
	x.extractDamageCounts(q)
	x.extractFieldRefs(q)
	x.extractDates(q, c.now())
	x.extractMarkers(q)

	if x.fieldErr != nil {
		return domain.RetrievalPlan{}, x.fieldErr
	}

	filter := domain.Filter{Conditions: x.conds}
	if err := filter.Validate(); err != nil {
		return domain.RetrievalPlan{}, err
	}

	residue := x.residue(q)

	switch {
	case len(x.conds) > 0:
		if len(residue) > 0 || x.open {
			// Damage language makes a focused vector query; anything
			// else keeps the full question for embedding context.
			query := q
			if hasDamageLanguage(residue) {
				query = strings.Join(residue, " ")
			}
			return domain.RetrievalPlan{Tag: domain.PlanHybrid, Filter: filter, Query: query}, nil
		}
		return domain.RetrievalPlan{Tag: domain.PlanStructured, Filter: filter}, nil

	case x.count || x.list:
		// A bounded match-all listing; recency ordering and the row
		// limit come from the structured path itself.
		return domain.RetrievalPlan{Tag: domain.PlanStructured}, nil

	case len(residue) > 0 || x.open:
		return domain.RetrievalPlan{Tag: domain.PlanSemantic, Query: q}, nil

	default:
		return domain.RetrievalPlan{}, fmt.Errorf("question carries no retrievable signal: %w", domain.ErrPlanEmpty)
	}
}
