package qa

import "github.com/aditya01hpl/Inspectra/engine/domain"

// Suggest produces the hint attached to a no-evidence refusal, shaped by
// what the question was filtering on.
func Suggest(plan domain.RetrievalPlan) string {
	has := func(attr string) bool {
		for _, c := range plan.Filter.Conditions {
			if c.Attr == attr {
				return true
			}
		}
		return false
	}
	switch {
	case has(domain.AttrVIN):
		return "Verify the VIN and try again, or search by just its last characters."
	case has(domain.AttrDate):
		return "Try widening the date range."
	case has(domain.AttrModel):
		return "Try the manufacturer's model code, like X5 or Q5."
	default:
		return "Try rephrasing with a VIN, record ID, date, or location."
	}
}
