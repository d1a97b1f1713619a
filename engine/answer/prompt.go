package answer

import (
	"fmt"
	"strings"

	"github.com/aditya01hpl/Inspectra/engine/domain"
)

const systemPrompt = `You are an assistant for a vehicle-inspection record system.
Answer the user's question using ONLY the inspection records listed in the
prompt. If the records do not contain enough information, say so explicitly.
Cite records by their [n] label. Never invent record IDs, VINs, dates, or
numbers that are not in the listed records.`

// factOrder fixes the attribute rendering order inside a fact line. Stable
// rendering keeps prompts reproducible and makes the groundedness corpus
// independent of map iteration.
var factOrder = []string{
	domain.AttrVIN,
	domain.AttrDate,
	domain.AttrType,
	domain.AttrInspector,
	domain.AttrRamp,
	domain.AttrRailcar,
	domain.AttrBay,
	domain.AttrModel,
	domain.AttrDamageCount,
	domain.AttrDamageCodes,
	domain.AttrDamage,
	"damage_comments",
	"vehicle_comments",
	domain.AttrSourceFile,
}

// evidenceView is the rendered form of an evidence set. The prompt and the
// groundedness corpus are both built from the same fact and enrichment lines,
// so every value the model can see is a value the policy can verify.
type evidenceView struct {
	facts      []string
	enrichment []string
}

func newEvidenceView(ev domain.EvidenceSet) evidenceView {
	v := evidenceView{facts: make([]string, len(ev.Items))}
	for i, it := range ev.Items {
		v.facts[i] = factLine(i+1, it.Record)
	}
	v.enrichment = enrichmentLines(ev)
	return v
}

func factLine(label int, r domain.InspectionRecord) string {
	attrs := r.Attributes()
	parts := make([]string, 0, len(factOrder))
	for _, name := range factOrder {
		if val, ok := attrs[name]; ok {
			parts = append(parts, name+"="+val)
		}
	}
	return fmt.Sprintf("[%d] record %s: %s", label, r.ID, strings.Join(parts, " | "))
}

// enrichmentLines derives the aggregate summary of the evidence set: the
// pre-limit match total, the most common damage and inspector, and up to
// three source files. Count questions are answered from these lines.
func enrichmentLines(ev domain.EvidenceSet) []string {
	var lines []string

	total := ev.StructuredTotal
	if total < len(ev.Items) {
		total = len(ev.Items)
	}
	if total > 0 {
		lines = append(lines, fmt.Sprintf("Total matching records: %d", total))
	}
	if top, n := mostFrequent(ev, func(r domain.InspectionRecord) string { return r.DamageDesc }); top != "" {
		lines = append(lines, fmt.Sprintf("Most frequent damage: %s (%d records)", top, n))
	}
	if top, n := mostFrequent(ev, func(r domain.InspectionRecord) string { return r.Inspector }); top != "" {
		lines = append(lines, fmt.Sprintf("Most frequent inspector: %s (%d records)", top, n))
	}
	if files := sourceFiles(ev, 3); len(files) > 0 {
		lines = append(lines, "Source files: "+strings.Join(files, ", "))
	}
	return lines
}

// mostFrequent returns the most common non-empty value of one field across
// the evidence, ties broken by evidence order.
func mostFrequent(ev domain.EvidenceSet, field func(domain.InspectionRecord) string) (string, int) {
	counts := make(map[string]int)
	var order []string
	for _, it := range ev.Items {
		val := field(it.Record)
		if val == "" {
			continue
		}
		if counts[val] == 0 {
			order = append(order, val)
		}
		counts[val]++
	}
	best, bestN := "", 0
	for _, val := range order {
		if counts[val] > bestN {
			best, bestN = val, counts[val]
		}
	}
	return best, bestN
}

func sourceFiles(ev domain.EvidenceSet, max int) []string {
	seen := make(map[string]bool)
	var files []string
	for _, it := range ev.Items {
		f := it.Record.SourceFile
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		files = append(files, f)
		if len(files) == max {
			break
		}
	}
	return files
}

// corpus joins everything the model was shown about the evidence. The
// groundedness policy checks answer references against this text.
func (v evidenceView) corpus() string {
	var b strings.Builder
	for _, f := range v.facts {
		b.WriteString(f)
		b.WriteByte('\n')
	}
	for _, l := range v.enrichment {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

func buildPrompt(question string, v evidenceView, history []string) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("Earlier questions in this conversation (context only, not evidence):\n")
		for _, h := range history {
			b.WriteString("- ")
			b.WriteString(h)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	b.WriteString("Inspection records:\n")
	for _, f := range v.facts {
		b.WriteString(f)
		b.WriteByte('\n')
	}

	if len(v.enrichment) > 0 {
		b.WriteString("\nSummary of matches:\n")
		for _, l := range v.enrichment {
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

// buildRetryPrompt extends the prompt with the references the first draft
// used but the records do not contain.
func buildRetryPrompt(question string, v evidenceView, history []string, unsupported []string) string {
	var b strings.Builder
	b.WriteString(buildPrompt(question, v, history))
	b.WriteString("\n\nYour previous draft referenced identifiers or numbers that do not appear in the records above: ")
	b.WriteString(strings.Join(unsupported, ", "))
	b.WriteString(". Rewrite the answer using only the listed records and their [n] labels. If the records cannot answer the question, say so.")
	return b.String()
}
