// Package domain defines the core types of the inspection question-answering
// engine: inspection records, the attribute schema, the filter algebra,
// retrieval plans, evidence, and the error taxonomy shared by every layer.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and filter format for inspection dates.
const DateLayout = "2006-01-02"

// InspectionRecord is an immutable snapshot of one vehicle inspection.
// The engine holds read-only copies only; mutation happens upstream of the
// record store, never here.
type InspectionRecord struct {
	ID              string    `json:"record_id"`
	VIN             string    `json:"vin"`
	InspectedAt     time.Time `json:"inspected_at"`
	InspectionType  string    `json:"inspection_type,omitempty"`
	Inspector       string    `json:"inspector,omitempty"`
	Ramp            string    `json:"ramp,omitempty"`
	Railcar         string    `json:"railcar,omitempty"`
	Bay             string    `json:"bay,omitempty"`
	Model           string    `json:"model,omitempty"`
	DamageCount     int       `json:"damage_count"`
	DamageCodes     string    `json:"damage_codes,omitempty"`
	DamageDesc      string    `json:"damage_desc,omitempty"`
	DamageComments  string    `json:"damage_comments,omitempty"`
	VehicleComments string    `json:"vehicle_comments,omitempty"`
	SourceFile      string    `json:"source_file,omitempty"`
}

// Summary renders the record as the one-paragraph text that is embedded at
// index-build time. Field order is fixed so the same record always produces
// the same summary, and therefore the same vector for a given model version.
func (r InspectionRecord) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Inspection %s on %s", r.ID, r.InspectedAt.Format(DateLayout))
	if r.InspectionType != "" {
		fmt.Fprintf(&b, " (%s)", r.InspectionType)
	}
	fmt.Fprintf(&b, ": VIN %s", r.VIN)
	if r.Model != "" {
		fmt.Fprintf(&b, ", model %s", r.Model)
	}
	if r.Ramp != "" {
		fmt.Fprintf(&b, ", ramp %s", r.Ramp)
	}
	if r.Bay != "" {
		fmt.Fprintf(&b, ", bay %s", r.Bay)
	}
	if r.Railcar != "" {
		fmt.Fprintf(&b, ", railcar %s", r.Railcar)
	}
	if r.Inspector != "" {
		fmt.Fprintf(&b, ", inspected by %s", r.Inspector)
	}
	fmt.Fprintf(&b, ". Damages: %d", r.DamageCount)
	if r.DamageCodes != "" {
		fmt.Fprintf(&b, " (codes %s)", r.DamageCodes)
	}
	if r.DamageDesc != "" {
		fmt.Fprintf(&b, ". %s", r.DamageDesc)
	}
	if r.DamageComments != "" {
		fmt.Fprintf(&b, ". %s", r.DamageComments)
	}
	if r.VehicleComments != "" {
		fmt.Fprintf(&b, ". %s", r.VehicleComments)
	}
	return b.String()
}

// Attributes renders the record's non-empty fields as canonical attribute
// name to value pairs. Prompt construction and the groundedness corpus both
// read this view, so an attribute visible to the model is always checkable
// by the grounding policy.
func (r InspectionRecord) Attributes() map[string]string {
	m := map[string]string{
		AttrID:   r.ID,
		AttrVIN:  r.VIN,
		AttrDate: r.InspectedAt.Format(DateLayout),
	}
	put := func(name, v string) {
		if v != "" {
			m[name] = v
		}
	}
	put(AttrType, r.InspectionType)
	put(AttrInspector, r.Inspector)
	put(AttrRamp, r.Ramp)
	put(AttrRailcar, r.Railcar)
	put(AttrBay, r.Bay)
	put(AttrModel, r.Model)
	m[AttrDamageCount] = fmt.Sprintf("%d", r.DamageCount)
	put(AttrDamageCodes, r.DamageCodes)
	put(AttrDamage, r.DamageDesc)
	put(AttrSourceFile, r.SourceFile)
	if r.DamageComments != "" {
		m["damage_comments"] = r.DamageComments
	}
	if r.VehicleComments != "" {
		m["vehicle_comments"] = r.VehicleComments
	}
	return m
}
