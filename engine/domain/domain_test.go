package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testRecord() InspectionRecord {
	return InspectionRecord{
		ID:          "R0237518-0777901",
		VIN:         "5UXWX7C50BA123456",
		InspectedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Inspector:   "B. Hartley",
		Ramp:        "ATL",
		Bay:         "B4",
		Model:       "X5 xDrive40i",
		DamageCount: 2,
		DamageCodes: "03-1",
		DamageDesc:  "scratched left fender",
	}
}

func TestSummaryDeterministic(t *testing.T) {
	r := testRecord()
	a, b := r.Summary(), r.Summary()
	if a != b {
		t.Fatalf("summary not deterministic:\n%s\n%s", a, b)
	}
	for _, want := range []string{"R0237518-0777901", "2024-03-01", "5UXWX7C50BA123456", "ramp ATL", "Damages: 2", "scratched left fender"} {
		if !strings.Contains(a, want) {
			t.Errorf("summary missing %q: %s", want, a)
		}
	}
}

func TestAttributesSkipsEmpty(t *testing.T) {
	r := testRecord()
	attrs := r.Attributes()
	if attrs[AttrVIN] != r.VIN {
		t.Errorf("vin = %q, want %q", attrs[AttrVIN], r.VIN)
	}
	if attrs[AttrDate] != "2024-03-01" {
		t.Errorf("inspected_at = %q", attrs[AttrDate])
	}
	if _, ok := attrs[AttrRailcar]; ok {
		t.Errorf("empty railcar should be absent, got %q", attrs[AttrRailcar])
	}
	if attrs[AttrDamageCount] != "2" {
		t.Errorf("damage_count = %q", attrs[AttrDamageCount])
	}
}

func TestFilterValidate(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr bool
	}{
		{
			name: "valid mixed",
			filter: Filter{Conditions: []Condition{
				{Attr: AttrVIN, Op: OpContains, Value: "ABC123"},
				{Attr: AttrDate, Op: OpGt, Value: "2024-01-01"},
				{Attr: AttrDamageCount, Op: OpGte, Value: "1"},
			}},
		},
		{
			name:   "membership",
			filter: Filter{Conditions: []Condition{{Attr: AttrRamp, Op: OpIn, Values: []string{"ATL", "JAX"}}}},
		},
		{
			name:    "unknown attribute",
			filter:  Filter{Conditions: []Condition{{Attr: "engine_color", Op: OpEq, Value: "red"}}},
			wantErr: true,
		},
		{
			name:    "range on text",
			filter:  Filter{Conditions: []Condition{{Attr: AttrInspector, Op: OpGt, Value: "a"}}},
			wantErr: true,
		},
		{
			name:    "bad date operand",
			filter:  Filter{Conditions: []Condition{{Attr: AttrDate, Op: OpGte, Value: "last tuesday"}}},
			wantErr: true,
		},
		{
			name:    "bad int operand",
			filter:  Filter{Conditions: []Condition{{Attr: AttrDamageCount, Op: OpLt, Value: "many"}}},
			wantErr: true,
		},
		{
			name:    "empty membership",
			filter:  Filter{Conditions: []Condition{{Attr: AttrRamp, Op: OpIn}}},
			wantErr: true,
		},
		{
			name:    "unknown operator",
			filter:  Filter{Conditions: []Condition{{Attr: AttrVIN, Op: Op("regex"), Value: ".*"}}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidField) {
				t.Fatalf("error %v should wrap ErrInvalidField", err)
			}
		})
	}
}

func TestFieldErrorCarriesName(t *testing.T) {
	err := NewFieldError("engine_color")
	if !strings.Contains(err.Error(), "engine_color") {
		t.Fatalf("error text missing field name: %v", err)
	}
	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatal("errors.As failed")
	}
	if fe.Field != "engine_color" {
		t.Fatalf("field = %q", fe.Field)
	}
}

func TestCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrPlanEmpty, CodePlanEmpty},
		{NewFieldError("x"), CodeInvalidField},
		{ErrRetrievalTimeout, CodeRetrievalTimeout},
		{ErrNoEvidence, CodeNoEvidence},
		{ErrModelUnavailable, CodeModelUnavailable},
		{ErrNotGrounded, CodeNotGrounded},
		{errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Errorf("Code(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestPlanPathSelection(t *testing.T) {
	filter := Filter{Conditions: []Condition{{Attr: AttrVIN, Op: OpEq, Value: "X"}}}

	p := RetrievalPlan{Tag: PlanStructured, Filter: filter}
	if !p.HasStructured() || p.HasSemantic() {
		t.Errorf("structured plan paths wrong: structured=%v semantic=%v", p.HasStructured(), p.HasSemantic())
	}

	p = RetrievalPlan{Tag: PlanSemantic, Query: "similar brake issues"}
	if p.HasStructured() || !p.HasSemantic() {
		t.Errorf("semantic plan paths wrong")
	}

	p = RetrievalPlan{Tag: PlanHybrid, Filter: filter, Query: "why"}
	if !p.HasStructured() || !p.HasSemantic() {
		t.Errorf("hybrid plan should run both paths")
	}
}

func TestEvidenceSetProjections(t *testing.T) {
	set := EvidenceSet{Items: []EvidenceItem{
		{Record: InspectionRecord{ID: "a"}, Provenance: FromBoth, Score: 1.0},
		{Record: InspectionRecord{ID: "b"}, Provenance: FromSemantic, Score: 0.7},
	}}
	if set.Empty() {
		t.Fatal("set should not be empty")
	}
	ids := set.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("ids = %v", ids)
	}
	cs := set.Citations()
	if cs[0].Provenance != FromBoth || cs[1].Score != 0.7 {
		t.Fatalf("citations = %+v", cs)
	}
}
