package records

import (
	"errors"
	"strings"
	"testing"

	"github.com/aditya01hpl/Inspectra/engine/domain"
)

func TestBuildSelectShape(t *testing.T) {
	f := domain.Filter{Conditions: []domain.Condition{
		{Attr: domain.AttrVIN, Op: domain.OpContains, Value: "ABC123"},
		{Attr: domain.AttrDate, Op: domain.OpGt, Value: "2024-01-01"},
		{Attr: domain.AttrDamageCount, Op: domain.OpGte, Value: "3"},
	}}
	query, args, err := BuildSelect(f, 25)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{
		"instr(lower(vin), lower(?)) > 0",
		"date(inspected_at) > ?",
		"damage_count >= ?",
		"ORDER BY inspected_at DESC, record_id ASC LIMIT ?",
	} {
		if !strings.Contains(query, want) {
			t.Errorf("query missing %q:\n%s", want, query)
		}
	}
	if len(args) != 4 {
		t.Fatalf("args = %v, want 4", args)
	}
	if args[0] != "ABC123" || args[1] != "2024-01-01" {
		t.Errorf("operand args = %v", args[:2])
	}
	if n, ok := args[2].(int); !ok || n != 3 {
		t.Errorf("int operand = %v (%T)", args[2], args[2])
	}
	if n, ok := args[3].(int); !ok || n != 25 {
		t.Errorf("limit arg = %v (%T)", args[3], args[3])
	}
}

func TestBuildSelectDefaultLimit(t *testing.T) {
	query, args, err := BuildSelect(domain.Filter{}, 0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if strings.Contains(query, "WHERE") {
		t.Errorf("empty filter produced WHERE:\n%s", query)
	}
	if len(args) != 1 || args[0] != DefaultLimit {
		t.Errorf("args = %v, want [%d]", args, DefaultLimit)
	}
}

func TestBuildSelectCodedTextEq(t *testing.T) {
	f := domain.Filter{Conditions: []domain.Condition{
		{Attr: domain.AttrRamp, Op: domain.OpEq, Value: "atl"},
	}}
	query, _, err := BuildSelect(f, 10)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(query, "lower(ramp) = lower(?)") {
		t.Errorf("coded text eq clause missing:\n%s", query)
	}
}

func TestBuildSelectMembership(t *testing.T) {
	f := domain.Filter{Conditions: []domain.Condition{
		{Attr: domain.AttrRamp, Op: domain.OpIn, Values: []string{"atl", "jax"}},
	}}
	query, args, err := BuildSelect(f, 10)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(query, "lower(ramp) IN (lower(?),lower(?))") {
		t.Errorf("membership clause missing:\n%s", query)
	}
	if len(args) != 3 {
		t.Errorf("args = %v, want operands plus limit", args)
	}
}

func TestBuildSelectRejectsUnknownAttr(t *testing.T) {
	f := domain.Filter{Conditions: []domain.Condition{
		{Attr: "engine_color", Op: domain.OpEq, Value: "red"},
	}}
	_, _, err := BuildSelect(f, 10)
	var fe *domain.FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want FieldError", err)
	}
	if fe.Field != "engine_color" {
		t.Errorf("field = %q", fe.Field)
	}
}

func TestBuildSelectRejectsBadOperand(t *testing.T) {
	cases := []domain.Condition{
		{Attr: domain.AttrDamageCount, Op: domain.OpGt, Value: "many"},
		{Attr: domain.AttrDate, Op: domain.OpLt, Value: "not-a-date"},
		{Attr: domain.AttrModel, Op: domain.OpGt, Value: "x5"},
	}
	for _, c := range cases {
		_, _, err := BuildSelect(domain.Filter{Conditions: []domain.Condition{c}}, 10)
		var fe *domain.FieldError
		if !errors.As(err, &fe) {
			t.Errorf("%s %s %q: err = %v, want FieldError", c.Attr, c.Op, c.Value, err)
		}
	}
}

func TestBuildCount(t *testing.T) {
	f := domain.Filter{Conditions: []domain.Condition{
		{Attr: domain.AttrRamp, Op: domain.OpEq, Value: "atl"},
	}}
	query, args, err := BuildCount(f)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.HasPrefix(query, "SELECT COUNT(*) FROM inspections WHERE") {
		t.Errorf("query = %s", query)
	}
	if strings.Contains(query, "LIMIT") || strings.Contains(query, "ORDER BY") {
		t.Errorf("count query must not order or limit:\n%s", query)
	}
	if len(args) != 1 {
		t.Errorf("args = %v", args)
	}
}
