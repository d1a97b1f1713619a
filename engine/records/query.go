package records

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aditya01hpl/Inspectra/engine/domain"
)

// DefaultLimit bounds a Find when the caller passes no limit. Every
// structured query carries an explicit LIMIT; there is no unbounded path.
const DefaultLimit = 50

// attrColumns maps canonical attribute names to inspection table columns.
// Only names present here can ever reach SQL text; operand values are
// always bound parameters.
var attrColumns = map[string]string{
	domain.AttrID:          "record_id",
	domain.AttrVIN:         "vin",
	domain.AttrDate:        "inspected_at",
	domain.AttrType:        "inspection_type",
	domain.AttrInspector:   "inspector",
	domain.AttrRamp:        "ramp",
	domain.AttrRailcar:     "railcar",
	domain.AttrBay:         "bay",
	domain.AttrModel:       "model",
	domain.AttrDamageCount: "damage_count",
	domain.AttrDamageCodes: "damage_codes",
	domain.AttrDamage:      "damage_desc",
	domain.AttrSourceFile:  "source_file",
}

const selectColumns = `record_id, vin, inspected_at,
	COALESCE(inspection_type,''), COALESCE(inspector,''), COALESCE(ramp,''),
	COALESCE(railcar,''), COALESCE(bay,''), COALESCE(model,''),
	damage_count, COALESCE(damage_codes,''), COALESCE(damage_desc,''),
	COALESCE(damage_comments,''), COALESCE(vehicle_comments,''),
	COALESCE(source_file,'')`

// BuildSelect renders a validated filter as a parameterized SELECT over the
// inspections table. Ordering is fixed (inspected_at DESC, record_id ASC) so
// the same filter over the same data always returns the same rows in the
// same order.
func BuildSelect(f domain.Filter, limit int) (string, []any, error) {
	where, args, err := buildWhere(f)
	if err != nil {
		return "", nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(selectColumns)
	b.WriteString(" FROM inspections")
	b.WriteString(where)
	b.WriteString(" ORDER BY inspected_at DESC, record_id ASC LIMIT ?")
	args = append(args, limit)
	return b.String(), args, nil
}

// BuildCount renders the pre-limit match count for the same filter.
func BuildCount(f domain.Filter) (string, []any, error) {
	where, args, err := buildWhere(f)
	if err != nil {
		return "", nil, err
	}
	return "SELECT COUNT(*) FROM inspections" + where, args, nil
}

func buildWhere(f domain.Filter) (string, []any, error) {
	if err := f.Validate(); err != nil {
		return "", nil, err
	}
	if f.Empty() {
		return "", nil, nil
	}

	clauses := make([]string, 0, len(f.Conditions))
	var args []any
	for _, c := range f.Conditions {
		attr, ok := domain.AttributeByName(c.Attr)
		if !ok {
			return "", nil, domain.NewFieldError(c.Attr)
		}
		clause, condArgs, err := condClause(attr, c)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
		args = append(args, condArgs...)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func condClause(attr domain.Attribute, c domain.Condition) (string, []any, error) {
	col := attrColumns[attr.Name]

	if c.Op == domain.OpIn {
		return inClause(attr, col, c.Values)
	}

	op, ok := compOps[c.Op]
	if !ok {
		return "", nil, domain.NewFieldError(c.Attr)
	}

	switch attr.Kind {
	case domain.KindDate:
		// Filters carry day precision; compare on the day.
		return fmt.Sprintf("date(%s) %s ?", col, op), []any{c.Value}, nil
	case domain.KindInt:
		n, err := strconv.Atoi(c.Value)
		if err != nil {
			return "", nil, domain.NewFieldError(c.Attr)
		}
		return fmt.Sprintf("%s %s ?", col, op), []any{n}, nil
	default:
		if c.Op == domain.OpContains {
			// instr keeps the operand a plain substring; there is no
			// wildcard syntax for a bound value to smuggle in.
			return fmt.Sprintf("instr(lower(%s), lower(?)) > 0", col), []any{c.Value}, nil
		}
		return fmt.Sprintf("lower(%s) %s lower(?)", col, op), []any{c.Value}, nil
	}
}

func inClause(attr domain.Attribute, col string, values []string) (string, []any, error) {
	holders := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for _, v := range values {
		switch attr.Kind {
		case domain.KindDate:
			holders = append(holders, "?")
			args = append(args, v)
		case domain.KindInt:
			n, err := strconv.Atoi(v)
			if err != nil {
				return "", nil, domain.NewFieldError(attr.Name)
			}
			holders = append(holders, "?")
			args = append(args, n)
		default:
			holders = append(holders, "lower(?)")
			args = append(args, v)
		}
	}
	lhs := "lower(" + col + ")"
	if attr.Kind == domain.KindDate {
		lhs = "date(" + col + ")"
	} else if attr.Kind == domain.KindInt {
		lhs = col
	}
	return lhs + " IN (" + strings.Join(holders, ",") + ")", args, nil
}

var compOps = map[domain.Op]string{
	domain.OpEq:  "=",
	domain.OpGt:  ">",
	domain.OpGte: ">=",
	domain.OpLt:  "<",
	domain.OpLte: "<=",
}
