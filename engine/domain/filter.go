package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Op is a filter operator. The algebra is deliberately small: equality,
// substring containment (the equality form for free-text attributes), ranges,
// and membership. User text only ever appears as a bound value, never as
// query syntax.
type Op string

const (
	OpEq       Op = "eq"
	OpContains Op = "contains"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpIn       Op = "in"
)

// Condition constrains one whitelisted attribute. Value holds the operand for
// scalar operators; Values holds the operands for OpIn.
type Condition struct {
	Attr   string   `json:"attr"`
	Op     Op       `json:"op"`
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
}

// Filter is a conjunction of conditions over the record schema.
type Filter struct {
	Conditions []Condition `json:"conditions,omitempty"`
}

// Empty reports whether the filter constrains nothing.
func (f Filter) Empty() bool { return len(f.Conditions) == 0 }

// Validate checks every condition against the schema whitelist and the
// operator rules for the attribute's kind. Any violation is reported as a
// FieldError so it surfaces as invalid-field, per the taxonomy: a filter that
// cannot be validated is never executed.
func (f Filter) Validate() error {
	for _, c := range f.Conditions {
		attr, ok := AttributeByName(c.Attr)
		if !ok {
			return NewFieldError(c.Attr)
		}
		if err := c.validateFor(attr); err != nil {
			return err
		}
	}
	return nil
}

func (c Condition) validateFor(attr Attribute) error {
	switch c.Op {
	case OpEq, OpContains:
		if c.Value == "" {
			return NewFieldError(c.Attr)
		}
	case OpGt, OpGte, OpLt, OpLte:
		if attr.Kind == KindText {
			return NewFieldError(c.Attr)
		}
		if c.Value == "" {
			return NewFieldError(c.Attr)
		}
	case OpIn:
		if len(c.Values) == 0 {
			return NewFieldError(c.Attr)
		}
	default:
		return NewFieldError(c.Attr)
	}

	check := func(v string) error {
		switch attr.Kind {
		case KindDate:
			if _, err := ParseDate(v); err != nil {
				return NewFieldError(c.Attr)
			}
		case KindInt:
			if _, err := strconv.Atoi(v); err != nil {
				return NewFieldError(c.Attr)
			}
		}
		return nil
	}
	if c.Op == OpIn {
		for _, v := range c.Values {
			if err := check(v); err != nil {
				return err
			}
		}
		return nil
	}
	return check(c.Value)
}

// String renders the filter in a compact debug form, e.g.
// "vin~ABC123 inspected_at>2024-01-01".
func (f Filter) String() string {
	if f.Empty() {
		return "(empty)"
	}
	parts := make([]string, 0, len(f.Conditions))
	for _, c := range f.Conditions {
		switch c.Op {
		case OpEq:
			parts = append(parts, c.Attr+"="+c.Value)
		case OpContains:
			parts = append(parts, c.Attr+"~"+c.Value)
		case OpGt:
			parts = append(parts, c.Attr+">"+c.Value)
		case OpGte:
			parts = append(parts, c.Attr+">="+c.Value)
		case OpLt:
			parts = append(parts, c.Attr+"<"+c.Value)
		case OpLte:
			parts = append(parts, c.Attr+"<="+c.Value)
		case OpIn:
			parts = append(parts, c.Attr+" in ("+strings.Join(c.Values, ",")+")")
		}
	}
	return strings.Join(parts, " ")
}

// ParseDate parses a filter date operand.
func ParseDate(v string) (t time.Time, err error) {
	t, err = time.Parse(DateLayout, v)
	if err != nil {
		err = fmt.Errorf("parse date %q: %w", v, err)
	}
	return t, err
}
