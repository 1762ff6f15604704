package models

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// ValueKind tags which variant of AttrValue is populated.
type ValueKind string

const (
	KindText    ValueKind = "text"
	KindInt     ValueKind = "int"
	KindDecimal ValueKind = "decimal"
	KindBool    ValueKind = "bool"
	KindOption  ValueKind = "option"
)

// AttrValue is a tagged variant holding exactly one attribute value.
// It replaces the storage layer's parallel nullable columns so the rest of
// the pipeline can pattern-match on Kind instead of probing for NULLs.
type AttrValue struct {
	Kind     ValueKind       `json:"kind"`
	Text     string          `json:"text,omitempty"`
	Int      int64           `json:"int,omitempty"`
	Decimal  decimal.Decimal `json:"decimal,omitempty"`
	Bool     bool            `json:"bool,omitempty"`
	OptionID int64           `json:"option_id,omitempty"`
}

func TextValue(s string) AttrValue { return AttrValue{Kind: KindText, Text: s} }

func IntValue(n int64) AttrValue { return AttrValue{Kind: KindInt, Int: n} }

func DecimalValue(d decimal.Decimal) AttrValue { return AttrValue{Kind: KindDecimal, Decimal: d} }

func BoolValue(b bool) AttrValue { return AttrValue{Kind: KindBool, Bool: b} }

func OptionValue(optionID int64) AttrValue { return AttrValue{Kind: KindOption, OptionID: optionID} }

// String renders the value for logs and error messages.
func (v AttrValue) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindDecimal:
		return v.Decimal.String()
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindOption:
		return fmt.Sprintf("option:%d", v.OptionID)
	default:
		return "<empty>"
	}
}

// Matches reports whether the populated variant is legal for the declared
// datatype. Option values are legal wherever text is declared, since options
// constrain text attributes.
func (v AttrValue) Matches(dt Datatype) bool {
	switch v.Kind {
	case KindText, KindOption:
		return dt == DatatypeText
	case KindInt:
		return dt == DatatypeInt
	case KindDecimal:
		return dt == DatatypeDecimal
	case KindBool:
		return dt == DatatypeBool
	default:
		return false
	}
}
