package identity

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/siselab/sise-engine/pkg/apperrors"
	"github.com/siselab/sise-engine/pkg/models"
	"github.com/siselab/sise-engine/pkg/schema"
)

// RuleVersion identifies the canonicalization and fingerprint rules. It is
// folded into the schema version, so changing any rule here forces a full
// catalog rebuild instead of silently mixing fingerprints.
const RuleVersion = "v1"

// decimalScale is the fixed scale decimal values are rendered at inside
// fingerprints, matching the NUMERIC(18,4) storage columns.
const decimalScale = 4

// NormalizeText applies the fixed text canonicalization rule: NFKC
// normalization (full-width digits and Hangul compatibility forms are common
// in crawled listings), whitespace trimming and collapsing, and lower-casing.
func NormalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// Canonicalizer turns raw attribute values into canonical values suitable for
// hashing and comparison. It pattern-matches on the value's kind against the
// attribute's declared datatype.
type Canonicalizer struct {
	reg     *schema.Registry
	options map[int64]map[string]int64 // attribute ID -> normalized value -> option ID
	logger  *zap.Logger
}

// NewCanonicalizer builds a Canonicalizer over a schema snapshot. The option
// index is built up front so the canonicalizer is safe for concurrent use.
func NewCanonicalizer(reg *schema.Registry, logger *zap.Logger) *Canonicalizer {
	c := &Canonicalizer{
		reg:     reg,
		options: make(map[int64]map[string]int64),
		logger:  logger.Named("canonicalizer"),
	}
	for _, attr := range reg.Attributes() {
		opts := reg.OptionsForAttribute(attr.ID)
		if len(opts) == 0 {
			continue
		}
		idx := make(map[string]int64, len(opts))
		for _, o := range opts {
			idx[NormalizeText(o.Value)] = o.ID
		}
		c.options[attr.ID] = idx
	}
	return c
}

// Canonicalize returns the canonical form of one attribute value.
// Option-constrained text maps to the option's identity; values outside the
// option set return ErrUnmappedOption and are excluded by the caller. A value
// whose kind contradicts the declared datatype returns ErrDataIntegrity.
func (c *Canonicalizer) Canonicalize(attr *models.Attribute, v models.AttrValue) (models.AttrValue, error) {
	if !v.Matches(attr.Datatype) {
		return models.AttrValue{}, fmt.Errorf("attribute %q declared %s but holds %s value: %w",
			attr.Code, attr.Datatype, v.Kind, apperrors.ErrDataIntegrity)
	}

	switch attr.Datatype {
	case models.DatatypeText:
		opts := c.reg.OptionsForAttribute(attr.ID)
		if v.Kind == models.KindOption {
			if opt := c.reg.OptionByID(v.OptionID); opt == nil || opt.AttributeID != attr.ID {
				return models.AttrValue{}, fmt.Errorf("attribute %q references option %d outside its option set: %w",
					attr.Code, v.OptionID, apperrors.ErrDataIntegrity)
			}
			return v, nil
		}
		normalized := NormalizeText(v.Text)
		if len(opts) == 0 {
			return models.TextValue(normalized), nil
		}
		optionID, ok := c.options[attr.ID][normalized]
		if !ok {
			c.logger.Warn("Value not in option set, excluded from fingerprint",
				zap.String("attribute", attr.Code),
				zap.String("value", v.Text))
			return models.AttrValue{}, apperrors.ErrUnmappedOption
		}
		return models.OptionValue(optionID), nil

	case models.DatatypeInt:
		return v, nil

	case models.DatatypeDecimal:
		// Fixed scale keeps the identity string free of float artifacts.
		return models.DecimalValue(v.Decimal.Round(decimalScale)), nil

	case models.DatatypeBool:
		return v, nil

	default:
		return models.AttrValue{}, fmt.Errorf("attribute %q has unknown datatype %q: %w",
			attr.Code, attr.Datatype, apperrors.ErrDataIntegrity)
	}
}

// TokenFor renders a canonical value as its fingerprint token. Tokens are
// stable across runs: text as t:<normalized>, ints as i:<n>, decimals as
// d:<fixed-scale>, bools as b:1/b:0, options as o:<option_id>.
func TokenFor(v models.AttrValue) string {
	switch v.Kind {
	case models.KindText:
		return "t:" + v.Text
	case models.KindInt:
		return "i:" + strconv.FormatInt(v.Int, 10)
	case models.KindDecimal:
		return "d:" + v.Decimal.StringFixed(decimalScale)
	case models.KindBool:
		if v.Bool {
			return "b:1"
		}
		return "b:0"
	case models.KindOption:
		return "o:" + strconv.FormatInt(v.OptionID, 10)
	default:
		return ""
	}
}
