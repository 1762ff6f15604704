package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/siselab/sise-engine/pkg/apperrors"
	"github.com/siselab/sise-engine/pkg/models"
	"github.com/siselab/sise-engine/pkg/schema"
)

// fingerprintHexLen is the rendered digest width. 128 bits of sha256 is far
// beyond any realistic catalog size; collisions are treated as negligible.
const fingerprintHexLen = 32

// Identity is the output of the fingerprint function: the digest itself, the
// serialized canonical form it was computed over, and the canonical
// attribute-value set that defines the SKU.
type Identity struct {
	Fingerprint string
	Serialized  string
	Values      []models.SKUAttribute // SKUID unset until the SKU is resolved
}

// Engine derives a SKU identity from an item's raw attribute values. It is
// the single shared identity function: the resolver and every aggregation
// pass go through it, and RuleVersion makes rule changes detectable as drift.
type Engine struct {
	reg    *schema.Registry
	canon  *Canonicalizer
	logger *zap.Logger
}

// NewEngine builds an Engine over a schema snapshot.
func NewEngine(reg *schema.Registry, logger *zap.Logger) *Engine {
	return &Engine{
		reg:    reg,
		canon:  NewCanonicalizer(reg, logger),
		logger: logger.Named("fingerprint"),
	}
}

// Fingerprint computes the identity of an item's attribute-value set within a
// category. Only attributes registered for the category participate; pairs
// are ordered by attribute code so input order never changes the result.
//
// Returns apperrors.ErrIneligible when a required attribute is absent (or its
// only value fell outside an option set) and apperrors.ErrDataIntegrity when
// a value contradicts its declared datatype.
func (e *Engine) Fingerprint(categoryID int64, values []models.ItemAttributeValue) (*Identity, error) {
	byAttr := make(map[int64]models.AttrValue, len(values))
	for _, v := range values {
		byAttr[v.AttributeID] = v.Value
	}

	type pair struct {
		code  string
		token string
		value models.SKUAttribute
	}
	var pairs []pair

	for _, binding := range e.reg.BindingsForCategory(categoryID) {
		attr := e.reg.AttributeByID(binding.AttributeID)
		if attr == nil {
			return nil, fmt.Errorf("category %d binds unknown attribute %d: %w",
				categoryID, binding.AttributeID, apperrors.ErrDataIntegrity)
		}

		raw, present := byAttr[attr.ID]
		var canonical models.AttrValue
		if present {
			var err error
			canonical, err = e.canon.Canonicalize(attr, raw)
			switch {
			case errors.Is(err, apperrors.ErrUnmappedOption):
				present = false
			case err != nil:
				return nil, err
			}
		}

		if !present {
			if binding.Required {
				return nil, fmt.Errorf("category %d requires attribute %q: %w",
					categoryID, attr.Code, apperrors.ErrIneligible)
			}
			continue
		}

		pairs = append(pairs, pair{
			code:  attr.Code,
			token: TokenFor(canonical),
			value: models.SKUAttribute{AttributeID: attr.ID, Value: canonical},
		})
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].code < pairs[j].code })

	parts := make([]string, len(pairs))
	identity := &Identity{Values: make([]models.SKUAttribute, len(pairs))}
	for i, p := range pairs {
		parts[i] = p.code + "=" + p.token
		identity.Values[i] = p.value
	}
	identity.Serialized = strings.Join(parts, "|")
	identity.Fingerprint = digest(categoryID, identity.Serialized)
	return identity, nil
}

// SerializeStored rebuilds the canonical serialized form from a SKU's stored
// attribute rows, for comparison against a freshly computed identity.
func (e *Engine) SerializeStored(attrs []models.SKUAttribute) (string, error) {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		attr := e.reg.AttributeByID(a.AttributeID)
		if attr == nil {
			return "", fmt.Errorf("stored SKU attribute references unknown attribute %d: %w",
				a.AttributeID, apperrors.ErrDataIntegrity)
		}
		parts = append(parts, attr.Code+"="+TokenFor(a.Value))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|"), nil
}

func digest(categoryID int64, serialized string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s", categoryID, serialized)))
	return hex.EncodeToString(sum[:])[:fingerprintHexLen]
}
