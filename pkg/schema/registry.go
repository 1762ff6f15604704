package schema

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/siselab/sise-engine/pkg/models"
)

// Reader provides the reference-data reads the registry is built from.
// Implemented by repositories.SchemaRepository.
type Reader interface {
	ListAttributes(ctx context.Context) ([]*models.Attribute, error)
	ListAttributeOptions(ctx context.Context) ([]*models.AttributeOption, error)
	ListCategoryAttributes(ctx context.Context) ([]*models.CategoryAttribute, error)
}

// Registry is an immutable snapshot of the attribute schema: attribute
// definitions, their option sets, and which attributes each category uses.
// It is loaded once per run; the underlying tables are administrative and
// stable, so the snapshot never refreshes mid-run.
type Registry struct {
	attrsByID          map[int64]*models.Attribute
	attrsByCode        map[string]*models.Attribute
	optionsByID        map[int64]*models.AttributeOption
	optionsByAttr      map[int64][]*models.AttributeOption
	bindingsByCategory map[int64][]*models.CategoryAttribute
}

// Load reads the full attribute schema into a Registry snapshot.
func Load(ctx context.Context, r Reader) (*Registry, error) {
	attrs, err := r.ListAttributes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load attributes: %w", err)
	}
	options, err := r.ListAttributeOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load attribute options: %w", err)
	}
	bindings, err := r.ListCategoryAttributes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load category attributes: %w", err)
	}

	reg := &Registry{
		attrsByID:          make(map[int64]*models.Attribute, len(attrs)),
		attrsByCode:        make(map[string]*models.Attribute, len(attrs)),
		optionsByID:        make(map[int64]*models.AttributeOption, len(options)),
		optionsByAttr:      make(map[int64][]*models.AttributeOption),
		bindingsByCategory: make(map[int64][]*models.CategoryAttribute),
	}
	for _, a := range attrs {
		reg.attrsByID[a.ID] = a
		reg.attrsByCode[a.Code] = a
	}
	for _, o := range options {
		reg.optionsByID[o.ID] = o
		reg.optionsByAttr[o.AttributeID] = append(reg.optionsByAttr[o.AttributeID], o)
	}
	for _, b := range bindings {
		reg.bindingsByCategory[b.CategoryID] = append(reg.bindingsByCategory[b.CategoryID], b)
	}
	for _, opts := range reg.optionsByAttr {
		sort.Slice(opts, func(i, j int) bool { return opts[i].ID < opts[j].ID })
	}
	for _, bs := range reg.bindingsByCategory {
		sort.Slice(bs, func(i, j int) bool { return bs[i].AttributeID < bs[j].AttributeID })
	}
	return reg, nil
}

// Attributes returns every attribute definition, ordered by ID.
func (r *Registry) Attributes() []*models.Attribute {
	attrs := make([]*models.Attribute, 0, len(r.attrsByID))
	for _, a := range r.attrsByID {
		attrs = append(attrs, a)
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].ID < attrs[j].ID })
	return attrs
}

// AttributeByID returns the attribute definition, or nil if unknown.
func (r *Registry) AttributeByID(id int64) *models.Attribute {
	return r.attrsByID[id]
}

// AttributeByCode returns the attribute definition, or nil if unknown.
func (r *Registry) AttributeByCode(code string) *models.Attribute {
	return r.attrsByCode[code]
}

// OptionByID returns the option row, or nil if unknown.
func (r *Registry) OptionByID(id int64) *models.AttributeOption {
	return r.optionsByID[id]
}

// OptionsForAttribute returns the option set of an attribute, ordered by ID.
// An empty result means the attribute is not option-constrained.
func (r *Registry) OptionsForAttribute(attributeID int64) []*models.AttributeOption {
	return r.optionsByAttr[attributeID]
}

// BindingsForCategory returns the attributes registered for a category,
// ordered by attribute ID. Attributes outside this set are ignored for
// fingerprinting even when present on an item.
func (r *Registry) BindingsForCategory(categoryID int64) []*models.CategoryAttribute {
	return r.bindingsByCategory[categoryID]
}

// Version digests the full schema definition together with the identity rule
// version and the bucket policy (granularity and timezone). Fingerprints and
// bucket boundaries computed under differing versions are not comparable, so
// any change forces a full rebuild.
func (r *Registry) Version(identityRuleVersion, bucketGranularity, bucketTimezone string) string {
	var sb strings.Builder
	sb.WriteString("rule=")
	sb.WriteString(identityRuleVersion)
	sb.WriteString(";bucket=")
	sb.WriteString(bucketGranularity)
	sb.WriteString(";tz=")
	sb.WriteString(bucketTimezone)

	attrIDs := make([]int64, 0, len(r.attrsByID))
	for id := range r.attrsByID {
		attrIDs = append(attrIDs, id)
	}
	sort.Slice(attrIDs, func(i, j int) bool { return attrIDs[i] < attrIDs[j] })
	for _, id := range attrIDs {
		a := r.attrsByID[id]
		fmt.Fprintf(&sb, ";attr=%d:%s:%s:%s", a.ID, a.Code, a.Datatype, a.Unit)
		for _, o := range r.optionsByAttr[id] {
			fmt.Fprintf(&sb, ";opt=%d:%s", o.ID, o.Value)
		}
	}

	catIDs := make([]int64, 0, len(r.bindingsByCategory))
	for id := range r.bindingsByCategory {
		catIDs = append(catIDs, id)
	}
	sort.Slice(catIDs, func(i, j int) bool { return catIDs[i] < catIDs[j] })
	for _, id := range catIDs {
		for _, b := range r.bindingsByCategory[id] {
			fmt.Fprintf(&sb, ";bind=%d:%d:%t", b.CategoryID, b.AttributeID, b.Required)
		}
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
