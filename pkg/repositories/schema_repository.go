package repositories

import (
	"context"
	"fmt"

	"github.com/siselab/sise-engine/pkg/database"
	"github.com/siselab/sise-engine/pkg/models"
)

// SchemaRepository reads the administrative reference tables: attribute
// definitions, option sets, category bindings, and the region tree. These
// tables are managed elsewhere; the pipeline only ever reads them.
type SchemaRepository interface {
	ListAttributes(ctx context.Context) ([]*models.Attribute, error)
	ListAttributeOptions(ctx context.Context) ([]*models.AttributeOption, error)
	ListCategoryAttributes(ctx context.Context) ([]*models.CategoryAttribute, error)
	ListRegions(ctx context.Context) ([]*models.Region, error)
}

type schemaRepository struct {
	db *database.DB
}

// NewSchemaRepository creates a new SchemaRepository.
func NewSchemaRepository(db *database.DB) SchemaRepository {
	return &schemaRepository{db: db}
}

var _ SchemaRepository = (*schemaRepository)(nil)

func (r *schemaRepository) ListAttributes(ctx context.Context) ([]*models.Attribute, error) {
	query := `
		SELECT id, code, label, datatype, COALESCE(unit, '')
		FROM attributes
		ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query attributes: %w", err)
	}
	defer rows.Close()

	var attrs []*models.Attribute
	for rows.Next() {
		var a models.Attribute
		if err := rows.Scan(&a.ID, &a.Code, &a.Label, &a.Datatype, &a.Unit); err != nil {
			return nil, fmt.Errorf("failed to scan attribute: %w", err)
		}
		attrs = append(attrs, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attributes: %w", err)
	}
	return attrs, nil
}

func (r *schemaRepository) ListAttributeOptions(ctx context.Context) ([]*models.AttributeOption, error) {
	query := `
		SELECT id, attribute_id, value, sort_order
		FROM attribute_options
		ORDER BY attribute_id, sort_order, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query attribute options: %w", err)
	}
	defer rows.Close()

	var options []*models.AttributeOption
	for rows.Next() {
		var o models.AttributeOption
		if err := rows.Scan(&o.ID, &o.AttributeID, &o.Value, &o.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan attribute option: %w", err)
		}
		options = append(options, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attribute options: %w", err)
	}
	return options, nil
}

func (r *schemaRepository) ListCategoryAttributes(ctx context.Context) ([]*models.CategoryAttribute, error) {
	query := `
		SELECT category_id, attribute_id, is_required, COALESCE(display_group, ''), sort_order
		FROM category_attributes
		ORDER BY category_id, sort_order, attribute_id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query category attributes: %w", err)
	}
	defer rows.Close()

	var bindings []*models.CategoryAttribute
	for rows.Next() {
		var b models.CategoryAttribute
		if err := rows.Scan(&b.CategoryID, &b.AttributeID, &b.Required, &b.DisplayGroup, &b.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan category attribute: %w", err)
		}
		bindings = append(bindings, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category attributes: %w", err)
	}
	return bindings, nil
}

func (r *schemaRepository) ListRegions(ctx context.Context) ([]*models.Region, error) {
	query := `
		SELECT id, parent_id, level, name
		FROM regions
		ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query regions: %w", err)
	}
	defer rows.Close()

	var regions []*models.Region
	for rows.Next() {
		var rg models.Region
		if err := rows.Scan(&rg.ID, &rg.ParentID, &rg.Level, &rg.Name); err != nil {
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}
		regions = append(regions, &rg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating regions: %w", err)
	}
	return regions, nil
}
