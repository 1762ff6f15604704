package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/siselab/sise-engine/pkg/apperrors"
	"github.com/siselab/sise-engine/pkg/database"
	"github.com/siselab/sise-engine/pkg/models"
)

// SKURepository maintains the SKU catalog. The only write path is
// CreateIfAbsent, which guarantees exactly one SKU row per fingerprint under
// concurrent resolution.
type SKURepository interface {
	// GetByID returns the SKU row, or apperrors.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*models.SKU, error)

	// GetByFingerprint returns the SKU for a fingerprint, or nil when absent.
	GetByFingerprint(ctx context.Context, fingerprint string) (*models.SKU, error)

	// GetAttributes returns the canonical attribute-value set of a SKU.
	GetAttributes(ctx context.Context, skuID int64) ([]models.SKUAttribute, error)

	// CreateIfAbsent inserts the SKU and its canonical values atomically.
	// When another worker won the race, the winner's ID is returned with
	// created=false and nothing is written.
	CreateIfAbsent(ctx context.Context, sku *models.SKU, attrs []models.SKUAttribute) (skuID int64, created bool, err error)

	// PruneUnreferenced deletes SKUs no price_stats row references, returning
	// the number removed. Run after a full rebuild has replaced the stats, so
	// rows fingerprinted under a retired rule drop out of the catalog.
	PruneUnreferenced(ctx context.Context) (int64, error)
}

type skuRepository struct {
	db *database.DB
}

// NewSKURepository creates a new SKURepository.
func NewSKURepository(db *database.DB) SKURepository {
	return &skuRepository{db: db}
}

var _ SKURepository = (*skuRepository)(nil)

func (r *skuRepository) GetByID(ctx context.Context, id int64) (*models.SKU, error) {
	query := `SELECT id, category_id, fingerprint, created_at FROM skus WHERE id = $1`

	var s models.SKU
	err := r.db.QueryRow(ctx, query, id).Scan(&s.ID, &s.CategoryID, &s.Fingerprint, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sku %d: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query SKU by id: %w", err)
	}
	return &s, nil
}

func (r *skuRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*models.SKU, error) {
	query := `SELECT id, category_id, fingerprint, created_at FROM skus WHERE fingerprint = $1`

	var s models.SKU
	err := r.db.QueryRow(ctx, query, fingerprint).Scan(&s.ID, &s.CategoryID, &s.Fingerprint, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // SKU not found
		}
		return nil, fmt.Errorf("failed to query SKU by fingerprint: %w", err)
	}
	return &s, nil
}

func (r *skuRepository) GetAttributes(ctx context.Context, skuID int64) ([]models.SKUAttribute, error) {
	query := `
		SELECT sku_id, attribute_id, option_id, value_text, value_int, value_decimal::text, value_bool
		FROM sku_attributes
		WHERE sku_id = $1
		ORDER BY attribute_id`

	rows, err := r.db.Query(ctx, query, skuID)
	if err != nil {
		return nil, fmt.Errorf("failed to query SKU attributes: %w", err)
	}
	defer rows.Close()

	var attrs []models.SKUAttribute
	for rows.Next() {
		var (
			id, attributeID int64
			optionID        *int64
			valueText       *string
			valueInt        *int64
			valueDecimal    *string
			valueBool       *bool
		)
		if err := rows.Scan(&id, &attributeID, &optionID, &valueText, &valueInt, &valueDecimal, &valueBool); err != nil {
			return nil, fmt.Errorf("failed to scan SKU attribute: %w", err)
		}
		value, err := attrValueFromColumns(optionID, valueText, valueInt, valueDecimal, valueBool)
		if err != nil {
			return nil, fmt.Errorf("sku %d attribute %d: %w", id, attributeID, err)
		}
		attrs = append(attrs, models.SKUAttribute{SKUID: id, AttributeID: attributeID, Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating SKU attributes: %w", err)
	}
	return attrs, nil
}

func (r *skuRepository) CreateIfAbsent(ctx context.Context, sku *models.SKU, attrs []models.SKUAttribute) (int64, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin SKU transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertSKU := `
		INSERT INTO skus (category_id, fingerprint)
		VALUES ($1, $2)
		ON CONFLICT (fingerprint) DO NOTHING
		RETURNING id`

	var skuID int64
	err = tx.QueryRow(ctx, insertSKU, sku.CategoryID, sku.Fingerprint).Scan(&skuID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the insert race: re-read the winner's row.
		existing, err := r.GetByFingerprint(ctx, sku.Fingerprint)
		if err != nil {
			return 0, false, err
		}
		if existing == nil {
			return 0, false, fmt.Errorf("SKU %s vanished after insert conflict", sku.Fingerprint)
		}
		return existing.ID, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert SKU: %w", err)
	}

	insertAttr := `
		INSERT INTO sku_attributes (sku_id, attribute_id, option_id, value_text, value_int, value_decimal, value_bool)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, a := range attrs {
		optionID, valueText, valueInt, valueDecimal, valueBool := attrValueToColumns(a.Value)
		if _, err := tx.Exec(ctx, insertAttr, skuID, a.AttributeID,
			optionID, valueText, valueInt, valueDecimal, valueBool); err != nil {
			return 0, false, fmt.Errorf("failed to insert SKU attribute %d: %w", a.AttributeID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("failed to commit SKU transaction: %w", err)
	}
	return skuID, true, nil
}

func (r *skuRepository) PruneUnreferenced(ctx context.Context) (int64, error) {
	// sku_attributes rows go with the SKU via the cascade.
	tag, err := r.db.Exec(ctx, `
		DELETE FROM skus s
		WHERE NOT EXISTS (SELECT 1 FROM price_stats ps WHERE ps.sku_id = s.id)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune unreferenced SKUs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// attrValueToColumns spreads the tagged variant back over the storage
// layer's nullable columns.
func attrValueToColumns(v models.AttrValue) (optionID *int64, valueText *string, valueInt *int64, valueDecimal *string, valueBool *bool) {
	switch v.Kind {
	case models.KindOption:
		optionID = &v.OptionID
	case models.KindText:
		valueText = &v.Text
	case models.KindInt:
		valueInt = &v.Int
	case models.KindDecimal:
		s := v.Decimal.String()
		valueDecimal = &s
	case models.KindBool:
		valueBool = &v.Bool
	}
	return
}
