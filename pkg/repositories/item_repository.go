package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/siselab/sise-engine/pkg/database"
	"github.com/siselab/sise-engine/pkg/models"
)

// ItemRepository reads crawled listings and their attribute values. Items are
// produced by the crawler and are read-only to the pipeline.
type ItemRepository interface {
	// ListStamps returns id/created_at/updated_at for every item, used to
	// plan a full rebuild's bucket set.
	ListStamps(ctx context.Context) ([]models.ItemStamp, error)

	// ListStampsSince returns stamps for items updated after the high-water
	// mark. Keyed off updated_at so status transitions re-enter processing.
	ListStampsSince(ctx context.Context, since time.Time) ([]models.ItemStamp, error)

	// ListWindow returns full item rows created within [from, to).
	ListWindow(ctx context.Context, from, to time.Time) ([]*models.Item, error)

	// ListValues returns the attribute values of the given items, grouped by
	// item ID.
	ListValues(ctx context.Context, itemIDs []int64) (map[int64][]models.ItemAttributeValue, error)
}

type itemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new ItemRepository.
func NewItemRepository(db *database.DB) ItemRepository {
	return &itemRepository{db: db}
}

var _ ItemRepository = (*itemRepository)(nil)

func (r *itemRepository) ListStamps(ctx context.Context) ([]models.ItemStamp, error) {
	query := `SELECT id, created_at, updated_at FROM items ORDER BY id`
	return r.queryStamps(ctx, query)
}

func (r *itemRepository) ListStampsSince(ctx context.Context, since time.Time) ([]models.ItemStamp, error) {
	query := `SELECT id, created_at, updated_at FROM items WHERE updated_at > $1 ORDER BY id`
	return r.queryStamps(ctx, query, since)
}

func (r *itemRepository) queryStamps(ctx context.Context, query string, args ...any) ([]models.ItemStamp, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query item stamps: %w", err)
	}
	defer rows.Close()

	var stamps []models.ItemStamp
	for rows.Next() {
		var s models.ItemStamp
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item stamp: %w", err)
		}
		stamps = append(stamps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item stamps: %w", err)
	}
	return stamps, nil
}

func (r *itemRepository) ListWindow(ctx context.Context, from, to time.Time) ([]*models.Item, error) {
	query := `
		SELECT id, category_id, region_id, title, price, status, url, source, external_id,
		       created_at, updated_at
		FROM items
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query items in window: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.ID, &it.CategoryID, &it.RegionID, &it.Title, &it.Price,
			&it.Status, &it.URL, &it.Source, &it.ExternalID, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

func (r *itemRepository) ListValues(ctx context.Context, itemIDs []int64) (map[int64][]models.ItemAttributeValue, error) {
	values := make(map[int64][]models.ItemAttributeValue, len(itemIDs))
	if len(itemIDs) == 0 {
		return values, nil
	}

	query := `
		SELECT item_id, attribute_id, option_id, value_text, value_int, value_decimal::text, value_bool
		FROM item_attribute_values
		WHERE item_id = ANY($1)
		ORDER BY item_id, attribute_id`

	rows, err := r.db.Query(ctx, query, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query item attribute values: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			itemID, attributeID int64
			optionID            *int64
			valueText           *string
			valueInt            *int64
			valueDecimal        *string
			valueBool           *bool
		)
		if err := rows.Scan(&itemID, &attributeID, &optionID, &valueText, &valueInt, &valueDecimal, &valueBool); err != nil {
			return nil, fmt.Errorf("failed to scan item attribute value: %w", err)
		}

		value, err := attrValueFromColumns(optionID, valueText, valueInt, valueDecimal, valueBool)
		if err != nil {
			return nil, fmt.Errorf("item %d attribute %d: %w", itemID, attributeID, err)
		}
		values[itemID] = append(values[itemID], models.ItemAttributeValue{
			ItemID:      itemID,
			AttributeID: attributeID,
			Value:       value,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item attribute values: %w", err)
	}
	return values, nil
}

// attrValueFromColumns folds the storage layer's parallel nullable columns
// into the tagged variant. The check constraint guarantees at most one column
// is populated; an all-NULL row is surfaced as an empty value for the
// canonicalizer to reject.
func attrValueFromColumns(optionID *int64, valueText *string, valueInt *int64, valueDecimal *string, valueBool *bool) (models.AttrValue, error) {
	switch {
	case optionID != nil:
		return models.OptionValue(*optionID), nil
	case valueText != nil:
		return models.TextValue(*valueText), nil
	case valueInt != nil:
		return models.IntValue(*valueInt), nil
	case valueDecimal != nil:
		d, err := decimal.NewFromString(*valueDecimal)
		if err != nil {
			return models.AttrValue{}, fmt.Errorf("invalid decimal value %q: %w", *valueDecimal, err)
		}
		return models.DecimalValue(d), nil
	case valueBool != nil:
		return models.BoolValue(*valueBool), nil
	default:
		return models.AttrValue{}, nil
	}
}
