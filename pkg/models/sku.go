package models

import "time"

// SKU is a canonical product identity within a category, keyed by the
// fingerprint of its canonical attribute-value set.
type SKU struct {
	ID          int64     `json:"id"`
	CategoryID  int64     `json:"category_id"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

// SKUAttribute is one canonical attribute value defining a SKU.
// Written once at SKU creation and never changed; a differing value behind a
// stable fingerprint is a correctness bug, not an update.
type SKUAttribute struct {
	SKUID       int64     `json:"sku_id"`
	AttributeID int64     `json:"attribute_id"`
	Value       AttrValue `json:"value"`
}
