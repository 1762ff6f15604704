package models

import "time"

// ItemStatus is the listing lifecycle state reported by the crawler.
type ItemStatus string

const (
	ItemStatusActive   ItemStatus = "active"
	ItemStatusReserved ItemStatus = "reserved"
	ItemStatusSold     ItemStatus = "sold"
	ItemStatusHidden   ItemStatus = "hidden"
)

// Qualifies reports whether the status represents a firm price signal.
// Reserved and hidden listings are excluded from aggregation.
func (s ItemStatus) Qualifies() bool {
	return s == ItemStatusActive || s == ItemStatusSold
}

// Item is one raw crawled listing. Items carry no SKU foreign key; the
// association is always re-derivable from the item's attribute values.
type Item struct {
	ID         int64      `json:"id"`
	CategoryID int64      `json:"category_id"`
	RegionID   int64      `json:"region_id"`
	Title      string     `json:"title"`
	Price      int64      `json:"price"`
	Status     ItemStatus `json:"status"`
	URL        string     `json:"url"`
	Source     string     `json:"source"`
	ExternalID string     `json:"external_id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ItemAttributeValue is one attribute's value on one item (EAV row).
// Immutable once written; crawler corrections replace the item.
type ItemAttributeValue struct {
	ItemID      int64     `json:"item_id"`
	AttributeID int64     `json:"attribute_id"`
	Value       AttrValue `json:"value"`
}

// ItemStamp is the slim projection used to plan a rebuild pass.
type ItemStamp struct {
	ID        int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
