package models

// Datatype is the declared type of an attribute's values.
type Datatype string

const (
	DatatypeText    Datatype = "text"
	DatatypeInt     Datatype = "int"
	DatatypeDecimal Datatype = "decimal"
	DatatypeBool    Datatype = "bool"
)

// Attribute is a named product characteristic (model, storage, color, ...).
// Defined by the schema admin; treated as immutable by the pipeline.
type Attribute struct {
	ID       int64    `json:"id"`
	Code     string   `json:"code"`
	Label    string   `json:"label"`
	Datatype Datatype `json:"datatype"`
	Unit     string   `json:"unit,omitempty"`
}

// AttributeOption is one enumerated legal value of an option-constrained
// text attribute.
type AttributeOption struct {
	ID          int64  `json:"id"`
	AttributeID int64  `json:"attribute_id"`
	Value       string `json:"value"`
	SortOrder   int    `json:"sort_order"`
}

// CategoryAttribute binds an attribute to a category and decides whether it
// participates in fingerprinting as required or optional.
type CategoryAttribute struct {
	CategoryID   int64  `json:"category_id"`
	AttributeID  int64  `json:"attribute_id"`
	Required     bool   `json:"required"`
	DisplayGroup string `json:"display_group,omitempty"`
	SortOrder    int    `json:"sort_order"`
}

// Category groups items and SKUs (iPhone, MacBook, ...).
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
