package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrDataIntegrity marks an attribute value whose populated column does
	// not match the attribute's declared datatype. The item is skipped.
	ErrDataIntegrity = errors.New("attribute value does not match declared datatype")

	// ErrUnmappedOption marks a text value absent from the option set of an
	// option-constrained attribute. The value is excluded from fingerprinting.
	ErrUnmappedOption = errors.New("value not present in attribute option set")

	// ErrIneligible marks an item missing a required attribute for its
	// category. The item cannot be priced against a canonical SKU.
	ErrIneligible = errors.New("required attribute missing for category")

	// ErrFingerprintMismatch means an existing SKU's stored canonical values
	// differ from freshly computed ones for the same fingerprint. This is a
	// broken invariant and halts the rebuild pass.
	ErrFingerprintMismatch = errors.New("stored SKU attributes do not match recomputed canonical values")

	// ErrSchemaDrift means attribute or category-attribute definitions changed
	// since the last full rebuild, so incremental fingerprints are not
	// comparable with the stored catalog.
	ErrSchemaDrift = errors.New("attribute schema changed since last full rebuild")
)
