package models

import (
	"slices"
	"strings"
)

// Record is one scraped entity: an ordered, fixed-arity tuple of strings.
// The arity and meaning of each field are fixed per dataset, e.g.
// [surname, count, normalized] for the surnames listing.
type Record []string

// Equal reports whether two records are field-wise identical.
func (r Record) Equal(other Record) bool {
	return slices.Equal(r, other)
}

// Compare orders records field by field. A record that is a strict prefix
// of another sorts first.
func (r Record) Compare(other Record) int {
	return slices.Compare(r, other)
}

// Key returns a string that is equal for two records iff they are Equal.
// Fields are joined with a NUL separator, which cannot appear in scraped text.
func (r Record) Key() string {
	return strings.Join(r, "\x00")
}

// Clone returns a copy that does not share the backing array.
func (r Record) Clone() Record {
	return slices.Clone(r)
}

// SortRecords sorts records in natural tuple order.
func SortRecords(records []Record) {
	slices.SortFunc(records, Record.Compare)
}
