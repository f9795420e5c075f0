package common

import "io"

// RelationScanner is the minimal stand-in for the out-of-scope base-relation
// scanner: given a relation an index constructor otherwise knows nothing
// about, it yields each tuple's indexed attribute value and RecordId once,
// in unspecified order, then reports io.EOF. OpenIndex drives one of these
// to bulk-populate a freshly created index file.
type RelationScanner interface {
	// Next returns the next tuple's attribute value (an int32, float64 or
	// String10, matching whatever datatype the caller is indexing) and its
	// RecordId, or io.EOF once every tuple has been yielded.
	Next() (value any, rid RecordId, err error)
}

// SliceScanner is a RelationScanner over pre-built in-memory (value, RecordId)
// pairs. It exists for tests and the demo CLI, which have no real base
// relation to scan, and gives the index constructor's bulk-load path
// something to drive.
type SliceScanner struct {
	Values []any
	Rids   []RecordId
	pos    int
}

// NewSliceScanner builds a SliceScanner over values and rids, which must be
// the same length.
func NewSliceScanner(values []any, rids []RecordId) *SliceScanner {
	return &SliceScanner{Values: values, Rids: rids}
}

func (s *SliceScanner) Next() (any, RecordId, error) {
	if s.pos >= len(s.Values) {
		return nil, RecordId{}, io.EOF
	}
	v, r := s.Values[s.pos], s.Rids[s.pos]
	s.pos++
	return v, r, nil
}
