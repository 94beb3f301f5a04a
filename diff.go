package storagecheck

import (
	"slices"
)

// DiffType classifies a storage layout difference.
type DiffType uint8

const (
	// DiffLabel is a variable renamed without changing its type or position.
	DiffLabel DiffType = iota

	// DiffVariable is a byte now occupied by an unrelated variable.
	DiffVariable

	// DiffVariableType is a byte reinterpreted under an incompatible type.
	DiffVariableType

	// DiffVariableRemoved is a byte no longer occupied by any variable.
	DiffVariableRemoved

	// DiffNonZeroAddedSlot is a newly introduced byte that already holds a
	// non-zero value on chain.
	DiffNonZeroAddedSlot
)

// String returns the canonical name of the diff type.
func (t DiffType) String() string {
	switch t {
	case DiffLabel:
		return "LABEL"
	case DiffVariable:
		return "VARIABLE"
	case DiffVariableType:
		return "VARIABLE_TYPE"
	case DiffVariableRemoved:
		return "VARIABLE_REMOVED"
	case DiffNonZeroAddedSlot:
		return "NON_ZERO_ADDED_SLOT"
	default:
		return "UNKNOWN"
	}
}

// StorageLayoutDiff is a single difference between a reference and a candidate layout.
// Additions carry only Cmp; removals carry only Src.
type StorageLayoutDiff struct {
	Type     DiffType
	Location Location

	// Parent is the enclosing struct type label for struct-local comparisons.
	// Byte-mapping comparisons leave it empty.
	Parent string

	Src *StorageVariableDetail
	Cmp *StorageVariableDetail

	// Value is the byte observed on chain, for DiffNonZeroAddedSlot.
	Value byte
}

// AddedByte is a candidate byte with no counterpart in the reference layout.
type AddedByte struct {
	Location Location
	Cmp      *StorageVariableDetail
}

// identity ignores Location and Value, so that all the bytes of one variable
// share the same identity.
func (d StorageLayoutDiff) identity() string {
	return d.Type.String() + "\x00" + d.Parent + "\x00" + d.Src.identity() + "\x00" + d.Cmp.identity()
}

// sortDiffs orders diffs by storage location, keeping the relative order of ties.
func sortDiffs(diffs []StorageLayoutDiff) {
	slices.SortStableFunc(diffs, func(a, b StorageLayoutDiff) int {
		return a.Location.Compare(b.Location)
	})
}

// uniqDiffs keeps the first diff of each identity. Applied to sorted diffs,
// this reports each variable once, at its first differing byte.
func uniqDiffs(diffs []StorageLayoutDiff) []StorageLayoutDiff {
	seen := make(map[string]struct{}, len(diffs))
	result := make([]StorageLayoutDiff, 0, len(diffs))
	for _, d := range diffs {
		key := d.identity()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, d)
	}
	return result
}
