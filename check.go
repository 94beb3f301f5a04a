package storagecheck

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// GapLabel is the label of variables reserving storage for future use.
const GapLabel = "__gap"

// FoundryTypeIDPattern matches the numeric id the compiler appends to
// user-defined type names in type identifiers, e.g. the 42 in
// "t_struct(Pool)42_storage". The first group is everything before the id.
var FoundryTypeIDPattern = regexp.MustCompile(`(t_[a-z0-9_]+\([A-Z]\w*\))\d+`)

// StripTypeID removes compiler-assigned numeric ids from a type identifier.
func StripTypeID(typeID string) string {
	return FoundryTypeIDPattern.ReplaceAllString(typeID, "${1}")
}

// Comparison is the result of comparing two byte mappings, before any chain
// verification.
type Comparison struct {
	// Diffs is sorted by location and holds one entry per differing variable.
	Diffs []StorageLayoutDiff

	// Added holds the candidate bytes absent from the reference layout, or
	// taking the place of a gap, sorted by location.
	Added []AddedByte
}

// CheckLayouts compares the candidate layout against the reference layout and
// returns the unsafe or suspicious differences, sorted by storage location.
//
// When WithChainReader is set, added bytes are checked against live storage and
// the resulting diffs are appended. Chain read failures do not discard the
// other diffs: they are returned together with a non-nil error wrapping one
// *ChainReadError per failing slot.
func CheckLayouts(ctx context.Context, reference, candidate *Layout, opts ...Option) ([]StorageLayoutDiff, error) {
	cfg := newConfig(opts)

	comparison, err := diffLayouts(reference, candidate, cfg)
	if err != nil {
		return nil, err
	}

	added, err := checkAddedSlots(ctx, comparison.Added, cfg)
	return append(comparison.Diffs, added...), err
}

// DiffLayouts compares two layouts without touching the chain.
func DiffLayouts(reference, candidate *Layout, opts ...Option) (*Comparison, error) {
	return diffLayouts(reference, candidate, newConfig(opts))
}

func diffLayouts(reference, candidate *Layout, cfg *config) (*Comparison, error) {
	srcMapping, err := buildByteMapping(reference, cfg)
	if err != nil {
		return nil, err
	}
	cmpMapping, err := buildByteMapping(candidate, cfg)
	if err != nil {
		return nil, err
	}

	c := &comparer{src: reference, cmp: candidate}

	var diffs []StorageLayoutDiff
	var added []AddedByte

	// Phase 1: every byte of the candidate layout
	for _, pos := range cmpMapping.Positions() {
		location := byteLocation(pos)
		cmpVar := cmpMapping.At(pos)
		srcVar := srcMapping.At(pos)

		if srcVar == nil {
			added = append(added, AddedByte{Location: location, Cmp: cmpVar})
			continue
		}

		diffType, classification, err := c.classify(srcVar, cmpVar)
		if err != nil {
			return nil, err
		}
		switch classification {
		case byteAdded:
			added = append(added, AddedByte{Location: location, Cmp: cmpVar})
		case byteDiff:
			diffs = append(diffs, StorageLayoutDiff{
				Type:     diffType,
				Location: location,
				Src:      srcVar,
				Cmp:      cmpVar,
			})
		}
	}

	// Phase 2: bytes only present in the reference layout
	if cfg.checkRemovals {
		for _, pos := range srcMapping.Positions() {
			if cmpMapping.At(pos) != nil {
				continue
			}
			diffs = append(diffs, StorageLayoutDiff{
				Type:     DiffVariableRemoved,
				Location: byteLocation(pos),
				Src:      srcMapping.At(pos),
			})
		}
	}

	sortDiffs(diffs)
	diffs = uniqDiffs(diffs)

	cfg.logger.Debug("compared layouts",
		zap.Int("diffs", len(diffs)),
		zap.Int("added", len(added)))

	return &Comparison{Diffs: diffs, Added: added}, nil
}

// byteClass is the outcome of comparing the two variables sharing a byte.
type byteClass uint8

const (
	byteUnchanged byteClass = iota
	byteAdded
	byteDiff
)

// comparer classifies bytes present in both layouts.
type comparer struct {
	src *Layout
	cmp *Layout
}

// classify decides how the byte shared by srcVar and cmpVar changed.
// The diff type is only meaningful when the class is byteDiff.
func (c *comparer) classify(srcVar, cmpVar *StorageVariableDetail) (DiffType, byteClass, error) {
	if cmpVar.sameVariable(srcVar) {
		return 0, byteUnchanged, nil
	}

	// Consuming or introducing a gap is always safe.
	if srcVar.Label == GapLabel || cmpVar.Label == GapLabel {
		return 0, byteAdded, nil
	}

	if cmpVar.FullLabel != srcVar.FullLabel {
		// New struct member placed in bytes the reference struct left unused.
		if strings.HasPrefix(cmpVar.FullLabel, "("+srcVar.TypeLabel+" "+srcVar.Label+")") {
			return 0, byteAdded, nil
		}

		if cmpVar.Type == srcVar.Type {
			if cmpVar.Label != srcVar.Label {
				return DiffLabel, byteDiff, nil
			}
			return 0, byteUnchanged, nil
		}

		return DiffVariable, byteDiff, nil
	}

	if StripTypeID(cmpVar.Type) == StripTypeID(srcVar.Type) {
		return 0, byteUnchanged, nil
	}

	compatible, err := c.compatibleTypes(srcVar.Type, cmpVar.Type)
	if err != nil {
		return 0, byteUnchanged, err
	}
	if compatible {
		return 0, byteUnchanged, nil
	}
	return DiffVariableType, byteDiff, nil
}

// compatibleTypes reports whether a variable may change from srcTypeID to
// cmpTypeID without reinterpreting the byte under comparison.
func (c *comparer) compatibleTypes(srcTypeID, cmpTypeID string) (bool, error) {
	cmpType, err := c.cmp.Type(cmpTypeID)
	if err != nil {
		return false, err
	}
	// Members are compared byte by byte on their own.
	if cmpType.HasMembers() {
		return true, nil
	}

	srcType, err := c.src.Type(srcTypeID)
	if err != nil {
		return false, err
	}
	if cmpType.Encoding != srcType.Encoding {
		return false, nil
	}

	switch {
	case cmpType.Encoding == EncodingMapping && cmpType.Key == srcType.Key:
		return c.compatibleElements(srcType.Value, cmpType.Value)
	case cmpType.Encoding == EncodingDynamicArray:
		return c.compatibleElements(srcType.Base, cmpType.Base)
	case isAddressLike(srcTypeID) && isAddressLike(cmpTypeID):
		return true, nil
	}
	return false, nil
}

// compatibleElements reports whether the canonical elements of two
// collections are themselves compared byte by byte, which makes the
// collection type change safe at the collection's own slot.
func (c *comparer) compatibleElements(srcElemID, cmpElemID string) (bool, error) {
	srcElem, err := c.src.Type(srcElemID)
	if err != nil {
		return false, err
	}
	cmpElem, err := c.cmp.Type(cmpElemID)
	if err != nil {
		return false, err
	}

	if cmpElem.Encoding == srcElem.Encoding && cmpElem.Encoding != EncodingInplace {
		return true, nil
	}
	return cmpElem.HasMembers(), nil
}

// isAddressLike reports whether a type identifier is stored as an address.
func isAddressLike(typeID string) bool {
	return typeID == "t_address" || strings.HasPrefix(typeID, "t_contract")
}
