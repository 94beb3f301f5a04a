package storagecheck

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// StorageVariableDetail is a variable positioned at an absolute location in
// storage, qualified by the struct or collection it belongs to.
type StorageVariableDetail struct {
	StorageVariable

	// FullLabel qualifies Label with the enclosing struct, e.g. "(Storage.Pool pool).fee".
	FullLabel string

	// TypeLabel is the human-readable type name without a leading "struct ".
	TypeLabel string

	// StartByte is the absolute byte position of the variable: slot*32 + offset.
	StartByte *big.Int
}

// sameVariable reports whether two details describe the same variable at the same place.
func (d *StorageVariableDetail) sameVariable(other *StorageVariableDetail) bool {
	return d.Type == other.Type &&
		d.FullLabel == other.FullLabel &&
		d.Slot.Cmp(other.Slot) == 0 &&
		d.Offset.Cmp(other.Offset) == 0 &&
		d.StartByte.Cmp(other.StartByte) == 0
}

// identity returns a key that is equal for two details iff all their fields are.
func (d *StorageVariableDetail) identity() string {
	if d == nil {
		return ""
	}
	return fmt.Sprintf("%d|%s|%s|%s|%s|%s|%s|%s|%s",
		d.AstID, d.Contract, d.Label, d.Type, d.Slot, d.Offset,
		d.FullLabel, d.TypeLabel, d.StartByte)
}

// byteEntry is a single byte of a ByteMapping.
type byteEntry struct {
	pos    *big.Int
	detail *StorageVariableDetail
}

// ByteMapping maps absolute storage byte positions to the variable occupying them.
// Bytes not occupied by any variable are absent.
type ByteMapping struct {
	entries    map[string]byteEntry
	collisions int
}

func newByteMapping() *ByteMapping {
	return &ByteMapping{entries: make(map[string]byteEntry)}
}

// Len returns the number of occupied bytes.
func (m *ByteMapping) Len() int {
	return len(m.entries)
}

// Collisions returns how many bytes were claimed by more than one variable.
// A well-formed report never produces collisions.
func (m *ByteMapping) Collisions() int {
	return m.collisions
}

// At returns the variable occupying the byte at pos, or nil.
func (m *ByteMapping) At(pos *big.Int) *StorageVariableDetail {
	return m.entries[pos.Text(16)].detail
}

// Positions returns all occupied byte positions in ascending order.
func (m *ByteMapping) Positions() []*big.Int {
	positions := make([]*big.Int, 0, len(m.entries))
	for _, e := range m.entries {
		positions = append(positions, e.pos)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Cmp(positions[j]) < 0
	})
	return positions
}

// set assigns pos to detail, returning true when it overrode another variable.
func (m *ByteMapping) set(pos *big.Int, detail *StorageVariableDetail) bool {
	key := pos.Text(16)
	prev, exists := m.entries[key]
	m.entries[key] = byteEntry{pos: pos, detail: detail}
	if exists && prev.detail != detail {
		m.collisions++
		return true
	}
	return false
}

// parentScope carries the fields of an enclosing struct variable needed to
// qualify its members' labels.
type parentScope struct {
	label     string
	typeLabel string
}

// mappingBuilder expands a layout into a ByteMapping.
type mappingBuilder struct {
	layout *Layout
	result *ByteMapping
	logger *zap.Logger
}

// BuildByteMapping expands every variable of layout, recursively through
// structs and through the canonical element of mappings and dynamic arrays,
// into a mapping from absolute byte position to variable.
func BuildByteMapping(layout *Layout, opts ...Option) (*ByteMapping, error) {
	return buildByteMapping(layout, newConfig(opts))
}

func buildByteMapping(layout *Layout, cfg *config) (*ByteMapping, error) {
	b := &mappingBuilder{
		layout: layout,
		result: newByteMapping(),
		logger: cfg.logger,
	}

	for _, variable := range layout.Storage {
		if err := b.mapVariable(variable, nil, startByte(variable.Slot, variable.Offset)); err != nil {
			return nil, err
		}
	}

	b.logger.Debug("built byte mapping",
		zap.Int("variables", len(layout.Storage)),
		zap.Int("bytes", b.result.Len()),
		zap.Int("collisions", b.result.Collisions()))

	return b.result, nil
}

// mapVariable maps the bytes of variable, whose slot is absolute and whose
// first byte is at start.
func (b *mappingBuilder) mapVariable(variable StorageVariable, parent *parentScope, start *big.Int) error {
	varType, err := b.layout.Type(variable.Type)
	if err != nil {
		return err
	}

	switch varType.Encoding {
	case EncodingDynamicArray:
		if varType.Base == "" {
			return &MalformedReportError{Field: variable.Type, Err: fmt.Errorf("%w: base", ErrMissingTypeField)}
		}
		slot, err := DynamicArrayElementSlot(variable.Slot)
		if err != nil {
			return &MalformedReportError{Field: variable.Label, Err: err}
		}
		element := variable
		element.Slot = slot
		element.Offset = new(big.Int)
		element.Type = varType.Base
		element.Label = strings.Replace(variable.Label, "[]", "[0]", 1)
		if err := b.mapVariable(element, parent, new(big.Int).Mul(slot, wordSize)); err != nil {
			return err
		}

	case EncodingMapping:
		if varType.Value == "" {
			return &MalformedReportError{Field: variable.Type, Err: fmt.Errorf("%w: value", ErrMissingTypeField)}
		}
		slot, err := MappingValueSlot(variable.Slot)
		if err != nil {
			return &MalformedReportError{Field: variable.Label, Err: err}
		}
		element := variable
		element.Slot = slot
		element.Offset = new(big.Int)
		element.Type = varType.Value
		element.Label = variable.Label + "[0]"
		if err := b.mapVariable(element, parent, new(big.Int).Mul(slot, wordSize)); err != nil {
			return err
		}
	}

	detail := &StorageVariableDetail{
		StorageVariable: variable,
		FullLabel:       variable.Label,
		TypeLabel:       strings.Replace(varType.Label, "struct ", "", 1),
		StartByte:       start,
	}
	if parent != nil {
		detail.FullLabel = "(" + parent.typeLabel + " " + parent.label + ")." + variable.Label
	}

	if varType.Members == nil {
		size := int64(1)
		if varType.NumberOfBytes != nil && varType.NumberOfBytes.Sign() > 0 {
			if !varType.NumberOfBytes.IsInt64() {
				return &MalformedReportError{
					Field: variable.Type,
					Err:   fmt.Errorf("%w: numberOfBytes %s", ErrInvalidNumber, varType.NumberOfBytes),
				}
			}
			size = varType.NumberOfBytes.Int64()
		}
		for i := int64(0); i < size; i++ {
			pos := new(big.Int).Add(start, big.NewInt(i))
			if b.result.set(pos, detail) {
				b.logger.Warn("storage byte claimed by more than one variable",
					zap.String("variable", detail.FullLabel),
					zap.Stringer("byte", pos))
			}
		}
		return nil
	}

	scope := &parentScope{label: variable.Label, typeLabel: detail.TypeLabel}
	for _, member := range varType.Members {
		m := member
		m.Slot = new(big.Int).Add(variable.Slot, member.Slot)

		memberStart := new(big.Int).Mul(member.Slot, wordSize)
		memberStart.Add(memberStart, member.Offset)
		memberStart.Add(memberStart, start)

		if err := b.mapVariable(m, scope, memberStart); err != nil {
			return err
		}
	}
	return nil
}
