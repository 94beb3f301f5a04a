package storagecheck

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
)

// Type encodings emitted by the compiler in storage layout reports.
const (
	EncodingInplace      = "inplace"
	EncodingMapping      = "mapping"
	EncodingDynamicArray = "dynamic_array"
	EncodingBytes        = "bytes"
)

// StorageVariable is a variable declared in contract storage, or a member of a struct.
// Slot and Offset are relative to the enclosing scope.
type StorageVariable struct {
	AstID    int64
	Contract string
	Label    string
	Type     string
	Slot     *big.Int
	Offset   *big.Int
}

// StorageType describes how values of a type are laid out in storage.
type StorageType struct {
	Encoding string
	Label    string

	// NumberOfBytes is nil when the report carries no size.
	NumberOfBytes *big.Int

	// Members is non-nil for structs.
	Members []StorageVariable

	// Base is the element type of arrays.
	Base string

	// Key and Value are the key and value types of mappings.
	Key   string
	Value string
}

// HasMembers reports whether the type is a struct with at least one member.
func (t *StorageType) HasMembers() bool {
	return len(t.Members) > 0
}

// Layout is a storage layout report with exact integer positions.
type Layout struct {
	Storage []StorageVariable
	Types   map[string]*StorageType
}

// Type resolves a type identifier against the layout's type dictionary.
func (l *Layout) Type(id string) (*StorageType, error) {
	t, ok := l.Types[id]
	if !ok || t == nil {
		return nil, &MalformedReportError{Field: id, Err: ErrUnknownType}
	}
	return t, nil
}

// rawVariable mirrors a variable entry of the compiler's JSON report.
type rawVariable struct {
	AstID    int64    `json:"astId"`
	Contract string   `json:"contract"`
	Label    string   `json:"label"`
	Offset   quantity `json:"offset"`
	Slot     quantity `json:"slot"`
	Type     string   `json:"type"`
}

// rawType mirrors a type entry of the compiler's JSON report.
type rawType struct {
	Encoding      string        `json:"encoding"`
	Label         string        `json:"label"`
	NumberOfBytes *quantity     `json:"numberOfBytes"`
	Members       []rawVariable `json:"members"`
	Base          string        `json:"base"`
	Key           string        `json:"key"`
	Value         string        `json:"value"`
}

type rawLayout struct {
	Storage []rawVariable       `json:"storage"`
	Types   map[string]*rawType `json:"types"`
}

// quantity is an integer encoded either as a JSON number or as a decimal
// or 0x-prefixed hexadecimal string.
type quantity struct {
	v *big.Int
}

func (q *quantity) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "null" {
		return nil
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		text = strings.TrimSpace(s)
	}

	digits, base := text, 10
	if hex, ok := strings.CutPrefix(strings.ToLower(text), "0x"); ok {
		digits, base = hex, 16
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok || v.Sign() < 0 {
		return fmt.Errorf("%w: %q", ErrInvalidNumber, text)
	}
	q.v = v
	return nil
}

// ParseLayout parses a storage layout report as produced by `forge inspect
// <contract> storage-layout`. Comments and trailing commas are tolerated.
func ParseLayout(data []byte) (*Layout, error) {
	var raw rawLayout
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, &MalformedReportError{Err: err}
	}

	layout := &Layout{
		Storage: make([]StorageVariable, 0, len(raw.Storage)),
		Types:   make(map[string]*StorageType, len(raw.Types)),
	}

	for i, v := range raw.Storage {
		variable, err := v.exact()
		if err != nil {
			return nil, &MalformedReportError{Field: fmt.Sprintf("storage[%d]", i), Err: err}
		}
		layout.Storage = append(layout.Storage, variable)
	}

	for id, t := range raw.Types {
		if t == nil {
			return nil, &MalformedReportError{Field: id, Err: ErrMissingTypeField}
		}
		storageType, err := t.exact()
		if err != nil {
			return nil, &MalformedReportError{Field: id, Err: err}
		}
		layout.Types[id] = storageType
	}

	return layout, nil
}

// ReadLayoutFile reads and parses a storage layout report from disk.
func ReadLayoutFile(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	layout, err := ParseLayout(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return layout, nil
}

func (v rawVariable) exact() (StorageVariable, error) {
	if v.Slot.v == nil {
		return StorageVariable{}, fmt.Errorf("%s: %w: slot", v.Label, ErrMissingTypeField)
	}
	offset := v.Offset.v
	if offset == nil {
		offset = new(big.Int)
	}
	return StorageVariable{
		AstID:    v.AstID,
		Contract: v.Contract,
		Label:    v.Label,
		Type:     v.Type,
		Slot:     v.Slot.v,
		Offset:   offset,
	}, nil
}

func (t *rawType) exact() (*StorageType, error) {
	storageType := &StorageType{
		Encoding: t.Encoding,
		Label:    t.Label,
		Base:     t.Base,
		Key:      t.Key,
		Value:    t.Value,
	}
	if t.NumberOfBytes != nil {
		storageType.NumberOfBytes = t.NumberOfBytes.v
	}

	if t.Members != nil {
		storageType.Members = make([]StorageVariable, 0, len(t.Members))
		for _, m := range t.Members {
			member, err := m.exact()
			if err != nil {
				return nil, err
			}
			storageType.Members = append(storageType.Members, member)
		}
	}

	return storageType, nil
}
