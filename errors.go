package storagecheck

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors for common failure conditions.
var (
	// ErrUnknownType indicates a variable references a type missing from the type dictionary.
	ErrUnknownType = errors.New("storagecheck: unknown type identifier")

	// ErrInvalidNumber indicates a slot, offset or byte count is not a non-negative integer.
	ErrInvalidNumber = errors.New("storagecheck: invalid integer value")

	// ErrSlotOverflow indicates a slot does not fit in a 256-bit storage word.
	ErrSlotOverflow = errors.New("storagecheck: slot exceeds 256 bits")

	// ErrMissingTypeField indicates a mapping or array type lacks its key, value or base type.
	ErrMissingTypeField = errors.New("storagecheck: missing type field")
)

// MalformedReportError indicates a storage layout report failed structural validation.
// Field names the offending type identifier or report field.
type MalformedReportError struct {
	Field string
	Err   error
}

func (e *MalformedReportError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("storagecheck: malformed layout report: %v", e.Err)
	}
	return fmt.Sprintf("storagecheck: malformed layout report: %s: %v", e.Field, e.Err)
}

func (e *MalformedReportError) Unwrap() error {
	return e.Err
}

// ChainReadError indicates reading a storage slot from the chain failed.
type ChainReadError struct {
	Address common.Address
	Slot    *big.Int
	Err     error
}

func (e *ChainReadError) Error() string {
	return fmt.Sprintf("storagecheck: reading slot 0x%x of %s: %v", e.Slot, e.Address.Hex(), e.Err)
}

func (e *ChainReadError) Unwrap() error {
	return e.Err
}
