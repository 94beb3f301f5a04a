package storagecheck

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// WordSize is the size of a storage slot in bytes.
const WordSize = 32

var wordSize = big.NewInt(WordSize)

// Location identifies a single byte of storage.
type Location struct {
	Slot   *big.Int
	Offset uint64
}

// Compare orders locations by slot, then offset.
func (l Location) Compare(other Location) int {
	if c := l.Slot.Cmp(other.Slot); c != 0 {
		return c
	}
	switch {
	case l.Offset < other.Offset:
		return -1
	case l.Offset > other.Offset:
		return 1
	default:
		return 0
	}
}

// byteLocation splits an absolute byte position into its slot and offset.
func byteLocation(pos *big.Int) Location {
	slot, offset := new(big.Int).QuoRem(pos, wordSize, new(big.Int))
	return Location{Slot: slot, Offset: offset.Uint64()}
}

// startByte returns the absolute byte position of (slot, offset).
func startByte(slot, offset *big.Int) *big.Int {
	pos := new(big.Int).Mul(slot, wordSize)
	return pos.Add(pos, offset)
}

// slotWord encodes a slot index as a big-endian 32-byte word.
func slotWord(slot *big.Int) ([WordSize]byte, error) {
	if slot.Sign() < 0 {
		return [WordSize]byte{}, ErrSlotOverflow
	}
	word, overflow := uint256.FromBig(slot)
	if overflow {
		return [WordSize]byte{}, ErrSlotOverflow
	}
	return word.Bytes32(), nil
}

// DynamicArrayElementSlot returns the slot of the element at index 0 of the
// dynamic array whose length is stored at slot: keccak256(slot).
func DynamicArrayElementSlot(slot *big.Int) (*big.Int, error) {
	word, err := slotWord(slot)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256Hash(word[:]).Big(), nil
}

// MappingValueSlot returns the slot of the value at key 0 of the mapping
// declared at slot: keccak256(uint256(0) ++ slot).
func MappingValueSlot(slot *big.Int) (*big.Int, error) {
	word, err := slotWord(slot)
	if err != nil {
		return nil, err
	}
	var key [WordSize]byte
	return crypto.Keccak256Hash(key[:], word[:]).Big(), nil
}

// wordByte extracts the byte at offset from a storage word. Offsets count
// from the least significant end of the word.
func wordByte(word common.Hash, offset uint64) byte {
	return word[WordSize-1-offset]
}
