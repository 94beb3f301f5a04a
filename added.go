package storagecheck

import (
	"context"
	"errors"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CheckAddedSlots reads the live value of every added byte and reports those
// that are already non-zero: a variable introduced there would start from
// garbage state. It is a no-op unless WithChainReader is given.
//
// Each distinct slot is read at most once. Failing slots are skipped and
// reported through the returned error, one *ChainReadError per slot, while
// the diffs of the other slots are still returned.
func CheckAddedSlots(ctx context.Context, added []AddedByte, opts ...Option) ([]StorageLayoutDiff, error) {
	return checkAddedSlots(ctx, added, newConfig(opts))
}

// slotRead is the memoized outcome of reading one slot.
type slotRead struct {
	slot *big.Int
	word common.Hash
	err  error
}

func checkAddedSlots(ctx context.Context, added []AddedByte, cfg *config) ([]StorageLayoutDiff, error) {
	if cfg.address == nil || cfg.reader == nil || len(added) == 0 {
		return nil, nil
	}
	address := *cfg.address

	sorted := slices.Clone(added)
	slices.SortStableFunc(sorted, func(a, b AddedByte) int {
		return a.Location.Compare(b.Location)
	})

	// One read per distinct slot.
	reads := make([]*slotRead, 0)
	bySlot := make(map[string]*slotRead)
	for _, a := range sorted {
		key := a.Location.Slot.Text(16)
		if _, ok := bySlot[key]; ok {
			continue
		}
		read := &slotRead{slot: a.Location.Slot}
		bySlot[key] = read
		reads = append(reads, read)
	}

	var g errgroup.Group
	g.SetLimit(cfg.readConcurrency)
	for _, read := range reads {
		g.Go(func() error {
			read.word, read.err = cfg.reader.ReadSlot(ctx, address, read.slot)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, read := range reads {
		if read.err != nil {
			cfg.logger.Warn("failed to read storage slot",
				zap.Stringer("address", address),
				zap.String("slot", "0x"+read.slot.Text(16)),
				zap.Error(read.err))
			errs = append(errs, &ChainReadError{Address: address, Slot: read.slot, Err: read.err})
		}
	}

	cfg.logger.Debug("read added storage slots",
		zap.Int("bytes", len(sorted)),
		zap.Int("slots", len(reads)),
		zap.Int("failed", len(errs)))

	var diffs []StorageLayoutDiff
	for _, a := range sorted {
		read := bySlot[a.Location.Slot.Text(16)]
		if read.err != nil {
			continue
		}

		value := wordByte(read.word, a.Location.Offset)
		if value == 0 {
			continue
		}

		diffs = append(diffs, StorageLayoutDiff{
			Type:     DiffNonZeroAddedSlot,
			Location: a.Location,
			Cmp:      a.Cmp,
			Value:    value,
		})
	}

	return uniqDiffs(diffs), errors.Join(errs...)
}
