// Package storagecheck verifies that two versions of a contract's storage
// layout are binary-compatible, so that upgrading a deployed contract cannot
// silently corrupt or misinterpret existing on-chain data.
//
// Storage is an unbounded space of 32-byte words. The compiler's storage
// layout report assigns each variable a slot and a byte offset, and describes
// how many bytes its type occupies. This package expands a report into a
// mapping from absolute byte position to the variable occupying it, then
// compares a reference and a candidate mapping byte by byte.
//
// # Basic Usage
//
//	reference, err := storagecheck.ReadLayoutFile("main.Vault.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	candidate, err := storagecheck.ReadLayoutFile("feature.Vault.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	diffs, err := storagecheck.CheckLayouts(ctx, reference, candidate,
//	    storagecheck.WithRemovalCheck(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, diff := range diffs {
//	    fmt.Println(storagecheck.FormatDiff(diff, nil).Message)
//	}
//
// # Byte Mapping
//
// Struct members are expanded recursively. Mappings and dynamic arrays are
// represented by one canonical element: the value at key 0 for mappings,
// stored at keccak256(0 ++ slot), and the element at index 0 for dynamic
// arrays, stored at keccak256(slot). Type changes inside collections are
// thus detected without enumerating their keys.
//
// # Diff Types
//
//   - DiffLabel: a variable was renamed. Reported as a warning.
//   - DiffVariable: a byte is now occupied by another variable.
//   - DiffVariableType: a byte is reinterpreted under an incompatible type.
//   - DiffVariableRemoved: a byte is no longer used (WithRemovalCheck only).
//   - DiffNonZeroAddedSlot: a new variable lands on a byte that is already
//     non-zero on chain (WithChainReader only).
//
// Consuming a __gap variable, adding struct members in unused bytes,
// renumbered compiler type ids and switching between an address and a
// contract type are never reported.
//
// # Chain Verification
//
// Bytes introduced by the candidate are expected to read as zero. Given a
// StorageReader, such as a ClientReader wrapping an *ethclient.Client, and
// the address of the deployed contract, CheckLayouts reads each affected slot
// once and reports the non-zero bytes.
package storagecheck
