package rdb

import "encoding/hex"

// emptySnapshotHex is a valid snapshot of an empty keyspace, checksum
// included. The primary serves it during a full resync instead of
// serializing its live state.
const emptySnapshotHex = "524544495330303131fa0972656469732d76657205372e322e30fa0a726564" +
	"69732d62697473c040fa056374696d65c26d08bc65fa08757365642d6d656d" +
	"c2b0c41000fa08616f662d62617365c000fff06e3bfec0ff5aa2"

// EmptySnapshot returns the canonical empty-keyspace snapshot bytes.
func EmptySnapshot() []byte {
	b, err := hex.DecodeString(emptySnapshotHex)
	if err != nil {
		panic("rdb: corrupt embedded empty snapshot")
	}
	return b
}
