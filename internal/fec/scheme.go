package fec

import (
	"fmt"

	"github.com/appetito/wifibroadcast-bridge-1/internal/protocol"
)

// A BlockCoder is a systematic erasure code over one group of equally sized
// shards. Encode leaves the data shards untouched and fills the parity
// shards so that any nData of the nData+nParity shards suffice to
// reconstruct all data. Reconstruct rebuilds the shards listed in missing,
// in place, from the surviving data shards and any subset of parity shards
// identified by their original parity indexes.
type BlockCoder interface {
	Encode(data [][]byte, parity [][]byte) error
	Reconstruct(data [][]byte, parity [][]byte, parityIndexes []int, missing []int) error
}

// NewBlockCoder returns the coder for the given scheme and group shape.
// Coders are cheap to create: the underlying coding matrices are cached per
// (nData, nParity) pair.
func NewBlockCoder(id protocol.FECSchemeID, nData, nParity int) (BlockCoder, error) {
	switch id {
	case protocol.ReedSolomonFECScheme:
		return newReedSolomonCoder(nData, nParity)
	case protocol.VandermondeFECScheme:
		return newVandermondeCoder(nData, nParity)
	default:
		return nil, fmt.Errorf("unknown FEC scheme: %d", id)
	}
}

func validateGroupShape(nData, nParity int) error {
	if nData <= 0 || nParity <= 0 {
		return fmt.Errorf("group shape (%d, %d) needs at least one data and one parity shard", nData, nParity)
	}
	if nData+nParity > protocol.MaxShardsPerGroup {
		return fmt.Errorf("group shape (%d, %d) exceeds %d total shards", nData, nParity, protocol.MaxShardsPerGroup)
	}
	return nil
}
