package fec

import (
	"fmt"
	"sync"

	"github.com/klauspost/reedsolomon"
)

type reedSolomonCoder struct {
	enc     reedsolomon.Encoder
	nData   int
	nParity int
}

// The coding matrix only depends on the group shape, so encoders are shared
// across all codec instances in the process. reedsolomon.Encoder is safe for
// concurrent use.
var (
	rsEncodersMx sync.Mutex
	rsEncoders   = make(map[[2]int]reedsolomon.Encoder)
)

func newReedSolomonCoder(nData, nParity int) (*reedSolomonCoder, error) {
	if err := validateGroupShape(nData, nParity); err != nil {
		return nil, err
	}
	key := [2]int{nData, nParity}
	rsEncodersMx.Lock()
	enc, ok := rsEncoders[key]
	if !ok {
		var err error
		enc, err = reedsolomon.New(nData, nParity)
		if err != nil {
			rsEncodersMx.Unlock()
			return nil, err
		}
		rsEncoders[key] = enc
	}
	rsEncodersMx.Unlock()
	return &reedSolomonCoder{enc: enc, nData: nData, nParity: nParity}, nil
}

func (c *reedSolomonCoder) Encode(data [][]byte, parity [][]byte) error {
	if len(data) != c.nData || len(parity) != c.nParity {
		return fmt.Errorf("expected %d data and %d parity shards, got %d and %d", c.nData, c.nParity, len(data), len(parity))
	}
	shards := make([][]byte, c.nData+c.nParity)
	copy(shards, data)
	copy(shards[c.nData:], parity)
	if err := c.enc.Encode(shards); err != nil {
		return fmt.Errorf("unable to compute parity shards: %w", err)
	}
	return nil
}

func (c *reedSolomonCoder) Reconstruct(data [][]byte, parity [][]byte, parityIndexes []int, missing []int) error {
	if len(data) != c.nData {
		return fmt.Errorf("expected %d data shards, got %d", c.nData, len(data))
	}
	if len(parity) != len(parityIndexes) {
		return fmt.Errorf("got %d parity shards but %d parity indexes", len(parity), len(parityIndexes))
	}
	shards := make([][]byte, c.nData+c.nParity)
	copy(shards, data)
	for _, i := range missing {
		if i < 0 || i >= c.nData {
			return fmt.Errorf("missing shard index %d outside of [0, %d)", i, c.nData)
		}
		// A zero-length shard with capacity makes the library reconstruct
		// directly into the caller's buffer.
		shards[i] = data[i][:0]
	}
	for j, p := range parity {
		idx := parityIndexes[j]
		if idx < 0 || idx >= c.nParity {
			return fmt.Errorf("parity shard index %d outside of [0, %d)", idx, c.nParity)
		}
		shards[c.nData+idx] = p
	}
	if err := c.enc.ReconstructData(shards); err != nil {
		return fmt.Errorf("unable to reconstruct data shards: %w", err)
	}
	for _, i := range missing {
		// no-op if the library reused the caller's buffer
		copy(data[i], shards[i])
	}
	return nil
}
